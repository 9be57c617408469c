// Package http exposes the liquidation services over JSON. Handlers only
// translate requests; all rules live in the application layer.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/hei-liquidation/internal/application/service"
	"github.com/garyjia/hei-liquidation/internal/application/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxUploadBytes bounds multipart document uploads
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxUploadBytes: 20 << 20,
	}
}

// Services are the application entry points the handlers call
type Services struct {
	Liquidations  service.LiquidationService
	Workflow      workflow.Engine
	References    service.ReferenceService
	Notifications service.NotificationService
	Activity      service.ActivityService

	// Health reports component status for GET /health; nil means always healthy
	Health func() (bool, interface{})
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = DefaultServerConfig().MaxUploadBytes
	}

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadBytes

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(services, config.MaxUploadBytes, logger),
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"actor", c.GetHeader(HeaderActorID),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	api.Use(h.RequireActor())

	liquidations := api.Group("/liquidations")
	{
		liquidations.POST("", h.CreateLiquidation)
		liquidations.GET("", h.ListLiquidations)
		liquidations.GET("/:id", h.GetLiquidation)
		liquidations.DELETE("/:id", h.DeleteLiquidation)

		liquidations.PUT("/:id/financial", h.UpdateFinancial)
		liquidations.POST("/:id/beneficiaries", h.AddBeneficiary)
		liquidations.GET("/:id/beneficiaries", h.ListBeneficiaries)
		liquidations.POST("/:id/documents", h.AttachDocument)
		liquidations.GET("/:id/documents", h.ListDocuments)

		liquidations.GET("/:id/history", h.History)
		liquidations.GET("/:id/activity", h.Activity)
		liquidations.GET("/:id/transmittal", h.ActiveTransmittal)
		liquidations.POST("/:id/transmittal/relocate", h.RelocateTransmittal)
		liquidations.GET("/:id/compliance", h.ActiveCompliance)

		liquidations.GET("/:id/operations", h.PermittedOperations)
		liquidations.POST("/:id/submit", h.Submit)
		liquidations.POST("/:id/endorse-to-accounting", h.EndorseToAccounting)
		liquidations.POST("/:id/return-to-hei", h.ReturnToHEI)
		liquidations.POST("/:id/endorse-to-coa", h.EndorseToCOA)
		liquidations.POST("/:id/return-to-rc", h.ReturnToRC)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", h.ListNotifications)
		notifications.POST("/:id/read", h.MarkNotificationRead)
	}

	reference := api.Group("/reference")
	{
		reference.POST("/regions", h.SaveRegion)
		reference.POST("/heis", h.SaveHEI)
		reference.POST("/programs", h.SaveProgram)
		reference.POST("/academic-years", h.SaveAcademicYear)
		reference.POST("/semesters", h.SaveSemester)
		reference.POST("/compliance-statuses", h.SaveComplianceStatus)
		reference.POST("/document-requirements", h.SaveDocumentRequirement)
		reference.GET("/document-requirements", h.ListDocumentRequirements)
		reference.DELETE("/:kind/:id", h.DeleteReference)
	}
}

// Start starts the HTTP server and blocks until ctx is done or serving fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
