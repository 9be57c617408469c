package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

// Request headers carrying the caller identity. Authentication happens in
// front of this service; these are trusted as given.
const (
	HeaderActorID       = "X-Actor-ID"
	HeaderActorName     = "X-Actor-Name"
	HeaderActorRoles    = "X-Actor-Roles"
	HeaderActorHEIID    = "X-Actor-HEI-ID"
	HeaderActorRegionID = "X-Actor-Region-ID"
)

const actorContextKey = "actor"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services       Services
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		services:       services,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool          `json:"success"`
	Data    interface{}   `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
	Code    string        `json:"code,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails carries the context of a rejected operation
type ErrorDetails struct {
	LiquidationID string `json:"liquidation_id,omitempty"`
	Transition    string `json:"transition,omitempty"`
	Status        string `json:"status,omitempty"`
	Field         string `json:"field,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy, components := true, interface{}(nil)
	if h.services.Health != nil {
		healthy, components = h.services.Health()
	}

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, Response{
		Success: healthy,
		Data:    response,
	})
}

// RequireActor reads the caller from the identity headers
func (h *Handlers) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := actorFromHeaders(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   err.Error(),
				Code:    string(apperr.KindUnauthorized),
			})
			return
		}
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

func actorFromHeaders(c *gin.Context) (entity.Actor, error) {
	actor := entity.Actor{
		ID:   strings.TrimSpace(c.GetHeader(HeaderActorID)),
		Name: strings.TrimSpace(c.GetHeader(HeaderActorName)),
	}
	if actor.ID == "" {
		return actor, errors.New("missing " + HeaderActorID + " header")
	}

	for _, role := range strings.Split(c.GetHeader(HeaderActorRoles), ",") {
		if role = strings.TrimSpace(role); role != "" {
			actor.Roles = append(actor.Roles, role)
		}
	}

	var err error
	if actor.HEIID, err = optionalInt(c.GetHeader(HeaderActorHEIID)); err != nil {
		return actor, errors.New("invalid " + HeaderActorHEIID + " header")
	}
	if actor.RegionID, err = optionalInt(c.GetHeader(HeaderActorRegionID)); err != nil {
		return actor, errors.New("invalid " + HeaderActorRegionID + " header")
	}
	return actor, nil
}

func actorFrom(c *gin.Context) entity.Actor {
	actor, _ := c.MustGet(actorContextKey).(entity.Actor)
	return actor
}

// bindJSON decodes the body into req. An empty body leaves req untouched.
func (h *Handlers) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("Invalid request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
			Code:    string(apperr.KindValidation),
		})
		return false
	}
	return true
}

// fail writes err with the status its kind maps to
func (h *Handlers) fail(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "internal error",
		})
		return
	}

	c.JSON(statusFor(appErr.Kind), Response{
		Success: false,
		Error:   appErr.Error(),
		Code:    string(appErr.Kind),
		Details: &ErrorDetails{
			LiquidationID: appErr.LiquidationID,
			Transition:    appErr.Transition,
			Status:        appErr.Status,
			Field:         appErr.Field,
		},
	})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindInvalidState, apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// pathInt parses an integer path parameter, answering 400 on failure
func pathInt(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid " + name,
			Code:    string(apperr.KindValidation),
		})
		return 0, false
	}
	return v, true
}

func optionalInt(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
