package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/hei-liquidation/internal/config"
	"github.com/garyjia/hei-liquidation/internal/container"
	httpapi "github.com/garyjia/hei-liquidation/internal/interfaces/http"
	"github.com/garyjia/hei-liquidation/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting HEI liquidation service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Cancelled on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctr, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		if err := ctr.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	if err := ctr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	services := ctr.Services()
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, httpapi.Services{
		Liquidations:  services.Liquidation,
		Workflow:      services.Workflow,
		References:    services.Reference,
		Notifications: services.Notification,
		Activity:      services.Activity,
		Health: func() (bool, interface{}) {
			status := ctr.Health()
			return status.Overall, status
		},
	}, utils.NewKVLogger(logger))

	// Blocks until ctx is cancelled, then shuts the listener down
	return server.Start(ctx)
}
