// Package container provides dependency injection and lifecycle management
// for the liquidation service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Redis lock configuration
	Redis RedisConfig

	// Lark API configuration
	Lark LarkConfig

	// Workflow and reference data configuration
	Workflow WorkflowConfig

	// Storage configuration
	Storage StorageConfig

	// Server configuration
	Server ServerConfig

	// Worker configuration
	Worker WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// RedisConfig holds distributed lock settings. Address empty means an
// in-process lock.
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	LockTTL   time.Duration
	LockWait  time.Duration
}

// Enabled reports whether a Redis server is configured
func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// AppID is the Lark application ID
	AppID string

	// AppSecret is the Lark application secret
	AppSecret string

	// BaseURL overrides the open platform endpoint
	BaseURL string

	// APITimeout is the timeout for API calls
	APITimeout time.Duration
}

// Enabled reports whether Lark credentials are configured
func (c LarkConfig) Enabled() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// WorkflowConfig holds authorization and lookup cache settings.
type WorkflowConfig struct {
	// RoleCapabilities maps role names to capabilities; empty uses the built-in table
	RoleCapabilities map[string][]string

	// CacheSize bounds each reference lookup cache
	CacheSize int

	// CacheTTL is how long a cached reference row is trusted
	CacheTTL time.Duration
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// DocumentDir is the base directory for uploaded documents
	DocumentDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration

	// MaxUploadBytes caps a single document upload
	MaxUploadBytes int64
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// Lark push retry settings
	PushRetryInterval  time.Duration
	PushRetryBatchSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/liquidation.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			KeyPrefix: "hei-liquidation:lock:",
			LockTTL:   10 * time.Second,
			LockWait:  5 * time.Second,
		},
		Lark: LarkConfig{
			APITimeout: 30 * time.Second,
		},
		Workflow: WorkflowConfig{
			CacheSize: 512,
			CacheTTL:  10 * time.Minute,
		},
		Storage: StorageConfig{
			DocumentDir: "data/documents",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxUploadBytes: 20 << 20,
		},
		Worker: WorkerConfig{
			PushRetryInterval:  time.Minute,
			PushRetryBatchSize: 20,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Storage.DocumentDir == "" {
		return fmt.Errorf("storage.document_dir is required")
	}

	// Half-configured Lark credentials are almost always a typo
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}

	if c.Workflow.CacheTTL <= 0 {
		return fmt.Errorf("workflow.cache_ttl must be positive")
	}

	return nil
}
