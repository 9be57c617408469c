package config

import (
	"github.com/garyjia/hei-liquidation/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Redis: container.RedisConfig{
			Address:   c.Redis.Address,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			KeyPrefix: c.Redis.KeyPrefix,
			LockTTL:   c.Redis.LockTTL,
			LockWait:  c.Redis.LockWait,
		},
		Lark: container.LarkConfig{
			AppID:      c.Lark.AppID,
			AppSecret:  c.Lark.AppSecret,
			BaseURL:    c.Lark.BaseURL,
			APITimeout: c.Lark.APITimeout,
		},
		Workflow: container.WorkflowConfig{
			RoleCapabilities: c.Workflow.RoleCapabilities,
			CacheSize:        c.Workflow.CacheSize,
			CacheTTL:         c.Workflow.CacheTTL,
		},
		Storage: container.StorageConfig{
			DocumentDir: c.Storage.DocumentDir,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			MaxUploadBytes: c.Server.MaxUploadBytes,
		},
		Worker: container.WorkerConfig{
			PushRetryInterval:  c.Worker.PushRetryInterval,
			PushRetryBatchSize: c.Worker.PushRetryBatchSize,
		},
	}
}
