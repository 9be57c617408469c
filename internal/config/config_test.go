package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/liquidation.db", cfg.Database.Path)
	assert.Equal(t, 10*time.Minute, cfg.Workflow.CacheTTL)
	assert.Equal(t, int64(20<<20), cfg.Server.MaxUploadBytes)
	assert.Empty(t, cfg.Redis.Address)
	assert.Empty(t, cfg.Workflow.RoleCapabilities)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 5s
database:
  path: /var/lib/liquidation/app.db
redis:
  address: localhost:6379
  lock_ttl: 3s
workflow:
  cache_ttl: 2m
  role_capabilities:
    hei:
      - submit_liquidation
    auditor:
      - endorse_to_coa
worker:
  push_retry_batch_size: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/var/lib/liquidation/app.db", cfg.Database.Path)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 3*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 2*time.Minute, cfg.Workflow.CacheTTL)
	assert.Equal(t, []string{"endorse_to_coa"}, cfg.Workflow.RoleCapabilities["auditor"])
	assert.Equal(t, 5, cfg.Worker.PushRetryBatchSize)

	cc := cfg.ToContainerConfig()
	assert.Equal(t, "localhost:6379", cc.Redis.Address)
	assert.True(t, cc.Redis.Enabled())
	assert.False(t, cc.Lark.Enabled())
	assert.Equal(t, cfg.Workflow.RoleCapabilities, cc.Workflow.RoleCapabilities)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "lark:\n  app_id: from-file\n  app_secret: from-file\n")
	t.Setenv("LARK_APP_ID", "cli_env")
	t.Setenv("LARK_APP_SECRET", "secret_env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cli_env", cfg.Lark.AppID)
	assert.Equal(t, "secret_env", cfg.Lark.AppSecret)
	assert.True(t, cfg.ToContainerConfig().Lark.Enabled())
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"half lark credentials", "lark:\n  app_id: cli_only\n"},
		{"port out of range", "server:\n  port: 70000\n"},
		{"empty document dir", "storage:\n  document_dir: \"\"\n"},
		{"malformed yaml", "server: [port\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
