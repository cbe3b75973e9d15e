package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 8, cfg.Engine.WorkerConcurrency)
	assert.Equal(t, 50.0, cfg.Engine.PublishRatePerSecond)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
environment: production
log_level: warn
database:
  url: postgres://localhost/claimsignal
  max_open_conns: 50
engine:
  worker_concurrency: 16
`)
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "postgres://localhost/claimsignal", cfg.Database.URL)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.Equal(t, 16, cfg.Engine.WorkerConcurrency)
	// Untouched values keep their defaults.
	assert.Equal(t, 10, cfg.Engine.PublishBurst)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CLS_ENVIRONMENT", "staging")
	t.Setenv("CLS_DATABASE_URL", "postgres://env-host/claimsignal")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "postgres://env-host/claimsignal", cfg.Database.URL)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: production\n"), 0644))

	t.Setenv("CLS_ENVIRONMENT", "staging")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
}
