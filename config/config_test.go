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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(100), cfg.RateLimit.UnauthenticatedCount)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.UnauthenticatedWindow)
	assert.Equal(t, int64(500), cfg.RateLimit.AuthenticatedCount)
	assert.True(t, cfg.RateLimit.MemoryFallback)
	assert.True(t, cfg.GeoIP.Enabled)
	assert.Equal(t, 7*24*time.Hour, cfg.GeoIP.FreshnessWindow)
	assert.Equal(t, 1024, cfg.Audit.QueueSize)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.Equal(t, "admin", cfg.Auth.AdminRole)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
environment: development
server:
  port: 9090
rate_limit:
  unauthenticated_count: 25
  unauthenticated_window: 30s
geoip:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(25), cfg.RateLimit.UnauthenticatedCount)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.UnauthenticatedWindow)
	assert.False(t, cfg.GeoIP.Enabled)

	// Untouched sections keep their defaults.
	assert.Equal(t, int64(500), cfg.RateLimit.AuthenticatedCount)
	assert.Equal(t, 1024, cfg.Audit.QueueSize)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))

	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ValidationRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"empty database host", "database:\n  host: \"\"\n"},
		{"zero audit queue", "audit:\n  queue_size: 0\n"},
		{"zero settings ttl", "rate_limit:\n  settings_ttl: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestConfig_Helpers(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Contains(t, cfg.GetDSN(), "host=localhost")
	assert.Contains(t, cfg.GetDSN(), "dbname=admission")
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())

	cfg.Environment = "dev"
	assert.True(t, cfg.IsDevelopment())
}
