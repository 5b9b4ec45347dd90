package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENVIRONMENT", "LOG_LEVEL", "REDIS_URL", "CATALOG_PATH", "SESSION_TTL", "LOCK_TTL", "WORKER_ID", "OFFER_SIZE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "data/catalog.json", cfg.CatalogPath)
	assert.Equal(t, 72*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.Equal(t, 0, cfg.OfferSize)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOCK_TTL", "5s")
	t.Setenv("OFFER_SIZE", "3")
	t.Setenv("WORKER_ID", "worker-a")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.LockTTL)
	assert.Equal(t, 3, cfg.OfferSize)
	assert.Equal(t, "worker-a", cfg.WorkerID)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CATALOG_PATH=/srv/catalog.json\n"), 0o644))
	t.Chdir(dir)
	t.Setenv("CATALOG_PATH", "")
	os.Unsetenv("CATALOG_PATH")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/catalog.json", cfg.CatalogPath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad duration", "SESSION_TTL", "soon"},
		{"negative offer size", "OFFER_SIZE", "-1"},
		{"zero lock ttl", "LOCK_TTL", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}
