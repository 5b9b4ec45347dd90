package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	Environment  string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelName string        `env:"LOG_LEVEL" envDefault:"info"`
	RedisURL     string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	CatalogPath  string        `env:"CATALOG_PATH" envDefault:"data/catalog.json"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"72h"`
	LockTTL      time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	WorkerID     string        `env:"WORKER_ID"`
	OfferSize    int           `env:"OFFER_SIZE" envDefault:"0"` // 0 uses the catalog's offer size

	LogLevel slog.Level `env:"-"`
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if cfg.OfferSize < 0 {
		return nil, fmt.Errorf("OFFER_SIZE must not be negative, got %d", cfg.OfferSize)
	}
	if cfg.LockTTL <= 0 {
		return nil, fmt.Errorf("LOCK_TTL must be positive, got %s", cfg.LockTTL)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
