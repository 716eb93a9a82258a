package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	StorageBackendPostgres = "postgres"
	StorageBackendMemory   = "memory"
)

type Config struct {
	AppEnv         string `env:"APP_ENV" default:"development"`
	AppURL         string `env:"APP_URL" default:"http://localhost:8080"`
	Port           string `env:"PORT" default:"8080"`
	StorageBackend string `env:"STORAGE_BACKEND" default:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisURL       string `env:"REDIS_URL"`
	LogLevel       string `env:"LOG_LEVEL" default:"info"`
	LogFormat      string `env:"LOG_FORMAT" default:"text"`

	PublishTimeout    time.Duration `env:"PUBLISH_TIMEOUT" default:"250ms"`
	VoteMaxAttempts   int           `env:"VOTE_MAX_ATTEMPTS" default:"5"`
	VoteRetryBackoff  time.Duration `env:"VOTE_RETRY_BACKOFF" default:"10ms"`
	VoteRateCapacity  int           `env:"VOTE_RATE_CAPACITY" default:"30"`
	VoteRatePerMinute int           `env:"VOTE_RATE_PER_MINUTE" default:"60"`
	ScoreCacheTTL     time.Duration `env:"SCORE_CACHE_TTL" default:"30s"`

	HTTPRateLimit float64 `env:"HTTP_RATE_LIMIT" default:"20"`
	HTTPRateBurst int     `env:"HTTP_RATE_BURST" default:"40"`

	MaxWebSocketConnections      int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxWebSocketConnectionsPerIP int `env:"MAX_WEBSOCKET_CONNECTIONS_PER_IP" default:"20"`
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.StorageBackend {
	case StorageBackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	case StorageBackendMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageBackendPostgres, StorageBackendMemory, cfg.StorageBackend)
	}

	if _, err := url.ParseRequestURI(cfg.AppURL); err != nil {
		return fmt.Errorf("APP_URL must be a valid URL: %w", err)
	}

	if cfg.PublishTimeout <= 0 {
		return errors.New("PUBLISH_TIMEOUT must be positive")
	}
	if cfg.VoteMaxAttempts < 1 {
		return errors.New("VOTE_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.VoteRetryBackoff < 0 {
		return errors.New("VOTE_RETRY_BACKOFF must not be negative")
	}
	if cfg.VoteRateCapacity < 1 || cfg.VoteRatePerMinute < 1 {
		return errors.New("VOTE_RATE_CAPACITY and VOTE_RATE_PER_MINUTE must be at least 1")
	}
	if cfg.HTTPRateLimit <= 0 || cfg.HTTPRateBurst < 1 {
		return errors.New("HTTP_RATE_LIMIT must be positive and HTTP_RATE_BURST at least 1")
	}
	if cfg.MaxWebSocketConnections < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS must be at least 1")
	}
	if cfg.MaxWebSocketConnectionsPerIP < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS_PER_IP must be at least 1")
	}

	return nil
}
