// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Storage backends.
const (
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Capture backends.
const (
	CaptureFile     = "file"
	CaptureRedis    = "redis"
	CapturePostgres = "postgres"
	CaptureNone     = "none"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Metric naming
	MetricNamespace string `env:"METRIC_NAMESPACE" envDefault:"tedee"`

	// Metric storage
	StorageBackend   string        `env:"STORAGE_BACKEND" envDefault:"redis"`
	RedisURL         string        `env:"REDIS_URL" envDefault:"redis://127.0.0.1:6379/0"`
	RedisPrefix      string        `env:"REDIS_PREFIX" envDefault:"tedee"`
	RedisDialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"100ms"`
	RedisReadTimeout time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"10s"`

	// Raw request capture
	CaptureBackend      string        `env:"CAPTURE_BACKEND" envDefault:"file"`
	CaptureFile         string        `env:"CAPTURE_FILE" envDefault:"webhook"`
	CaptureStream       string        `env:"CAPTURE_STREAM" envDefault:"tedee:captures"`
	CaptureStreamMaxLen int64         `env:"CAPTURE_STREAM_MAXLEN" envDefault:"10000"`
	CaptureRetention    time.Duration `env:"CAPTURE_RETENTION" envDefault:"168h"`
	CapturePruneEvery   time.Duration `env:"CAPTURE_PRUNE_INTERVAL" envDefault:"1h"`

	// Database (PostgreSQL), only for the postgres capture backend
	DatabaseURL string `env:"DATABASE_URL"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageBackend {
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis storage backend"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	switch c.CaptureBackend {
	case CaptureFile:
		if c.CaptureFile == "" {
			errs = append(errs, errors.New("CAPTURE_FILE is required for the file capture backend"))
		}
	case CaptureRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis capture backend"))
		}
		if c.CaptureStream == "" {
			errs = append(errs, errors.New("CAPTURE_STREAM is required for the redis capture backend"))
		}
	case CapturePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres capture backend"))
		}
		if c.CapturePruneEvery <= 0 {
			errs = append(errs, errors.New("CAPTURE_PRUNE_INTERVAL must be positive"))
		}
	case CaptureNone:
	default:
		errs = append(errs, fmt.Errorf("unknown CAPTURE_BACKEND %q", c.CaptureBackend))
	}

	if c.MetricNamespace == "" {
		errs = append(errs, errors.New("METRIC_NAMESPACE must not be empty"))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
