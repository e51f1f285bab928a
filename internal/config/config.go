package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is loaded from the environment, optionally seeded from a .env file.
// Defaults are suitable for local development; TOKEN_SECRET must be overridden
// in any real deployment.
type Config struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"8080"`

	DatabasePath string `envconfig:"DATABASE_PATH" default:"./chatrelay.db"`
	BlobDir      string `envconfig:"BLOB_DIR" default:"./uploads"`

	TokenSecret       string        `envconfig:"TOKEN_SECRET" default:"dev-only-secret-change-me"`
	AuthTokenDuration time.Duration `envconfig:"AUTH_TOKEN_DURATION" default:"24h"`

	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"5s"`
	HeartbeatTimeout  time.Duration `envconfig:"HEARTBEAT_TIMEOUT" default:"1s"`

	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`

	WriteBuffer int    `envconfig:"WRITE_BUFFER" default:"100"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads an optional .env file, then the process environment, then
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.BlobDir == "" {
		return fmt.Errorf("blob directory cannot be empty")
	}
	if len(c.TokenSecret) < 16 {
		return fmt.Errorf("token secret must be at least 16 characters")
	}
	if c.AuthTokenDuration <= 0 {
		return fmt.Errorf("auth token duration must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.HeartbeatTimeout <= 0 {
		return fmt.Errorf("heartbeat timeout must be positive")
	}
	if c.HeartbeatTimeout >= c.HeartbeatInterval {
		return fmt.Errorf("heartbeat timeout must be shorter than the probe interval")
	}
	if c.WriteBuffer <= 0 {
		return fmt.Errorf("write buffer must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
