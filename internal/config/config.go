package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all ptybridge configuration.
type Config struct {
	Session   SessionConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	Logging   LogConfig
}

// SessionConfig tunes per-session workers and buffering.
type SessionConfig struct {
	// DrainGraceMS is the end-of-stream debounce window: how long a read
	// poll waits after seeing the exit sentinel for racing output to land.
	DrainGraceMS int `envconfig:"PTYBRIDGE_DRAIN_GRACE_MS" default:"20"`
	ReadChunk    int `envconfig:"PTYBRIDGE_READ_CHUNK" default:"8192"`
	OutputDepth  int `envconfig:"PTYBRIDGE_OUTPUT_DEPTH" default:"1024"`
	WriteDepth   int `envconfig:"PTYBRIDGE_WRITE_DEPTH" default:"64"`
}

// DrainGrace returns the debounce window as a duration.
func (c SessionConfig) DrainGrace() time.Duration {
	return time.Duration(c.DrainGraceMS) * time.Millisecond
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `envconfig:"PTYBRIDGE_HOST" default:"127.0.0.1"`
	Port string `envconfig:"PTYBRIDGE_PORT" default:"7070"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"PTYBRIDGE_RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"PTYBRIDGE_RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"PTYBRIDGE_RATE_LIMIT_ENABLED" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"PTYBRIDGE_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"PTYBRIDGE_LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			DrainGraceMS: 20,
			ReadChunk:    8192,
			OutputDepth:  1024,
			WriteDepth:   64,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "7070",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
