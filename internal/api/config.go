// Package api provides the HTTP classification API.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/tphakala/tflitehelper/internal/conf"
	"github.com/tphakala/tflitehelper/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxUploadSize   = 10 * 1024 * 1024

	// cacheCleanupInterval is how often expired results are purged.
	cacheCleanupInterval = time.Minute
	// rateLimiterExpiry is how long an idle client's limiter is kept.
	rateLimiterExpiry = 3 * time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string // host:port to listen on

	RateLimit     float64       // requests per second per client IP, 0 disables limiting
	RateBurst     int           // burst allowed above RateLimit
	CacheTTL      time.Duration // result cache lifetime, 0 disables caching
	MaxUploadSize int64         // largest accepted image in bytes

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		RateLimit:       10,
		RateBurst:       20,
		CacheTTL:        5 * time.Minute,
		MaxUploadSize:   DefaultMaxUploadSize,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	cfg.Listen = settings.WebServer.Listen
	cfg.RateLimit = settings.WebServer.RateLimit
	cfg.RateBurst = settings.WebServer.RateBurst
	cfg.CacheTTL = settings.WebServer.CacheTTL
	if settings.WebServer.MaxUploadSize > 0 {
		cfg.MaxUploadSize = settings.WebServer.MaxUploadSize
	}
	cfg.Debug = settings.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1 when rate limiting is enabled")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must not be negative")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}
	return nil
}
