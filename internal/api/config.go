// Package api provides the convenience HTTP facade over the query pipeline:
// a REST entry point for the same operations the protocol server exposes
// over JSON-RPC, plus the operator-facing health and admin surface.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/censusql/gateway/internal/config"
)

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = 8080
	// MaxPort is the maximum valid port number.
	MaxPort = 65535
	// DefaultHost is the default server host.
	DefaultHost = "0.0.0.0"
	// DefaultTimeout is the default timeout for HTTP operations.
	DefaultTimeout = 30 * time.Second
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = slog.LevelInfo
	// DefaultCORSMaxAge is the default CORS max age (24 hours).
	DefaultCORSMaxAge = 86400
)

// Static validation errors.
var (
	ErrInvalidPort            = errors.New("invalid port")
	ErrEmptyHost              = errors.New("host cannot be empty")
	ErrInvalidReadTimeout     = errors.New("read timeout must be positive")
	ErrInvalidWriteTimeout    = errors.New("write timeout must be positive")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
)

// ServerConfig holds the REST facade's pure configuration: ports, timeouts,
// CORS. Dependencies (pipeline, stores, rate limiter) are injected into
// NewServer separately, the same what/how split the teacher's
// LoadServerConfig makes.
type ServerConfig struct {
	Port               int
	Host               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           slog.Level
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int
}

// LoadServerConfig loads server configuration from environment variables with sensible defaults.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		Port:               config.GetEnvInt("CENSUSQL_API_PORT", DefaultPort),
		Host:               config.GetEnvStr("CENSUSQL_API_HOST", DefaultHost),
		ReadTimeout:        config.GetEnvDuration("CENSUSQL_API_READ_TIMEOUT", DefaultTimeout),
		WriteTimeout:       config.GetEnvDuration("CENSUSQL_API_WRITE_TIMEOUT", DefaultTimeout),
		ShutdownTimeout:    config.GetEnvDuration("CENSUSQL_API_SHUTDOWN_TIMEOUT", DefaultTimeout),
		LogLevel:           config.GetEnvLogLevel("CENSUSQL_API_LOG_LEVEL", DefaultLogLevel),
		CORSAllowedOrigins: orDefault(config.ParseCommaSeparatedList(config.GetEnvStr("CENSUSQL_API_CORS_ALLOWED_ORIGINS", "")), []string{"*"}),
		CORSAllowedMethods: orDefault(config.ParseCommaSeparatedList(config.GetEnvStr("CENSUSQL_API_CORS_ALLOWED_METHODS", "")), []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders: orDefault(config.ParseCommaSeparatedList(config.GetEnvStr("CENSUSQL_API_CORS_ALLOWED_HEADERS", "")), []string{"Content-Type", "Authorization", "X-Correlation-ID", "X-Api-Key"}),
		CORSMaxAge:         config.GetEnvInt("CENSUSQL_API_CORS_MAX_AGE", DefaultCORSMaxAge),
	}
}

func orDefault(v, fallback []string) []string {
	if len(v) == 0 {
		return fallback
	}

	return v
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ToCORSConfig converts ServerConfig CORS fields to middleware.CORSConfig.
func (c ServerConfig) ToCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: c.CORSAllowedOrigins,
		AllowedMethods: c.CORSAllowedMethods,
		AllowedHeaders: c.CORSAllowedHeaders,
		MaxAge:         c.CORSMaxAge,
	}
}

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

func (c CORSConfig) GetAllowedOrigins() []string { return c.AllowedOrigins }
func (c CORSConfig) GetAllowedMethods() []string { return c.AllowedMethods }
func (c CORSConfig) GetAllowedHeaders() []string { return c.AllowedHeaders }
func (c CORSConfig) GetMaxAge() int              { return c.MaxAge }

// Validate validates the server configuration.
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > MaxPort {
		return fmt.Errorf("%w: %d, must be between 1 and %d", ErrInvalidPort, c.Port, MaxPort)
	}

	if c.Host == "" {
		return ErrEmptyHost
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidReadTimeout, c.ReadTimeout)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidWriteTimeout, c.WriteTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidShutdownTimeout, c.ShutdownTimeout)
	}

	return nil
}
