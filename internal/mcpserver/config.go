package mcpserver

import (
	"log/slog"
	"time"

	"github.com/censusql/gateway/internal/api/middleware"
)

// Config is the protocol server's pure configuration: addresses, timeouts,
// and CORS, mirroring the teacher's ServerConfig split between
// configuration (what) and injected dependencies (how).
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        slog.Level

	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int

	// ResourceDir is the filesystem directory the UI-resource bundle
	// handler serves from, per spec.md §4.6's UI delivery interface
	// contract.
	ResourceDir string
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8081
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
	if len(c.CORSAllowedMethods) == 0 {
		c.CORSAllowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(c.CORSAllowedHeaders) == 0 {
		c.CORSAllowedHeaders = []string{"Content-Type", middleware.SessionHeader, "Accept"}
	}
	if c.CORSMaxAge == 0 {
		c.CORSMaxAge = 86400
	}

	return c
}

// corsConfig adapts Config's CORS fields to middleware.CORSConfig, the same
// split the teacher's internal/api.ServerConfig.ToCORSConfig performs.
type corsConfig struct {
	allowedOrigins []string
	allowedMethods []string
	allowedHeaders []string
	maxAge         int
}

func (c corsConfig) GetAllowedOrigins() []string { return c.allowedOrigins }
func (c corsConfig) GetAllowedMethods() []string { return c.allowedMethods }
func (c corsConfig) GetAllowedHeaders() []string { return c.allowedHeaders }
func (c corsConfig) GetMaxAge() int              { return c.maxAge }

func (c Config) toCORSConfig() corsConfig {
	return corsConfig{
		allowedOrigins: c.CORSAllowedOrigins,
		allowedMethods: c.CORSAllowedMethods,
		allowedHeaders: c.CORSAllowedHeaders,
		maxAge:         c.CORSMaxAge,
	}
}
