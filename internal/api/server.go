// Package api provides the convenience HTTP facade over the query pipeline.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/censusql/gateway/internal/api/middleware"
	"github.com/censusql/gateway/internal/breaker"
	"github.com/censusql/gateway/internal/dbpool"
	"github.com/censusql/gateway/internal/observability"
	"github.com/censusql/gateway/internal/pipeline"
	"github.com/censusql/gateway/internal/schema"
	"github.com/censusql/gateway/internal/session"
	"github.com/censusql/gateway/internal/storage"
)

// BreakerController exposes one named circuit breaker's operator controls,
// for the /api/v1/admin/breakers surface. dbpool.Pool's BreakerState,
// ForceOpenBreaker and ForceClearBreaker methods carry other names, so
// cmd/censusql wraps the pool in a small adapter to satisfy this.
type BreakerController interface {
	State() breaker.State
	ForceOpen()
	ForceClear()
}

// PoolHealthProvider reports a connection pool's current accounting for the
// /health roll-up. dbpool.Pool satisfies this via its Health method.
type PoolHealthProvider interface {
	Health() dbpool.PoolHealth
}

// Server is the REST facade over the query pipeline: POST /api/v1/queries
// mirrors the protocol server's execute_natural_language tool, GET /health
// rolls up observability.Tracker and session.Manager state, and
// /api/v1/admin/breakers gives operators the force_open/force_close
// override spec.md §4.2 describes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	config     ServerConfig
	startTime  time.Time

	pipeline    *pipeline.Pipeline
	catalog     *schema.Catalog
	sessions    *session.Manager
	tracker     *observability.Tracker
	breakers    map[string]BreakerController
	apiKeyStore storage.APIKeyStore
	rateLimiter middleware.RateLimiter
	poolHealth  PoolHealthProvider
}

// NewServer creates the REST facade. apiKeyStore, rateLimiter, and pool are
// optional (nil disables the corresponding middleware or health section);
// every other dependency is required.
func NewServer(
	cfg ServerConfig,
	pipe *pipeline.Pipeline,
	catalog *schema.Catalog,
	sessions *session.Manager,
	tracker *observability.Tracker,
	breakers map[string]BreakerController,
	apiKeyStore storage.APIKeyStore,
	rateLimiter middleware.RateLimiter,
	pool PoolHealthProvider,
) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	s := &Server{
		logger:      logger,
		config:      cfg,
		pipeline:    pipe,
		catalog:     catalog,
		sessions:    sessions,
		tracker:     tracker,
		breakers:    breakers,
		apiKeyStore: apiKeyStore,
		rateLimiter: rateLimiter,
		poolHealth:  pool,
	}

	router := s.routes()

	if apiKeyStore != nil { // pragma: allowlist secret
		logger.Info("caller authentication middleware enabled")
	} else {
		logger.Warn("APIKeyStore not configured - caller authentication disabled")
	}

	if rateLimiter != nil {
		logger.Info("rate limiting middleware enabled")
	} else {
		logger.Warn("RateLimiter not configured - rate limiting disabled")
	}

	handler := middleware.Apply(router,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithAuthPlugin(apiKeyStore, logger),
		middleware.WithRateLimit(rateLimiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig()),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// ListenAndServe starts the server and blocks until ctx is cancelled, then
// attempts a graceful shutdown bounded by the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	s.startTime = time.Now()

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting api server", slog.String("address", s.config.Address()))

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("api: listen failed: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api: shutdown failed: %w", err)
		}

		s.logger.Info("api server shutdown completed")

		return nil
	}
}
