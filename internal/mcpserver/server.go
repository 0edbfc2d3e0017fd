package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	mcpsdk "github.com/mark3labs/mcp-go/server"

	"github.com/censusql/gateway/internal/api/middleware"
	"github.com/censusql/gateway/internal/ratelimit"
	"github.com/censusql/gateway/internal/session"
)

// HTTPServer is the protocol server's top-level composition: the bespoke
// JSON-RPC transport, the SSE channel, the UI-resource bundle handler, and
// an in-process mcp-go server sharing the same Server handlers — wired
// through the teacher's middleware.Apply chain and net/http.ServeMux
// method-pattern routing.
type HTTPServer struct {
	httpServer *http.Server
	logger     *slog.Logger
	config     Config
	sessions   *session.Manager
}

// sessionStoreAdapter narrows session.Manager's richer Touch signature down
// to the single bool middleware.SessionStore needs, keeping that interface
// free of a dependency on internal/session.
type sessionStoreAdapter struct {
	sessions *session.Manager
}

func (a sessionStoreAdapter) Touch(id string) bool {
	_, ok := a.sessions.Touch(id)

	return ok
}

// NewHTTPServer wires the protocol server: tool handlers, the mcp-go
// in-process registry, the bespoke transport, and the middleware chain.
// limiter is optional; a nil limiter disables rate limiting entirely,
// matching the teacher's WithRateLimit no-op-on-nil convention.
func NewHTTPServer(
	cfg Config,
	s *Server,
	sessions *session.Manager,
	limiter ratelimit.Limiter,
	logger *slog.Logger,
) *HTTPServer {
	cfg = cfg.withDefaults()

	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	}

	mcpSrv := mcpsdk.NewMCPServer("censusql", "1.0.0")
	RegisterTools(mcpSrv, s)

	transport := NewTransport(s, sessions)

	mux := http.NewServeMux()
	mux.Handle("POST /mcp", transport)
	mux.Handle("DELETE /mcp", transport)
	mux.HandleFunc("GET /mcp", newSSEHandler(logger))
	mux.Handle("GET /api/v1/mcp/resources/", newResourcesHandler(cfg.ResourceDir))

	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithSession(sessionStoreAdapter{sessions: sessions}),
		middleware.WithRateLimit(limiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.toCORSConfig()),
	)

	return &HTTPServer{
		logger:   logger,
		config:   cfg,
		sessions: sessions,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// ListenAndServe starts the server and blocks until ctx is cancelled, then
// attempts a graceful shutdown bounded by the configured shutdown timeout.
func (s *HTTPServer) ListenAndServe(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting protocol server", slog.String("address", s.httpServer.Addr))

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("mcpserver: listen failed: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		s.sessions.Close()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mcpserver: shutdown failed: %w", err)
		}

		return nil
	}
}
