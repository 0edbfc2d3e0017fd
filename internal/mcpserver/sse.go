package mcpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/censusql/gateway/internal/api/middleware"
)

// sseKeepaliveInterval bounds how often a comment frame is sent to keep
// intermediate proxies from closing an idle SSE connection.
const sseKeepaliveInterval = 25 * time.Second

// newSSEHandler serves GET /mcp as a server-sent-events channel for
// clients that set Accept: text/event-stream, per spec.md §4.6. No SSE
// library appears anywhere in the example pack, so this follows the
// teacher's plain net/http style: http.Flusher and a keepalive comment
// frame.
func newSSEHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)

			return
		}

		sessionID := middleware.GetSessionID(r.Context())

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		fmt.Fprintf(w, ": connected session=%s\n\n", sessionID)
		flusher.Flush()

		ctx := r.Context()

		ticker := time.NewTicker(sseKeepaliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					logger.Warn("sse write failed", slog.String("error", err.Error()))

					return
				}

				flusher.Flush()
			}
		}
	}
}
