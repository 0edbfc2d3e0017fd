// Package middleware provides HTTP middleware components for the CensusQL gateway.
package middleware

import (
	"log/slog"
	"net/http"
)

// RateLimiter provides rate limiting for incoming requests.
//
// Implementations may use in-memory token buckets (single-node deployment)
// or distributed stores like Redis (multi-node deployment). The interface
// enables zero-downtime migration between the two without touching this
// middleware. internal/ratelimit.Limiter is the gateway's production
// implementation.
type RateLimiter interface {
	// Allow checks if a request should be allowed based on rate limits.
	// Returns true if allowed, false if rate limited.
	//
	// For authenticated requests, identity identifies the caller. For
	// unauthenticated requests, identity is empty string.
	Allow(identity string) bool
}

// RateLimit returns a middleware that enforces rate limits on incoming
// requests. When a request exceeds the limit, it returns a 429 (Too Many
// Requests) response in RFC 7807 error format.
//
// The middleware must be placed after authentication middleware in the
// chain to read PluginContext for per-caller rate limiting.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := ""
			if pluginCtx, ok := GetPluginContext(r.Context()); ok {
				identity = pluginCtx.PluginID
			}

			if !limiter.Allow(identity) {
				correlationID := GetCorrelationID(r.Context())

				detail := "Rate limit exceeded. Please retry after some time."
				if err := writeRFC7807Error(w, r, http.StatusTooManyRequests, detail, correlationID); err != nil {
					logger.Error("failed to write response with RFC 7807 error format",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
						slog.String("detail", detail),
						slog.String("error", err.Error()),
					)

					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
