// Package api provides the convenience HTTP facade over the query pipeline.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/censusql/gateway/internal/api/middleware"
)

const healthCheckTimeout = 2 * time.Second

const serviceVersion = "1.0.0-dev"

// handlePing responds to basic liveness checks.
func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

// handleReady reports readiness for Kubernetes-style probes. When an API
// key store is configured, readiness also depends on that store's own
// health check; a nil store means the facade runs without authentication
// and is ready as soon as it can accept connections.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.apiKeyStore == nil { // pragma: allowlist secret
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.apiKeyStore.HealthCheck(ctx); err != nil {
		s.logger.Error("api key store health check failed",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("storage unavailable"))

		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleHealth rolls up the observability tracker's per-operation stats,
// every wired dependency's breaker state, and active session counts into
// the operator-facing snapshot spec.md §4.10 describes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.tracker.Snapshot()

	operations := make(map[string]OperationStats, len(snapshot.Operations))
	for name, stats := range snapshot.Operations {
		operations[name] = OperationStats{
			Successes:    stats.Successes,
			Failures:     stats.Failures,
			AvgLatencyMs: stats.AvgLatency.Milliseconds(),
			MaxLatencyMs: stats.MaxLatency.Milliseconds(),
			SampleCount:  stats.SampleCount,
			LastError:    stats.LastError,
		}
	}

	dependencies := make([]DependencyStatusResponse, 0, len(snapshot.Dependencies))
	for _, dep := range snapshot.Dependencies {
		dependencies = append(dependencies, DependencyStatusResponse{Name: dep.Name, State: dep.State})
	}

	status := HealthStatus{
		Status:       "ok",
		ServiceName:  "censusql",
		Version:      serviceVersion,
		Uptime:       time.Since(s.startTime).String(),
		Operations:   operations,
		Dependencies: dependencies,
	}

	if s.sessions != nil {
		stats := s.sessions.Stats()
		status.Sessions = &SessionStatsResponse{Count: stats.Count, TotalQueries: stats.TotalQueries}
	}

	if s.poolHealth != nil {
		health := s.poolHealth.Health()
		status.Pool = &PoolHealthResponse{
			Total:     health.Total,
			Idle:      health.Idle,
			InUse:     health.InUse,
			Waiting:   health.Waiting,
			Unhealthy: health.Unhealthy,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("failed to encode health response", slog.String("error", err.Error()))
	}
}
