// Package api provides the convenience HTTP facade over the query pipeline.
package api

import "github.com/censusql/gateway/internal/pipeline"

// QueryRequest is the body of POST /api/v1/queries: a natural-language
// question plus an optional summary of the prior turn, the same
// referential follow-up contract mcpserver's execute_natural_language
// tool accepts.
type QueryRequest struct {
	Question string                   `json:"question"`
	Session  *pipeline.SessionContext `json:"session,omitempty"`
}

// HealthStatus is GET /health's response: liveness plus a roll-up of
// recent operation statistics, dependency breaker states, and active
// session counts, per spec.md §4.10's observability surface.
type HealthStatus struct {
	Status       string                     `json:"status"`
	ServiceName  string                     `json:"serviceName"`
	Version      string                     `json:"version"`
	Uptime       string                     `json:"uptime,omitempty"`
	Operations   map[string]OperationStats  `json:"operations,omitempty"`
	Dependencies []DependencyStatusResponse `json:"dependencies,omitempty"`
	Sessions     *SessionStatsResponse      `json:"sessions,omitempty"`
	Pool         *PoolHealthResponse        `json:"pool,omitempty"`
}

// PoolHealthResponse mirrors dbpool.PoolHealth for the REST response.
type PoolHealthResponse struct {
	Total     int `json:"total"`
	Idle      int `json:"idle"`
	InUse     int `json:"in_use"` //nolint: tagliatelle
	Waiting   int `json:"waiting"`
	Unhealthy int `json:"unhealthy"`
}

// OperationStats mirrors observability.OperationStats for the REST response,
// decoupling the wire format from the tracker's internal type.
type OperationStats struct {
	Successes    int64  `json:"successes"`
	Failures     int64  `json:"failures"`
	AvgLatencyMs int64  `json:"avg_latency_ms"` //nolint: tagliatelle
	MaxLatencyMs int64  `json:"max_latency_ms"` //nolint: tagliatelle
	SampleCount  int    `json:"sample_count"`
	LastError    string `json:"last_error,omitempty"`
}

// DependencyStatusResponse mirrors observability.DependencyStatus.
type DependencyStatusResponse struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// SessionStatsResponse mirrors session.Stats for the REST response.
type SessionStatsResponse struct {
	Count        int   `json:"count"`
	TotalQueries int64 `json:"total_queries"` //nolint: tagliatelle
}

// BreakerActionResponse echoes a breaker's state after an admin action.
type BreakerActionResponse struct {
	Name  string `json:"name"`
	State string `json:"state"`
}
