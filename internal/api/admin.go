// Package api provides the convenience HTTP facade over the query pipeline.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleBreakerForceOpen forces the named circuit breaker open, rejecting
// calls until an operator clears it. Grounded on spec.md §4.2's force_open
// admin override.
func (s *Server) handleBreakerForceOpen(w http.ResponseWriter, r *http.Request) {
	s.breakerAction(w, r, func(b BreakerController) { b.ForceOpen() })
}

// handleBreakerForceClose clears a forced-open or naturally-open breaker,
// letting calls resume immediately instead of waiting for the cooldown.
func (s *Server) handleBreakerForceClose(w http.ResponseWriter, r *http.Request) {
	s.breakerAction(w, r, func(b BreakerController) { b.ForceClear() })
}

func (s *Server) breakerAction(w http.ResponseWriter, r *http.Request, action func(BreakerController)) {
	name := chi.URLParam(r, "name")

	b, ok := s.breakers[name]
	if !ok {
		WriteErrorResponse(w, r, s.logger, NotFound("no such breaker: "+name))

		return
	}

	action(b)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(BreakerActionResponse{Name: name, State: b.State().String()})
}
