// Package api provides the convenience HTTP facade over the query pipeline.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/censusql/gateway/internal/api/middleware"
)

// handleQueries runs a natural-language question through the translate →
// validate → execute pipeline and returns its uniform pipeline.Result,
// the REST mirror of mcpserver's execute_natural_language tool.
func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, r, s.logger, BadRequest("invalid request body: "+err.Error()))

		return
	}

	if req.Question == "" {
		WriteErrorResponse(w, r, s.logger, BadRequest("question is required"))

		return
	}

	result := s.pipeline.Run(r.Context(), req.Question, req.Session)

	w.Header().Set("Content-Type", "application/json")

	if !result.Success {
		w.WriteHeader(http.StatusUnprocessableEntity)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Error("failed to encode query result",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}
