// Package api provides the convenience HTTP facade over the query pipeline.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/censusql/gateway/internal/api/middleware"
)

// routes builds the chi router: public health endpoints, the REST query
// entry point, and the admin breaker surface. Kept as a separate
// *http.Handler from the protocol server's stdlib ServeMux (see
// mcpserver.NewHTTPServer), matching the teacher's one-mux-per-surface
// style.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	for _, path := range []string{"/ping", "/ready", "/health"} {
		middleware.RegisterPublicEndpoint(path)
	}

	r.Get("/ping", s.handlePing)
	r.Get("/ready", s.handleReady)
	r.Get("/health", s.handleHealth)

	r.Post("/api/v1/queries", s.handleQueries)

	r.Route("/api/v1/admin/breakers/{name}", func(r chi.Router) {
		r.Post("/force_open", s.handleBreakerForceOpen)
		r.Post("/force_close", s.handleBreakerForceClose)
	})

	r.NotFound(s.handleNotFound)

	return r
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("no such route: "+r.URL.Path))
}
