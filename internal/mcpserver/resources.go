package mcpserver

import "net/http"

// newResourcesHandler serves the UI-resource bundles — self-contained HTML
// apps a tool's annotation points at for sandboxed-iframe rendering — from
// a configurable directory. This is an interface contract only, per
// spec.md §4.6's note that UI delivery is not part of the pipeline core.
func newResourcesHandler(dir string) http.Handler {
	if dir == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "mcp resource bundles not configured", http.StatusNotFound)
		})
	}

	return http.StripPrefix("/api/v1/mcp/resources/", http.FileServer(http.Dir(dir)))
}
