// Package middleware provides HTTP middleware components for the Correlator API.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// SessionHeader is the header name the protocol transport uses to carry a
// session id on every call after initialize, per spec.md §4.6.
const SessionHeader = "Session-Id"

type sessionIDKey struct{}

// SessionStore is the subset of session.Manager this middleware needs.
// Declared as an interface so this package does not import internal/session.
type SessionStore interface {
	// Touch bumps a session's last-used time and reports whether it is
	// still live.
	Touch(id string) bool
}

// SessionValidate enforces: DELETE always needs a known session (400
// missing, 404 unknown); POST needs a known session unless the JSON-RPC
// body's method is "initialize", which is exempt because it is the call
// that mints a session.
func SessionValidate(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(SessionHeader)

			switch r.Method {
			case http.MethodDelete:
				if sessionID == "" {
					http.Error(w, "missing "+SessionHeader, http.StatusBadRequest)

					return
				}

				if !store.Touch(sessionID) {
					http.Error(w, "unknown session", http.StatusNotFound)

					return
				}
			case http.MethodPost:
				if isInitializeCall(r) {
					break
				}

				if sessionID == "" {
					http.Error(w, "missing "+SessionHeader, http.StatusBadRequest)

					return
				}

				if !store.Touch(sessionID) {
					http.Error(w, "unknown session", http.StatusNotFound)

					return
				}
			}

			ctx := context.WithValue(r.Context(), sessionIDKey{}, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionID extracts the session id validated for this request, empty
// for an initialize call that has not yet been assigned one.
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)

	return id
}

// maxPeekBody bounds how much of the request body this middleware reads to
// sniff the JSON-RPC method name before restoring it for the handler.
const maxPeekBody = 1 << 20

// isInitializeCall peeks the body's "method" field without consuming it,
// since the MCP handler downstream still needs the full body.
func isInitializeCall(r *http.Request) bool {
	if r.Body == nil {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody))
	_ = r.Body.Close()

	r.Body = io.NopCloser(bytes.NewReader(body))

	if err != nil {
		return false
	}

	var envelope struct {
		Method string `json:"method"`
	}

	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}

	return envelope.Method == "initialize"
}
