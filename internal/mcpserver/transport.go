package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/censusql/gateway/internal/api/middleware"
	"github.com/censusql/gateway/internal/errkind"
	"github.com/censusql/gateway/internal/session"
)

// jsonRPCVersion is the only version this transport accepts, per the
// JSON-RPC 2.0 envelope spec.md §4.6 specifies.
const jsonRPCVersion = "2.0"

// rpcRequest is the JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// rpcResponse is the JSON-RPC 2.0 response envelope. Result and Error are
// mutually exclusive, matching the spec.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// initializeResult is initialize's payload: the fresh session id, echoed
// in both the response body and the Session-Id response header.
type initializeResult struct {
	SessionID string `json:"session_id"`
}

// Transport is the bespoke JSON-RPC-over-HTTP handler. It dispatches
// directly to the same Server methods register.go's mcp-go registrations
// wrap, so mcp-go backs an in-process agent loop while this handler backs
// the wire protocol spec.md §4.6 actually specifies (mcp-go's own
// StreamableHTTPServer uses a different session header contract).
type Transport struct {
	server   *Server
	sessions *session.Manager
}

// NewTransport builds a Transport over the given Server and Session
// Manager.
func NewTransport(s *Server, sessions *session.Manager) *Transport {
	return &Transport{server: s, sessions: sessions}
}

// ServeHTTP implements POST for JSON-RPC dispatch and DELETE for session
// termination; internal/api/middleware.SessionValidate has already
// enforced the header contract by the time a request reaches here.
func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		t.handleRPC(w, r)
	case http.MethodDelete:
		t.handleTerminate(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (t *Transport) handleTerminate(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())

	t.sessions.Terminate(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (t *Transport) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, http.StatusBadRequest, &rpcError{
			Code:    -32700,
			Message: "parse error: " + err.Error(),
		})

		return
	}

	if req.JSONRPC != jsonRPCVersion {
		writeError(w, req.ID, http.StatusBadRequest, &rpcError{
			Code:    -32600,
			Message: fmt.Sprintf("unsupported jsonrpc version %q", req.JSONRPC),
		})

		return
	}

	if req.Method == "initialize" {
		t.handleInitialize(w, req)

		return
	}

	result, rpcErr := t.dispatch(r.Context(), req)
	if rpcErr != nil {
		writeError(w, req.ID, http.StatusOK, rpcErr)

		return
	}

	writeResult(w, req.ID, result)
}

func (t *Transport) handleInitialize(w http.ResponseWriter, req rpcRequest) {
	var params struct {
		UserID string `json:"user_id,omitempty"`
	}

	_ = json.Unmarshal(req.Params, &params)

	sess := t.sessions.Create(params.UserID)

	w.Header().Set(middleware.SessionHeader, sess.ID)
	writeResult(w, req.ID, initializeResult{SessionID: sess.ID})
}

// dispatch routes a non-initialize method to the matching Server handler,
// decoding params into that tool's typed request.
func (t *Transport) dispatch(ctx context.Context, req rpcRequest) (any, *rpcError) {
	switch req.Method {
	case "get_schema":
		resp, err := t.server.handleGetSchema(ctx)

		return resp, toRPCError(err)

	case "validate_sql":
		var params ValidateSQLRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, paramDecodeError(err)
		}

		resp, err := t.server.handleValidateSQL(ctx, params)

		return resp, toRPCError(err)

	case "execute_query":
		var params ExecuteQueryRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, paramDecodeError(err)
		}

		resp, err := t.server.handleExecuteQuery(ctx, params)

		return resp, toRPCError(err)

	case "execute_natural_language":
		var params ExecuteNaturalLanguageRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, paramDecodeError(err)
		}

		resp, err := t.server.handleExecuteNaturalLanguage(ctx, params)

		return resp, toRPCError(err)

	case "execute_drill_down":
		var params ExecuteDrillDownRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, paramDecodeError(err)
		}

		resp, err := t.server.handleExecuteDrillDown(ctx, params)

		return resp, toRPCError(err)

	case "execute_comparison":
		var params ExecuteComparisonRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, paramDecodeError(err)
		}

		resp, err := t.server.handleExecuteComparison(ctx, params)

		return resp, toRPCError(err)

	default:
		return nil, &rpcError{Code: -32601, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

func paramDecodeError(err error) *rpcError {
	return &rpcError{Code: -32602, Message: "invalid params: " + err.Error()}
}

// toRPCError classifies err via errkind, falling back to Internal for an
// unclassified error so every failure still carries a stable JSON-RPC
// code.
func toRPCError(err error) *rpcError {
	if err == nil {
		return nil
	}

	if classified, ok := errkind.As(err); ok {
		return &rpcError{
			Code:    classified.Kind.JSONRPCCode(),
			Message: classified.Message,
			Data:    classified.Details,
		}
	}

	return &rpcError{Code: errkind.Internal.JSONRPCCode(), Message: err.Error()}
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id json.RawMessage, status int, rpcErr *rpcError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr})
}
