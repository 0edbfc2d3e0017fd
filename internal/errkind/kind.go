// Package errkind defines the closed error taxonomy shared by the query
// execution pipeline and the protocol server. Every failure that crosses a
// component boundary is classified into one of these kinds before it
// reaches a caller; raw provider errors and stack traces never do.
package errkind

import "net/http"

// Kind identifies the class of a failure. The set is closed: callers that
// switch on Kind do not need a default case for "unknown kind" beyond
// Internal.
type Kind string

const (
	// TranslationLowConfidence means the translator's output could not be
	// parsed into a valid Analysis. The caller should rephrase.
	TranslationLowConfidence Kind = "TRANSLATION_LOW_CONFIDENCE"

	// TranslationUnavailable means the LLM timed out or its circuit
	// breaker is open. Recoverable by retry with backoff.
	TranslationUnavailable Kind = "TRANSLATION_UNAVAILABLE"

	// SQLRejected means the validator refused the candidate SQL.
	SQLRejected Kind = "SQL_REJECTED"

	// QueryTimeout means execution exceeded its budget and was cancelled.
	QueryTimeout Kind = "QUERY_TIMEOUT"

	// PoolTimeout means no pooled connection became available in time.
	PoolTimeout Kind = "POOL_TIMEOUT"

	// ExecutionError means the database rejected the SQL at runtime.
	ExecutionError Kind = "EXECUTION_ERROR"

	// RateLimited means the caller exceeded its quota.
	RateLimited Kind = "RATE_LIMITED"

	// SessionInvalid means the session id is missing, unknown, or expired.
	SessionInvalid Kind = "SESSION_INVALID"

	// ServiceUnavailable means a non-LLM protected dependency's breaker is
	// open.
	ServiceUnavailable Kind = "SERVICE_UNAVAILABLE"

	// Internal is any uncategorized fault; treat as a bug, not user error.
	Internal Kind = "INTERNAL"
)

// HTTPStatus maps a Kind to the status code the convenience HTTP facade
// and the JSON-RPC transport's non-2xx paths should return.
func (k Kind) HTTPStatus() int {
	switch k {
	case TranslationLowConfidence, SQLRejected:
		return http.StatusOK // surfaced as success:false in the response body
	case SessionInvalid:
		return http.StatusBadRequest
	case RateLimited:
		return http.StatusTooManyRequests
	case ServiceUnavailable, TranslationUnavailable:
		return http.StatusServiceUnavailable
	case QueryTimeout, PoolTimeout, ExecutionError, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// JSONRPCCode maps a Kind to a JSON-RPC 2.0 error code for the MCP
// transport. Codes below -32000 are reserved by the spec for
// implementation-defined server errors.
func (k Kind) JSONRPCCode() int {
	switch k {
	case SessionInvalid:
		return -32001
	case RateLimited:
		return -32002
	case TranslationUnavailable, ServiceUnavailable:
		return -32003
	case SQLRejected:
		return -32004
	case TranslationLowConfidence:
		return -32005
	case QueryTimeout:
		return -32006
	case PoolTimeout:
		return -32007
	case ExecutionError:
		return -32008
	default:
		return -32000
	}
}

// Error is a classified error carrying a stable machine code, a
// human-readable message, and optional structured details. It implements
// the error interface and supports errors.Unwrap for the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Cause   error
}

// New constructs a classified Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs a classified Error that carries an underlying cause. The
// cause is never included in Message — it is confined to the audit log via
// Cause, per the propagation policy that raw provider messages never
// surface to callers.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails attaches structured detail fields and returns the receiver
// for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details

	return e
}

// As extracts a *Error from err, if present, following the same pattern as
// errors.As. It is a small convenience so callers do not need to import
// both "errors" and this package for the common case.
func As(err error) (*Error, bool) {
	var classified *Error
	if err == nil {
		return nil, false
	}

	type unwrapper interface{ Unwrap() error }

	for {
		if ce, ok := err.(*Error); ok {
			classified = ce

			return classified, true
		}

		u, ok := err.(unwrapper)
		if !ok {
			return nil, false
		}

		err = u.Unwrap()
		if err == nil {
			return nil, false
		}
	}
}
