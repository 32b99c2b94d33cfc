package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// RequestError is a network-level fault: connection refused, TLS failure,
// request timeout, truncated body. Always safe to retry with backoff for
// idempotent steps.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// AuthError is a 401 or 403: credentials missing or insufficient. Never
// retried; distinct from validation so callers can trigger re-authentication.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("transport: HTTP %d: %s", e.StatusCode, e.Message)
}

// ConflictError is a 409: a server-side concurrency precondition failed, such
// as an ingestion already running for the graph. Callers may wait and retry;
// the client never retries it as if transient.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transport: conflict: %s", e.Message)
}

// ValidationError is any other 4xx: the server rejected the caller's input.
// Never retried automatically. Detail carries field-level information when
// the body provided any.
type ValidationError struct {
	StatusCode int
	Message    string
	Detail     json.RawMessage
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transport: HTTP %d: %s", e.StatusCode, e.Message)
}

// ServerError is a 5xx: the request was well-formed but the server failed.
// Retryable with backoff for idempotent steps.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("transport: HTTP %d: %s", e.StatusCode, e.Message)
}

// ProtocolError marks a response that violates the expected shape, e.g. an
// operation reporting completed with no result payload. This is a bug-class
// error and is never swallowed.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "transport: protocol error: " + e.Message
}

// IsRetryable reports whether err is a transient transport failure (network
// fault or 5xx) that a bounded retry may recover from.
func IsRetryable(err error) bool {
	var re *RequestError
	var se *ServerError
	return errors.As(err, &re) || errors.As(err, &se)
}

// IsConflict reports whether err is a server-side concurrency conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// classify maps a non-2xx status and body to the error taxonomy.
func classify(status int, content []byte) error {
	msg := extractMessage(content, fmt.Sprintf("HTTP %d", status))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{StatusCode: status, Message: msg}
	case status == http.StatusConflict:
		return &ConflictError{Message: msg}
	case status >= 400 && status < 500:
		ve := &ValidationError{StatusCode: status, Message: msg}
		if json.Valid(content) {
			ve.Detail = json.RawMessage(content)
		}
		return ve
	default:
		return &ServerError{StatusCode: status, Message: msg}
	}
}

// extractMessage pulls a human-readable message out of a JSON error body,
// trying the keys the service is known to use. Falls back to fallback when
// the body has no usable message.
func extractMessage(content []byte, fallback string) string {
	if len(content) == 0 {
		return fallback
	}
	var body struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(content, &body); err != nil {
		return fallback
	}
	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil && s != "" {
			return s
		}
		// Validation detail can be a structured list; keep it verbatim.
		return string(body.Detail)
	}
	if body.Error != "" {
		return body.Error
	}
	if body.Message != "" {
		return body.Message
	}
	return fallback
}
