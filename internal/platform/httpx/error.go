package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/luxeplan/api/internal/platform/requestctx"
)

// Error represents the JSON error envelope returned by the API. Every envelope carries a
// human-readable message field.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError constructs a new Error with the provided parameters.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// Unauthorized builds a 401 envelope.
func Unauthorized(message string) Error {
	return NewError("unauthenticated", message, http.StatusUnauthorized)
}

// Forbidden builds a 403 envelope.
func Forbidden(message string) Error {
	return NewError("forbidden", message, http.StatusForbidden)
}

// NotFound builds a 404 envelope.
func NotFound(message string) Error {
	return NewError("not_found", message, http.StatusNotFound)
}

// Conflict builds a 409 envelope.
func Conflict(message string) Error {
	return NewError("conflict", message, http.StatusConflict)
}

// BadRequest builds a 400 envelope for malformed or invalid input.
func BadRequest(message string) Error {
	return NewError("invalid_request", message, http.StatusBadRequest)
}

// Upstream builds a 502 envelope for failures of external providers.
func Upstream(message string) Error {
	return NewError("upstream_failure", message, http.StatusBadGateway)
}

// Unavailable builds a 503 envelope for transient storage outages.
func Unavailable(message string) Error {
	return NewError("unavailable", message, http.StatusServiceUnavailable)
}

// Internal builds a 500 envelope. In production the supplied message is replaced with a
// generic one.
func Internal(ctx context.Context, message string) Error {
	if requestctx.IsProduction(ctx) || strings.TrimSpace(message) == "" {
		message = "internal server error"
	}
	return NewError("internal_error", message, http.StatusInternalServerError)
}

// WithDetails attaches additional JSON-serialisable metadata.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(details)+len(e.Details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// Error implements the error interface so envelopes can travel through error returns.
func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

// WriteError writes the structured error as JSON to the provided response writer.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	requestID := err.RequestID
	if requestID == "" {
		requestID = sanitize(middleware.GetReqID(ctx), 80)
	}
	traceID := err.TraceID
	if traceID == "" {
		traceID = sanitize(requestctx.TraceID(ctx), 64)
	}

	payload := make(map[string]any, len(err.Details)+5)
	for k, v := range err.Details {
		payload[k] = v
	}
	payload["error"] = err.Code
	payload["message"] = err.Message
	payload["status"] = status
	if requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID != "" {
		payload["trace_id"] = traceID
	}

	WriteJSON(w, status, payload)
}

func sanitize(value string, limit int) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}

// WriteJSON encodes payload as the JSON response body.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
