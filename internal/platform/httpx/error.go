// Package httpx defines the JSON error envelope shared by every handler.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sellerdesk/api/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
	maxTraceIDLen = 64
)

// Error is the error envelope written to clients. Code is a stable
// machine-readable identifier; Message is human-readable.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// NewError builds an Error, clamping code and message to safe lengths.
// A zero status becomes 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, maxCodeLen),
		Message: sanitize(message, maxMessageLen),
		Status:  status,
	}
}

// WithDetails attaches extra top-level fields to the serialised payload.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(details))
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WriteError serialises err as JSON. The request ID and trace ID are
// pulled from ctx so handlers never thread them explicitly.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := errorBody{
		Error:     err.Code,
		Message:   err.Message,
		Status:    status,
		RequestID: sanitize(middleware.GetReqID(ctx), maxCodeLen),
		TraceID:   sanitize(requestctx.TraceID(ctx), maxTraceIDLen),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(err.Details) == 0 {
		_ = json.NewEncoder(w).Encode(body)
		return
	}

	payload := map[string]any{
		"error":   body.Error,
		"message": body.Message,
		"status":  body.Status,
	}
	if body.RequestID != "" {
		payload["request_id"] = body.RequestID
	}
	if body.TraceID != "" {
		payload["trace_id"] = body.TraceID
	}
	for k, v := range err.Details {
		payload[k] = v
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// sanitize strips newlines and truncates, keeping log injection and
// oversized client input out of error payloads.
func sanitize(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if limit > 0 && len(value) > limit {
		value = value[:limit]
	}
	return value
}
