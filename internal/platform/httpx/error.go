// Package httpx holds the JSON error envelope every handler responds with.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/plateroute/api/internal/platform/requestctx"
)

// Error is the canonical API error: a stable machine-readable code plus a
// human-readable message.
type Error struct {
	Code    string
	Message string
	Status  int
}

// NewError constructs an Error, defaulting the status to 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    flatten(code, 80),
		Message: flatten(message, 512),
		Status:  status,
	}
}

type errorEnvelope struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// WriteError renders the error as JSON, stamping the request and trace ids
// from context so clients can quote them in support requests.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	envelope := errorEnvelope{
		Error:     err.Code,
		Message:   err.Message,
		Status:    status,
		RequestID: flatten(middleware.GetReqID(ctx), 80),
		TraceID:   flatten(requestctx.TraceID(ctx), 64),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

// flatten keeps error fields single-line and bounded; codes and messages can
// echo request data.
func flatten(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
