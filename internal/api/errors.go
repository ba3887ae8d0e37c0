// Package api provides the HTTP handlers for the recommendation service and
// its standardized JSON error envelope.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/onnwee/whatnow/internal/middleware"
)

// Error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeInvalidLocation indicates missing or out-of-range coordinates.
	ErrCodeInvalidLocation = "invalid_location"

	// ErrCodeBadRequest indicates a malformed request body.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limit_exceeded"

	// ErrCodeTimeout indicates the request ran out of time.
	ErrCodeTimeout = "timeout"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
)

// ErrorResponse is the body of every error: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response and records code for
// the request log line.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.SetErrorCode(ctx, code)
	writeJSON(w, ctx, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeJSON encodes body with status. Encoding failures become a plain 500.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeInvalidLocation, ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
