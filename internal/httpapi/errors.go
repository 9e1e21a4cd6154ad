package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"deskhogd/internal/actions"
	"deskhogd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// badRequest is returned by parameter extraction.
type badRequest string

func (e badRequest) Error() string   { return string(e) }
func (e badRequest) StatusCode() int { return http.StatusBadRequest }

// statusFor maps submit and read errors onto HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case actions.IsQueueFull(err):
		return http.StatusTooManyRequests
	case actions.IsNotRunning(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, actions.ErrUnknownKind), errors.Is(err, actions.ErrTooManyParams):
		return http.StatusBadRequest
	case errors.As(err, &he):
		return he.StatusCode()
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
