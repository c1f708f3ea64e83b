package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds for the capture/fan-out pipeline. Stores and guards return
// errors wrapping exactly one of these; callers match with errors.Is.
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNotFound         = errors.New("not found")
	ErrStorage          = errors.New("storage failure")
)

// Wrap attaches a sentinel kind to a contextual message.
func Wrap(kind error, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, kind)...)
}

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// Status maps a pipeline error to its HTTP status and response code.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, ErrInvalidOperation):
		return http.StatusBadRequest, ErrCodeInvalidOperation
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// WriteFromError resolves the status/code pair for err and writes the envelope.
func WriteFromError(w http.ResponseWriter, err error) {
	status, code := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Do not leak backend details to clients.
		msg = "Internal server error"
	}
	WriteError(w, status, code, msg, nil)
}
