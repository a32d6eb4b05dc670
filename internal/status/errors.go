package status

import (
	"errors"
	"net/http"
)

var (
	// ErrConflict indicates a write that would violate the state machine.
	ErrConflict = errors.New("status conflict")
	// ErrNotFound indicates an unknown document or a missing result.
	ErrNotFound = errors.New("status not found")
)

// MapHTTPStatus maps status errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
