package bookingapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by APIError through errors.Is
var (
	ErrUnauthorized = errors.New("booking api: unauthorized")
	ErrForbidden    = errors.New("booking api: forbidden")
	ErrNotFound     = errors.New("booking api: not found")
	ErrConflict     = errors.New("booking api: conflict")
	ErrRateLimited  = errors.New("booking api: rate limited")
)

// APIError is returned for non-2xx responses from the booking API
type APIError struct {
	StatusCode int
	// Message is the "message" field of the response body when present
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("booking api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("booking api error (status %d)", e.StatusCode)
}

// Is maps the status code onto the package's sentinel errors
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}
