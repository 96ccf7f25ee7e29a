package client

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned for 409: the interval overlaps a booking.
	ErrConflict = errors.New("booking conflict")
	// ErrNotFound is returned for 404.
	ErrNotFound = errors.New("not found")
	// ErrNetwork wraps transport failures. Context errors stay reachable
	// through errors.Is.
	ErrNetwork = errors.New("network error")
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError is the client side of a 422 response.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Reason }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StatusError covers every other non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}
