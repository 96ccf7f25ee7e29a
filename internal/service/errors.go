package service

import (
	"errors"

	"github.com/iliyamo/resource-booking/internal/repository"
)

var (
	// ErrConflict means the requested interval overlaps a confirmed booking.
	ErrConflict = errors.New("booking overlaps an existing booking")
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("invalid booking request")
	// ErrAlreadyStarted is returned when cancelling a booking whose start
	// has passed.
	ErrAlreadyStarted = errors.New("booking has already started")

	ErrResourceNotFound = repository.ErrResourceNotFound
	ErrBookingNotFound  = repository.ErrBookingNotFound
	ErrForbidden        = repository.ErrForbidden
)

// ValidationError describes why an interval was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid booking request: " + e.Reason }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(reason string) error { return &ValidationError{Reason: reason} }
