package model

import "time"

// Booking statuses stored in bookings.status.
const (
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// Booking is a reservation of one resource for the half-open interval
// [Start, End). Only CONFIRMED bookings take part in overlap checks.
type Booking struct {
	ID          uint64     `json:"id"`
	ResourceID  uint64     `json:"resourceId"`
	UserID      uint64     `json:"userId"`
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}
