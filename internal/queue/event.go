// Package queue carries booking lifecycle events over RabbitMQ.
package queue

import (
	"time"

	"github.com/iliyamo/resource-booking/internal/model"
)

// Event types double as the durable queue names.
const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
)

// BookingEvent has enough detail for consumers to log or notify without
// querying the primary database.
type BookingEvent struct {
	Type         string `json:"type"`
	BookingID    uint64 `json:"booking_id"`
	ResourceID   uint64 `json:"resource_id"`
	ResourceName string `json:"resource_name"`
	Location     string `json:"location,omitempty"`
	UserID       uint64 `json:"user_id"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	OccurredAt   string `json:"occurred_at"`
}

// NewBookingEvent renders all timestamps as RFC3339 UTC.
func NewBookingEvent(typ string, b model.Booking, res model.Resource, at time.Time) BookingEvent {
	return BookingEvent{
		Type:         typ,
		BookingID:    b.ID,
		ResourceID:   b.ResourceID,
		ResourceName: res.Name,
		Location:     res.Location,
		UserID:       b.UserID,
		StartTime:    b.Start.UTC().Format(time.RFC3339),
		EndTime:      b.End.UTC().Format(time.RFC3339),
		OccurredAt:   at.UTC().Format(time.RFC3339),
	}
}
