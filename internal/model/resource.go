package model

import "time"

// Resource is a bookable unit (room, court, studio, apartment) as stored in
// the `resources` table. Bookings are only accepted inside the
// [AvailableStart, AvailableEnd] window.
//
// Fields:
//  ID                – primary key identifier.
//  OwnerID           – user (role OWNER) that manages the resource.
//  Name              – display name.
//  Category          – free-form type label such as "room" or "court".
//  Location          – free-form address or area.
//  PricePerHourCents – hourly price in minor units.
//  AvailableStart    – start of the bookable window (UTC).
//  AvailableEnd      – end of the bookable window (UTC), after AvailableStart.
type Resource struct {
	ID                uint64    `json:"id"`
	OwnerID           uint64    `json:"ownerId"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	Location          string    `json:"location"`
	PricePerHourCents uint32    `json:"pricePerHourCents"`
	AvailableStart    time.Time `json:"availableStart"`
	AvailableEnd      time.Time `json:"availableEnd"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
