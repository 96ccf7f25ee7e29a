package bookingflow

import (
	"sync"
	"time"

	"github.com/iliyamo/resource-booking/internal/model"
	"github.com/iliyamo/resource-booking/internal/slots"
)

// Store holds the bookings known to this client, per resource. It is passed
// explicitly to every Flow that needs it and is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	byResource map[uint64][]model.Booking
}

func NewStore() *Store {
	return &Store{byResource: make(map[uint64][]model.Booking)}
}

// Replace swaps the cached bookings of a resource for a fresh list.
func (s *Store) Replace(resourceID uint64, list []model.Booking) {
	cp := append([]model.Booking(nil), list...)
	s.mu.Lock()
	s.byResource[resourceID] = cp
	s.mu.Unlock()
}

// Add records a booking this client just created.
func (s *Store) Add(b model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.byResource[b.ResourceID]
	for i := range list {
		if list[i].ID == b.ID {
			list[i] = b
			return
		}
	}
	s.byResource[b.ResourceID] = append(list, b)
}

// Bookings returns a copy of the cached bookings of a resource.
func (s *Store) Bookings(resourceID uint64) []model.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Booking(nil), s.byResource[resourceID]...)
}

// CheckAvailable reports whether [start, end) avoids every cached confirmed
// booking of the resource. It only knows what was last fetched; the server
// repeats the check when the booking is submitted.
func (s *Store) CheckAvailable(resourceID uint64, start, end time.Time) bool {
	candidate := slots.Interval{Start: start, End: end}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.byResource[resourceID] {
		if b.Status == model.BookingCancelled {
			continue
		}
		if candidate.Overlaps(slots.Interval{Start: b.Start, End: b.End}) {
			return false
		}
	}
	return true
}
