// Package bookingflow drives one booking attempt against a resource: it
// loads the resource and its bookings, walks the range selector and
// submits the chosen interval.
package bookingflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/resource-booking/internal/client"
	"github.com/iliyamo/resource-booking/internal/fetch"
	"github.com/iliyamo/resource-booking/internal/model"
	"github.com/iliyamo/resource-booking/internal/selection"
)

var (
	// ErrSubmitInFlight is returned by Submit and the selection mutators
	// while an earlier submission has not completed.
	ErrSubmitInFlight = errors.New("bookingflow: submission already in flight")
	// ErrNotLoaded is returned when the resource has not been loaded yet.
	ErrNotLoaded = errors.New("bookingflow: resource not loaded")
	// ErrIncomplete is returned by Submit before both ends are chosen.
	ErrIncomplete = errors.New("bookingflow: selection incomplete")
	// ErrClosed is returned by operations on a closed flow.
	ErrClosed = errors.New("bookingflow: flow closed")
	// ErrUnavailable means the local check found an overlapping booking.
	// It wraps client.ErrConflict.
	ErrUnavailable = fmt.Errorf("bookingflow: interval overlaps a known booking: %w", client.ErrConflict)
)

// API is the subset of the HTTP client a flow needs.
type API interface {
	GetResource(ctx context.Context, id uint64) (*model.Resource, error)
	ListBookings(ctx context.Context, resourceID uint64, day time.Time) ([]model.Booking, error)
	CreateBooking(ctx context.Context, req client.CreateBookingRequest) (*model.Booking, error)
}

// Flow is one booking attempt for one resource view. After Close, late
// completions leave the flow untouched.
type Flow struct {
	api        API
	store      *Store
	resourceID uint64
	day        time.Time
	step       time.Duration
	log        *zap.Logger

	resource *fetch.Loader[*model.Resource]
	bookings *fetch.Loader[[]model.Booking]

	mu         sync.Mutex
	sel        *selection.Selector
	submitting bool
	closed     bool
}

// New prepares a flow for resourceID. Bookings are fetched for day's
// calendar date, which is also what the local conflict check covers.
func New(api API, store *Store, resourceID uint64, day time.Time, step time.Duration, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Flow{api: api, store: store, resourceID: resourceID, day: day, step: step, log: log}
	f.resource = fetch.New(func(ctx context.Context) (*model.Resource, error) {
		return api.GetResource(ctx, resourceID)
	})
	f.bookings = fetch.New(func(ctx context.Context) ([]model.Booking, error) {
		list, err := api.ListBookings(ctx, resourceID, day)
		if err == nil && !f.isClosed() {
			store.Replace(resourceID, list)
		}
		return list, err
	})
	return f
}

func (f *Flow) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Load fetches the resource and its bookings and builds the selector over
// the resource's availability window. A second Load after success keeps
// the current selection.
func (f *Flow) Load(ctx context.Context) error {
	if f.isClosed() {
		return ErrClosed
	}
	res, err := f.resource.Load(ctx)
	if err != nil {
		return err
	}
	sel, err := selection.New(res.AvailableStart, res.AvailableEnd, f.step)
	if err != nil {
		return err
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.sel == nil {
		f.sel = sel
	}
	f.mu.Unlock()

	_, err = f.bookings.Load(ctx)
	return err
}

// Retry repeats Load after a failure. Nothing is retried automatically.
func (f *Flow) Retry(ctx context.Context) error {
	return f.Load(ctx)
}

func (f *Flow) ResourceState() fetch.State[*model.Resource] { return f.resource.State() }

func (f *Flow) BookingsState() fetch.State[[]model.Booking] { return f.bookings.State() }

func (f *Flow) Phase() selection.Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sel == nil {
		return selection.NoSelection
	}
	return f.sel.Phase()
}

func (f *Flow) StartCandidates() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sel == nil {
		return nil
	}
	return f.sel.StartCandidates()
}

func (f *Flow) EndCandidates() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sel == nil {
		return nil
	}
	return f.sel.EndCandidates()
}

func (f *Flow) Selection() (start, end time.Time, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sel == nil {
		return time.Time{}, time.Time{}, false
	}
	return f.sel.Selection()
}

// ChooseStart, ChooseEnd and Reset fail with ErrSubmitInFlight while a
// submission is outstanding so the interval being booked cannot change
// underneath it.
func (f *Flow) ChooseStart(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutable(); err != nil {
		return err
	}
	return f.sel.ChooseStart(t)
}

func (f *Flow) ChooseEnd(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutable(); err != nil {
		return err
	}
	return f.sel.ChooseEnd(t)
}

func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mutable(); err != nil {
		return err
	}
	f.sel.Reset()
	return nil
}

// Submitting reports whether a submission is outstanding; the confirm
// action stays disabled while it is true.
func (f *Flow) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// ready must be called with f.mu held.
func (f *Flow) ready() error {
	if f.closed {
		return ErrClosed
	}
	if f.sel == nil {
		return ErrNotLoaded
	}
	return nil
}

// mutable must be called with f.mu held.
func (f *Flow) mutable() error {
	if err := f.ready(); err != nil {
		return err
	}
	if f.submitting {
		return ErrSubmitInFlight
	}
	return nil
}

// Submit books the selected interval.
//
// The cached bookings are checked first; an overlap there fails with
// ErrUnavailable without contacting the server. On success the selection
// resets and the booking joins the store. When the server answers with a
// conflict or a validation failure, the chosen end is dropped and the
// bookings are fetched again, leaving the flow in StartChosen. Other
// errors keep the selection so the user can submit again.
//
// If the flow is closed while the request is in flight, the server's result
// is still returned but the flow and store are not updated.
func (f *Flow) Submit(ctx context.Context) (*model.Booking, error) {
	f.mu.Lock()
	if err := f.ready(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	iv, ok := f.sel.Interval()
	if !ok {
		f.mu.Unlock()
		return nil, ErrIncomplete
	}
	if !f.store.CheckAvailable(f.resourceID, iv.Start, iv.End) {
		f.sel.DiscardEnd()
		f.mu.Unlock()
		return nil, ErrUnavailable
	}
	f.submitting = true
	f.mu.Unlock()

	b, err := f.api.CreateBooking(ctx, client.CreateBookingRequest{
		ResourceID: f.resourceID,
		Start:      iv.Start,
		End:        iv.End,
	})

	f.mu.Lock()
	f.submitting = false
	if f.closed {
		f.mu.Unlock()
		f.log.Debug("submit completed after close", zap.Uint64("resource_id", f.resourceID), zap.Error(err))
		return b, err
	}

	var ve *client.ValidationError
	switch {
	case err == nil:
		f.sel.Reset()
		f.mu.Unlock()
		f.store.Add(*b)
		f.log.Info("booking created", zap.Uint64("booking_id", b.ID), zap.Uint64("resource_id", f.resourceID))
		return b, nil
	case errors.Is(err, client.ErrConflict), errors.As(err, &ve):
		f.sel.DiscardEnd()
		f.mu.Unlock()
		if _, lerr := f.bookings.Load(ctx); lerr != nil {
			f.log.Warn("refresh bookings after rejected submit failed", zap.Uint64("resource_id", f.resourceID), zap.Error(lerr))
		}
		return nil, err
	default:
		f.mu.Unlock()
		return nil, err
	}
}

// Close discards the flow. Later completions become no-ops for its state.
func (f *Flow) Close() {
	f.mu.Lock()
	f.closed = true
	f.sel = nil
	f.mu.Unlock()
}
