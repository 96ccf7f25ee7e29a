package bookingflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/resource-booking/internal/client"
	"github.com/iliyamo/resource-booking/internal/model"
	"github.com/iliyamo/resource-booking/internal/selection"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 14, h, m, 0, 0, time.UTC)
}

type fakeAPI struct {
	mu        sync.Mutex
	bookings  []model.Booking
	listCalls int
	getErr    error
	createErr error
	created   []client.CreateBookingRequest
	// gate, when set, blocks CreateBooking until closed.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeAPI) GetResource(_ context.Context, id uint64) (*model.Resource, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &model.Resource{ID: id, Name: "Studio B", AvailableStart: at(18, 0), AvailableEnd: at(22, 0)}, nil
}

func (f *fakeAPI) ListBookings(_ context.Context, _ uint64, _ time.Time) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]model.Booking(nil), f.bookings...), nil
}

func (f *fakeAPI) CreateBooking(_ context.Context, req client.CreateBookingRequest) (*model.Booking, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &model.Booking{ID: uint64(100 + len(f.created)), ResourceID: req.ResourceID, Start: req.Start, End: req.End, Status: model.BookingConfirmed}, nil
}

func loaded(t *testing.T, api *fakeAPI) (*Flow, *Store) {
	t.Helper()
	store := NewStore()
	f := New(api, store, 5, at(0, 0), 30*time.Minute, nil)
	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return f, store
}

func choose(t *testing.T, f *Flow, start, end time.Time) {
	t.Helper()
	if err := f.ChooseStart(start); err != nil {
		t.Fatalf("ChooseStart: %v", err)
	}
	if err := f.ChooseEnd(end); err != nil {
		t.Fatalf("ChooseEnd: %v", err)
	}
}

func TestFlowLoadBuildsCandidates(t *testing.T) {
	f, _ := loaded(t, &fakeAPI{})
	if got := len(f.StartCandidates()); got != 9 {
		t.Fatalf("start candidates = %d, want 9", got)
	}
	if f.Phase() != selection.NoSelection {
		t.Fatalf("phase = %v", f.Phase())
	}
	if !f.ResourceState().Loaded || !f.BookingsState().Loaded {
		t.Fatal("expected both loaders to report loaded")
	}
}

func TestFlowLoadFailureThenRetry(t *testing.T) {
	api := &fakeAPI{getErr: client.ErrNetwork}
	f := New(api, NewStore(), 5, at(0, 0), 30*time.Minute, nil)
	if err := f.Load(context.Background()); !errors.Is(err, client.ErrNetwork) {
		t.Fatalf("Load err = %v", err)
	}
	if f.ResourceState().Err == nil {
		t.Fatal("state should carry the error")
	}
	if err := f.ChooseStart(at(19, 0)); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("ChooseStart before load = %v", err)
	}
	api.getErr = nil
	if err := f.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if f.ResourceState().Err != nil {
		t.Fatal("error should clear after a good retry")
	}
}

func TestFlowSubmitSuccessResetsAndStores(t *testing.T) {
	api := &fakeAPI{}
	f, store := loaded(t, api)
	choose(t, f, at(19, 0), at(20, 0))

	b, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if f.Phase() != selection.NoSelection {
		t.Fatalf("phase after success = %v", f.Phase())
	}
	if got := store.Bookings(5); len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("store = %+v", got)
	}
	if store.CheckAvailable(5, at(19, 30), at(20, 30)) {
		t.Fatal("new booking should block overlapping intervals locally")
	}
}

func TestFlowLocalConflictSkipsServer(t *testing.T) {
	api := &fakeAPI{bookings: []model.Booking{{ID: 1, ResourceID: 5, Start: at(19, 0), End: at(20, 0), Status: model.BookingConfirmed}}}
	f, _ := loaded(t, api)
	choose(t, f, at(19, 30), at(20, 30))

	_, err := f.Submit(context.Background())
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, client.ErrConflict) {
		t.Fatalf("Submit err = %v", err)
	}
	if len(api.created) != 0 {
		t.Fatal("server must not be called")
	}
	if f.Phase() != selection.StartChosen {
		t.Fatalf("phase = %v, want StartChosen", f.Phase())
	}
}

func TestFlowServerConflictRefetches(t *testing.T) {
	api := &fakeAPI{createErr: client.ErrConflict}
	f, _ := loaded(t, api)
	choose(t, f, at(19, 0), at(20, 0))

	_, err := f.Submit(context.Background())
	if !errors.Is(err, client.ErrConflict) {
		t.Fatalf("Submit err = %v", err)
	}
	if f.Phase() != selection.StartChosen {
		t.Fatalf("phase = %v, want StartChosen", f.Phase())
	}
	if start, _, _ := f.Selection(); !start.Equal(at(19, 0)) {
		t.Fatalf("start lost: %v", start)
	}
	if api.listCalls != 2 {
		t.Fatalf("bookings fetched %d times, want 2", api.listCalls)
	}
}

func TestFlowValidationFailureDiscardsEnd(t *testing.T) {
	api := &fakeAPI{createErr: &client.ValidationError{Reason: "outside window"}}
	f, _ := loaded(t, api)
	choose(t, f, at(21, 0), at(22, 0))

	_, err := f.Submit(context.Background())
	var ve *client.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Submit err = %v", err)
	}
	if f.Phase() != selection.StartChosen {
		t.Fatalf("phase = %v", f.Phase())
	}
}

func TestFlowNetworkFailureKeepsSelection(t *testing.T) {
	api := &fakeAPI{createErr: client.ErrNetwork}
	f, _ := loaded(t, api)
	choose(t, f, at(19, 0), at(20, 0))

	if _, err := f.Submit(context.Background()); !errors.Is(err, client.ErrNetwork) {
		t.Fatalf("Submit err = %v", err)
	}
	if f.Phase() != selection.Complete {
		t.Fatalf("phase = %v, want Complete", f.Phase())
	}
	if len(api.created) != 1 {
		t.Fatalf("submit must not auto-retry, calls = %d", len(api.created))
	}
}

func TestFlowSubmitIncomplete(t *testing.T) {
	f, _ := loaded(t, &fakeAPI{})
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("got %v", err)
	}
}

func TestFlowRejectsDuplicateSubmit(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	f, _ := loaded(t, api)
	choose(t, f, at(19, 0), at(20, 0))

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()
	<-api.entered
	if !f.Submitting() {
		t.Fatal("expected Submitting while in flight")
	}
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second submit = %v", err)
	}
	close(api.gate)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(api.created) != 1 {
		t.Fatalf("server calls = %d", len(api.created))
	}
}

func TestFlowSelectionFrozenDuringSubmit(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	f, _ := loaded(t, api)
	choose(t, f, at(19, 0), at(20, 0))

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()
	<-api.entered

	if err := f.ChooseStart(at(21, 0)); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("ChooseStart during submit = %v", err)
	}
	if err := f.ChooseEnd(at(21, 0)); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("ChooseEnd during submit = %v", err)
	}
	if err := f.Reset(); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("Reset during submit = %v", err)
	}
	start, end, ok := f.Selection()
	if !ok || !start.Equal(at(19, 0)) || !end.Equal(at(20, 0)) {
		t.Fatalf("selection changed during submit: %v %v %v", start, end, ok)
	}

	close(api.gate)
	if err := <-done; err != nil {
		t.Fatalf("submit: %v", err)
	}
	if f.Phase() != selection.NoSelection {
		t.Fatalf("phase = %v, want NoSelection", f.Phase())
	}
	if err := f.ChooseStart(at(21, 0)); err != nil {
		t.Fatalf("ChooseStart after submit: %v", err)
	}
}

func TestFlowChooseStartOutsideWindow(t *testing.T) {
	f, _ := loaded(t, &fakeAPI{})
	if err := f.ChooseStart(at(16, 0)); !errors.Is(err, selection.ErrOutsideWindow) {
		t.Fatalf("got %v", err)
	}
	if f.Phase() != selection.NoSelection {
		t.Fatalf("phase = %v", f.Phase())
	}
}

func TestFlowCloseDuringSubmit(t *testing.T) {
	api := &fakeAPI{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	f, store := loaded(t, api)
	choose(t, f, at(19, 0), at(20, 0))

	type result struct {
		b   *model.Booking
		err error
	}
	done := make(chan result, 1)
	go func() {
		b, err := f.Submit(context.Background())
		done <- result{b, err}
	}()
	<-api.entered
	f.Close()
	close(api.gate)

	r := <-done
	if r.err != nil || r.b == nil {
		t.Fatalf("committed booking should still be returned: %+v", r)
	}
	if len(store.Bookings(5)) != 0 {
		t.Fatal("closed flow must not touch the store")
	}
	if err := f.ChooseStart(at(19, 0)); !errors.Is(err, ErrClosed) {
		t.Fatalf("ChooseStart after close = %v", err)
	}
}

func TestStoreIgnoresCancelled(t *testing.T) {
	s := NewStore()
	s.Replace(5, []model.Booking{{ID: 1, ResourceID: 5, Start: at(19, 0), End: at(20, 0), Status: model.BookingCancelled}})
	if !s.CheckAvailable(5, at(19, 0), at(20, 0)) {
		t.Fatal("cancelled bookings must not block")
	}
	s.Add(model.Booking{ID: 2, ResourceID: 5, Start: at(20, 0), End: at(21, 0), Status: model.BookingConfirmed})
	if !s.CheckAvailable(5, at(19, 0), at(20, 0)) {
		t.Fatal("touching intervals do not overlap")
	}
	if s.CheckAvailable(5, at(20, 30), at(21, 30)) {
		t.Fatal("overlap not detected")
	}
}
