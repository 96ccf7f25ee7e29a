// Package service implements booking rules on top of the repositories:
// atomic check-and-insert, availability queries and cancellation.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/resource-booking/internal/model"
	"github.com/iliyamo/resource-booking/internal/repository"
	"github.com/iliyamo/resource-booking/internal/slots"
)

// EventPublisher announces booking lifecycle changes to other processes.
type EventPublisher interface {
	PublishConfirmed(ctx context.Context, b model.Booking, res model.Resource) error
	PublishCancelled(ctx context.Context, b model.Booking, res model.Resource) error
}

// ReminderScheduler plans notifications ahead of a booking's start.
type ReminderScheduler interface {
	Schedule(ctx context.Context, b model.Booking, res model.Resource) error
	Cancel(ctx context.Context, bookingID uint64) error
}

// MetricsRecorder counts committed booking changes.
type MetricsRecorder interface {
	RecordCreated(b model.Booking)
	RecordCancelled(b model.Booking)
}

// SubmitRequest is one booking attempt.
type SubmitRequest struct {
	ResourceID uint64
	UserID     uint64
	Start      time.Time
	End        time.Time
}

// BookingService owns every write to the bookings table.
type BookingService struct {
	resources *repository.ResourceRepo
	bookings  *repository.BookingRepo
	events    EventPublisher
	reminders ReminderScheduler
	metrics   MetricsRecorder
	log       *zap.Logger
	now       func() time.Time

	sideEffectTimeout time.Duration
}

type Option func(*BookingService)

func WithEvents(p EventPublisher) Option { return func(s *BookingService) { s.events = p } }

func WithReminders(r ReminderScheduler) Option { return func(s *BookingService) { s.reminders = r } }

func WithMetrics(m MetricsRecorder) Option { return func(s *BookingService) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *BookingService) { s.now = now } }

func NewBookingService(resources *repository.ResourceRepo, bookings *repository.BookingRepo, log *zap.Logger, opts ...Option) *BookingService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &BookingService{
		resources:         resources,
		bookings:          bookings,
		log:               log,
		now:               time.Now,
		sideEffectTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and persists a booking. The resource row is locked with
// SELECT ... FOR UPDATE before the overlap check and stays locked until the
// insert commits, so two overlapping submissions for one resource cannot
// both succeed.
//
// It returns a *ValidationError for an empty or out-of-window interval,
// ErrResourceNotFound for an unknown resource and ErrConflict on overlap.
func (s *BookingService) Submit(ctx context.Context, req SubmitRequest) (*model.Booking, error) {
	if req.ResourceID == 0 {
		return nil, invalid("resourceId is required")
	}
	if req.UserID == 0 {
		return nil, invalid("userId is required")
	}
	if !req.Start.Before(req.End) {
		return nil, invalid("start must be before end")
	}

	tx, err := s.resources.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := s.resources.LockTx(ctx, tx, req.ResourceID)
	if err != nil {
		return nil, err
	}
	if req.Start.Before(res.AvailableStart) || req.End.After(res.AvailableEnd) {
		return nil, invalid("interval lies outside the resource availability window")
	}

	n, err := s.bookings.CountOverlappingTx(ctx, tx, req.ResourceID, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrConflict
	}

	b := &model.Booking{ResourceID: req.ResourceID, UserID: req.UserID, Start: req.Start, End: req.End}
	if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	s.log.Info("booking confirmed",
		zap.Uint64("booking_id", b.ID),
		zap.Uint64("resource_id", b.ResourceID),
		zap.Uint64("user_id", b.UserID),
		zap.Time("start", b.Start),
		zap.Time("end", b.End))
	if s.metrics != nil {
		s.metrics.RecordCreated(*b)
	}
	s.afterConfirm(ctx, *b, *res)
	return b, nil
}

// afterConfirm runs the post-commit side effects. Their failures are logged
// and never undo the booking.
func (s *BookingService) afterConfirm(ctx context.Context, b model.Booking, res model.Resource) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
	defer cancel()
	if s.events != nil {
		if err := s.events.PublishConfirmed(ctx, b, res); err != nil {
			s.log.Warn("publish booking.confirmed failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
		}
	}
	if s.reminders != nil {
		if err := s.reminders.Schedule(ctx, b, res); err != nil {
			s.log.Warn("schedule reminders failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
		}
	}
}

// CheckAvailable reports whether [start, end) is free on the resource right
// now. The answer is advisory; Submit repeats the check under a lock.
func (s *BookingService) CheckAvailable(ctx context.Context, resourceID uint64, start, end time.Time) (bool, error) {
	if !start.Before(end) {
		return false, invalid("start must be before end")
	}
	if _, err := s.resources.GetByID(ctx, resourceID); err != nil {
		return false, err
	}
	n, err := s.bookings.CountOverlapping(ctx, resourceID, start, end)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// ListForResourceDay returns the confirmed bookings of a resource that
// intersect the calendar day starting at day (interpreted in day's
// location).
func (s *BookingService) ListForResourceDay(ctx context.Context, resourceID uint64, day time.Time) ([]model.Booking, error) {
	if _, err := s.resources.GetByID(ctx, resourceID); err != nil {
		return nil, err
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return s.bookings.ListByResourceBetween(ctx, resourceID, from, from.AddDate(0, 0, 1))
}

func (s *BookingService) ListForUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// GetForUser returns a booking only to the user who made it.
func (s *BookingService) GetForUser(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}

// Cancel marks the caller's booking as cancelled. Only bookings that have
// not started yet can be cancelled.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	tx, err := s.bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	if b.Status != model.BookingConfirmed {
		return nil, ErrBookingNotFound
	}
	now := s.now().UTC()
	if !now.Before(b.Start) {
		return nil, ErrAlreadyStarted
	}
	if err := s.bookings.CancelTx(ctx, tx, bookingID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	b.Status = model.BookingCancelled
	b.CancelledAt = &now
	s.log.Info("booking cancelled", zap.Uint64("booking_id", b.ID), zap.Uint64("user_id", userID))
	if s.metrics != nil {
		s.metrics.RecordCancelled(*b)
	}
	s.afterCancel(ctx, *b)
	return b, nil
}

func (s *BookingService) afterCancel(ctx context.Context, b model.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout)
	defer cancel()
	if s.reminders != nil {
		if err := s.reminders.Cancel(ctx, b.ID); err != nil {
			s.log.Warn("cancel reminders failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
		}
	}
	if s.events == nil {
		return
	}
	res, err := s.resources.GetByID(ctx, b.ResourceID)
	if err != nil {
		s.log.Warn("load resource for booking.cancelled failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
		return
	}
	if err := s.events.PublishCancelled(ctx, b, *res); err != nil {
		s.log.Warn("publish booking.cancelled failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
	}
}

// CandidateSlots derives start candidates for a resource, or end candidates
// when after is set.
func (s *BookingService) CandidateSlots(ctx context.Context, resourceID uint64, step time.Duration, after *time.Time) ([]time.Time, error) {
	res, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return slots.Generate(res.AvailableStart, res.AvailableEnd, step, after)
}

// FreeSlots splits the unbooked parts of [start, end), clipped to the
// resource's availability window, into slot-sized intervals.
func (s *BookingService) FreeSlots(ctx context.Context, resourceID uint64, start, end time.Time, slot time.Duration) ([]slots.Interval, error) {
	if slot <= 0 {
		return nil, slots.ErrInvalidConfiguration
	}
	if !start.Before(end) {
		return nil, invalid("start must be before end")
	}
	res, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if start.Before(res.AvailableStart) {
		start = res.AvailableStart
	}
	if end.After(res.AvailableEnd) {
		end = res.AvailableEnd
	}
	if !start.Before(end) {
		return []slots.Interval{}, nil
	}
	booked, err := s.bookings.ListByResourceBetween(ctx, resourceID, start, end)
	if err != nil {
		return nil, err
	}
	busy := make([]slots.Interval, len(booked))
	for i, b := range booked {
		busy[i] = slots.Interval{Start: b.Start, End: b.End}
	}
	return slots.FreeSlots(start, end, slot, busy)
}
