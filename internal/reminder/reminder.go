// Package reminder schedules delayed "your booking starts soon" jobs on an
// asynq queue and processes them.
package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/iliyamo/resource-booking/internal/config"
	"github.com/iliyamo/resource-booking/internal/model"
)

const (
	TypeBookingReminder = "booking:reminder"
	DefaultQueue        = "reminders"
)

// Payload is the JSON body of a reminder task.
type Payload struct {
	BookingID    uint64    `json:"booking_id"`
	ResourceID   uint64    `json:"resource_id"`
	ResourceName string    `json:"resource_name"`
	UserID       uint64    `json:"user_id"`
	Start        time.Time `json:"start"`
	Lead         string    `json:"lead"`
}

// Enqueuer is the subset of *asynq.Client used here.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Deleter is the subset of *asynq.Inspector used here.
type Deleter interface {
	DeleteTask(queue, id string) error
}

// RedisOpt maps the shared Redis settings onto asynq's connection options.
func RedisOpt(c config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:      c.Addr,
		Password:  c.Password,
		DB:        c.ReminderDB,
		TLSConfig: c.TLSConfig(),
	}
}

// Scheduler enqueues one task per lead time before a booking's start.
type Scheduler struct {
	enq   Enqueuer
	del   Deleter
	leads []time.Duration
	queue string
	log   *zap.Logger
	now   func() time.Time
}

func NewScheduler(enq Enqueuer, del Deleter, leads []time.Duration, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{enq: enq, del: del, leads: leads, queue: DefaultQueue, log: log, now: time.Now}
}

// TaskID is deterministic so that rescheduling the same booking is a no-op
// and cancellation can find the task.
func TaskID(bookingID uint64, lead time.Duration) string {
	return fmt.Sprintf("booking:%d:reminder:%s", bookingID, lead)
}

// Schedule enqueues reminders whose fire time is still in the future.
func (s *Scheduler) Schedule(ctx context.Context, b model.Booking, res model.Resource) error {
	var errs []error
	for _, lead := range s.leads {
		fireAt := b.Start.Add(-lead)
		if !fireAt.After(s.now()) {
			continue
		}
		body, err := json.Marshal(Payload{
			BookingID:    b.ID,
			ResourceID:   b.ResourceID,
			ResourceName: res.Name,
			UserID:       b.UserID,
			Start:        b.Start.UTC(),
			Lead:         lead.String(),
		})
		if err != nil {
			return err
		}
		_, err = s.enq.EnqueueContext(ctx, asynq.NewTask(TypeBookingReminder, body),
			asynq.ProcessAt(fireAt),
			asynq.TaskID(TaskID(b.ID, lead)),
			asynq.Queue(s.queue),
			asynq.MaxRetry(3),
		)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			errs = append(errs, fmt.Errorf("enqueue %s reminder: %w", lead, err))
			continue
		}
		s.log.Debug("reminder scheduled", zap.Uint64("booking_id", b.ID), zap.Time("fire_at", fireAt))
	}
	return errors.Join(errs...)
}

// Cancel removes any pending reminders of a booking.
func (s *Scheduler) Cancel(_ context.Context, bookingID uint64) error {
	if s.del == nil {
		return nil
	}
	var errs []error
	for _, lead := range s.leads {
		err := s.del.DeleteTask(s.queue, TaskID(bookingID, lead))
		if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
