package reminder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Notifier delivers a due reminder. The default implementation logs it.
type Notifier interface {
	Notify(ctx context.Context, p Payload) error
}

type logNotifier struct{ log *zap.Logger }

func (n logNotifier) Notify(_ context.Context, p Payload) error {
	n.log.Info("booking reminder",
		zap.Uint64("booking_id", p.BookingID),
		zap.Uint64("user_id", p.UserID),
		zap.String("resource", p.ResourceName),
		zap.Time("start", p.Start),
		zap.String("lead", p.Lead))
	return nil
}

// LogNotifier returns a Notifier that writes reminders to log.
func LogNotifier(log *zap.Logger) Notifier { return logNotifier{log: log} }

// HandleReminder decodes a reminder task and passes it to n. Undecodable
// payloads are skipped via asynq.SkipRetry.
func HandleReminder(n Notifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p Payload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("decode reminder: %v: %w", err, asynq.SkipRetry)
		}
		return n.Notify(ctx, p)
	}
}

func NewServeMux(n Notifier) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBookingReminder, HandleReminder(n))
	return mux
}

// Worker runs the asynq server that processes reminder tasks.
type Worker struct {
	srv *asynq.Server
	mux *asynq.ServeMux
}

func NewWorker(opt asynq.RedisClientOpt, n Notifier, log *zap.Logger) *Worker {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{DefaultQueue: 1},
		Logger:      log.Sugar(),
	})
	return &Worker{srv: srv, mux: NewServeMux(n)}
}

// Start begins processing in background goroutines.
func (w *Worker) Start() error { return w.srv.Start(w.mux) }

// Shutdown waits for in-flight tasks and stops the server.
func (w *Worker) Shutdown() { w.srv.Shutdown() }
