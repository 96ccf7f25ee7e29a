// Package fetch provides a single reusable way to load remote data while
// exposing its data, loading flag and last error.
package fetch

import (
	"context"
	"errors"
	"sync"
)

// ErrInFlight is returned when Load is called while a previous load on the
// same Loader has not finished.
var ErrInFlight = errors.New("fetch: load already in flight")

// Func loads one value.
type Func[T any] func(ctx context.Context) (T, error)

// State is a snapshot of a Loader.
type State[T any] struct {
	Data    T
	Loaded  bool
	Loading bool
	Err     error
}

// Loader wraps a Func and records the outcome of the last call. Failed
// loads are never retried automatically; the caller decides when to Retry.
type Loader[T any] struct {
	fn Func[T]

	mu    sync.Mutex
	state State[T]
}

func New[T any](fn Func[T]) *Loader[T] {
	return &Loader[T]{fn: fn}
}

// Load runs the underlying Func. A failure keeps the last good Data.
func (l *Loader[T]) Load(ctx context.Context) (T, error) {
	l.mu.Lock()
	if l.state.Loading {
		l.mu.Unlock()
		var zero T
		return zero, ErrInFlight
	}
	l.state.Loading = true
	l.mu.Unlock()

	data, err := l.fn(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Loading = false
	l.state.Err = err
	if err == nil {
		l.state.Data = data
		l.state.Loaded = true
	}
	return data, err
}

// Retry is an explicit reload, typically wired to a user action after Load
// reported an error.
func (l *Loader[T]) Retry(ctx context.Context) (T, error) {
	return l.Load(ctx)
}

func (l *Loader[T]) State() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
