package fetch

import (
	"context"
	"errors"
	"testing"
)

func TestLoader_RecordsDataAndErrors(t *testing.T) {
	calls := 0
	fail := errors.New("boom")
	l := New(func(ctx context.Context) (int, error) {
		calls++
		if calls == 2 {
			return 0, fail
		}
		return calls * 10, nil
	})

	if v, err := l.Load(context.Background()); err != nil || v != 10 {
		t.Fatalf("first load = %d, %v", v, err)
	}
	st := l.State()
	if !st.Loaded || st.Loading || st.Err != nil || st.Data != 10 {
		t.Fatalf("unexpected state after success: %+v", st)
	}

	if _, err := l.Load(context.Background()); !errors.Is(err, fail) {
		t.Fatalf("expected failure, got %v", err)
	}
	st = l.State()
	if !errors.Is(st.Err, fail) || st.Data != 10 {
		t.Fatalf("failure should keep previous data: %+v", st)
	}
	if calls != 2 {
		t.Fatalf("expected no automatic retry, got %d calls", calls)
	}

	if v, err := l.Retry(context.Background()); err != nil || v != 30 {
		t.Fatalf("retry = %d, %v", v, err)
	}
	if l.State().Err != nil {
		t.Fatalf("retry should clear the error")
	}
}

func TestLoader_RejectsConcurrentLoad(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	l := New(func(ctx context.Context) (string, error) {
		close(entered)
		<-release
		return "ok", nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background())
		done <- err
	}()
	<-entered

	if !l.State().Loading {
		t.Fatalf("expected Loading while fetch is outstanding")
	}
	if _, err := l.Load(context.Background()); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first load: %v", err)
	}
	if st := l.State(); st.Loading || st.Data != "ok" {
		t.Fatalf("unexpected final state %+v", st)
	}
}
