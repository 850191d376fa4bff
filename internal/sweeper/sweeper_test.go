package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunRepeatsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	r := &Runner{
		Name:     "test",
		Interval: 5 * time.Millisecond,
		Fn: func(context.Context) error {
			if calls.Add(1) == 3 {
				cancel()
			}
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("Run did not return after cancel")
	}
	if got := calls.Load(); got < 3 {
		t.Errorf("calls = %d, want at least 3", got)
	}
}

func TestRunSurvivesErrors(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &Runner{
		Interval: time.Millisecond,
		Fn: func(context.Context) error {
			if calls.Add(1) >= 2 {
				cancel()
			}
			return errors.New("boom")
		},
	}
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := calls.Load(); got < 2 {
		t.Errorf("calls = %d, want at least 2", got)
	}
}

func TestRunAppliesTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hadDeadline atomic.Bool
	r := &Runner{
		Interval: time.Hour,
		Timeout:  time.Second,
		Fn: func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			hadDeadline.Store(ok)
			cancel()
			return nil
		},
	}
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !hadDeadline.Load() {
		t.Error("job context has no deadline")
	}
}

func TestRunDisabled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	r := &Runner{Fn: func(context.Context) error {
		t.Error("disabled runner called Fn")
		return nil
	}}
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
