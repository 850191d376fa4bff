// Package sweeper runs a periodic job until its context is cancelled.
package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Runner calls Fn once at start and then every Interval. Each call gets its
// own context bounded by Timeout, if set.
type Runner struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Fn       func(ctx context.Context) error
}

// Run blocks until ctx is done. A zero Interval disables the runner. Errors
// from Fn are logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		slog.Info("periodic job disabled", "job", r.Name)
		<-ctx.Done()
		return nil
	}

	slog.Info("periodic job started", "job", r.Name, "interval", r.Interval)
	r.runOnce(ctx)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("periodic job stopped", "job", r.Name)
			return nil
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := r.Fn(ctx)
	switch {
	case err == nil:
		slog.Debug("periodic job finished", "job", r.Name, "duration", time.Since(start))
	case errors.Is(err, context.Canceled):
		slog.Info("periodic job interrupted", "job", r.Name)
	default:
		slog.Error("periodic job failed", "job", r.Name, "error", err, "duration", time.Since(start))
	}
}
