package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/deskpilot/internal/domain"
)

// WithTimeout races op against a timer. On timeout it returns a
// labeled TimeoutError; the losing operation is abandoned, not
// cancelled, and its eventual result is discarded. op must not write
// to shared state after losing the race.
func WithTimeout[T any](ctx context.Context, d time.Duration, label string, op func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	// Buffered so the abandoned goroutine can always complete its send.
	done := make(chan outcome, 1)
	go func() {
		value, err := op(ctx)
		done <- outcome{value: value, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, domain.NewTimeoutError(label, d.String())
	}
}
