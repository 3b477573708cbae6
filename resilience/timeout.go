package resilience

import (
	"context"
	"time"

	"github.com/termfx/pforge/core"
)

// WithTimeout races op against a timer. On expiry the operation's context is
// cancelled and a Timeout error is returned; the operation itself must reach
// an await point to observe the cancellation.
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := op(opCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return zero, core.AsError(out.err)
		}
		return out.value, nil
	case <-opCtx.Done():
		if opCtx.Err() == context.DeadlineExceeded {
			return zero, core.Errorf(core.KindTimeout, "operation timed out after %s", d)
		}
		return zero, core.AsError(opCtx.Err())
	}
}
