package middleware

import (
	"context"
	"time"

	"github.com/termfx/pforge/resilience"
)

// Timeout bounds the inner dispatch. Cancellation is cooperative: the
// handler observes it at its next await point.
type Timeout struct {
	Nop
	duration time.Duration
}

// NewTimeout creates the timeout middleware.
func NewTimeout(d time.Duration) *Timeout {
	return &Timeout{duration: d}
}

func (t *Timeout) Name() string { return "timeout" }

// Wrap implements Wrapper.
func (t *Timeout) Wrap(next Dispatcher) Dispatcher {
	return func(ctx context.Context, req *Request) (*Response, error) {
		return resilience.WithTimeout(ctx, t.duration, func(ctx context.Context) (*Response, error) {
			return next(ctx, req)
		})
	}
}
