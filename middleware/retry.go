package middleware

import (
	"context"

	"github.com/termfx/pforge/resilience"
)

// Retry repeats the inner dispatch under a backoff policy. Only transient
// error kinds are retried; a CircuitOpen result is returned as-is so the
// breaker's decision stands.
type Retry struct {
	Nop
	policy resilience.RetryPolicy
}

// NewRetry creates the retry middleware.
func NewRetry(policy resilience.RetryPolicy) *Retry {
	return &Retry{policy: policy}
}

func (r *Retry) Name() string { return "retry" }

// Wrap implements Wrapper.
func (r *Retry) Wrap(next Dispatcher) Dispatcher {
	return func(ctx context.Context, req *Request) (*Response, error) {
		return resilience.Do(ctx, r.policy, func(ctx context.Context) (*Response, error) {
			return next(ctx, req)
		})
	}
}
