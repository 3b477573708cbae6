package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/termfx/pforge/core"
)

// RetryPolicy controls retry-with-backoff behavior. Attempt k (zero-based)
// sleeps min(InitialBackoff·Multiplier^k, MaxBackoff) plus a random jitter
// in [0, Jitter) before the next try.
type RetryPolicy struct {
	MaxAttempts    int           `json:"max_attempts,omitempty"`
	InitialBackoff time.Duration `json:"initial_backoff,omitempty"`
	MaxBackoff     time.Duration `json:"max_backoff,omitempty"`
	Multiplier     float64       `json:"multiplier,omitempty"`
	Jitter         time.Duration `json:"jitter,omitempty"`
}

// DefaultRetryPolicy returns the retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         50 * time.Millisecond,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultRetryPolicy().InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultRetryPolicy().MaxBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// BackoffFor computes the sleep before the (attempt+1)-th try. The result
// never exceeds MaxBackoff + Jitter.
func (p RetryPolicy) BackoffFor(attempt int) time.Duration {
	base := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	if base > float64(p.MaxBackoff) {
		base = float64(p.MaxBackoff)
	}
	backoff := time.Duration(base)
	if p.Jitter > 0 {
		backoff += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return backoff
}

// Retryable reports whether an error is worth retrying. Timeouts and I/O
// failures are transient; validation, serialization, unknown tools, config
// errors, and open circuits are not — retrying a short-circuit would defeat
// the breaker.
func Retryable(err error) bool {
	switch core.KindOf(err) {
	case core.KindTimeout, core.KindIO:
		return true
	default:
		return false
	}
}

// Do runs op under the policy, sleeping the computed backoff between
// attempts. Non-retryable errors return immediately; an exhausted policy
// yields a Handler error preserving the last underlying failure.
func Do[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	p := policy.normalized()

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, core.AsError(ctx.Err())
			case <-time.After(p.BackoffFor(attempt - 1)):
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !Retryable(err) {
			return zero, core.AsError(err)
		}
	}

	return zero, core.Wrap(core.KindHandler, "max retries exceeded", lastErr)
}

// Retry is the value-free form of Do.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
