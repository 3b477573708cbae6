package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/termfx/pforge/core"
)

// RateLimit caps the dispatch rate with a shared token bucket. Rejected
// requests fail before the handler runs.
type RateLimit struct {
	Nop
	limiter *rate.Limiter
}

// NewRateLimit creates a limiter admitting rps requests per second with the
// given burst.
func NewRateLimit(rps float64, burst int) *RateLimit {
	return &RateLimit{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimit) Name() string { return "rate_limit" }

func (r *RateLimit) Before(_ context.Context, req *Request) (*Request, error) {
	if !r.limiter.Allow() {
		return nil, core.Errorf(core.KindHandler, "rate limit exceeded for tool %q", req.Tool)
	}
	return req, nil
}
