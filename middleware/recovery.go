package middleware

import (
	"context"
	"errors"
	"sync"

	"github.com/termfx/pforge/core"
	"github.com/termfx/pforge/resilience"
)

// Recovery guards each tool with its own circuit breaker and records error
// kinds into a shared tracker. While a breaker is open, dispatches for that
// tool short-circuit with CircuitOpen without invoking the handler.
type Recovery struct {
	Nop
	cfg     resilience.BreakerConfig
	tracker *resilience.ErrorTracker

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewRecovery creates the recovery middleware. A nil tracker gets a fresh
// one.
func NewRecovery(cfg resilience.BreakerConfig, tracker *resilience.ErrorTracker) *Recovery {
	if tracker == nil {
		tracker = resilience.NewErrorTracker()
	}
	return &Recovery{
		cfg:      cfg,
		tracker:  tracker,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

func (r *Recovery) Name() string { return "recovery" }

// Tracker exposes the error counters for observability.
func (r *Recovery) Tracker() *resilience.ErrorTracker {
	return r.tracker
}

// Breaker returns the breaker guarding one tool, creating it on first use.
func (r *Recovery) Breaker(tool string) *resilience.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	breaker, ok := r.breakers[tool]
	if !ok {
		breaker = resilience.NewCircuitBreaker(r.cfg)
		r.breakers[tool] = breaker
	}
	return breaker
}

func (r *Recovery) Before(_ context.Context, req *Request) (*Request, error) {
	if !r.Breaker(req.Tool).Allow() {
		return nil, core.Errorf(core.KindCircuitOpen, "circuit open for tool %q", req.Tool)
	}
	return req, nil
}

func (r *Recovery) After(_ context.Context, req *Request, resp *Response) (*Response, error) {
	r.Breaker(req.Tool).RecordSuccess()
	return resp, nil
}

func (r *Recovery) OnError(_ context.Context, req *Request, err error) (*Response, error) {
	r.tracker.Record(err)
	// A short-circuit is the breaker speaking, not new evidence against
	// the tool.
	if !errors.Is(err, core.ErrCircuitOpen) {
		r.Breaker(req.Tool).RecordFailure()
	}
	return nil, err
}
