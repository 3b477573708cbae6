// Package resilience provides the fault-tolerance primitives wrapped around
// tool dispatch: a circuit breaker, retry with exponential backoff, a
// cooperative timeout wrapper, and an error tracker.
package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/termfx/pforge/core"
)

// BreakerState is the circuit breaker's position in its state machine.
type BreakerState int32

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the state name for logs and metrics.
func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerConfig parameterizes a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold opens the breaker after this many consecutive
	// failures in the closed state.
	FailureThreshold uint32 `json:"failure_threshold,omitempty"`
	// SuccessThreshold closes the breaker after this many consecutive
	// successes in the half-open state.
	SuccessThreshold uint32 `json:"success_threshold,omitempty"`
	// ResetTimeout is the cool-off before an open breaker lets a probe
	// call through.
	ResetTimeout time.Duration `json:"reset_timeout,omitempty"`
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
	}
}

// CircuitBreaker short-circuits calls to a failing dependency. Transitions
// follow closed → open → half-open → {closed|open}. Compound transitions
// hold a short mutex; the current state is readable lock-free.
type CircuitBreaker struct {
	cfg BreakerConfig

	state atomic.Int32

	mu          sync.Mutex
	failures    uint32
	successes   uint32
	lastFailure time.Time
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerConfig().ResetTimeout
	}
	return &CircuitBreaker{cfg: cfg}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() BreakerState {
	return BreakerState(b.state.Load())
}

// Allow reports whether a call may proceed. An open breaker whose cool-off
// has elapsed transitions to half-open and admits the probe.
func (b *CircuitBreaker) Allow() bool {
	if BreakerState(b.state.Load()) != StateOpen {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if BreakerState(b.state.Load()) != StateOpen {
		return true
	}
	if time.Since(b.lastFailure) < b.cfg.ResetTimeout {
		return false
	}
	b.successes = 0
	b.state.Store(int32(StateHalfOpen))
	return true
}

// RecordSuccess notes a successful call.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch BreakerState(b.state.Load()) {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.failures = 0
			b.successes = 0
			b.state.Store(int32(StateClosed))
		}
	case StateClosed:
		b.failures = 0
	}
}

// RecordFailure notes a failed call.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()
	switch BreakerState(b.state.Load()) {
	case StateHalfOpen:
		b.failures = 0
		b.successes = 0
		b.state.Store(int32(StateOpen))
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state.Store(int32(StateOpen))
		}
	}
}

// Call runs op under the breaker. A rejected call fails with a CircuitOpen
// error without invoking op.
func (b *CircuitBreaker) Call(ctx context.Context, op func(ctx context.Context) error) error {
	if !b.Allow() {
		return core.Errorf(core.KindCircuitOpen, "circuit breaker is open")
	}
	if err := op(ctx); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}
