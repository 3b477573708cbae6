package resilience

import (
	"sync"

	"github.com/termfx/pforge/core"
)

// ErrorTracker counts errors by kind for observability. Safe for concurrent
// use; recovery middleware feeds it on every failed dispatch.
type ErrorTracker struct {
	mu     sync.Mutex
	counts map[core.Kind]uint64
	total  uint64
}

// NewErrorTracker creates an empty tracker.
func NewErrorTracker() *ErrorTracker {
	return &ErrorTracker{counts: make(map[core.Kind]uint64)}
}

// Record classifies err and increments its kind counter. Nil errors are
// ignored.
func (t *ErrorTracker) Record(err error) {
	if err == nil {
		return
	}
	kind := core.KindOf(err)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[kind]++
	t.total++
}

// Total returns the number of recorded errors.
func (t *ErrorTracker) Total() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Count returns the number of recorded errors of one kind.
func (t *ErrorTracker) Count(kind core.Kind) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[kind]
}

// Counts returns a snapshot of all per-kind counters.
func (t *ErrorTracker) Counts() map[core.Kind]uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make(map[core.Kind]uint64, len(t.counts))
	for kind, count := range t.counts {
		snapshot[kind] = count
	}
	return snapshot
}
