package core

import (
	"context"
	"sync"
	"sync/atomic"
)

// MaxToolNameLength bounds registered tool names.
const MaxToolNameLength = 64

// Definition describes a registered tool for listing endpoints.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// Registry maps tool names to erased handlers. Registration happens during
// startup; once Publish is called the registry is effectively immutable and
// dispatches are a single read-locked map probe away from their handler.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	ordered   []string
	published atomic.Bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		ordered:  make([]string, 0),
	}
}

// Register adds a name→handler binding. Names must be non-empty, at most
// MaxToolNameLength characters, and unique; registration never silently
// overwrites and is rejected once the registry has been published.
func (r *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return Errorf(KindValidation, "tool name must not be empty")
	}
	if len(name) > MaxToolNameLength {
		return Errorf(KindValidation, "tool name %q exceeds %d characters", name, MaxToolNameLength)
	}
	if handler == nil {
		return Errorf(KindValidation, "tool %q has no handler", name)
	}
	if r.published.Load() {
		return Errorf(KindValidation, "registry is published, cannot register %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return Errorf(KindValidation, "tool %q is already registered", name)
	}
	r.handlers[name] = handler
	r.ordered = append(r.ordered, name)
	return nil
}

// Publish freezes the registry. Subsequent Register calls fail.
func (r *Registry) Publish() {
	r.published.Store(true)
}

// Published reports whether the registry has been frozen.
func (r *Registry) Published() bool {
	return r.published.Load()
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[name]
	return exists
}

// Get retrieves a handler by name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, exists := r.handlers[name]
	return handler, exists
}

// Names returns all tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]string, len(r.ordered))
	copy(result, r.ordered)
	return result
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch resolves a tool and executes it with the given payload. The
// payload is never interpreted here beyond handing it to the handler.
func (r *Registry) Dispatch(ctx context.Context, name string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	handler, exists := r.handlers[name]
	r.mu.RUnlock()

	if !exists {
		return nil, Errorf(KindToolNotFound, "tool not found: %s", name)
	}

	out, err := handler.Dispatch(ctx, payload)
	if err != nil {
		return nil, AsError(err)
	}
	return out, nil
}

// Definitions returns tool metadata in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	definitions := make([]Definition, 0, len(r.ordered))
	for _, name := range r.ordered {
		handler := r.handlers[name]
		definitions = append(definitions, Definition{
			Name:        name,
			Description: handler.Description(),
			InputSchema: handler.Schema(),
		})
	}
	return definitions
}
