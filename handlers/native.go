// Package handlers implements the four tool flavors — native, CLI, HTTP,
// and pipeline — behind the single erased dispatch contract of core.Handler.
package handlers

import (
	"context"
	"encoding/json"

	"github.com/termfx/pforge/core"
)

type nativeHandler struct {
	description string
	schema      map[string]any
	fn          core.DynamicFunc
}

// NewNative wraps a dynamically-typed handler function. Statically-typed
// handlers should use core.Typed directly; this flavor adds no semantics
// beyond serializing the returned value.
func NewNative(description string, schema map[string]any, fn core.DynamicFunc) core.Handler {
	return &nativeHandler{
		description: description,
		schema:      core.NormalizeSchema(schema),
		fn:          fn,
	}
}

func (h *nativeHandler) Dispatch(ctx context.Context, input []byte) ([]byte, error) {
	result, err := h.fn(ctx, input)
	if err != nil {
		return nil, core.AsError(err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, core.FromSerialization(err)
	}
	return data, nil
}

func (h *nativeHandler) Schema() map[string]any {
	return h.schema
}

func (h *nativeHandler) Description() string {
	return h.description
}
