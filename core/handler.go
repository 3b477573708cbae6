package core

import (
	"context"
	"encoding/json"
)

// Handler is the erased dispatch contract stored by the registry. Input and
// output travel as JSON byte payloads; implementations own their schema.
// Handlers must be safe for concurrent use.
type Handler interface {
	Dispatch(ctx context.Context, input []byte) ([]byte, error)
	Schema() map[string]any
	Description() string
}

// DynamicFunc handles a tool call with raw JSON parameters. It is the
// loosely-typed counterpart of Typed for handlers whose shape is only known
// at runtime (the native flavor's NewNative builds on it).
type DynamicFunc func(ctx context.Context, params json.RawMessage) (any, error)

type typedHandler[I, O any] struct {
	description string
	schema      map[string]any
	fn          func(ctx context.Context, input I) (O, error)
}

// Typed adapts a statically-typed handler function into the erased Handler
// contract. The adapter deserializes the input, invokes fn, and serializes
// the output; failures at any step surface as unified errors. When schema
// is nil one is inferred from the input type.
func Typed[I, O any](description string, schema map[string]any, fn func(ctx context.Context, input I) (O, error)) Handler {
	if schema == nil {
		schema = SchemaFor[I]()
	}
	return &typedHandler[I, O]{
		description: description,
		schema:      NormalizeSchema(schema),
		fn:          fn,
	}
}

func (h *typedHandler[I, O]) Dispatch(ctx context.Context, input []byte) ([]byte, error) {
	var in I
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, FromSerialization(err)
		}
	}

	out, err := h.fn(ctx, in)
	if err != nil {
		return nil, AsError(err)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, FromSerialization(err)
	}
	return data, nil
}

func (h *typedHandler[I, O]) Schema() map[string]any {
	return h.schema
}

func (h *typedHandler[I, O]) Description() string {
	return h.description
}
