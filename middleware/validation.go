package middleware

import (
	"context"
	"encoding/json"

	"github.com/termfx/pforge/core"
)

// Validation rejects dispatches whose payload is missing required
// top-level fields, before the handler ever runs.
type Validation struct {
	Nop
	// required maps tool name to its mandatory top-level fields.
	required map[string][]string
}

// NewValidation creates the input validation middleware.
func NewValidation(required map[string][]string) *Validation {
	if required == nil {
		required = make(map[string][]string)
	}
	return &Validation{required: required}
}

// Require adds mandatory fields for one tool.
func (v *Validation) Require(tool string, fields ...string) {
	v.required[tool] = append(v.required[tool], fields...)
}

func (v *Validation) Name() string { return "validation" }

func (v *Validation) Before(_ context.Context, req *Request) (*Request, error) {
	fields := v.required[req.Tool]
	if len(fields) == 0 {
		return req, nil
	}

	var payload map[string]json.RawMessage
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return nil, core.FromSerialization(err)
		}
	}

	for _, field := range fields {
		if _, ok := payload[field]; !ok {
			return nil, core.Errorf(core.KindValidation, "tool %q requires field %q", req.Tool, field)
		}
	}
	return req, nil
}
