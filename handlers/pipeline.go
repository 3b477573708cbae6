package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/termfx/pforge/core"
)

// StepErrorPolicy decides what a failing step does to the rest of the
// pipeline.
type StepErrorPolicy string

const (
	FailFast StepErrorPolicy = "fail_fast"
	Continue StepErrorPolicy = "continue"
)

// PipelineStep names a prior tool and how to feed it. Input values may
// reference earlier step outputs with {name.field} templates; a value that
// is exactly one template token keeps the referenced value's type.
type PipelineStep struct {
	Tool string `json:"tool"`
	// Input is the step's input template. Nil dispatches an empty object.
	Input map[string]any `json:"input,omitempty"`
	// Condition is a boolean expression over the environment, e.g.
	// "a.ok == true" or a bare truthiness path "a.msg". Empty always runs.
	Condition string `json:"condition,omitempty"`
	// OutputVar names the binding for the step's output; defaults to the
	// tool name.
	OutputVar string          `json:"output_var,omitempty"`
	OnError   StepErrorPolicy `json:"on_error,omitempty"`
}

// PipelineConfig describes a composed tool.
type PipelineConfig struct {
	Steps []PipelineStep
	// Output optionally selects a dotted path of the final environment as
	// the pipeline result; empty returns the whole environment.
	Output string

	Description string
	Schema      map[string]any
}

// Dispatcher resolves pipeline step tools. The registry used for dispatch
// satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, payload []byte) ([]byte, error)
}

type pipelineHandler struct {
	cfg        PipelineConfig
	dispatcher Dispatcher
	schema     map[string]any
}

// NewPipeline creates a handler that runs the configured steps in order
// against the same registry used for top-level dispatch. Step outputs are
// bound only after they complete, so a pipeline cannot form a runtime cycle
// within a single invocation.
func NewPipeline(cfg PipelineConfig, dispatcher Dispatcher) (core.Handler, error) {
	if len(cfg.Steps) == 0 {
		return nil, core.Errorf(core.KindConfig, "pipeline requires at least one step")
	}
	for i, step := range cfg.Steps {
		if step.Tool == "" {
			return nil, core.Errorf(core.KindConfig, "pipeline step %d has no tool", i)
		}
	}
	return &pipelineHandler{cfg: cfg, dispatcher: dispatcher, schema: core.NormalizeSchema(cfg.Schema)}, nil
}

func (h *pipelineHandler) Dispatch(ctx context.Context, input []byte) ([]byte, error) {
	fields, err := decodeInputObject(input)
	if err != nil {
		return nil, err
	}

	env := map[string]any{"in": fields}

	for _, step := range h.cfg.Steps {
		if step.Condition != "" && !evalCondition(step.Condition, env) {
			continue
		}

		payload, err := h.renderStepInput(step, env)
		if err != nil {
			return nil, err
		}

		outputVar := step.OutputVar
		if outputVar == "" {
			outputVar = step.Tool
		}

		out, err := h.dispatcher.Dispatch(ctx, step.Tool, payload)
		if err != nil {
			if step.OnError == Continue {
				env[outputVar] = map[string]any{"error": core.AsError(err).Message}
				continue
			}
			return nil, core.AsError(err)
		}

		var decoded any
		if err := json.Unmarshal(out, &decoded); err != nil {
			return nil, core.FromSerialization(err)
		}
		env[outputVar] = decoded
	}

	result := any(env)
	if h.cfg.Output != "" {
		selected, ok := lookupPath(env, h.cfg.Output)
		if !ok {
			return nil, core.Errorf(core.KindValidation, "pipeline output %q not bound", h.cfg.Output)
		}
		result = selected
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, core.FromSerialization(err)
	}
	return data, nil
}

// renderStepInput interpolates the step's input template from the
// environment. A string that is exactly one {path} token takes the bound
// value verbatim; mixed strings interpolate textually.
func (h *pipelineHandler) renderStepInput(step PipelineStep, env map[string]any) ([]byte, error) {
	if step.Input == nil {
		return []byte("{}"), nil
	}
	rendered, err := renderValue(step.Input, env)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(rendered)
	if err != nil {
		return nil, core.FromSerialization(err)
	}
	return payload, nil
}

func renderValue(value any, env map[string]any) (any, error) {
	switch typed := value.(type) {
	case string:
		if match := placeholderPattern.FindStringSubmatch(typed); match != nil && match[0] == typed {
			bound, ok := lookupPath(env, match[1])
			if !ok {
				return nil, core.Errorf(core.KindValidation, "unbound pipeline reference %q", typed)
			}
			return bound, nil
		}
		return renderTemplate(typed, env)
	case map[string]any:
		rendered := make(map[string]any, len(typed))
		for key, nested := range typed {
			out, err := renderValue(nested, env)
			if err != nil {
				return nil, err
			}
			rendered[key] = out
		}
		return rendered, nil
	case []any:
		rendered := make([]any, len(typed))
		for i, nested := range typed {
			out, err := renderValue(nested, env)
			if err != nil {
				return nil, err
			}
			rendered[i] = out
		}
		return rendered, nil
	default:
		return value, nil
	}
}

// evalCondition evaluates a minimal boolean expression over the
// environment: "path == literal", "path != literal", or a bare path whose
// bound value is tested for truthiness. Unresolvable paths are false.
func evalCondition(expr string, env map[string]any) bool {
	expr = strings.TrimSpace(expr)

	if op := findComparison(expr); op != "" {
		parts := strings.SplitN(expr, op, 2)
		left, ok := lookupPath(env, strings.TrimSpace(parts[0]))
		if !ok {
			return false
		}
		right := parseLiteral(strings.TrimSpace(parts[1]))
		equal := literalEqual(left, right)
		if op == "!=" {
			return !equal
		}
		return equal
	}

	negate := false
	if strings.HasPrefix(expr, "!") {
		negate = true
		expr = strings.TrimSpace(expr[1:])
	}
	value, ok := lookupPath(env, expr)
	truthy := ok && isTruthy(value)
	if negate {
		return !truthy
	}
	return truthy
}

func findComparison(expr string) string {
	if strings.Contains(expr, "!=") {
		return "!="
	}
	if strings.Contains(expr, "==") {
		return "=="
	}
	return ""
}

func parseLiteral(raw string) any {
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		return raw[1 : len(raw)-1]
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func literalEqual(left, right any) bool {
	if lf, ok := left.(float64); ok {
		if rf, ok := right.(float64); ok {
			return lf == rf
		}
	}
	return left == right
}

func isTruthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	case float64:
		return typed != 0
	case map[string]any:
		return len(typed) > 0
	case []any:
		return len(typed) > 0
	default:
		return true
	}
}

func (h *pipelineHandler) Schema() map[string]any {
	return h.schema
}

func (h *pipelineHandler) Description() string {
	return h.cfg.Description
}
