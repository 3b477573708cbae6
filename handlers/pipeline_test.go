package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/termfx/pforge/core"
)

func newPipelineRegistry(t *testing.T) *core.Registry {
	t.Helper()
	registry := core.NewRegistry()

	echo := core.Typed("echo", nil, func(_ context.Context, in map[string]any) (map[string]any, error) {
		return in, nil
	})
	if err := registry.Register("echo", echo); err != nil {
		t.Fatal(err)
	}

	fail := core.Typed("always fails", nil, func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return nil, core.Errorf(core.KindHandler, "deliberate failure")
	})
	if err := registry.Register("fail", fail); err != nil {
		t.Fatal(err)
	}
	return registry
}

func dispatchPipeline(t *testing.T, cfg PipelineConfig, registry *core.Registry, input string) map[string]any {
	t.Helper()
	handler, err := NewPipeline(cfg, registry)
	if err != nil {
		t.Fatal(err)
	}
	out, err := handler.Dispatch(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("pipeline dispatch failed: %v", err)
	}
	var env map[string]any
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("pipeline output is not an object: %v", err)
	}
	return env
}

func TestPipeline_ChainedSteps(t *testing.T) {
	registry := newPipelineRegistry(t)
	cfg := PipelineConfig{
		Steps: []PipelineStep{
			{Tool: "echo", Input: map[string]any{"msg": "{in.x}"}, OutputVar: "a"},
			{Tool: "echo", Input: map[string]any{"msg": "{a.msg}"}, OutputVar: "b"},
		},
	}

	env := dispatchPipeline(t, cfg, registry, `{"x":"hi"}`)

	a := env["a"].(map[string]any)
	b := env["b"].(map[string]any)
	if a["msg"] != "hi" || b["msg"] != "hi" {
		t.Errorf("environment bindings wrong: a=%v b=%v", a, b)
	}
}

func TestPipeline_OutputVarDefaultsToToolName(t *testing.T) {
	registry := newPipelineRegistry(t)
	cfg := PipelineConfig{
		Steps: []PipelineStep{
			{Tool: "echo", Input: map[string]any{"msg": "x"}},
		},
	}

	env := dispatchPipeline(t, cfg, registry, `{}`)
	if _, ok := env["echo"]; !ok {
		t.Error("step output should bind under the tool name by default")
	}
}

func TestPipeline_FailFastPropagates(t *testing.T) {
	registry := newPipelineRegistry(t)
	handler, err := NewPipeline(PipelineConfig{
		Steps: []PipelineStep{
			{Tool: "fail", OnError: FailFast},
			{Tool: "echo", Input: map[string]any{"msg": "never"}, OutputVar: "after"},
		},
	}, registry)
	if err != nil {
		t.Fatal(err)
	}

	_, err = handler.Dispatch(context.Background(), []byte(`{}`))
	if core.KindOf(err) != core.KindHandler {
		t.Errorf("expected the step failure to propagate, got %v", err)
	}
}

func TestPipeline_ContinueRecordsError(t *testing.T) {
	registry := newPipelineRegistry(t)
	cfg := PipelineConfig{
		Steps: []PipelineStep{
			{Tool: "fail", OutputVar: "broken", OnError: Continue},
			{Tool: "echo", Input: map[string]any{"msg": "still running"}, OutputVar: "after"},
		},
	}

	env := dispatchPipeline(t, cfg, registry, `{}`)

	broken := env["broken"].(map[string]any)
	if broken["error"] == "" {
		t.Error("continue policy should record the step error")
	}
	after := env["after"].(map[string]any)
	if after["msg"] != "still running" {
		t.Error("later steps must run under the continue policy")
	}
}

func TestPipeline_ConditionSkipsStep(t *testing.T) {
	registry := newPipelineRegistry(t)
	cfg := PipelineConfig{
		Steps: []PipelineStep{
			{Tool: "echo", Input: map[string]any{"ok": true}, OutputVar: "a"},
			{Tool: "echo", Input: map[string]any{"msg": "ran"}, Condition: `a.ok == false`, OutputVar: "skipped"},
			{Tool: "echo", Input: map[string]any{"msg": "ran"}, Condition: `a.ok == true`, OutputVar: "taken"},
		},
	}

	env := dispatchPipeline(t, cfg, registry, `{}`)
	if _, ok := env["skipped"]; ok {
		t.Error("false condition must skip the step")
	}
	if _, ok := env["taken"]; !ok {
		t.Error("true condition must run the step")
	}
}

func TestPipeline_OutputSelection(t *testing.T) {
	registry := newPipelineRegistry(t)
	handler, err := NewPipeline(PipelineConfig{
		Steps: []PipelineStep{
			{Tool: "echo", Input: map[string]any{"msg": "{in.x}"}, OutputVar: "a"},
		},
		Output: "a.msg",
	}, registry)
	if err != nil {
		t.Fatal(err)
	}

	out, err := handler.Dispatch(context.Background(), []byte(`{"x":"selected"}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"selected"` {
		t.Errorf("output selection got %s", out)
	}
}

func TestPipeline_WholeTokenPreservesType(t *testing.T) {
	registry := newPipelineRegistry(t)
	cfg := PipelineConfig{
		Steps: []PipelineStep{
			{Tool: "echo", Input: map[string]any{"n": 7, "nested": map[string]any{"deep": true}}, OutputVar: "a"},
			{Tool: "echo", Input: map[string]any{"copy": "{a.n}", "obj": "{a.nested}"}, OutputVar: "b"},
		},
	}

	env := dispatchPipeline(t, cfg, registry, `{}`)
	b := env["b"].(map[string]any)
	if b["copy"] != float64(7) {
		t.Errorf("whole-token reference should keep the number type, got %T %v", b["copy"], b["copy"])
	}
	if nested, ok := b["obj"].(map[string]any); !ok || nested["deep"] != true {
		t.Errorf("whole-token reference should keep objects, got %v", b["obj"])
	}
}

func TestPipeline_UnknownToolFails(t *testing.T) {
	registry := newPipelineRegistry(t)
	handler, err := NewPipeline(PipelineConfig{
		Steps: []PipelineStep{{Tool: "ghost"}},
	}, registry)
	if err != nil {
		t.Fatal(err)
	}

	_, err = handler.Dispatch(context.Background(), []byte(`{}`))
	if core.KindOf(err) != core.KindToolNotFound {
		t.Errorf("step tool must resolve against the registry, got %v", err)
	}
}

func TestPipeline_RequiresSteps(t *testing.T) {
	if _, err := NewPipeline(PipelineConfig{}, nil); core.KindOf(err) != core.KindConfig {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestEvalCondition(t *testing.T) {
	env := map[string]any{
		"a": map[string]any{"msg": "hi", "ok": true, "count": float64(3)},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`a.ok == true`, true},
		{`a.ok == false`, false},
		{`a.ok != false`, true},
		{`a.msg == "hi"`, true},
		{`a.msg == "bye"`, false},
		{`a.count == 3`, true},
		{`a.msg`, true},
		{`a.missing`, false},
		{`!a.missing`, true},
		{`!a.ok`, false},
	}
	for _, tt := range tests {
		if got := evalCondition(tt.expr, env); got != tt.want {
			t.Errorf("evalCondition(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}
