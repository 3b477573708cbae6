package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/termfx/pforge/core"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix shell utilities")
	}
}

func TestCLI_EchoTemplating(t *testing.T) {
	skipOnWindows(t)

	handler, err := NewCLI(CLIConfig{
		Program: "/bin/echo",
		Args:    []string{"{msg}"},
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := handler.Dispatch(context.Background(), []byte(`{"msg":"hello"}`))
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	var wrapped map[string]string
	if err := json.Unmarshal(out, &wrapped); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if !strings.Contains(wrapped["stdout"], "hello") {
		t.Errorf("expected hello in output, got %q", wrapped["stdout"])
	}
}

func TestCLI_JSONStdoutPassesThrough(t *testing.T) {
	skipOnWindows(t)

	handler, err := NewCLI(CLIConfig{
		Program: "/bin/sh",
		Args:    []string{"-c", `printf '{"answer": 42}'`},
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := handler.Dispatch(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"answer": 42}` {
		t.Errorf("JSON stdout should pass through verbatim, got %s", out)
	}
}

func TestCLI_MissingTemplateField(t *testing.T) {
	handler, err := NewCLI(CLIConfig{
		Program: "/bin/echo",
		Args:    []string{"{msg}"},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = handler.Dispatch(context.Background(), []byte(`{"other":"x"}`))
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected validation error for missing field, got %v", err)
	}
}

func TestCLI_NonZeroExit(t *testing.T) {
	skipOnWindows(t)

	handler, err := NewCLI(CLIConfig{
		Program: "/bin/sh",
		Args:    []string{"-c", "echo broken >&2; exit 2"},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = handler.Dispatch(context.Background(), []byte(`{}`))
	if core.KindOf(err) != core.KindHandler {
		t.Fatalf("expected handler error, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("stderr should be captured: %v", err)
	}
}

func TestCLI_Timeout(t *testing.T) {
	skipOnWindows(t)

	handler, err := NewCLI(CLIConfig{
		Program: "/bin/sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err = handler.Dispatch(context.Background(), []byte(`{}`))
	elapsed := time.Since(start)

	if !errors.Is(err, core.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("timeout took %s; the child was not reaped promptly", elapsed)
	}
}

func TestCLI_StreamingMatchesBuffered(t *testing.T) {
	skipOnWindows(t)

	script := `printf 'one\ntwo\nthree\n'`
	buffered, err := NewCLI(CLIConfig{Program: "/bin/sh", Args: []string{"-c", script}})
	if err != nil {
		t.Fatal(err)
	}
	streaming, err := NewCLI(CLIConfig{Program: "/bin/sh", Args: []string{"-c", script}, Streaming: true})
	if err != nil {
		t.Fatal(err)
	}

	bufOut, err := buffered.Dispatch(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	streamOut, err := streaming.Dispatch(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}

	if string(bufOut) != string(streamOut) {
		t.Errorf("modes must be equivalent at end-of-stream: %s vs %s", bufOut, streamOut)
	}
}

func TestCLI_EnvOverlay(t *testing.T) {
	skipOnWindows(t)

	handler, err := NewCLI(CLIConfig{
		Program: "/bin/sh",
		Args:    []string{"-c", "printf '%s' \"$GREETING\""},
		Env:     map[string]string{"GREETING": "hi there"},
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := handler.Dispatch(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}

	var wrapped map[string]string
	if err := json.Unmarshal(out, &wrapped); err != nil {
		t.Fatal(err)
	}
	if wrapped["stdout"] != "hi there" {
		t.Errorf("env overlay missing: %q", wrapped["stdout"])
	}
}

func TestCLI_RequiresProgram(t *testing.T) {
	if _, err := NewCLI(CLIConfig{}); core.KindOf(err) != core.KindConfig {
		t.Errorf("expected config error, got %v", err)
	}
}
