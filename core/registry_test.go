package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

type echoInput struct {
	Msg string `json:"msg"`
}

func newEchoHandler() Handler {
	return Typed("Echoes its input", nil, func(_ context.Context, in echoInput) (echoInput, error) {
		return in, nil
	})
}

func TestRegistry_RegisterAndDispatch(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("echo", newEchoHandler()); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	out, err := registry.Dispatch(context.Background(), "echo", []byte(`{"msg":"hi"}`))
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if string(out) != `{"msg":"hi"}` {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("echo", newEchoHandler()); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	err := registry.Register("echo", newEchoHandler())
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error for duplicate, got %v", err)
	}
	if registry.Len() != 1 {
		t.Errorf("duplicate registration must not overwrite, len = %d", registry.Len())
	}
}

func TestRegistry_NameValidation(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register("", newEchoHandler()); !errors.Is(err, ErrValidation) {
		t.Errorf("empty name should fail validation, got %v", err)
	}

	long := strings.Repeat("a", MaxToolNameLength+1)
	if err := registry.Register(long, newEchoHandler()); !errors.Is(err, ErrValidation) {
		t.Errorf("overlong name should fail validation, got %v", err)
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Dispatch(context.Background(), "x", []byte(`{}`))
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected tool not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "x") {
		t.Errorf("error should name the missing tool: %v", err)
	}
}

func TestRegistry_RegisterAfterPublish(t *testing.T) {
	registry := NewRegistry()
	registry.Publish()

	if err := registry.Register("late", newEchoHandler()); !errors.Is(err, ErrValidation) {
		t.Errorf("registration after publish should fail, got %v", err)
	}
}

func TestRegistry_BadPayload(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("echo", newEchoHandler()); err != nil {
		t.Fatal(err)
	}

	_, err := registry.Dispatch(context.Background(), "echo", []byte(`{"msg":`))
	var unified *Error
	if !errors.As(err, &unified) || unified.Kind != KindSerialization {
		t.Errorf("expected serialization error, got %v", err)
	}
}

func TestRegistry_ConcurrentDispatch(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register("echo", newEchoHandler()); err != nil {
		t.Fatal(err)
	}
	registry.Publish()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := registry.Dispatch(context.Background(), "echo", []byte(`{"msg":"go"}`))
			if err != nil || string(out) != `{"msg":"go"}` {
				t.Errorf("concurrent dispatch: out=%s err=%v", out, err)
			}
		}()
	}
	wg.Wait()
}

func TestRegistry_Definitions(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"one", "two", "three"} {
		if err := registry.Register(name, newEchoHandler()); err != nil {
			t.Fatal(err)
		}
	}

	definitions := registry.Definitions()
	if len(definitions) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(definitions))
	}
	for i, want := range []string{"one", "two", "three"} {
		if definitions[i].Name != want {
			t.Errorf("definition %d = %s, want %s", i, definitions[i].Name, want)
		}
		if definitions[i].InputSchema == nil {
			t.Errorf("definition %s missing schema", want)
		}
	}
}
