package bridge

import (
	"context"
	"strings"
	"testing"

	"github.com/termfx/pforge/core"
	"github.com/termfx/pforge/mcp"
)

func installEcho(t *testing.T) {
	t.Helper()
	SetDispatcher(func(_ context.Context, name string, payload []byte) ([]byte, error) {
		if name != "echo" {
			return nil, core.Errorf(core.KindToolNotFound, "tool not found: %s", name)
		}
		return payload, nil
	})
	t.Cleanup(func() { SetDispatcher(nil) })
}

func TestExecute_RoundTrip(t *testing.T) {
	installEcho(t)

	result := Execute("echo", []byte(`{"msg":"yo"}`))
	if result.Code != 0 {
		t.Fatalf("code = %d, err = %s", result.Code, result.Err)
	}
	if string(result.Data) != `{"msg":"yo"}` {
		t.Errorf("data = %s", result.Data)
	}
	if result.Err != "" {
		t.Errorf("success implies empty error, got %q", result.Err)
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	installEcho(t)

	result := Execute("ghost", []byte(`{}`))
	if result.Code == 0 {
		t.Fatal("expected non-zero status")
	}
	if !strings.Contains(result.Err, "ghost") {
		t.Errorf("error should name the tool: %q", result.Err)
	}
}

func TestExecute_NameValidation(t *testing.T) {
	installEcho(t)

	if result := Execute("", nil); result.Code == 0 || result.Err == "" {
		t.Error("empty name must fail with a message")
	}

	long := strings.Repeat("x", core.MaxToolNameLength+1)
	if result := Execute(long, nil); result.Code == 0 {
		t.Error("overlong name must fail")
	}
}

func TestExecute_NoDispatcher(t *testing.T) {
	SetDispatcher(nil)

	result := Execute("echo", nil)
	if result.Code == 0 {
		t.Fatal("expected failure without a dispatcher")
	}
	if !strings.Contains(result.Err, "no dispatcher") {
		t.Errorf("err = %q", result.Err)
	}
}

func TestExecute_PanicConverted(t *testing.T) {
	SetDispatcher(func(context.Context, string, []byte) ([]byte, error) {
		panic("handler went sideways")
	})
	t.Cleanup(func() { SetDispatcher(nil) })

	result := Execute("echo", []byte(`{}`))
	if result.Code == 0 {
		t.Fatal("panic must convert to an error result")
	}
	if !strings.Contains(result.Err, "panic") {
		t.Errorf("err = %q", result.Err)
	}
}

func TestExecute_StatusCodesStable(t *testing.T) {
	kinds := map[core.Kind]int32{
		core.KindToolNotFound:  1,
		core.KindValidation:    2,
		core.KindSerialization: 3,
		core.KindIO:            4,
		core.KindTimeout:       5,
		core.KindCircuitOpen:   6,
		core.KindConfig:        7,
		core.KindHandler:       8,
	}
	for kind, want := range kinds {
		kindErr := core.Errorf(kind, "x")
		SetDispatcher(func(context.Context, string, []byte) ([]byte, error) {
			return nil, kindErr
		})
		if result := Execute("any", nil); result.Code != want {
			t.Errorf("kind %s → code %d, want %d", kind, result.Code, want)
		}
	}
	SetDispatcher(nil)
}

func TestConfigure_BuildsDispatcher(t *testing.T) {
	cfg := mcp.DefaultConfig()
	cfg.Tools = []mcp.ToolConfig{{
		Name:   "echo",
		Flavor: mcp.FlavorNative,
		Handler: core.Typed("echo", nil, func(_ context.Context, in map[string]any) (map[string]any, error) {
			return in, nil
		}),
	}}
	if err := Configure(cfg); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { SetDispatcher(nil) })

	result := Execute("echo", []byte(`{"msg":"yo"}`))
	if result.Code != 0 {
		t.Fatalf("code = %d err = %s", result.Code, result.Err)
	}
	if string(result.Data) != `{"msg":"yo"}` {
		t.Errorf("data = %s", result.Data)
	}
}

func TestVersion(t *testing.T) {
	version := Version()
	if strings.Count(version, ".") != 2 {
		t.Errorf("version %q should be MAJOR.MINOR.PATCH", version)
	}
}
