package resources

import (
	"context"
	"errors"
	"testing"

	"github.com/termfx/pforge/core"
)

func staticContent(text string) ContentFunc {
	return func(context.Context, map[string]string) (string, error) {
		return text, nil
	}
}

func TestResolve_SegmentPlaceholder(t *testing.T) {
	manager := NewManager()
	err := manager.Register(Resource{
		Name:        "user files",
		URITemplate: "file://{user}/profile",
		Content:     staticContent("profile"),
	})
	if err != nil {
		t.Fatal(err)
	}

	resource, bindings, err := manager.Resolve("file://alice/profile")
	if err != nil {
		t.Fatal(err)
	}
	if resource.Name != "user files" {
		t.Errorf("resolved %s", resource.Name)
	}
	if bindings["user"] != "alice" {
		t.Errorf("bindings = %v", bindings)
	}

	// A segment placeholder must not swallow slashes.
	if _, _, err := manager.Resolve("file://alice/extra/profile"); !errors.Is(err, core.ErrToolNotFound) {
		t.Errorf("segment placeholder matched across '/': %v", err)
	}
}

func TestResolve_TrailingPlaceholderIsGreedy(t *testing.T) {
	manager := NewManager()
	if err := manager.Register(Resource{
		Name:        "raw",
		URITemplate: "docs://{path}",
		Content:     staticContent("doc"),
	}); err != nil {
		t.Fatal(err)
	}

	_, bindings, err := manager.Resolve("docs://guides/setup/intro.md")
	if err != nil {
		t.Fatal(err)
	}
	if bindings["path"] != "guides/setup/intro.md" {
		t.Errorf("trailing placeholder should be greedy, got %q", bindings["path"])
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	manager := NewManager()
	if err := manager.Register(Resource{
		Name:        "specific",
		URITemplate: "data://{id}",
		Content:     staticContent("first"),
	}); err != nil {
		t.Fatal(err)
	}
	if err := manager.Register(Resource{
		Name:        "general",
		URITemplate: "data://{anything}",
		Content:     staticContent("second"),
	}); err != nil {
		t.Fatal(err)
	}

	resource, _, err := manager.Resolve("data://42")
	if err != nil {
		t.Fatal(err)
	}
	if resource.Name != "specific" {
		t.Errorf("insertion order must decide ambiguous matches, got %s", resource.Name)
	}
}

func TestResolve_Unmatched(t *testing.T) {
	manager := NewManager()
	_, _, err := manager.Resolve("nope://anywhere")
	if !errors.Is(err, core.ErrToolNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRead_ContentAndBindings(t *testing.T) {
	manager := NewManager()
	err := manager.Register(Resource{
		Name:        "echo path",
		URITemplate: "echo://{what}",
		MimeType:    "text/plain",
		Content: func(_ context.Context, bindings map[string]string) (string, error) {
			return "you asked for " + bindings["what"], nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	content, resource, err := manager.Read(context.Background(), "echo://thing")
	if err != nil {
		t.Fatal(err)
	}
	if content != "you asked for thing" {
		t.Errorf("content = %q", content)
	}
	if resource.MimeType != "text/plain" {
		t.Errorf("mime = %q", resource.MimeType)
	}
}

func TestRegister_DefaultCapability(t *testing.T) {
	manager := NewManager()
	if err := manager.Register(Resource{
		Name:        "r",
		URITemplate: "r://x",
		Content:     staticContent(""),
	}); err != nil {
		t.Fatal(err)
	}

	definitions := manager.Definitions()
	if len(definitions) != 1 || len(definitions[0].Caps) != 1 || definitions[0].Caps[0] != "read" {
		t.Errorf("expected default read capability, got %v", definitions)
	}
}

func TestBuiltinResources(t *testing.T) {
	registry := core.NewRegistry()
	manager := NewManager()
	if err := manager.Register(NewToolListResource(registry)); err != nil {
		t.Fatal(err)
	}
	if err := manager.Register(NewSystemStatusResource()); err != nil {
		t.Fatal(err)
	}

	content, _, err := manager.Read(context.Background(), "pforge://tools")
	if err != nil {
		t.Fatal(err)
	}
	if content == "" {
		t.Error("tool list resource should render")
	}

	status, _, err := manager.Read(context.Background(), "system://status")
	if err != nil {
		t.Fatal(err)
	}
	if status == "" {
		t.Error("system status resource should render")
	}
}
