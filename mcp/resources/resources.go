// Package resources manages URI-addressable endpoints exposed through
// templates. A {name} placeholder followed by more path matches a single
// segment; a trailing placeholder is greedy. Resolution scans entries in
// insertion order and returns the first match.
package resources

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/termfx/pforge/core"
)

// Capability names one operation a resource supports.
type Capability string

const (
	CapRead      Capability = "read"
	CapWrite     Capability = "write"
	CapList      Capability = "list"
	CapSubscribe Capability = "subscribe"
)

// ContentFunc produces a resource's content for a resolved URI. bindings
// holds the values captured by the template placeholders.
type ContentFunc func(ctx context.Context, bindings map[string]string) (string, error)

// Resource is one registered entry.
type Resource struct {
	Name         string
	URITemplate  string
	Description  string
	MimeType     string
	Capabilities []Capability
	Content      ContentFunc
}

// Definition describes a resource for list endpoints.
type Definition struct {
	URI         string   `json:"uri"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	MimeType    string   `json:"mimeType,omitempty"`
	Caps        []string `json:"capabilities,omitempty"`
}

type compiledResource struct {
	Resource
	pattern *regexp.Regexp
	params  []string
}

// Manager holds registered resources in insertion order.
type Manager struct {
	mu      sync.RWMutex
	entries []compiledResource
}

// NewManager creates an empty resource manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register compiles the entry's URI template and appends it. Templates are
// compiled once; resolution reuses the pattern.
func (m *Manager) Register(resource Resource) error {
	if resource.URITemplate == "" {
		return core.Errorf(core.KindValidation, "resource %q has no URI template", resource.Name)
	}
	pattern, params, err := compileTemplate(resource.URITemplate)
	if err != nil {
		return err
	}
	if len(resource.Capabilities) == 0 {
		resource.Capabilities = []Capability{CapRead}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, compiledResource{
		Resource: resource,
		pattern:  pattern,
		params:   params,
	})
	return nil
}

// Resolve returns the first entry whose template matches uri, with the
// captured placeholder bindings. Unmatched URIs fail with ToolNotFound.
func (m *Manager) Resolve(uri string) (Resource, map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, entry := range m.entries {
		match := entry.pattern.FindStringSubmatch(uri)
		if match == nil {
			continue
		}
		bindings := make(map[string]string, len(entry.params))
		for i, param := range entry.params {
			bindings[param] = match[i+1]
		}
		return entry.Resource, bindings, nil
	}
	return Resource{}, nil, core.Errorf(core.KindToolNotFound, "resource not found: %s", uri)
}

// Read resolves uri and produces its content.
func (m *Manager) Read(ctx context.Context, uri string) (string, Resource, error) {
	resource, bindings, err := m.Resolve(uri)
	if err != nil {
		return "", Resource{}, err
	}
	if resource.Content == nil {
		return "", Resource{}, core.Errorf(core.KindHandler, "resource %q has no content function", resource.Name)
	}
	content, err := resource.Content(ctx, bindings)
	if err != nil {
		return "", Resource{}, core.AsError(err)
	}
	return content, resource, nil
}

// Definitions returns all resources in registration order.
func (m *Manager) Definitions() []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	definitions := make([]Definition, 0, len(m.entries))
	for _, entry := range m.entries {
		caps := make([]string, len(entry.Capabilities))
		for i, c := range entry.Capabilities {
			caps[i] = string(c)
		}
		definitions = append(definitions, Definition{
			URI:         entry.URITemplate,
			Name:        entry.Name,
			Description: entry.Description,
			MimeType:    entry.MimeType,
			Caps:        caps,
		})
	}
	return definitions
}

var templateParamPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// compileTemplate turns a URI template into a regexp. A segment-embedded
// placeholder captures up to the next '/'; a trailing placeholder captures
// greedily.
func compileTemplate(template string) (*regexp.Regexp, []string, error) {
	var params []string
	var builder strings.Builder
	builder.WriteString("^")

	last := 0
	matches := templateParamPattern.FindAllStringSubmatchIndex(template, -1)
	for i, match := range matches {
		builder.WriteString(regexp.QuoteMeta(template[last:match[0]]))
		params = append(params, template[match[2]:match[3]])

		trailing := i == len(matches)-1 && match[1] == len(template)
		if trailing {
			builder.WriteString(`(.+)`)
		} else {
			builder.WriteString(`([^/]+)`)
		}
		last = match[1]
	}
	builder.WriteString(regexp.QuoteMeta(template[last:]))
	builder.WriteString("$")

	pattern, err := regexp.Compile(builder.String())
	if err != nil {
		return nil, nil, core.Wrap(core.KindConfig, "compile URI template "+template, err)
	}
	return pattern, params, nil
}
