// Package prompts manages named text templates with argument-checked
// interpolation. Placeholders use {{name}} with no nesting and no escape
// syntax; the rendered string is returned verbatim.
package prompts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/termfx/pforge/core"
)

// Argument declares one prompt parameter.
type Argument struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// Prompt is a named template with its argument schema.
type Prompt struct {
	Name        string
	Description string
	Template    string
	Arguments   []Argument
}

// Definition describes a prompt for list endpoints.
type Definition struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Arguments   []Argument `json:"arguments,omitempty"`
}

// Manager holds registered prompts in insertion order.
type Manager struct {
	mu      sync.RWMutex
	prompts map[string]Prompt
	ordered []string
}

// NewManager creates an empty prompt manager.
func NewManager() *Manager {
	return &Manager{
		prompts: make(map[string]Prompt),
		ordered: make([]string, 0),
	}
}

// Register adds a prompt. Duplicate names fail with a Validation error.
func (m *Manager) Register(prompt Prompt) error {
	if prompt.Name == "" {
		return core.Errorf(core.KindValidation, "prompt name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.prompts[prompt.Name]; exists {
		return core.Errorf(core.KindValidation, "prompt %q is already registered", prompt.Name)
	}
	m.prompts[prompt.Name] = prompt
	m.ordered = append(m.ordered, prompt.Name)
	return nil
}

// Get retrieves a prompt by name.
func (m *Manager) Get(name string) (Prompt, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prompt, exists := m.prompts[name]
	return prompt, exists
}

// Definitions returns all prompts in registration order.
func (m *Manager) Definitions() []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	definitions := make([]Definition, 0, len(m.ordered))
	for _, name := range m.ordered {
		prompt := m.prompts[name]
		definitions = append(definitions, Definition{
			Name:        prompt.Name,
			Description: prompt.Description,
			Arguments:   prompt.Arguments,
		})
	}
	return definitions
}

// Render interpolates the named prompt with args. Every required argument
// must be supplied; declared arguments that are absent fall back to their
// defaults; unknown argument names are ignored.
func (m *Manager) Render(name string, args map[string]any) (string, error) {
	prompt, exists := m.Get(name)
	if !exists {
		return "", core.Errorf(core.KindToolNotFound, "prompt not found: %s", name)
	}

	values := make(map[string]string, len(prompt.Arguments))
	for _, arg := range prompt.Arguments {
		if supplied, ok := args[arg.Name]; ok {
			values[arg.Name] = fmt.Sprintf("%v", supplied)
			continue
		}
		if arg.Required {
			return "", core.Errorf(core.KindValidation, "prompt %q requires argument %q", name, arg.Name)
		}
		if arg.Default != nil {
			values[arg.Name] = fmt.Sprintf("%v", arg.Default)
		}
	}

	// A single pass, so placeholders inside substituted values stay as-is.
	pairs := make([]string, 0, 2*len(values))
	for argName, value := range values {
		pairs = append(pairs, "{{"+argName+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(prompt.Template), nil
}
