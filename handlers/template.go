package handlers

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/termfx/pforge/core"
)

// placeholderPattern matches {name} tokens in argument vectors and
// endpoint templates.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_.]*)\}`)

// renderTemplate substitutes {name} tokens with input fields. Missing
// fields fail with a Validation error.
func renderTemplate(template string, input map[string]any) (string, error) {
	var missing string
	result := placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		value, ok := lookupPath(input, name)
		if !ok {
			if missing == "" {
				missing = name
			}
			return token
		}
		return stringify(value)
	})
	if missing != "" {
		return "", core.Errorf(core.KindValidation, "missing input field %q for template %q", missing, template)
	}
	return result, nil
}

// lookupPath resolves a dotted path like "a.msg" through nested maps.
func lookupPath(env map[string]any, path string) (any, bool) {
	current := any(env)
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		segment := path[start:i]
		start = i + 1

		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// stringify renders a JSON value for use inside a command argument or URL.
func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", typed)
	}
}
