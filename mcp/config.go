package mcp

import (
	"io"
	"log/slog"
	"time"

	"github.com/termfx/pforge/core"
	"github.com/termfx/pforge/handlers"
	"github.com/termfx/pforge/mcp/prompts"
	"github.com/termfx/pforge/resilience"
)

// Flavor names for tool definitions.
const (
	FlavorNative   = "native"
	FlavorCLI      = "cli"
	FlavorHTTP     = "http"
	FlavorPipeline = "pipeline"
)

// Config is the validated configuration object the server is built from.
// Parsing the on-disk schema into this shape is the caller's concern; the
// server only checks structural invariants it depends on. Duration fields
// decode from JSON as nanoseconds.
type Config struct {
	ServerName    string `json:"server_name"`
	ServerVersion string `json:"server_version,omitempty"`
	Transport     string `json:"transport,omitempty"`

	Tools     []ToolConfig     `json:"tools,omitempty"`
	Resources []ResourceConfig `json:"resources,omitempty"`
	Prompts   []PromptConfig   `json:"prompts,omitempty"`

	State      *StateConfig     `json:"state,omitempty"`
	Middleware MiddlewareConfig `json:"middleware,omitempty"`

	Debug bool `json:"debug,omitempty"`

	// LogWriter receives server-side structured logs; defaults to stderr
	// so stdout stays clean for the wire protocol.
	LogWriter io.Writer `json:"-"`
	// Logger overrides the slog logger built from LogWriter.
	Logger *slog.Logger `json:"-"`
}

// ToolConfig declares one tool, tagged by flavor. Only the fields of the
// named flavor are consulted.
type ToolConfig struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Flavor      string         `json:"flavor"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	Timeout     time.Duration  `json:"timeout,omitempty"`
	// Required lists top-level payload fields the validation middleware
	// checks before dispatch.
	Required []string `json:"required,omitempty"`

	// Native
	Handler core.Handler `json:"-"`

	// CLI
	Program   string            `json:"program,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Dir       string            `json:"dir,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Streaming bool              `json:"streaming,omitempty"`

	// HTTP
	Endpoint string             `json:"endpoint,omitempty"`
	Method   string             `json:"method,omitempty"`
	Auth     *handlers.HTTPAuth `json:"auth,omitempty"`
	Headers  map[string]string  `json:"headers,omitempty"`

	// Pipeline
	Steps  []handlers.PipelineStep `json:"steps,omitempty"`
	Output string                  `json:"output,omitempty"`
}

// ResourceConfig declares a static resource served from configuration.
type ResourceConfig struct {
	Name         string   `json:"name"`
	URI          string   `json:"uri"`
	Description  string   `json:"description,omitempty"`
	MimeType     string   `json:"mime_type,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Content      string   `json:"content,omitempty"`
}

// PromptConfig declares a prompt template.
type PromptConfig struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Template    string             `json:"template"`
	Arguments   []prompts.Argument `json:"arguments,omitempty"`
}

// StateConfig selects and parameterizes the state backend.
type StateConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `json:"backend"`
	// Path is the sqlite file path or libsql URL.
	Path string `json:"path,omitempty"`
	// DefaultTTL is carried in the configuration only: the server does not
	// pass it to either backend, and a Set with a zero ttl stores the value
	// without expiry.
	DefaultTTL time.Duration `json:"default_ttl,omitempty"`
	// BudgetBytes caps the in-memory backend; zero is unbounded.
	BudgetBytes int64 `json:"budget_bytes,omitempty"`
}

// MiddlewareConfig assembles the dispatch chain. Order is fixed: logging,
// metrics, rate limit, validation, recovery, retry, timeout.
type MiddlewareConfig struct {
	Logging    bool                      `json:"logging,omitempty"`
	Metrics    bool                      `json:"metrics,omitempty"`
	RateLimit  *RateLimitConfig          `json:"rate_limit,omitempty"`
	Validation bool                      `json:"validation,omitempty"`
	Recovery   *resilience.BreakerConfig `json:"recovery,omitempty"`
	Retry      *resilience.RetryPolicy   `json:"retry,omitempty"`
	Timeout    time.Duration             `json:"timeout,omitempty"`
}

// RateLimitConfig parameterizes the token-bucket middleware.
type RateLimitConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServerName:    "pforge",
		ServerVersion: core.Version,
		Transport:     "stdio",
		Middleware: MiddlewareConfig{
			Logging: true,
		},
	}
}

// Validate checks the invariants the server relies on.
func (c *Config) Validate() error {
	if c.ServerName == "" {
		return core.Errorf(core.KindConfig, "server name must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Tools))
	for _, tool := range c.Tools {
		if tool.Name == "" {
			return core.Errorf(core.KindConfig, "tool with empty name")
		}
		if _, dup := seen[tool.Name]; dup {
			return core.Errorf(core.KindConfig, "duplicate tool %q", tool.Name)
		}
		seen[tool.Name] = struct{}{}

		switch tool.Flavor {
		case FlavorNative, FlavorCLI, FlavorHTTP, FlavorPipeline:
		default:
			return core.Errorf(core.KindConfig, "tool %q has unknown flavor %q", tool.Name, tool.Flavor)
		}
	}
	if c.State != nil {
		switch c.State.Backend {
		case "memory":
		case "sqlite":
			if c.State.Path == "" {
				return core.Errorf(core.KindConfig, "sqlite state backend requires a path")
			}
		default:
			return core.Errorf(core.KindConfig, "unknown state backend %q", c.State.Backend)
		}
	}
	return nil
}
