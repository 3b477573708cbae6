package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/termfx/pforge/core"
	"github.com/termfx/pforge/db"
	"github.com/termfx/pforge/handlers"
	"github.com/termfx/pforge/mcp/prompts"
	"github.com/termfx/pforge/mcp/resources"
	"github.com/termfx/pforge/middleware"
	"github.com/termfx/pforge/models"
	"github.com/termfx/pforge/resilience"
	"github.com/termfx/pforge/state"
)

// Server lifecycle states.
const (
	lifecycleBuilt int32 = iota
	lifecycleRunning
	lifecycleStopped
)

// Server hosts the assembled runtime behind stdio JSON-RPC. It is built
// from a validated Config; once running, the registry is immutable.
type Server struct {
	config Config
	logger *slog.Logger

	reader  *bufio.Reader
	writer  *bufio.Writer
	writeMu sync.Mutex

	registry    *core.Registry
	chain       *middleware.Chain
	promptMgr   *prompts.Manager
	resourceMgr *resources.Manager
	store       state.Store
	router      *Router

	db      *gorm.DB
	session *models.Session

	lifecycle atomic.Int32

	logLevelMu sync.Mutex
	logLevel   LogLevel

	// In-flight request cancellation tracking
	inflightMu      sync.Mutex
	inflightCancels map[string]context.CancelFunc
}

// NewServer builds a server from a validated configuration: registry,
// middleware chain, prompt and resource managers, and the optional state
// backend.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = core.Version
	}

	logWriter := cfg.LogWriter
	if logWriter == nil {
		logWriter = os.Stderr
	}
	logger := cfg.Logger
	if logger == nil {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		handler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: level})
		logger = slog.New(handler).With("server", cfg.ServerName)
	}

	server := &Server{
		config:          cfg,
		logger:          logger,
		reader:          bufio.NewReader(os.Stdin),
		writer:          bufio.NewWriter(os.Stdout),
		registry:        core.NewRegistry(),
		promptMgr:       prompts.NewManager(),
		resourceMgr:     resources.NewManager(),
		router:          NewRouter(),
		logLevel:        LogLevelInfo,
		inflightCancels: make(map[string]context.CancelFunc),
	}

	if err := server.buildState(); err != nil {
		return nil, err
	}
	if err := server.buildTools(); err != nil {
		return nil, err
	}
	server.buildMiddleware()
	if err := server.buildResources(); err != nil {
		return nil, err
	}
	if err := server.buildPrompts(); err != nil {
		return nil, err
	}
	server.registerHandlers()

	return server, nil
}

// buildState attaches the configured state backend, if any.
func (s *Server) buildState() error {
	spec := s.config.State
	if spec == nil {
		return nil
	}
	switch spec.Backend {
	case "memory":
		s.store = state.NewMemoryStoreWithBudget(spec.BudgetBytes)
	case "sqlite":
		database, err := db.Open(spec.Path, db.Options{Debug: s.config.Debug})
		if err != nil {
			return core.Wrap(core.KindConfig, "open state database", err)
		}
		s.db = database
		s.store = state.NewSQLiteStoreWithDB(database)

		session := &models.Session{
			ID:         "ses_" + uuid.NewString(),
			ServerName: s.config.ServerName,
			Transport:  s.config.Transport,
		}
		if err := database.Create(session).Error; err != nil {
			s.logger.Warn("failed to create session row", "error", err.Error())
		} else {
			s.session = session
		}
	}
	return nil
}

// buildTools registers one handler per configured tool, bound to its
// flavor.
func (s *Server) buildTools() error {
	for _, tool := range s.config.Tools {
		handler, err := s.buildHandler(tool)
		if err != nil {
			return err
		}
		if err := s.registry.Register(tool.Name, handler); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) buildHandler(tool ToolConfig) (core.Handler, error) {
	switch tool.Flavor {
	case FlavorNative:
		if tool.Handler == nil {
			return nil, core.Errorf(core.KindConfig, "native tool %q has no handler", tool.Name)
		}
		if tool.Timeout > 0 {
			return &timeoutHandler{inner: tool.Handler, timeout: tool.Timeout}, nil
		}
		return tool.Handler, nil

	case FlavorCLI:
		return handlers.NewCLI(handlers.CLIConfig{
			Program:     tool.Program,
			Args:        tool.Args,
			Dir:         tool.Dir,
			Env:         tool.Env,
			Streaming:   tool.Streaming,
			Timeout:     tool.Timeout,
			Description: tool.Description,
			Schema:      tool.InputSchema,
		})

	case FlavorHTTP:
		return handlers.NewHTTP(handlers.HTTPConfig{
			Endpoint:    tool.Endpoint,
			Method:      tool.Method,
			Auth:        tool.Auth,
			Headers:     tool.Headers,
			Timeout:     tool.Timeout,
			Description: tool.Description,
			Schema:      tool.InputSchema,
		}, handlers.WithHTTPLogger(s.logger))

	case FlavorPipeline:
		return handlers.NewPipeline(handlers.PipelineConfig{
			Steps:       tool.Steps,
			Output:      tool.Output,
			Description: tool.Description,
			Schema:      tool.InputSchema,
		}, s.registry)

	default:
		return nil, core.Errorf(core.KindConfig, "tool %q has unknown flavor %q", tool.Name, tool.Flavor)
	}
}

// timeoutHandler bounds a native handler that has no timeout of its own.
type timeoutHandler struct {
	inner   core.Handler
	timeout time.Duration
}

func (h *timeoutHandler) Dispatch(ctx context.Context, input []byte) ([]byte, error) {
	return resilience.WithTimeout(ctx, h.timeout, func(ctx context.Context) ([]byte, error) {
		return h.inner.Dispatch(ctx, input)
	})
}

func (h *timeoutHandler) Schema() map[string]any { return h.inner.Schema() }
func (h *timeoutHandler) Description() string    { return h.inner.Description() }

// buildMiddleware assembles the chain in its fixed order.
func (s *Server) buildMiddleware() {
	mw := s.config.Middleware
	chain := middleware.NewChain()

	if mw.Logging {
		chain.Use(middleware.NewLogging(s.logger))
	}
	if mw.Metrics {
		if metrics, err := middleware.NewMetrics(); err == nil {
			chain.Use(metrics)
		} else {
			s.logger.Warn("metrics middleware unavailable", "error", err.Error())
		}
	}
	if mw.RateLimit != nil {
		burst := mw.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		chain.Use(middleware.NewRateLimit(mw.RateLimit.RPS, burst))
	}
	if mw.Validation {
		required := make(map[string][]string)
		for _, tool := range s.config.Tools {
			if len(tool.Required) > 0 {
				required[tool.Name] = tool.Required
			}
		}
		chain.Use(middleware.NewValidation(required))
	}
	if mw.Recovery != nil {
		chain.Use(middleware.NewRecovery(*mw.Recovery, nil))
	}
	if mw.Retry != nil {
		chain.Use(middleware.NewRetry(*mw.Retry))
	}
	if mw.Timeout > 0 {
		chain.Use(middleware.NewTimeout(mw.Timeout))
	}

	s.chain = chain
}

// buildResources registers the built-in resources plus the static entries
// from configuration.
func (s *Server) buildResources() error {
	if err := s.resourceMgr.Register(resources.NewToolListResource(s.registry)); err != nil {
		return err
	}
	if err := s.resourceMgr.Register(resources.NewSystemStatusResource()); err != nil {
		return err
	}
	if err := s.resourceMgr.Register(resources.NewReadmeResource()); err != nil {
		return err
	}

	for _, res := range s.config.Resources {
		caps := make([]resources.Capability, 0, len(res.Capabilities))
		for _, c := range res.Capabilities {
			caps = append(caps, resources.Capability(c))
		}
		content := res.Content
		entry := resources.Resource{
			Name:         res.Name,
			URITemplate:  res.URI,
			Description:  res.Description,
			MimeType:     res.MimeType,
			Capabilities: caps,
			Content: func(context.Context, map[string]string) (string, error) {
				return content, nil
			},
		}
		if err := s.resourceMgr.Register(entry); err != nil {
			return err
		}
	}
	return nil
}

// buildPrompts registers configured prompts plus the default usage prompt.
func (s *Server) buildPrompts() error {
	usage := prompts.Prompt{
		Name:        "tool_usage",
		Description: "How to call the tools exposed by this server",
		Template: "This server exposes the following tools: {{tools}}. " +
			"Call them through tools/call with JSON arguments matching each schema.",
		Arguments: []prompts.Argument{
			{Name: "tools", Type: "string", Required: false, Default: "see tools/list"},
		},
	}
	if err := s.promptMgr.Register(usage); err != nil {
		return err
	}

	for _, p := range s.config.Prompts {
		err := s.promptMgr.Register(prompts.Prompt{
			Name:        p.Name,
			Description: p.Description,
			Template:    p.Template,
			Arguments:   p.Arguments,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Registry exposes the handler registry, mainly for embedding hosts that
// register native tools before starting the server.
func (s *Server) Registry() *core.Registry {
	return s.registry
}

// Store exposes the configured state backend, or nil.
func (s *Server) Store() state.Store {
	return s.store
}

// Prompts exposes the prompt manager.
func (s *Server) Prompts() *prompts.Manager {
	return s.promptMgr
}

// Resources exposes the resource manager.
func (s *Server) Resources() *resources.Manager {
	return s.resourceMgr
}

// Dispatch runs one tool call through the middleware chain and registry.
// This is the single entry the transport layer and the FFI build on.
func (s *Server) Dispatch(ctx context.Context, name string, payload []byte) ([]byte, error) {
	ctx = middleware.WithStartTime(ctx)
	req := &middleware.Request{Tool: name, Payload: payload}

	resp, err := s.chain.Execute(ctx, req, func(ctx context.Context, req *middleware.Request) (*middleware.Response, error) {
		out, err := s.registry.Dispatch(ctx, req.Tool, req.Payload)
		if err != nil {
			return nil, err
		}
		return &middleware.Response{Payload: out}, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// Run publishes the registry and serves stdio until ctx is cancelled or
// stdin closes.
func (s *Server) Run(ctx context.Context) error {
	if !s.lifecycle.CompareAndSwap(lifecycleBuilt, lifecycleRunning) {
		return core.Errorf(core.KindConfig, "server already started")
	}
	s.registry.Publish()
	s.logger.Info("server running",
		"name", s.config.ServerName,
		"version", s.config.ServerVersion,
		"tools", s.registry.Len(),
	)

	defer s.shutdown()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			line, err := s.reader.ReadBytes('\n')
			if len(line) > 0 {
				buf := make([]byte, len(line))
				copy(buf, line)
				select {
				case lines <- buf:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				err := <-readErr
				if errors.Is(err, io.EOF) {
					return nil
				}
				return core.FromIO(err)
			}
			s.handleFrame(ctx, line)
		}
	}
}

// handleFrame decodes one wire frame and dispatches it. Requests run in
// their own goroutine so a slow tool does not block the read loop.
func (s *Server) handleFrame(ctx context.Context, frame []byte) {
	trimmed := strings.TrimSpace(string(frame))
	if trimmed == "" {
		return
	}

	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		s.writeResponse(ErrorResponse(nil, ParseError, "invalid JSON frame"))
		return
	}

	if len(probe.ID) == 0 || string(probe.ID) == "null" {
		var msg Notification
		if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
			s.logger.Warn("malformed notification", "error", err.Error())
			return
		}
		if err := s.router.DispatchNotification(ctx, msg); err != nil {
			s.logger.Debug("notification not handled", "method", msg.Method, "error", err.Error())
		}
		return
	}

	var msg Request
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		s.writeResponse(ErrorResponse(nil, InvalidRequest, "invalid request object"))
		return
	}

	go func() {
		reqCtx, cancel := context.WithCancel(ctx)
		reqID := stringifyID(msg.ID)
		s.registerCancellation(reqID, cancel)
		defer func() {
			s.clearCancellation(reqID)
			cancel()
		}()

		s.writeResponse(s.router.DispatchRequest(reqCtx, msg))
	}()
}

func (s *Server) registerCancellation(id string, cancel context.CancelFunc) {
	if id == "" {
		return
	}
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	s.inflightCancels[id] = cancel
}

func (s *Server) clearCancellation(id string) {
	if id == "" {
		return
	}
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflightCancels, id)
}

func (s *Server) cancelInflight(id string) {
	s.inflightMu.Lock()
	cancel, ok := s.inflightCancels[id]
	s.inflightMu.Unlock()
	if ok {
		cancel()
	}
}

// shutdown transitions to stopped and releases backend resources.
func (s *Server) shutdown() {
	if !s.lifecycle.CompareAndSwap(lifecycleRunning, lifecycleStopped) {
		return
	}
	if s.session != nil && s.db != nil {
		now := time.Now()
		s.db.Model(s.session).Update("stopped_at", &now)
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("state backend close failed", "error", err.Error())
		}
	}
	s.logger.Info("server stopped")
}

// Running reports whether the server is serving.
func (s *Server) Running() bool {
	return s.lifecycle.Load() == lifecycleRunning
}

func (s *Server) writeResponse(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err.Error())
		return
	}
	s.writeFrame(data)
}

func (s *Server) writeFrame(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.writer.Write(data)
	s.writer.WriteByte('\n')
	s.writer.Flush()
}

func stringifyID(id any) string {
	switch typed := id.(type) {
	case nil:
		return ""
	case string:
		return typed
	default:
		return fmt.Sprintf("%v", typed)
	}
}
