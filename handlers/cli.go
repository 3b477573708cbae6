package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/termfx/pforge/core"
)

// CLIConfig describes a child-process tool.
type CLIConfig struct {
	Program string
	Args    []string
	Dir     string
	Env     map[string]string
	// Streaming reads stdout line by line through an internal channel
	// instead of buffering until exit. Both modes produce the same output
	// at end-of-stream.
	Streaming bool
	Timeout   time.Duration

	Description string
	Schema      map[string]any
}

type cliHandler struct {
	cfg    CLIConfig
	schema map[string]any
}

// NewCLI creates a handler that executes the configured program per call.
// {name} tokens in the argument vector are replaced by input fields before
// spawning.
func NewCLI(cfg CLIConfig) (core.Handler, error) {
	if cfg.Program == "" {
		return nil, core.Errorf(core.KindConfig, "cli tool requires a program")
	}
	return &cliHandler{cfg: cfg, schema: core.NormalizeSchema(cfg.Schema)}, nil
}

func (h *cliHandler) Dispatch(ctx context.Context, input []byte) ([]byte, error) {
	fields, err := decodeInputObject(input)
	if err != nil {
		return nil, err
	}

	args := make([]string, len(h.cfg.Args))
	for i, arg := range h.cfg.Args {
		rendered, err := renderTemplate(arg, fields)
		if err != nil {
			return nil, err
		}
		args[i] = rendered
	}

	runCtx := ctx
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, h.cfg.Program, args...)
	cmd.Dir = h.cfg.Dir
	if len(h.cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for key, value := range h.cfg.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
		}
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var stdout []byte
	var runErr error
	if h.cfg.Streaming {
		stdout, runErr = h.runStreaming(cmd)
	} else {
		var out bytes.Buffer
		cmd.Stdout = &out
		runErr = cmd.Run()
		stdout = out.Bytes()
	}

	if runErr != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, core.Errorf(core.KindTimeout, "%s timed out after %s", h.cfg.Program, h.cfg.Timeout)
		}
		return nil, core.FromExec(runErr, stderr.String())
	}

	return wrapProcessOutput(stdout), nil
}

// runStreaming reads stdout incrementally through a line channel and
// reassembles the stream once the process exits.
func (h *cliHandler) runStreaming(cmd *exec.Cmd) ([]byte, error) {
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	lines := make(chan []byte, 64)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(pipe)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			lines <- line
		}
		scanErr <- scanner.Err()
	}()

	var out bytes.Buffer
	for line := range lines {
		out.Write(line)
		out.WriteByte('\n')
	}

	waitErr := cmd.Wait()
	if err := <-scanErr; err != nil && waitErr == nil {
		waitErr = err
	}
	return out.Bytes(), waitErr
}

// wrapProcessOutput interprets stdout as JSON when possible, otherwise
// wraps it in an object with a single stdout field.
func wrapProcessOutput(stdout []byte) []byte {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return trimmed
	}
	wrapped, _ := json.Marshal(map[string]string{"stdout": string(trimmed)})
	return wrapped
}

func (h *cliHandler) Schema() map[string]any {
	return h.schema
}

func (h *cliHandler) Description() string {
	return h.cfg.Description
}

// decodeInputObject decodes a JSON payload into a field map. Empty payloads
// yield an empty map; anything that is not an object is a serialization
// failure.
func decodeInputObject(input []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(input)) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(input, &fields); err != nil {
		return nil, core.FromSerialization(err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}
