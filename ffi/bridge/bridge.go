// Package bridge holds the language-neutral half of the FFI surface: name
// validation, dispatcher wiring, and panic-to-error conversion. The cgo
// layer in the parent directory only converts C types to and from the
// values defined here.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/termfx/pforge/core"
	"github.com/termfx/pforge/mcp"
)

// DispatchFunc executes one tool call.
type DispatchFunc func(ctx context.Context, name string, payload []byte) ([]byte, error)

// Result is the language-neutral form of an FFI call outcome. Code zero
// means success; a failure carries an error message and may have an empty
// data buffer.
type Result struct {
	Code int32
	Data []byte
	Err  string
}

var (
	mu         sync.RWMutex
	dispatcher DispatchFunc
)

// SetDispatcher installs the function execute calls run through. Embedding
// hosts call this once after building their server.
func SetDispatcher(fn DispatchFunc) {
	mu.Lock()
	defer mu.Unlock()
	dispatcher = fn
}

// Configure builds a server from cfg and installs its dispatcher.
func Configure(cfg mcp.Config) error {
	server, err := mcp.NewServer(cfg)
	if err != nil {
		return err
	}
	server.Registry().Publish()
	SetDispatcher(server.Dispatch)
	return nil
}

// Version returns the library version string.
func Version() string {
	return core.Version
}

// Execute validates the tool name and runs the installed dispatcher. All
// panics are caught and converted into error results; nothing unwinds past
// this function.
func Execute(name string, payload []byte) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Code: int32(codeFor(core.KindHandler)),
				Err:  fmt.Sprintf("handler panic: %v", r),
			}
		}
	}()

	if name == "" {
		return errorResult(core.Errorf(core.KindValidation, "tool name must not be empty"))
	}
	if len(name) > core.MaxToolNameLength {
		return errorResult(core.Errorf(core.KindValidation, "tool name exceeds %d characters", core.MaxToolNameLength))
	}

	mu.RLock()
	fn := dispatcher
	mu.RUnlock()
	if fn == nil {
		return errorResult(core.Errorf(core.KindConfig, "no dispatcher configured"))
	}

	out, err := fn(context.Background(), name, payload)
	if err != nil {
		return errorResult(core.AsError(err))
	}
	return Result{Code: 0, Data: out}
}

func errorResult(err *core.Error) Result {
	return Result{
		Code: int32(codeFor(err.Kind)),
		Err:  err.Error(),
	}
}

// codeFor assigns each kind a stable non-zero status code for the C
// boundary.
func codeFor(kind core.Kind) int {
	switch kind {
	case core.KindToolNotFound:
		return 1
	case core.KindValidation:
		return 2
	case core.KindSerialization:
		return 3
	case core.KindIO:
		return 4
	case core.KindTimeout:
		return 5
	case core.KindCircuitOpen:
		return 6
	case core.KindConfig:
		return 7
	default:
		return 8
	}
}
