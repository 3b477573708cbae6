package mcp

import (
	"github.com/termfx/pforge/core"
)

// Error codes following JSON-RPC 2.0 standard and custom domain errors
const (
	// JSON-RPC 2.0 standard error codes
	ParseError     = -32700 // Invalid JSON was received
	InvalidRequest = -32600 // The JSON sent is not a valid Request object
	MethodNotFound = -32601 // The method does not exist
	InvalidParams  = -32602 // Invalid method parameters
	InternalError  = -32603 // Internal JSON-RPC error

	// Custom domain error codes (10xxx range)
	HandlerFailed      = 10001 // Handler execution failed
	ValidationFailed   = 10002 // Input validation failed
	SerializationError = 10003 // JSON encode/decode failed
	IOError            = 10004 // I/O operation failed
	TimeoutExpired     = 10005 // Operation exceeded its deadline
	CircuitOpen        = 10006 // Circuit breaker rejected the call
	ConfigInvalid      = 10007 // Configuration problem
)

// codeForKind maps the runtime's closed error kinds onto wire codes.
func codeForKind(kind core.Kind) int {
	switch kind {
	case core.KindToolNotFound:
		return MethodNotFound
	case core.KindValidation:
		return ValidationFailed
	case core.KindSerialization:
		return SerializationError
	case core.KindIO:
		return IOError
	case core.KindTimeout:
		return TimeoutExpired
	case core.KindCircuitOpen:
		return CircuitOpen
	case core.KindConfig:
		return ConfigInvalid
	case core.KindHandler:
		return HandlerFailed
	default:
		return InternalError
	}
}

// errorResponseFor translates a runtime error into a JSON-RPC response.
func errorResponseFor(id any, err error) Response {
	unified := core.AsError(err)
	return ErrorResponse(id, codeForKind(unified.Kind), unified.Error(), map[string]any{
		"kind": string(unified.Kind),
	})
}
