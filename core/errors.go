package core

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Kind identifies one of the closed set of failure categories produced by
// the runtime. Every error that escapes a dispatch terminates in exactly
// one of these kinds.
type Kind string

const (
	KindToolNotFound  Kind = "tool_not_found"
	KindHandler       Kind = "handler"
	KindValidation    Kind = "validation"
	KindSerialization Kind = "serialization"
	KindIO            Kind = "io"
	KindTimeout       Kind = "timeout"
	KindCircuitOpen   Kind = "circuit_open"
	KindConfig        Kind = "config"
)

// Error is the unified error value carried across the runtime. It wraps an
// optional underlying cause for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by kind so callers can compare against the exported
// sentinels without caring about messages.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinels for errors.Is comparisons. Matching is by kind only.
var (
	ErrToolNotFound = &Error{Kind: KindToolNotFound}
	ErrValidation   = &Error{Kind: KindValidation}
	ErrTimeout      = &Error{Kind: KindTimeout}
	ErrCircuitOpen  = &Error{Kind: KindCircuitOpen}
)

// Errorf creates a new error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// FromSerialization converts a JSON encode/decode failure.
func FromSerialization(err error) *Error {
	return &Error{Kind: KindSerialization, Message: "invalid JSON payload", Err: err}
}

// FromIO converts an I/O failure.
func FromIO(err error) *Error {
	return &Error{Kind: KindIO, Message: "i/o failure", Err: err}
}

// FromExec converts a child-process failure. Non-zero exits carry the
// captured stderr as the message.
func FromExec(err error, stderr string) *Error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = fmt.Sprintf("process exited with status %d", exitErr.ExitCode())
		}
		return &Error{Kind: KindHandler, Message: msg, Err: err}
	}
	return &Error{Kind: KindIO, Message: "process execution failed", Err: err}
}

// KindOf classifies an arbitrary error into one of the closed kinds.
// Unknown errors fall through to KindHandler.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindHandler
}

// AsError normalizes an arbitrary error into the unified type, preserving
// already-classified errors untouched.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTimeout, "operation timed out", err)
	}
	return &Error{Kind: KindHandler, Message: err.Error(), Err: err}
}
