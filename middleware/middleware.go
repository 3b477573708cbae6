// Package middleware composes before/after/on-error wrappers around tool
// dispatch. A chain applies Before in insertion order and After/OnError in
// reverse; the first middleware whose OnError recovers terminates the error
// path with its response.
package middleware

import (
	"context"
	"encoding/json"
)

// Request is the unit flowing into a dispatch: a tool name and its opaque
// JSON payload.
type Request struct {
	Tool    string
	Payload json.RawMessage
}

// Response is the serialized output of a dispatch.
type Response struct {
	Payload json.RawMessage
}

// Dispatcher is the inner operation a chain executes around.
type Dispatcher func(ctx context.Context, req *Request) (*Response, error)

// Middleware transforms requests on the way in and responses (or errors)
// on the way out. Implementations must not rely on execution order beyond
// the chain contract and must be safe for concurrent dispatches.
type Middleware interface {
	Name() string
	Before(ctx context.Context, req *Request) (*Request, error)
	After(ctx context.Context, req *Request, resp *Response) (*Response, error)
	// OnError may recover by returning a response; returning (nil, err)
	// passes the error outward.
	OnError(ctx context.Context, req *Request, err error) (*Response, error)
}

// Wrapper is implemented by middlewares that need to bound or repeat the
// inner dispatch itself (timeout, retry) rather than observe it.
type Wrapper interface {
	Wrap(next Dispatcher) Dispatcher
}

// Nop provides passthrough defaults for embedding.
type Nop struct{}

func (Nop) Before(_ context.Context, req *Request) (*Request, error) {
	return req, nil
}

func (Nop) After(_ context.Context, _ *Request, resp *Response) (*Response, error) {
	return resp, nil
}

func (Nop) OnError(_ context.Context, _ *Request, err error) (*Response, error) {
	return nil, err
}

// Chain is an ordered collection of middlewares.
type Chain struct {
	stack []Middleware
}

// NewChain builds a chain from the given middlewares, outermost first.
func NewChain(mws ...Middleware) *Chain {
	return &Chain{stack: mws}
}

// Use appends a middleware to the chain.
func (c *Chain) Use(mw Middleware) {
	c.stack = append(c.stack, mw)
}

// Len returns the number of middlewares in the chain.
func (c *Chain) Len() int {
	return len(c.stack)
}

// Execute runs req through the chain around inner. Wrapper middlewares
// compose around the inner dispatcher in chain order (outermost wraps
// last); Before/After/OnError observe the composed dispatch.
func (c *Chain) Execute(ctx context.Context, req *Request, inner Dispatcher) (*Response, error) {
	dispatch := inner
	for i := len(c.stack) - 1; i >= 0; i-- {
		if wrapper, ok := c.stack[i].(Wrapper); ok {
			dispatch = wrapper.Wrap(dispatch)
		}
	}

	current := req
	for i, mw := range c.stack {
		next, err := mw.Before(ctx, current)
		if err != nil {
			// The failing middleware gets its own OnError chance too.
			return c.recover(ctx, current, err, i+1)
		}
		current = next
	}

	resp, err := dispatch(ctx, current)
	if err != nil {
		return c.recover(ctx, current, err, len(c.stack))
	}

	for i := len(c.stack) - 1; i >= 0; i-- {
		resp, err = c.stack[i].After(ctx, current, resp)
		if err != nil {
			return c.recover(ctx, current, err, i+1)
		}
	}
	return resp, nil
}

// recover walks OnError from the innermost entered middleware outward. The
// first successful recovery wins; otherwise the final error propagates.
func (c *Chain) recover(ctx context.Context, req *Request, err error, entered int) (*Response, error) {
	for i := entered - 1; i >= 0; i-- {
		resp, recErr := c.stack[i].OnError(ctx, req, err)
		if recErr == nil && resp != nil {
			return resp, nil
		}
		if recErr != nil {
			err = recErr
		}
	}
	return nil, err
}
