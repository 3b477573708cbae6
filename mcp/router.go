package mcp

import (
	"context"

	"github.com/termfx/pforge/core"
)

// RequestHandler processes a JSON-RPC request and produces its response.
type RequestHandler func(ctx context.Context, msg Request) Response

// NotificationHandler processes a fire-and-forget notification.
type NotificationHandler func(ctx context.Context, msg Notification) error

// route is one entry of the method table. Exactly one of the two handler
// fields is set, depending on whether the method expects a response.
type route struct {
	request      RequestHandler
	notification NotificationHandler
}

// Router maps JSON-RPC method names to handlers. Like the tool registry,
// the table is populated while the server is being built and never mutated
// afterwards, so dispatch reads it without locking.
type Router struct {
	table map[string]route
}

// NewRouter creates an empty method table.
func NewRouter() *Router {
	return &Router{table: make(map[string]route)}
}

// Handle binds a request method. Returns the router for chained setup.
func (r *Router) Handle(method string, handler RequestHandler) *Router {
	r.table[method] = route{request: handler}
	return r
}

// HandleNotification binds a notification method.
func (r *Router) HandleNotification(method string, handler NotificationHandler) *Router {
	r.table[method] = route{notification: handler}
	return r
}

// DispatchRequest resolves and runs the handler for a request message.
// Envelope violations and unknown methods come back as JSON-RPC errors.
func (r *Router) DispatchRequest(ctx context.Context, msg Request) Response {
	if err := ensureVersion(msg.JSONRPC); err != nil {
		return ErrorResponse(msg.ID, InvalidRequest, err.Error())
	}

	entry, ok := r.table[msg.Method]
	if !ok || entry.request == nil {
		return ErrorResponse(msg.ID, MethodNotFound, "no handler registered for method "+msg.Method)
	}

	resp := entry.request(ctx, msg)
	if resp.JSONRPC == "" {
		resp.JSONRPC = JSONRPCVersion
	}
	return resp
}

// DispatchNotification resolves and runs the handler for a notification.
// Since notifications get no response, problems surface as an error for
// the caller to log.
func (r *Router) DispatchNotification(ctx context.Context, msg Notification) error {
	if err := ensureVersion(msg.JSONRPC); err != nil {
		return core.Wrap(core.KindValidation, "bad notification envelope", err)
	}

	entry, ok := r.table[msg.Method]
	if !ok || entry.notification == nil {
		return core.Errorf(core.KindToolNotFound, "no notification handler for %s", msg.Method)
	}
	return entry.notification(ctx, msg)
}
