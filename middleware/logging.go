package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/termfx/pforge/core"
)

type loggingStartKey struct{}

// Logging records each dispatch with its tool, payload size, duration, and
// outcome through a structured logger.
type Logging struct {
	Nop
	logger *slog.Logger
}

// NewLogging creates the request/response logging middleware.
func NewLogging(logger *slog.Logger) *Logging {
	return &Logging{logger: logger}
}

func (l *Logging) Name() string { return "logging" }

func (l *Logging) Before(ctx context.Context, req *Request) (*Request, error) {
	l.logger.Debug("dispatch start",
		"tool", req.Tool,
		"payload_bytes", len(req.Payload),
	)
	return req, nil
}

func (l *Logging) After(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	l.logger.Info("dispatch ok",
		"tool", req.Tool,
		"response_bytes", len(resp.Payload),
		"duration_ms", elapsedMillis(ctx),
	)
	return resp, nil
}

func (l *Logging) OnError(ctx context.Context, req *Request, err error) (*Response, error) {
	l.logger.Error("dispatch failed",
		"tool", req.Tool,
		"kind", string(core.KindOf(err)),
		"error", err.Error(),
		"duration_ms", elapsedMillis(ctx),
	)
	return nil, err
}

// WithStartTime stamps the dispatch start for duration reporting. The
// server sets it once per request.
func WithStartTime(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggingStartKey{}, time.Now())
}

func elapsedMillis(ctx context.Context) int64 {
	start, ok := ctx.Value(loggingStartKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start).Milliseconds()
}
