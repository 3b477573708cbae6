package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/termfx/pforge/core"
)

// Metrics counts dispatches, failures, and latency through OpenTelemetry
// instruments. The meter comes from the global provider, so a host that
// installs no SDK pays only no-op calls.
type Metrics struct {
	Nop
	dispatches metric.Int64Counter
	failures   metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewMetrics creates the metrics middleware.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/termfx/pforge")

	dispatches, err := meter.Int64Counter("pforge.dispatch.count",
		metric.WithDescription("Completed tool dispatches"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("pforge.dispatch.errors",
		metric.WithDescription("Failed tool dispatches by error kind"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("pforge.dispatch.duration_ms",
		metric.WithDescription("Dispatch latency in milliseconds"))
	if err != nil {
		return nil, err
	}

	return &Metrics{dispatches: dispatches, failures: failures, duration: duration}, nil
}

func (m *Metrics) Name() string { return "metrics" }

func (m *Metrics) After(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	attrs := metric.WithAttributes(attribute.String("tool", req.Tool))
	m.dispatches.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsedMillis(ctx)), attrs)
	return resp, nil
}

func (m *Metrics) OnError(ctx context.Context, req *Request, err error) (*Response, error) {
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", req.Tool),
		attribute.String("kind", string(core.KindOf(err))),
	))
	return nil, err
}
