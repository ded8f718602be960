package core

import (
	"context"
	"time"
)

// Operation names reported to metrics recorders and tracers.
const (
	OpCopy   = "copy"
	OpExport = "export"
	OpImport = "import"
)

// MetricsRecorder receives one observation per completed operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's outcome.
type TraceSpan interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// observe runs fn inside a span and reports its outcome.
func observe(ctx context.Context, metrics MetricsRecorder, tracer Tracer, operation string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := tracer.Start(ctx, operation)
	err := fn(ctx)
	span.End(err)
	metrics.Observe(ctx, operation, err == nil, time.Since(start))
	return err
}
