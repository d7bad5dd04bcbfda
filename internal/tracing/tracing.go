package tracing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/forgo/vitals/internal/config"
)

const (
	defaultBatchTimeout = 5 * time.Second
	defaultServiceName  = "vitals"
)

// Provider is a tracer provider that can be flushed on shutdown.
type Provider interface {
	trace.TracerProvider
	Shutdown(ctx context.Context) error
}

type noopProvider struct {
	noop.TracerProvider
}

func (noopProvider) Shutdown(context.Context) error { return nil }

// New returns the process tracer provider. When tracing is disabled it is a
// no-op provider; otherwise finished spans are batched and written to logger
// at debug level.
func New(cfg config.TracingConfig, logger zerolog.Logger) Provider {
	if !cfg.Enabled {
		return noopProvider{}
	}
	return NewWithExporter(cfg, NewLogExporter(logger), sdktrace.WithBatchTimeout(defaultBatchTimeout))
}

// NewWithExporter builds an always-sampling provider that sends spans to
// exporter. Tests pass tracetest.NewInMemoryExporter.
func NewWithExporter(cfg config.TracingConfig, exporter sdktrace.SpanExporter, opts ...sdktrace.BatchSpanProcessorOption) *sdktrace.TracerProvider {
	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, opts...),
	)
}

// LogExporter writes finished spans as log lines.
type LogExporter struct {
	logger zerolog.Logger
}

// NewLogExporter creates a span exporter backed by logger.
func NewLogExporter(logger zerolog.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		event := e.logger.Debug().
			Str("span", s.Name()).
			Str("trace_id", s.SpanContext().TraceID().String()).
			Str("span_id", s.SpanContext().SpanID().String()).
			Dur("duration", s.EndTime().Sub(s.StartTime())).
			Str("status", s.Status().Code.String())
		if s.Parent().IsValid() {
			event = event.Str("parent_id", s.Parent().SpanID().String())
		}
		for _, kv := range s.Attributes() {
			event = event.Str(string(kv.Key), kv.Value.Emit())
		}
		event.Msg("span")
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}
