package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/forgo/vitals/internal/config"
)

func TestNew_Disabled_IsNoop(t *testing.T) {
	t.Parallel()

	p := New(config.TracingConfig{Enabled: false}, zerolog.Nop())
	_, span := p.Tracer("test").Start(context.Background(), "op")
	span.End()

	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewWithExporter_RecordsServiceName(t *testing.T) {
	t.Parallel()

	exp := tracetest.NewInMemoryExporter()
	p := NewWithExporter(config.TracingConfig{Enabled: true}, exp)

	_, span := p.Tracer("test").Start(context.Background(), "op")
	span.End()
	require.NoError(t, p.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "op", spans[0].Name)

	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, defaultServiceName, service)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestLogExporter_WritesSpanLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	p := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewLogExporter(logger)))

	ctx, parent := p.Tracer("test").Start(context.Background(), "parent")
	_, child := p.Tracer("test").Start(ctx, "db.query")
	child.SetAttributes(attribute.String("db.system", "surrealdb"))
	child.End()
	parent.End()

	out := buf.String()
	assert.Contains(t, out, `"span":"db.query"`)
	assert.Contains(t, out, `"db.system":"surrealdb"`)
	assert.Contains(t, out, `"parent_id":"`+parent.SpanContext().SpanID().String()+`"`)
	assert.Contains(t, out, `"span":"parent"`)
}
