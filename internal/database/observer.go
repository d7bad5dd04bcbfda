package database

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// QueryEvent describes one Execute call.
type QueryEvent struct {
	ID            string
	Query         string
	ParamCount    int
	InTransaction bool
	Started       time.Time
}

// ResultShape is a coarse description of a result set.
type ResultShape struct {
	Rows    int
	Columns []string
}

// Observer receives query lifecycle events. Implementations must not block
// for long; panics are recovered by the Manager.
type Observer interface {
	QueryStarted(ctx context.Context, ev QueryEvent) context.Context
	QuerySucceeded(ctx context.Context, ev QueryEvent, shape ResultShape)
	QueryFailed(ctx context.Context, ev QueryEvent, err error)
}

func shapeOf(rows []Row) ResultShape {
	shape := ResultShape{Rows: len(rows)}
	if len(rows) == 0 {
		return shape
	}
	for k := range rows[0] {
		shape.Columns = append(shape.Columns, k)
	}
	sort.Strings(shape.Columns)
	return shape
}

type nopObserver struct{}

func (nopObserver) QueryStarted(ctx context.Context, _ QueryEvent) context.Context { return ctx }
func (nopObserver) QuerySucceeded(context.Context, QueryEvent, ResultShape)      {}
func (nopObserver) QueryFailed(context.Context, QueryEvent, error)               {}

type multiObserver []Observer

// Observers fans events out to each observer in order.
func Observers(obs ...Observer) Observer {
	return multiObserver(obs)
}

func (m multiObserver) QueryStarted(ctx context.Context, ev QueryEvent) context.Context {
	for _, o := range m {
		ctx = o.QueryStarted(ctx, ev)
	}
	return ctx
}

func (m multiObserver) QuerySucceeded(ctx context.Context, ev QueryEvent, shape ResultShape) {
	for _, o := range m {
		o.QuerySucceeded(ctx, ev, shape)
	}
}

func (m multiObserver) QueryFailed(ctx context.Context, ev QueryEvent, err error) {
	for _, o := range m {
		o.QueryFailed(ctx, ev, err)
	}
}

// LogObserver writes query events to a zerolog logger. Queries slower than
// SlowThreshold are logged at warn.
type LogObserver struct {
	Logger        zerolog.Logger
	SlowThreshold time.Duration
}

// NewLogObserver creates a LogObserver.
func NewLogObserver(logger zerolog.Logger, slowThreshold time.Duration) *LogObserver {
	return &LogObserver{Logger: logger, SlowThreshold: slowThreshold}
}

func (o *LogObserver) QueryStarted(ctx context.Context, ev QueryEvent) context.Context {
	o.Logger.Debug().
		Str("query_id", ev.ID).
		Int("params", ev.ParamCount).
		Bool("in_tx", ev.InTransaction).
		Msg("query started")
	return ctx
}

func (o *LogObserver) QuerySucceeded(_ context.Context, ev QueryEvent, shape ResultShape) {
	elapsed := time.Since(ev.Started)
	e := o.Logger.Debug()
	if o.SlowThreshold > 0 && elapsed >= o.SlowThreshold {
		e = o.Logger.Warn().Str("query", ev.Query)
	}
	e.Str("query_id", ev.ID).
		Int("rows", shape.Rows).
		Strs("columns", shape.Columns).
		Dur("elapsed", elapsed).
		Msg("query succeeded")
}

func (o *LogObserver) QueryFailed(_ context.Context, ev QueryEvent, err error) {
	o.Logger.Error().
		Str("query_id", ev.ID).
		Str("query", ev.Query).
		Str("kind", ErrorKind(err)).
		Err(err).
		Dur("elapsed", time.Since(ev.Started)).
		Msg("query failed")
}

// Span and attribute names used by TraceObserver.
const (
	SpanQuery       = "vitals.db.query"
	AttrQueryID     = "vitals.db.query_id"
	AttrStatement   = "db.query.text"
	AttrParamCount  = "vitals.db.param_count"
	AttrTransaction = "vitals.db.in_transaction"
	AttrRows        = "vitals.db.rows"
	AttrErrorKind   = "error.type"
)

// TraceObserver records one OpenTelemetry span per query.
type TraceObserver struct {
	tracer trace.Tracer
}

// NewTraceObserver creates a TraceObserver using tracer.
func NewTraceObserver(tracer trace.Tracer) *TraceObserver {
	return &TraceObserver{tracer: tracer}
}

func (o *TraceObserver) QueryStarted(ctx context.Context, ev QueryEvent) context.Context {
	ctx, _ = o.tracer.Start(ctx, SpanQuery,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(ev.Started),
		trace.WithAttributes(
			attribute.String(AttrQueryID, ev.ID),
			attribute.String(AttrStatement, ev.Query),
			attribute.Int(AttrParamCount, ev.ParamCount),
			attribute.Bool(AttrTransaction, ev.InTransaction),
		),
	)
	return ctx
}

func (o *TraceObserver) QuerySucceeded(ctx context.Context, _ QueryEvent, shape ResultShape) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int(AttrRows, shape.Rows))
	span.SetStatus(codes.Ok, "")
	span.End()
}

func (o *TraceObserver) QueryFailed(ctx context.Context, _ QueryEvent, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(AttrErrorKind, ErrorKind(err)))
	span.End()
}
