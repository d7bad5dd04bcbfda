package database_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/forgo/vitals/internal/database"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
	last   database.QueryEvent
	shape  database.ResultShape
}

func (o *recordingObserver) QueryStarted(ctx context.Context, ev database.QueryEvent) context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "started")
	o.last = ev
	return ctx
}

func (o *recordingObserver) QuerySucceeded(ctx context.Context, ev database.QueryEvent, shape database.ResultShape) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "succeeded")
	o.shape = shape
}

func (o *recordingObserver) QueryFailed(ctx context.Context, ev database.QueryEvent, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, "failed")
}

type panickingObserver struct{}

func (panickingObserver) QueryStarted(context.Context, database.QueryEvent) context.Context {
	panic("observer exploded")
}
func (panickingObserver) QuerySucceeded(context.Context, database.QueryEvent, database.ResultShape) {
	panic("observer exploded")
}
func (panickingObserver) QueryFailed(context.Context, database.QueryEvent, error) {
	panic("observer exploded")
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		lines = append(lines, m)
	}
	return lines
}

// ============================================================================
// Observer dispatch
// ============================================================================

func TestObserver_ReceivesLifecycle(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	mgr, drv := newTestManager(t, database.WithObserver(obs))
	drv.Handle(alertRows)

	_, err := mgr.Execute(context.Background(), "SELECT * FROM alert WHERE severity = $sev", map[string]any{"sev": "warn"})
	require.NoError(t, err)

	assert.Equal(t, []string{"started", "succeeded"}, obs.events)
	assert.NotEmpty(t, obs.last.ID)
	assert.Equal(t, 1, obs.last.ParamCount)
	assert.False(t, obs.last.InTransaction)
	assert.Equal(t, database.ResultShape{Rows: 2, Columns: []string{"id", "severity"}}, obs.shape)
}

func TestObserver_TransactionStatementsAreMarked(t *testing.T) {
	t.Parallel()
	obs := &recordingObserver{}
	mgr, _ := newTestManager(t, database.WithObserver(obs))

	require.NoError(t, mgr.Transaction(context.Background(), func(ctx context.Context, tx *database.Tx) error {
		_, err := tx.Execute(ctx, "CREATE alert:a", nil)
		return err
	}))
	assert.True(t, obs.last.InTransaction)
}

func TestObserver_PanicDoesNotFailQuery(t *testing.T) {
	t.Parallel()
	mgr, drv := newTestManager(t, database.WithObserver(panickingObserver{}))
	drv.Handle(alertRows)

	rows, err := mgr.Execute(context.Background(), "SELECT * FROM alert", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestObservers_FanOut(t *testing.T) {
	t.Parallel()
	a, b := &recordingObserver{}, &recordingObserver{}
	mgr, drv := newTestManager(t, database.WithObserver(database.Observers(a, b)))
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		return nil, &database.StatementError{Message: "bad"}
	})

	_, err := mgr.Execute(context.Background(), "SELECT", nil)
	require.Error(t, err)
	assert.Equal(t, []string{"started", "failed"}, a.events)
	assert.Equal(t, []string{"started", "failed"}, b.events)
}

// ============================================================================
// LogObserver
// ============================================================================

func TestLogObserver_SuccessAndFailure(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	mgr, drv := newTestManager(t, database.WithObserver(database.NewLogObserver(logger, 0)))
	ctx := context.Background()

	drv.Handle(alertRows)
	_, err := mgr.Execute(ctx, "SELECT * FROM alert", nil)
	require.NoError(t, err)

	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		return nil, &database.StatementError{Message: "Parse error"}
	})
	_, err = mgr.Execute(ctx, "SELEC", nil)
	require.Error(t, err)

	lines := logLines(t, &buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "query started", lines[0]["message"])
	assert.Equal(t, "query succeeded", lines[1]["message"])
	assert.Equal(t, float64(2), lines[1]["rows"])
	assert.Equal(t, "debug", lines[1]["level"])
	assert.Equal(t, "query failed", lines[3]["message"])
	assert.Equal(t, "error", lines[3]["level"])
	assert.Equal(t, "statement", lines[3]["kind"])
	assert.Equal(t, "SELEC", lines[3]["query"])
}

func TestLogObserver_SlowQueryWarns(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.WarnLevel)
	mgr, drv := newTestManager(t, database.WithObserver(database.NewLogObserver(logger, time.Millisecond)))
	require.NoError(t, mgr.Connect(context.Background()))
	drv.SetQueryDelay(5 * time.Millisecond)

	_, err := mgr.Execute(context.Background(), "SELECT * FROM alert", nil)
	require.NoError(t, err)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "SELECT * FROM alert", lines[0]["query"])
}

// ============================================================================
// TraceObserver
// ============================================================================

func TestTraceObserver_RecordsSpans(t *testing.T) {
	t.Parallel()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	mgr, drv := newTestManager(t, database.WithObserver(database.NewTraceObserver(tp.Tracer("vitals-test"))))
	ctx := context.Background()

	drv.Handle(alertRows)
	_, err := mgr.Execute(ctx, "SELECT * FROM alert", map[string]any{"a": 1})
	require.NoError(t, err)

	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		return nil, &database.StatementError{Message: "Parse error"}
	})
	_, err = mgr.Execute(ctx, "SELEC", nil)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, database.SpanQuery, ok.Name())
	assert.Equal(t, codes.Ok, ok.Status().Code)
	attrs := attrMap(ok.Attributes())
	assert.Equal(t, "SELECT * FROM alert", attrs[database.AttrStatement].AsString())
	assert.Equal(t, int64(1), attrs[database.AttrParamCount].AsInt64())
	assert.Equal(t, int64(2), attrs[database.AttrRows].AsInt64())
	assert.False(t, attrs[database.AttrTransaction].AsBool())

	failed := spans[1]
	assert.Equal(t, codes.Error, failed.Status().Code)
	assert.Equal(t, "statement", attrMap(failed.Attributes())[database.AttrErrorKind].AsString())
	require.NotEmpty(t, failed.Events(), "error should be recorded on the span")
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}
