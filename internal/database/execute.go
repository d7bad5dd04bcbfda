package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Execute runs query with params and returns the resulting rows.
//
// The session is established on first use. A transient failure drops the
// session, reconnects under the retry policy and resubmits the query once;
// if that attempt fails too the error is returned as a QueryExecutionError.
// Statement errors are returned without reconnecting.
//
// Called with the context of a transaction body, Execute runs inside that
// transaction instead. With any other ctx it waits for a running transaction
// to finish, for at most Config.TxWait; a body that calls Execute without its
// own ctx therefore fails with ErrTransactionBusy.
func (m *Manager) Execute(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	if tx := txFromContext(ctx); tx != nil && tx.manager == m {
		return tx.Execute(ctx, query, params)
	}

	if err := m.enterGate(ctx, 1); err != nil {
		return nil, err
	}
	defer m.txGate.Release(1)

	return m.observe(ctx, query, params, false, m.run)
}

// QueryOne runs query and returns its first row, or ErrNotFound.
func (m *Manager) QueryOne(ctx context.Context, query string, params map[string]any) (Row, error) {
	rows, err := m.Execute(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

type runFunc func(ctx context.Context, query string, params map[string]any) ([]Row, error)

func (m *Manager) observe(ctx context.Context, query string, params map[string]any, inTx bool, run runFunc) ([]Row, error) {
	ev := QueryEvent{
		ID:            uuid.NewString(),
		Query:         query,
		ParamCount:    len(params),
		InTransaction: inTx,
		Started:       time.Now(),
	}
	obsCtx := m.notifyStarted(ctx, ev)

	rows, err := run(ctx, query, params)
	if err != nil {
		m.notifyFailed(obsCtx, ev, err)
		return nil, err
	}
	m.notifySucceeded(obsCtx, ev, shapeOf(rows))
	return rows, nil
}

func (m *Manager) run(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	sess, err := m.acquire(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := sess.Query(ctx, query, params)
	if err == nil {
		return rows, nil
	}
	if !IsTransient(err) || ctx.Err() != nil {
		return nil, &QueryExecutionError{Query: query, Attempts: 1, Err: err}
	}

	m.logger.Warn().
		Err(err).
		Str("kind", ErrorKind(err)).
		Msg("query failed on session, reconnecting once")

	sess, err = m.reconnect(ctx, sess)
	if err != nil {
		return nil, err
	}

	rows, err = sess.Query(ctx, query, params)
	if err != nil {
		return nil, &QueryExecutionError{Query: query, Attempts: 2, Err: err}
	}
	return rows, nil
}

// Observer calls are isolated: a panicking observer never fails the query.

func (m *Manager) notifyStarted(ctx context.Context, ev QueryEvent) (out context.Context) {
	out = ctx
	defer m.recoverObserver("started")
	return m.observer.QueryStarted(ctx, ev)
}

func (m *Manager) notifySucceeded(ctx context.Context, ev QueryEvent, shape ResultShape) {
	defer m.recoverObserver("succeeded")
	m.observer.QuerySucceeded(ctx, ev, shape)
}

func (m *Manager) notifyFailed(ctx context.Context, ev QueryEvent, err error) {
	defer m.recoverObserver("failed")
	m.observer.QueryFailed(ctx, ev, err)
}

func (m *Manager) recoverObserver(event string) {
	if r := recover(); r != nil {
		m.logger.Error().Interface("panic", r).Str("event", event).Msg("query observer panicked")
	}
}
