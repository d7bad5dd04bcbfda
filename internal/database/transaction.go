package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// TxState is the lifecycle state of a Tx.
type TxState int

const (
	TxActive TxState = iota
	TxCommitted
	TxCancelled
)

func (s TxState) String() string {
	switch s {
	case TxActive:
		return "active"
	case TxCommitted:
		return "committed"
	case TxCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Tx is the handle passed to a Transaction body.
type Tx struct {
	ID string

	manager *Manager
	stx     SessionTx

	mu      sync.Mutex
	state   TxState
	results []Row
}

type txContextKey struct{}

func txFromContext(ctx context.Context) *Tx {
	tx, _ := ctx.Value(txContextKey{}).(*Tx)
	return tx
}

// State returns the transaction state.
func (tx *Tx) State() TxState {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

// Execute runs query inside the transaction. Failures are not retried.
func (tx *Tx) Execute(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	return tx.manager.observe(ctx, query, params, true, func(ctx context.Context, query string, params map[string]any) ([]Row, error) {
		tx.mu.Lock()
		defer tx.mu.Unlock()

		if tx.state != TxActive {
			return nil, ErrTxDone
		}
		rows, err := tx.stx.Query(ctx, query, params)
		if err != nil {
			return nil, &QueryExecutionError{Query: query, Attempts: 1, Err: err}
		}
		return rows, nil
	})
}

// Results returns the rows reported by the store at commit time, for drivers
// that defer statement results until commit.
func (tx *Tx) Results() []Row {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.results
}

// CommitResulter is implemented by SessionTx values that report statement
// results at commit.
type CommitResulter interface {
	CommitResults() []Row
}

func (tx *Tx) commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state != TxActive {
		return ErrTxDone
	}
	if err := tx.stx.Commit(ctx); err != nil {
		tx.state = TxCancelled
		return err
	}
	tx.state = TxCommitted
	if cr, ok := tx.stx.(CommitResulter); ok {
		tx.results = cr.CommitResults()
	}
	return nil
}

func (tx *Tx) cancel(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state != TxActive {
		return ErrTxDone
	}
	tx.state = TxCancelled
	return tx.stx.Cancel(ctx)
}

// TxFunc is the body of a transaction.
type TxFunc func(ctx context.Context, tx *Tx) error

// Transaction runs fn between BEGIN and COMMIT.
//
// If fn returns an error or panics, CANCEL is attempted once and the original
// error (or panic) is propagated; a failing CANCEL is logged, never returned.
// Nothing a cancelled transaction ran is kept.
//
// Transactions run exclusively: plain Execute calls wait until the
// transaction finishes, for at most Config.TxWait. Inside fn, use tx.Execute
// or Execute with the ctx passed to fn; Execute with an unrelated ctx waits
// on this transaction and fails with ErrTransactionBusy.
func (m *Manager) Transaction(ctx context.Context, fn TxFunc) (err error) {
	if txFromContext(ctx) != nil {
		return ErrNestedTransaction
	}

	if err := m.enterGate(ctx, txGateWeight); err != nil {
		return err
	}
	defer m.txGate.Release(txGateWeight)

	sess, err := m.acquire(ctx)
	if err != nil {
		return err
	}

	stx, err := sess.Begin(ctx)
	if err != nil {
		return &TransactionError{Op: "begin", Err: err}
	}

	tx := &Tx{ID: uuid.NewString(), manager: m, stx: stx, state: TxActive}
	log := m.logger.With().Str("tx_id", tx.ID).Logger()
	log.Debug().Msg("transaction begun")

	defer func() {
		if r := recover(); r != nil {
			m.cancelQuietly(ctx, tx)
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx), tx); err != nil {
		m.cancelQuietly(ctx, tx)
		return err
	}

	if err := tx.commit(ctx); err != nil {
		log.Error().Err(err).Msg("transaction commit failed")
		return &TransactionError{Op: "commit", Err: err}
	}
	log.Debug().Msg("transaction committed")
	return nil
}

func (m *Manager) cancelQuietly(ctx context.Context, tx *Tx) {
	if err := tx.cancel(context.WithoutCancel(ctx)); err != nil {
		m.logger.Warn().Err(err).Str("tx_id", tx.ID).Msg("transaction cancel failed")
		return
	}
	m.logger.Debug().Str("tx_id", tx.ID).Msg("transaction cancelled")
}

var paramRef = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)

// TxBuilder assembles statements into a single BEGIN/COMMIT block,
// namespacing variables so statements that reuse a name do not collide.
//
// Example: two statements both using $email become $v1_email and $v2_email.
type TxBuilder struct {
	statements []string
	vars       map[string]any
	counter    int
}

// NewTxBuilder creates an empty builder.
func NewTxBuilder() *TxBuilder {
	return &TxBuilder{vars: make(map[string]any)}
}

// Add appends a statement and returns the mapping from its variable names to
// the namespaced names.
func (tb *TxBuilder) Add(query string, vars map[string]any) map[string]string {
	tb.counter++

	mapping := make(map[string]string, len(vars))
	for name, value := range vars {
		renamed := fmt.Sprintf("v%d_%s", tb.counter, name)
		tb.vars[renamed] = value
		mapping[name] = renamed
	}
	if len(mapping) > 0 {
		// Whole identifiers only: $note must not touch $notes or $value.
		query = paramRef.ReplaceAllStringFunc(query, func(ref string) string {
			if renamed, ok := mapping[ref[1:]]; ok {
				return "$" + renamed
			}
			return ref
		})
	}

	tb.statements = append(tb.statements, query)
	return mapping
}

// Len returns the number of statements added.
func (tb *TxBuilder) Len() int {
	return len(tb.statements)
}

// Build returns the transaction block and the merged variables. An empty
// builder yields an empty query.
func (tb *TxBuilder) Build() (string, map[string]any) {
	if len(tb.statements) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	for _, stmt := range tb.statements {
		stmt = strings.TrimSpace(stmt)
		sb.WriteString(stmt)
		if !strings.HasSuffix(stmt, ";") {
			sb.WriteString(";")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("COMMIT TRANSACTION;")

	return sb.String(), tb.vars
}

// Batch is a list of statements run together in one Transaction.
type Batch struct {
	queries []batchQuery
}

type batchQuery struct {
	query string
	vars  map[string]any
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Add appends a statement to the batch.
func (b *Batch) Add(query string, vars map[string]any) *Batch {
	b.queries = append(b.queries, batchQuery{query: query, vars: vars})
	return b
}

// Len returns the number of statements in the batch.
func (b *Batch) Len() int {
	return len(b.queries)
}

// Transactor runs a transaction body. *Manager implements it.
type Transactor interface {
	Transaction(ctx context.Context, fn TxFunc) error
}

// Execute runs all statements in one transaction. An empty batch is a no-op.
func (b *Batch) Execute(ctx context.Context, t Transactor) error {
	if len(b.queries) == 0 {
		return nil
	}
	return t.Transaction(ctx, func(ctx context.Context, tx *Tx) error {
		for _, q := range b.queries {
			if _, err := tx.Execute(ctx, q.query, q.vars); err != nil {
				return err
			}
		}
		return nil
	})
}
