package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenStatements(t *testing.T) {
	t.Parallel()
	rows, err := flattenStatements([]statementResult{
		{status: "OK", result: []any{
			map[string]any{"id": "alert:1"},
			map[any]any{"id": "alert:2"},
		}},
		{status: "OK", result: nil},
		{status: "OK", result: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{"id": "alert:1"},
		{"id": "alert:2"},
		{"value": 1},
	}, rows)
}

func TestFlattenStatements_StatementError(t *testing.T) {
	t.Parallel()
	_, err := flattenStatements([]statementResult{
		{status: "OK", result: []any{}},
		{status: "ERR", message: "There was a problem with the database: Parse error"},
	})

	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Contains(t, stmtErr.Message, "Parse error")
	assert.False(t, IsTransient(err))

	_, err = flattenStatements([]statementResult{{status: "ERR"}})
	assert.ErrorContains(t, err, `status "ERR"`)
}

func TestDecode(t *testing.T) {
	t.Parallel()
	type alert struct {
		ID       string `json:"id"`
		Severity string `json:"severity"`
		Count    int    `json:"count"`
	}

	got, err := Decode[alert](Row{"id": "alert:1", "severity": "warn", "count": 3})
	require.NoError(t, err)
	assert.Equal(t, alert{ID: "alert:1", Severity: "warn", Count: 3}, got)

	all, err := DecodeAll[alert]([]Row{{"id": "a"}, {"id": "b"}})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = Decode[alert](Row{"count": "three"})
	assert.Error(t, err)
}

// ============================================================================
// surrealTx staging
// ============================================================================

func TestSurrealTx_StagesUntilCommit(t *testing.T) {
	t.Parallel()
	tx := &surrealTx{builder: NewTxBuilder()}

	rows, err := tx.Query(context.Background(), "CREATE alert SET severity = $sev", map[string]any{"sev": "warn"})
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.Equal(t, 1, tx.builder.Len())

	require.NoError(t, tx.Cancel(context.Background()))
	assert.Equal(t, 0, tx.builder.Len(), "cancel discards staged statements")

	_, err = tx.Query(context.Background(), "CREATE alert", nil)
	assert.ErrorIs(t, err, ErrTxDone)
	assert.ErrorIs(t, tx.Commit(context.Background()), ErrTxDone)
	assert.ErrorIs(t, tx.Cancel(context.Background()), ErrTxDone)
}

func TestSurrealTx_EmptyCommitSendsNothing(t *testing.T) {
	t.Parallel()
	tx := &surrealTx{builder: NewTxBuilder()}
	require.NoError(t, tx.Commit(context.Background()))
	assert.Nil(t, tx.CommitResults())
}

func TestSurrealTx_RejectsTransactionControl(t *testing.T) {
	t.Parallel()
	tx := &surrealTx{builder: NewTxBuilder()}
	for _, q := range []string{"BEGIN", "begin transaction", "COMMIT;", " CANCEL TRANSACTION"} {
		_, err := tx.Query(context.Background(), q, nil)
		var stmtErr *StatementError
		assert.ErrorAs(t, err, &stmtErr, q)
	}
	assert.Equal(t, 0, tx.builder.Len())

	_, err := tx.Query(context.Background(), "CREATE begin_marker", nil)
	assert.NoError(t, err)
}
