package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgo/vitals/internal/retry"
)

// Standard errors for database operations.
// Use errors.Is() to check these error types in calling code.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConnection indicates the session could not be established or re-established.
	ErrConnection = errors.New("database connection error")

	// ErrAuthentication indicates the configured credentials were rejected.
	ErrAuthentication = errors.New("database authentication failed")

	// ErrQuery indicates a query failed after the reconnect budget was spent.
	ErrQuery = errors.New("query error")

	// ErrTransaction indicates a transaction could not begin or commit.
	ErrTransaction = errors.New("transaction error")

	// ErrTxDone is returned when using a transaction that already committed or cancelled.
	ErrTxDone = errors.New("transaction has already been committed or cancelled")

	// ErrNestedTransaction is returned when Transaction is called inside a transaction body.
	ErrNestedTransaction = errors.New("nested transactions are not supported")

	// ErrTransactionBusy is returned when a running transaction did not finish
	// within Config.TxWait. Inside a transaction body, Execute must be given
	// the body's ctx; any other ctx waits for the transaction itself.
	ErrTransactionBusy = errors.New("timed out waiting for a running transaction")
)

// ConnectionError reports that the retry budget for establishing a session ran out.
type ConnectionError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s failed after %d attempt(s): %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

// AuthenticationError reports that sign-in with the configured method was rejected.
type AuthenticationError struct {
	Method AuthMethod
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("sign in (%s): %v", e.Method, e.Err)
}

func (e *AuthenticationError) Unwrap() []error {
	return []error{ErrAuthentication, e.Err}
}

// QueryExecutionError reports a query that failed for good.
type QueryExecutionError struct {
	Query    string
	Attempts int
	Err      error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *QueryExecutionError) Unwrap() []error {
	return []error{ErrQuery, e.Err}
}

// StatementError is an error reported by the store for a statement: syntax,
// schema or constraint problems. It is never retried.
type StatementError struct {
	Message string
}

func (e *StatementError) Error() string {
	return e.Message
}

// TransactionError reports a failed BEGIN or COMMIT.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error {
	return []error{ErrTransaction, e.Err}
}

// IsTransient reports whether err is a transport-level failure worth a
// reconnect: anything except statement errors, authentication failures,
// finished transactions and caller cancellation.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var stmtErr *StatementError
	if errors.As(err, &stmtErr) {
		return false
	}
	if errors.Is(err, ErrAuthentication) || errors.Is(err, ErrTxDone) ||
		errors.Is(err, ErrNestedTransaction) || errors.Is(err, ErrTransactionBusy) {
		return false
	}
	if retry.IsCanceled(err) {
		return false
	}
	return true
}

// ErrorKind returns a coarse label for err, used in logs and traces.
func ErrorKind(err error) string {
	var stmtErr *StatementError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.As(err, &stmtErr):
		return "statement"
	case errors.Is(err, ErrTransaction), errors.Is(err, ErrTxDone),
		errors.Is(err, ErrNestedTransaction), errors.Is(err, ErrTransactionBusy):
		return "transaction"
	case retry.IsNetworkError(err):
		return "network"
	default:
		return "unknown"
	}
}
