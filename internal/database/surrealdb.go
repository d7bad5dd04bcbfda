package database

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/surrealdb/surrealdb.go"
)

// SurrealDriver opens SurrealDB sessions. The endpoint scheme (ws, wss,
// http, https) selects the engine.
type SurrealDriver struct{}

// Open dials endpoint.
func (SurrealDriver) Open(ctx context.Context, endpoint string) (Session, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return &surrealSession{db: db}, nil
}

// surrealSession is one SurrealDB connection. The client correlates
// requests by id, so concurrent Query calls are safe.
type surrealSession struct {
	db *surrealdb.DB
}

func (s *surrealSession) SignIn(ctx context.Context, creds Credentials, sc SessionContext) error {
	switch creds.Method {
	case AuthNone:
		return nil
	case AuthToken:
		return s.db.Authenticate(ctx, creds.Token)
	}

	auth := &surrealdb.Auth{
		Username: creds.Username,
		Password: creds.Password,
	}
	switch creds.Method {
	case AuthRoot:
	case AuthNamespace:
		auth.Namespace = sc.Namespace
	case AuthDatabase:
		auth.Namespace = sc.Namespace
		auth.Database = sc.Database
	case AuthRecord:
		auth.Namespace = sc.Namespace
		auth.Database = sc.Database
		auth.Access = creds.Access
	default:
		return fmt.Errorf("unsupported auth method %q", creds.Method)
	}

	_, err := s.db.SignIn(ctx, auth)
	return err
}

func (s *surrealSession) Use(ctx context.Context, sc SessionContext) error {
	return s.db.Use(ctx, sc.Namespace, sc.Database)
}

func (s *surrealSession) Query(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	results, err := surrealdb.Query[any](ctx, s.db, query, params)
	if err != nil {
		return nil, err
	}
	if results == nil {
		return nil, nil
	}

	statements := make([]statementResult, 0, len(*results))
	for _, r := range *results {
		sr := statementResult{status: r.Status, result: r.Result}
		if r.Error != nil {
			sr.message = r.Error.Message
		}
		statements = append(statements, sr)
	}
	return flattenStatements(statements)
}

func (s *surrealSession) Begin(ctx context.Context) (SessionTx, error) {
	return &surrealTx{session: s, builder: NewTxBuilder()}, nil
}

func (s *surrealSession) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

// surrealTx stages statements and sends them as one BEGIN/COMMIT block on
// Commit. Cancel discards the staged statements, so nothing reaches the
// store unless the whole block commits.
type surrealTx struct {
	session *surrealSession
	mu      sync.Mutex
	builder *TxBuilder
	results []Row
	done    bool
}

func (t *surrealTx) Query(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil, ErrTxDone
	}
	if isTransactionControl(query) {
		return nil, &StatementError{Message: "transaction control statements are managed by Transaction"}
	}
	t.builder.Add(query, params)
	return nil, nil
}

func (t *surrealTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxDone
	}
	t.done = true

	query, vars := t.builder.Build()
	if query == "" {
		return nil
	}
	rows, err := t.session.Query(ctx, query, vars)
	if err != nil {
		return err
	}
	t.results = rows
	return nil
}

func (t *surrealTx) Cancel(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.builder = NewTxBuilder()
	return nil
}

func (t *surrealTx) CommitResults() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.results
}

func isTransactionControl(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	for _, kw := range []string{"BEGIN", "COMMIT", "CANCEL"} {
		if q == kw || strings.HasPrefix(q, kw+" ") || strings.HasPrefix(q, kw+";") {
			return true
		}
	}
	return false
}
