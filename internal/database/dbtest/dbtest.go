// Package dbtest provides an in-memory database.Driver for unit tests.
//
// The fake records every call, can be told to fail the next N opens or
// queries, and keeps a log of statements that took effect so tests can
// check what a cancelled transaction left behind.
//
// Usage:
//
//	drv := dbtest.NewDriver()
//	drv.FailQueries(1) // next query fails with a transport error
//	mgr := database.NewManager(cfg, drv)
package dbtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/forgo/vitals/internal/database"
)

// ErrConnReset is the transport failure injected by FailOpens and FailQueries.
var ErrConnReset = errors.New("dbtest: connection reset by peer")

// HandlerFunc answers a query. Returning a *database.StatementError simulates
// a statement rejected by the store.
type HandlerFunc func(query string, params map[string]any) ([]database.Row, error)

// Counts is a snapshot of calls made against a Driver.
type Counts struct {
	Opens   int
	SignIns int
	Uses    int
	Closes  int
	Queries int
	Begins  int
	Commits int
	Cancels int
}

// Driver is a fake database.Driver.
type Driver struct {
	mu sync.Mutex

	counts      Counts
	failOpens   int
	failQueries int
	signInErr   error
	commitErr   error
	cancelErr   error
	queryDelay  time.Duration
	handler     HandlerFunc

	applied  []string
	sessions []*Session
}

// NewDriver creates a Driver whose queries return no rows.
func NewDriver() *Driver {
	return &Driver{}
}

// FailOpens makes the next n Open calls fail with ErrConnReset.
func (d *Driver) FailOpens(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failOpens = n
}

// FailQueries makes the next n queries fail with ErrConnReset. The session
// that saw the failure stays broken, as a dropped socket would.
func (d *Driver) FailQueries(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failQueries = n
}

// SetSignInError makes every sign-in fail with err.
func (d *Driver) SetSignInError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.signInErr = err
}

// SetCommitError makes every commit fail with err.
func (d *Driver) SetCommitError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commitErr = err
}

// SetCancelError makes every cancel fail with err.
func (d *Driver) SetCancelError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelErr = err
}

// SetQueryDelay makes every query wait d, or until its context is done.
func (d *Driver) SetQueryDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queryDelay = delay
}

// Handle installs the function that answers queries.
func (d *Driver) Handle(h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handler = h
}

// Counts returns a snapshot of the call counters.
func (d *Driver) Counts() Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts
}

// Applied returns the statements that took effect, in order. Statements run
// inside a transaction appear only once it commits.
func (d *Driver) Applied() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.applied...)
}

// Sessions returns every session opened so far.
func (d *Driver) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Session(nil), d.sessions...)
}

// Open implements database.Driver.
func (d *Driver) Open(ctx context.Context, endpoint string) (database.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.counts.Opens++
	if d.failOpens > 0 {
		d.failOpens--
		return nil, ErrConnReset
	}
	s := &Session{driver: d, Endpoint: endpoint}
	d.sessions = append(d.sessions, s)
	return s, nil
}

// query runs one statement. It consumes injected failures, waits out the
// configured delay and asks the handler for rows.
func (d *Driver) query(ctx context.Context, s *Session, query string, params map[string]any) ([]database.Row, error) {
	d.mu.Lock()
	d.counts.Queries++
	if s.broken || s.closed {
		d.mu.Unlock()
		return nil, ErrConnReset
	}
	if d.failQueries > 0 {
		d.failQueries--
		s.broken = true
		d.mu.Unlock()
		return nil, ErrConnReset
	}
	delay := d.queryDelay
	handler := d.handler
	d.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if handler == nil {
		return nil, nil
	}
	return handler(query, params)
}

// Session is a fake database.Session.
type Session struct {
	driver   *Driver
	Endpoint string

	Credentials database.Credentials
	Context     database.SessionContext

	broken bool
	closed bool
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	return s.closed
}

func (s *Session) SignIn(ctx context.Context, creds database.Credentials, sc database.SessionContext) error {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()

	s.driver.counts.SignIns++
	if s.driver.signInErr != nil {
		return s.driver.signInErr
	}
	s.Credentials = creds
	return nil
}

func (s *Session) Use(ctx context.Context, sc database.SessionContext) error {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()

	s.driver.counts.Uses++
	s.Context = sc
	return nil
}

func (s *Session) Query(ctx context.Context, query string, params map[string]any) ([]database.Row, error) {
	rows, err := s.driver.query(ctx, s, query, params)
	if err != nil {
		return nil, err
	}
	s.driver.mu.Lock()
	s.driver.applied = append(s.driver.applied, query)
	s.driver.mu.Unlock()
	return rows, nil
}

func (s *Session) Begin(ctx context.Context) (database.SessionTx, error) {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()

	s.driver.counts.Begins++
	if s.broken || s.closed {
		return nil, ErrConnReset
	}
	return &Tx{session: s}, nil
}

func (s *Session) Close(ctx context.Context) error {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()

	s.driver.counts.Closes++
	s.closed = true
	return nil
}

// Tx is a fake database.SessionTx. Statements are staged and only reach the
// driver's applied log on Commit.
type Tx struct {
	session *Session
	staged  []string
	rows    []database.Row
}

func (t *Tx) Query(ctx context.Context, query string, params map[string]any) ([]database.Row, error) {
	rows, err := t.session.driver.query(ctx, t.session, query, params)
	if err != nil {
		return nil, err
	}
	t.staged = append(t.staged, query)
	t.rows = append(t.rows, rows...)
	return rows, nil
}

func (t *Tx) Commit(ctx context.Context) error {
	d := t.session.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	d.counts.Commits++
	if d.commitErr != nil {
		return d.commitErr
	}
	d.applied = append(d.applied, t.staged...)
	t.staged = nil
	return nil
}

func (t *Tx) Cancel(ctx context.Context) error {
	d := t.session.driver
	d.mu.Lock()
	defer d.mu.Unlock()

	d.counts.Cancels++
	t.staged = nil
	t.rows = nil
	return d.cancelErr
}

// CommitResults returns the rows produced by the committed statements.
func (t *Tx) CommitResults() []database.Row {
	return t.rows
}
