package database

import (
	"context"
	"time"
)

// Row is a single result record keyed by field name.
type Row map[string]any

// SessionContext is the namespace/database pair a session is bound to.
type SessionContext struct {
	Namespace string
	Database  string
}

// Driver opens sessions to the store.
type Driver interface {
	Open(ctx context.Context, endpoint string) (Session, error)
}

// Session is one live channel to the store. Implementations must be safe
// for concurrent Query calls.
type Session interface {
	SignIn(ctx context.Context, creds Credentials, sc SessionContext) error
	Use(ctx context.Context, sc SessionContext) error
	Query(ctx context.Context, query string, params map[string]any) ([]Row, error)
	Begin(ctx context.Context) (SessionTx, error)
	Close(ctx context.Context) error
}

// SessionTx is a transaction opened on a Session.
type SessionTx interface {
	Query(ctx context.Context, query string, params map[string]any) ([]Row, error)
	Commit(ctx context.Context) error
	Cancel(ctx context.Context) error
}

// Config holds the Manager configuration.
type Config struct {
	URL         string
	Namespace   string
	Database    string
	Credentials Credentials
	Retry       RetryPolicy
	Health      HealthPolicy

	// TxWait bounds how long a query or transaction waits for a running
	// transaction to finish before failing with ErrTransactionBusy.
	TxWait time.Duration
}

// RetryPolicy bounds connection establishment.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64
}

// HealthPolicy configures the liveness probe.
type HealthPolicy struct {
	Timeout time.Duration
	Query   string
}

// Defaults for zero-valued policy fields.
const (
	DefaultRetryMaxAttempts = 5
	DefaultRetryBaseDelay   = 100 * time.Millisecond
	DefaultRetryMaxDelay    = 5 * time.Second
	DefaultRetryMultiplier  = 2.0
	DefaultRetryJitter      = 0.1
	DefaultHealthTimeout    = 5 * time.Second
	DefaultHealthQuery      = "RETURN 1"
	DefaultTxWait           = 30 * time.Second
)

func (c Config) sessionContext() SessionContext {
	return SessionContext{Namespace: c.Namespace, Database: c.Database}
}

func (c Config) withDefaults() Config {
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = DefaultRetryMaxAttempts
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = DefaultRetryBaseDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = DefaultRetryMaxDelay
	}
	if c.Retry.Multiplier < 1 {
		c.Retry.Multiplier = DefaultRetryMultiplier
	}
	if c.Retry.Jitter < 0 {
		c.Retry.Jitter = 0
	}
	if c.Health.Timeout <= 0 {
		c.Health.Timeout = DefaultHealthTimeout
	}
	if c.Health.Query == "" {
		c.Health.Query = DefaultHealthQuery
	}
	if c.TxWait <= 0 {
		c.TxWait = DefaultTxWait
	}
	return c
}

// State is the connection state of a Manager.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
