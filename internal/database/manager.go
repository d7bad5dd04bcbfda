package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/forgo/vitals/internal/retry"
)

// Manager owns the single session to the store.
//
// Connect, Disconnect and reconnects are serialised by mu. Queries share the
// published session concurrently; a transaction takes the whole txGate so it
// never interleaves with plain queries.
type Manager struct {
	cfg      Config
	driver   Driver
	logger   zerolog.Logger
	observer Observer
	retry    *retry.Executor

	mu      sync.Mutex
	state   State
	session Session

	txGate *semaphore.Weighted
}

// txGateWeight is held whole by a transaction and by one unit per query.
const txGateWeight = 1 << 30

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithObserver sets the query observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithBackoff replaces the backoff built from Config.Retry.
func WithBackoff(strategy retry.BackoffStrategy) Option {
	return func(m *Manager) {
		m.retry = retry.NewExecutor(retry.ClassifierFunc(IsTransient), strategy)
	}
}

// NewManager creates a disconnected Manager. No I/O happens until Connect,
// Execute, Transaction or HealthCheck.
func NewManager(cfg Config, driver Driver, opts ...Option) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{
		cfg:      cfg,
		driver:   driver,
		logger:   zerolog.Nop(),
		observer: nopObserver{},
		state:    StateDisconnected,
		txGate:   semaphore.NewWeighted(txGateWeight),
	}
	m.retry = retry.NewExecutor(retry.ClassifierFunc(IsTransient), retry.NewExponentialBackoff(
		cfg.Retry.MaxAttempts,
		retry.WithInitialDelay(cfg.Retry.BaseDelay),
		retry.WithMaxDelay(cfg.Retry.MaxDelay),
		retry.WithMultiplier(cfg.Retry.Multiplier),
		retry.WithJitter(cfg.Retry.Jitter),
	))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionContext returns the namespace/database the session is bound to.
func (m *Manager) SessionContext() SessionContext {
	return m.cfg.sessionContext()
}

// Connect establishes the session if it is not already established.
// Concurrent callers share one handshake.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateConnected && m.session != nil {
		return nil
	}
	return m.connectLocked(ctx)
}

// Disconnect closes the session. It never fails and always leaves the
// Manager disconnected.
func (m *Manager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.logger.Info().Str("url", m.cfg.URL).Msg("database disconnected")
	}
	m.dropLocked(ctx)
}

func (m *Manager) dropLocked(ctx context.Context) {
	if m.session != nil {
		if err := m.session.Close(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("closing database session")
		}
	}
	m.session = nil
	m.state = StateDisconnected
}

func (m *Manager) connectLocked(ctx context.Context) error {
	if err := m.cfg.Credentials.Validate(); err != nil {
		m.state = StateFailed
		return &AuthenticationError{Method: m.cfg.Credentials.Method, Err: err}
	}

	m.state = StateConnecting
	start := time.Now()

	var sess Session
	attempts, err := m.retry.
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			m.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("database connect failed, retrying")
		}).
		Execute(ctx, func(ctx context.Context) error {
			s, err := m.open(ctx)
			if err != nil {
				return err
			}
			sess = s
			return nil
		})
	if err != nil {
		m.state = StateFailed
		m.logger.Error().
			Err(err).
			Str("url", m.cfg.URL).
			Int("attempts", attempts).
			Msg("database connect failed")
		return &ConnectionError{Endpoint: m.cfg.URL, Attempts: attempts, Err: err}
	}

	m.session = sess
	m.state = StateConnected
	m.logger.Info().
		Str("url", m.cfg.URL).
		Str("namespace", m.cfg.Namespace).
		Str("database", m.cfg.Database).
		Int("attempts", attempts).
		Dur("elapsed", time.Since(start)).
		Msg("database connected")
	return nil
}

// open performs one handshake: open, sign in, select namespace/database.
func (m *Manager) open(ctx context.Context) (Session, error) {
	sess, err := m.driver.Open(ctx, m.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	sc := m.cfg.sessionContext()
	if err := sess.SignIn(ctx, m.cfg.Credentials, sc); err != nil {
		_ = sess.Close(ctx)
		return nil, &AuthenticationError{Method: m.cfg.Credentials.Method, Err: err}
	}
	if err := sess.Use(ctx, sc); err != nil {
		_ = sess.Close(ctx)
		return nil, fmt.Errorf("use %s/%s: %w", sc.Namespace, sc.Database, err)
	}
	return sess, nil
}

// acquire returns the live session, connecting first if needed.
func (m *Manager) acquire(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The caller may have given up while a connect held mu.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.state != StateConnected || m.session == nil {
		if err := m.connectLocked(ctx); err != nil {
			return nil, err
		}
	}
	return m.session, nil
}

// reconnect replaces failed with a fresh session. If another caller already
// replaced it, the current session is returned without a new handshake.
func (m *Manager) reconnect(ctx context.Context, failed Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateConnected && m.session != nil && m.session != failed {
		return m.session, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.dropLocked(ctx)
	if err := m.connectLocked(ctx); err != nil {
		return nil, err
	}
	return m.session, nil
}

// invalidate drops sess if it is still the published session and marks the
// Manager failed, so the next caller connects again.
func (m *Manager) invalidate(ctx context.Context, sess Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != sess {
		return
	}
	m.logger.Warn().Str("url", m.cfg.URL).Msg("database session lost")
	m.dropLocked(ctx)
	m.state = StateFailed
}

// enterGate takes n units of txGate, waiting at most Config.TxWait for a
// running transaction.
func (m *Manager) enterGate(ctx context.Context, n int64) error {
	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.TxWait)
	defer cancel()

	if err := m.txGate.Acquire(waitCtx, n); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return ErrTransactionBusy
	}
	return nil
}
