package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Accessor hands out one lazily built Manager for the lifetime of a process
// or test. It is constructed explicitly and passed to whoever needs it.
type Accessor struct {
	factory func() (*Manager, error)
	logger  zerolog.Logger

	mu      sync.Mutex
	manager *Manager
}

// NewAccessor creates an Accessor that builds its Manager with factory on
// first use.
func NewAccessor(factory func() (*Manager, error), logger zerolog.Logger) *Accessor {
	return &Accessor{factory: factory, logger: logger}
}

// Get returns the Manager, building and connecting it on first use. Every
// call until Close returns the same instance.
func (a *Accessor) Get(ctx context.Context) (*Manager, error) {
	mgr, err := a.instance()
	if err != nil {
		return nil, err
	}
	if err := mgr.Connect(ctx); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (a *Accessor) instance() (*Manager, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.manager != nil {
		return a.manager, nil
	}
	mgr, err := a.factory()
	if err != nil {
		return nil, fmt.Errorf("build database manager: %w", err)
	}
	a.manager = mgr
	return mgr, nil
}

// Init is Get followed by a health probe for startup diagnostics. A degraded
// or unhealthy probe is logged and reported, not returned as an error.
func (a *Accessor) Init(ctx context.Context) (*Manager, HealthStatus, error) {
	mgr, err := a.Get(ctx)
	if err != nil {
		return nil, HealthStatus{}, err
	}

	status := mgr.HealthCheck(ctx)
	if status.Healthy() {
		a.logger.Info().Dur("latency", status.Latency).Msg("database ready")
	} else {
		a.logger.Warn().
			Str("status", string(status.Status)).
			Str("detail", status.Detail).
			Msg("database started in a degraded state")
	}
	return mgr, status, nil
}

// Close disconnects the Manager and forgets it; the next Get builds a new one.
func (a *Accessor) Close(ctx context.Context) {
	a.mu.Lock()
	mgr := a.manager
	a.manager = nil
	a.mu.Unlock()

	if mgr != nil {
		mgr.Disconnect(ctx)
	}
}
