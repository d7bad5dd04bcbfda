package database

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// HealthState classifies a liveness probe.
type HealthState string

const (
	StatusHealthy   HealthState = "healthy"
	StatusDegraded  HealthState = "degraded"
	StatusUnhealthy HealthState = "unhealthy"
)

// HealthStatus is the outcome of a HealthCheck.
type HealthStatus struct {
	Status    HealthState   `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Healthy reports whether the probe succeeded in time.
func (h HealthStatus) Healthy() bool {
	return h.Status == StatusHealthy
}

// HealthCheck probes the store with the configured liveness query, connecting
// first if needed. The whole probe is bounded by the configured timeout: a
// probe that runs out of time is degraded, one that fails is unhealthy. A
// transport failure drops the session so the next check reconnects.
// HealthCheck never returns an error.
func (m *Manager) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.Health.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.probe(probeCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-probeCtx.Done():
		err = probeCtx.Err()
	}

	status := HealthStatus{
		Status:    StatusHealthy,
		Latency:   time.Since(start),
		CheckedAt: start,
	}
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(probeCtx.Err(), context.DeadlineExceeded):
		status.Status = StatusDegraded
		status.Detail = fmt.Sprintf("no answer within %s", m.cfg.Health.Timeout)
	default:
		status.Status = StatusUnhealthy
		status.Detail = err.Error()
	}

	if status.Status != StatusHealthy {
		m.logger.Warn().
			Str("status", string(status.Status)).
			Str("detail", status.Detail).
			Dur("latency", status.Latency).
			Msg("database health probe")
	}
	return status
}

func (m *Manager) probe(ctx context.Context) error {
	sess, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	_, err = sess.Query(ctx, m.cfg.Health.Query, nil)
	if err != nil && IsTransient(err) && ctx.Err() == nil {
		m.invalidate(ctx, sess)
	}
	return err
}
