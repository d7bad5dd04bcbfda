package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/forgo/vitals/internal/database"
	"github.com/forgo/vitals/internal/model"
)

// HealthChecker probes the database. *database.Manager implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) database.HealthStatus
}

// AlertRecorder stores alerts. *repository.AlertRepository implements it.
type AlertRecorder interface {
	Create(ctx context.Context, alert *model.Alert) error
}

// outage tracks a run of non-healthy probes.
type outage struct {
	start  time.Time
	worst  database.HealthState
	detail string
	probes int
}

// HealthMonitor probes the database on an interval and records each outage
// as an alert once the database is healthy again. While the outage lasts it
// is only logged, since the alert store is the database being probed.
type HealthMonitor struct {
	checker  HealthChecker
	alerts   AlertRecorder
	logger   zerolog.Logger
	interval time.Duration
	now      func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex

	last    database.HealthStatus
	current *outage
	pending []*model.Alert
}

// NewHealthMonitor creates a new health monitor job
func NewHealthMonitor(checker HealthChecker, alerts AlertRecorder, logger zerolog.Logger, interval time.Duration) *HealthMonitor {
	if interval == 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{
		checker:  checker,
		alerts:   alerts,
		logger:   logger.With().Str("job", "health_monitor").Logger(),
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the health monitor job
func (m *HealthMonitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run()
	m.logger.Info().Dur("interval", m.interval).Msg("health monitor started")
}

// Stop gracefully stops the health monitor job
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
	m.logger.Info().Msg("health monitor stopped")
}

// IsRunning returns whether the monitor is running
func (m *HealthMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Last returns the most recent probe result.
func (m *HealthMonitor) Last() database.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *HealthMonitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.interval)
			if err := m.RunOnce(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("recording outage alert")
			}
			cancel()
		case <-m.stopCh:
			return
		}
	}
}

// RunOnce probes once and updates the outage state. It returns an error only
// when a finished outage could not be recorded; the alert is kept and retried
// on the next healthy probe.
func (m *HealthMonitor) RunOnce(ctx context.Context) error {
	status := m.checker.HealthCheck(ctx)

	m.mu.Lock()
	m.last = status
	if !status.Healthy() {
		m.noteUnhealthy(status)
		m.mu.Unlock()
		return nil
	}
	if m.current != nil {
		m.pending = append(m.pending, m.closeOutage())
	}
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	var failed []*model.Alert
	var firstErr error
	for _, alert := range pending {
		err := m.alerts.Create(ctx, alert)
		if errors.Is(err, database.ErrDuplicate) {
			// An earlier attempt stored it but its reply was lost.
			m.logger.Debug().Str("alert_key", alert.Key).Msg("outage already recorded")
			continue
		}
		if err != nil {
			failed = append(failed, alert)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.logger.Info().Str("alert_id", alert.ID).Str("severity", string(alert.Severity)).Msg("outage recorded")
	}

	if len(failed) > 0 {
		m.mu.Lock()
		m.pending = append(failed, m.pending...)
		m.mu.Unlock()
		return fmt.Errorf("%d outage alert(s) not recorded: %w", len(failed), firstErr)
	}
	return nil
}

func (m *HealthMonitor) noteUnhealthy(status database.HealthStatus) {
	if m.current == nil {
		m.current = &outage{start: status.CheckedAt, worst: status.Status}
		m.logger.Warn().
			Str("status", string(status.Status)).
			Str("detail", status.Detail).
			Msg("database outage started")
	}
	m.current.probes++
	if status.Status == database.StatusUnhealthy {
		m.current.worst = database.StatusUnhealthy
	}
	m.current.detail = status.Detail
}

func (m *HealthMonitor) closeOutage() *model.Alert {
	o := m.current
	m.current = nil

	severity := model.SeverityWarning
	if o.worst == database.StatusUnhealthy {
		severity = model.SeverityCritical
	}
	elapsed := m.now().Sub(o.start).Round(time.Second)

	m.logger.Info().Dur("duration", elapsed).Int("probes", o.probes).Msg("database outage ended")
	return &model.Alert{
		Key:      fmt.Sprintf("database-outage-%d", o.start.UnixNano()),
		Source:   "database",
		Severity: severity,
		Message:  fmt.Sprintf("database %s for %s over %d probe(s): %s", o.worst, elapsed, o.probes, o.detail),
	}
}
