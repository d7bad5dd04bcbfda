package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/vitals/internal/database"
	"github.com/forgo/vitals/internal/database/dbtest"
)

// ============================================================================
// HealthCheck
// ============================================================================

func TestHealthCheck_Healthy(t *testing.T) {
	t.Parallel()
	mgr, drv := newTestManager(t)

	var probed string
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		probed = query
		return []database.Row{{"value": 1}}, nil
	})

	status := mgr.HealthCheck(context.Background())
	assert.Equal(t, database.StatusHealthy, status.Status)
	assert.True(t, status.Healthy())
	assert.Empty(t, status.Detail)
	assert.Equal(t, database.DefaultHealthQuery, probed)
	assert.False(t, status.CheckedAt.IsZero())
	assert.Equal(t, database.StateConnected, mgr.State(), "probe connects on demand")
}

func TestHealthCheck_CustomQuery(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Health.Query = "INFO FOR DB"
	drv := dbtest.NewDriver()
	mgr := database.NewManager(cfg, drv)

	var probed string
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		probed = query
		return nil, nil
	})

	assert.True(t, mgr.HealthCheck(context.Background()).Healthy())
	assert.Equal(t, "INFO FOR DB", probed)
}

func TestHealthCheck_SlowStoreIsDegraded(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Health.Timeout = 20 * time.Millisecond
	drv := dbtest.NewDriver()
	mgr := database.NewManager(cfg, drv)
	require.NoError(t, mgr.Connect(context.Background()))
	drv.SetQueryDelay(time.Second)

	start := time.Now()
	status := mgr.HealthCheck(context.Background())

	assert.Equal(t, database.StatusDegraded, status.Status)
	assert.Contains(t, status.Detail, "20ms")
	assert.Less(t, time.Since(start), 500*time.Millisecond, "probe must respect its timeout")
}

func TestHealthCheck_FailingStoreIsUnhealthy(t *testing.T) {
	t.Parallel()
	mgr, drv := newTestManager(t)
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		return nil, &database.StatementError{Message: "The namespace 'vitals' does not exist"}
	})

	status := mgr.HealthCheck(context.Background())
	assert.Equal(t, database.StatusUnhealthy, status.Status)
	assert.Contains(t, status.Detail, "does not exist")
}

func TestHealthCheck_UnreachableStoreIsUnhealthy(t *testing.T) {
	t.Parallel()
	mgr, drv := newTestManager(t)
	drv.FailOpens(10)

	status := mgr.HealthCheck(context.Background())
	assert.Equal(t, database.StatusUnhealthy, status.Status)
	assert.Contains(t, status.Detail, dbtest.ErrConnReset.Error())
}

// ============================================================================
// HealthCheck recovery
// ============================================================================

func TestHealthCheck_RecoversAfterLostSession(t *testing.T) {
	t.Parallel()
	mgr, drv := newTestManager(t)
	require.NoError(t, mgr.Connect(context.Background()))
	drv.FailQueries(1)

	first := mgr.HealthCheck(context.Background())
	assert.Equal(t, database.StatusUnhealthy, first.Status)
	assert.Contains(t, first.Detail, dbtest.ErrConnReset.Error())
	assert.Equal(t, database.StateFailed, mgr.State(), "dead session is dropped")

	second := mgr.HealthCheck(context.Background())
	assert.Equal(t, database.StatusHealthy, second.Status, second.Detail)
	assert.Equal(t, database.StateConnected, mgr.State())

	counts := drv.Counts()
	assert.Equal(t, 2, counts.Opens, "second check reconnects")
	assert.Equal(t, 1, counts.Closes, "broken session is closed")
}

func TestHealthCheck_RecoversAfterUnreachableStore(t *testing.T) {
	t.Parallel()
	mgr, drv := newTestManager(t)
	drv.FailOpens(3)

	assert.Equal(t, database.StatusUnhealthy, mgr.HealthCheck(context.Background()).Status)
	assert.Equal(t, database.StateFailed, mgr.State())

	assert.Equal(t, database.StatusHealthy, mgr.HealthCheck(context.Background()).Status)
	assert.Equal(t, database.StateConnected, mgr.State())
}

func TestHealthCheck_StatementErrorKeepsSession(t *testing.T) {
	t.Parallel()
	mgr, drv := newTestManager(t)
	require.NoError(t, mgr.Connect(context.Background()))
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		return nil, &database.StatementError{Message: "parse error"}
	})

	assert.Equal(t, database.StatusUnhealthy, mgr.HealthCheck(context.Background()).Status)
	assert.Equal(t, database.StateConnected, mgr.State())
	assert.Equal(t, 1, drv.Counts().Opens)
}

func TestHealthCheck_DeadlineDuringConnectRetries(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Health.Timeout = 20 * time.Millisecond
	cfg.Retry = database.RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
		Multiplier:  1,
	}
	drv := dbtest.NewDriver()
	drv.FailOpens(100)
	mgr := database.NewManager(cfg, drv)

	status := mgr.HealthCheck(context.Background())
	assert.Equal(t, database.StatusDegraded, status.Status)

	assert.Eventually(t, func() bool {
		return mgr.State() == database.StateFailed
	}, time.Second, 5*time.Millisecond)
	assert.Less(t, drv.Counts().Opens, 5, "connect stops once the deadline passes")
}

func TestHealthCheck_ExpiredCheckDoesNotQueryLater(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Health.Timeout = 20 * time.Millisecond
	cfg.Retry = database.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		Multiplier:  1,
	}
	drv := dbtest.NewDriver()
	drv.FailOpens(1)
	mgr := database.NewManager(cfg, drv)

	connected := make(chan error, 1)
	go func() {
		connected <- mgr.Connect(context.Background())
	}()
	require.Eventually(t, func() bool {
		return drv.Counts().Opens >= 1
	}, time.Second, time.Millisecond)

	status := mgr.HealthCheck(context.Background())
	assert.Equal(t, database.StatusDegraded, status.Status)

	require.NoError(t, <-connected)
	assert.Equal(t, database.StateConnected, mgr.State())

	// Give a stray check goroutine time to run if one were left behind.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, drv.Counts().Queries, "expired check must not reach the store")
}

func TestHealthCheck_DefaultTimeout(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 5*time.Second, database.DefaultHealthTimeout)
}
