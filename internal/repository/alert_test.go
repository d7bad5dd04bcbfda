package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/vitals/internal/database"
	"github.com/forgo/vitals/internal/database/dbtest"
	"github.com/forgo/vitals/internal/model"
)

func newTestRepo(t *testing.T) (*AlertRepository, *dbtest.Driver) {
	t.Helper()
	drv := dbtest.NewDriver()
	mgr := database.NewManager(database.Config{
		URL:         "ws://db.test:8000",
		Namespace:   "vitals",
		Database:    "test",
		Credentials: database.Credentials{Method: database.AuthNone},
		Retry:       database.RetryPolicy{MaxAttempts: 1},
	}, drv)
	t.Cleanup(func() { mgr.Disconnect(context.Background()) })
	return NewAlertRepository(mgr), drv
}

// ============================================================================
// Create
// ============================================================================

func TestAlertRepository_Create(t *testing.T) {
	t.Parallel()
	repo, drv := newTestRepo(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var gotVars map[string]any
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		gotVars = params
		return []database.Row{{
			"id":         "alert:k3x9",
			"source":     params["source"],
			"created_on": created.Format(time.RFC3339),
		}}, nil
	})

	alert := &model.Alert{Source: "database", Severity: model.SeverityCritical, Message: "unhealthy for 2m"}
	require.NoError(t, repo.Create(context.Background(), alert))

	assert.Equal(t, "alert:k3x9", alert.ID)
	assert.True(t, alert.CreatedOn.Equal(created))
	assert.Equal(t, "critical", gotVars["severity"])
	assert.Equal(t, "database", gotVars["source"])
	assert.NotEmpty(t, alert.Key, "key is generated when empty")
	assert.Equal(t, alert.Key, gotVars["key"])
}

func TestAlertRepository_Create_KeepsCallerKey(t *testing.T) {
	t.Parallel()
	repo, drv := newTestRepo(t)

	var gotKey any
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		gotKey = params["key"]
		return []database.Row{{"id": "alert:1", "key": params["key"]}}, nil
	})

	alert := &model.Alert{Key: "database-outage-42", Source: "database", Severity: model.SeverityWarning, Message: "m"}
	require.NoError(t, repo.Create(context.Background(), alert))
	assert.Equal(t, "database-outage-42", gotKey)
	assert.Equal(t, "database-outage-42", alert.Key)
}

func TestAlertRepository_Create_GeneratedKeysDiffer(t *testing.T) {
	t.Parallel()
	repo, drv := newTestRepo(t)
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		return []database.Row{{"id": "alert:1"}}, nil
	})

	a := &model.Alert{Source: "database"}
	b := &model.Alert{Source: "database"}
	require.NoError(t, repo.Create(context.Background(), a))
	require.NoError(t, repo.Create(context.Background(), b))
	assert.NotEqual(t, a.Key, b.Key)
}

func TestAlertRepository_Create_Duplicate(t *testing.T) {
	t.Parallel()
	repo, drv := newTestRepo(t)

	stored := map[string]bool{}
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		key, _ := params["key"].(string)
		if stored[key] {
			return nil, &database.StatementError{
				Message: "Database index `alert_key` already contains '" + key + "', with record `alert:first`",
			}
		}
		stored[key] = true
		return []database.Row{{"id": "alert:first", "key": key}}, nil
	})

	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &model.Alert{Key: "outage-1", Source: "database"}))

	err := repo.Create(ctx, &model.Alert{Key: "outage-1", Source: "database"})
	assert.ErrorIs(t, err, database.ErrDuplicate)
}

func TestAlertRepository_Create_OtherStatementErrorPassesThrough(t *testing.T) {
	t.Parallel()
	repo, drv := newTestRepo(t)
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		return nil, &database.StatementError{Message: "Found 'loud' for field `severity`"}
	})

	err := repo.Create(context.Background(), &model.Alert{Source: "database", Severity: "loud"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, database.ErrDuplicate)
}

func TestAlertRepository_Create_NoResult(t *testing.T) {
	t.Parallel()
	repo, _ := newTestRepo(t)

	err := repo.Create(context.Background(), &model.Alert{Source: "database"})
	assert.EqualError(t, err, "no result returned")
}

// ============================================================================
// Reads
// ============================================================================

func TestAlertRepository_GetByID(t *testing.T) {
	t.Parallel()
	repo, drv := newTestRepo(t)
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		if params["id"] != "alert:1" {
			return nil, nil
		}
		return []database.Row{{
			"id":              map[string]any{"tb": "alert", "id": "1"},
			"source":          "database",
			"severity":        "warning",
			"message":         "degraded",
			"acknowledged":    true,
			"created_on":      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			"acknowledged_on": "2026-01-01T00:05:00Z",
		}}, nil
	})
	ctx := context.Background()

	alert, err := repo.GetByID(ctx, "alert:1")
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, "alert:1", alert.ID)
	assert.Equal(t, model.SeverityWarning, alert.Severity)
	assert.True(t, alert.Acknowledged)
	require.NotNil(t, alert.AcknowledgedOn)
	assert.Equal(t, 5*time.Minute, alert.AcknowledgedOn.Sub(alert.CreatedOn))

	missing, err := repo.GetByID(ctx, "alert:404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAlertRepository_ListOpen(t *testing.T) {
	t.Parallel()
	repo, drv := newTestRepo(t)

	var gotLimit any
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		gotLimit = params["limit"]
		return []database.Row{
			{"id": "alert:2", "severity": "critical"},
			{"id": "alert:1", "severity": "warning"},
		}, nil
	})

	alerts, err := repo.ListOpen(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "alert:2", alerts[0].ID)
	assert.Equal(t, 50, gotLimit, "non-positive limit falls back to default")
}

func TestAlertRepository_CountOpen(t *testing.T) {
	t.Parallel()
	repo, drv := newTestRepo(t)
	ctx := context.Background()

	count, err := repo.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "no rows means zero")

	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		return []database.Row{{"count": uint64(3)}}, nil
	})
	count, err = repo.CountOpen(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// ============================================================================
// Writes
// ============================================================================

func TestAlertRepository_Acknowledge_AllOrNothing(t *testing.T) {
	t.Parallel()
	repo, drv := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Acknowledge(ctx, []string{"alert:1", "alert:2"}))
	assert.Len(t, drv.Applied(), 2)
	assert.Equal(t, 1, drv.Counts().Commits)

	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		if params["id"] == "alert:bad" {
			return nil, &database.StatementError{Message: "record not found"}
		}
		return nil, nil
	})
	err := repo.Acknowledge(ctx, []string{"alert:3", "alert:bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acknowledge 2 alert(s)")
	assert.Len(t, drv.Applied(), 2, "failed batch leaves nothing behind")
}

func TestAlertRepository_DeleteAcknowledgedBefore(t *testing.T) {
	t.Parallel()
	repo, drv := newTestRepo(t)

	var gotQuery string
	var gotCutoff any
	drv.Handle(func(query string, params map[string]any) ([]database.Row, error) {
		gotQuery = query
		gotCutoff = params["cutoff"]
		return nil, nil
	})

	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))
	require.NoError(t, repo.DeleteAcknowledgedBefore(context.Background(), cutoff))
	assert.True(t, strings.HasPrefix(gotQuery, "DELETE alert"))
	assert.Equal(t, "2026-01-31T23:00:00Z", gotCutoff)
}

func TestAlertRepository_PropagatesConnectionErrors(t *testing.T) {
	t.Parallel()
	repo, drv := newTestRepo(t)
	drv.FailOpens(1)

	_, err := repo.ListOpen(context.Background(), 10)
	assert.True(t, errors.Is(err, database.ErrConnection))
}
