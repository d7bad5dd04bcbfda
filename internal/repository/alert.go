package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/vitals/internal/database"
	"github.com/forgo/vitals/internal/model"
)

// AlertRepository handles alert data access
type AlertRepository struct {
	db Store
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db Store) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create stores a new alert and fills in its ID, key and creation time.
// An alert whose key is already stored returns database.ErrDuplicate.
func (r *AlertRepository) Create(ctx context.Context, alert *model.Alert) error {
	if alert.Key == "" {
		alert.Key = uuid.NewString()
	}

	query := `
		CREATE alert CONTENT {
			key: $key,
			source: $source,
			severity: $severity,
			message: $message,
			acknowledged: false,
			created_on: time::now()
		}
	`

	vars := map[string]any{
		"key":      alert.Key,
		"source":   alert.Source,
		"severity": string(alert.Severity),
		"message":  alert.Message,
	}

	rows, err := r.db.Execute(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return database.ErrDuplicate
		}
		return err
	}
	if len(rows) == 0 {
		return errors.New("no result returned")
	}

	created := parseAlert(rows[0])
	alert.ID = created.ID
	alert.CreatedOn = created.CreatedOn
	alert.Acknowledged = false
	alert.AcknowledgedOn = nil
	return nil
}

// GetByID retrieves an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*model.Alert, error) {
	query := `SELECT * FROM type::record($id)`
	vars := map[string]any{"id": id}

	row, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parseAlert(row), nil
}

// ListOpen returns unacknowledged alerts, newest first
func (r *AlertRepository) ListOpen(ctx context.Context, limit int) ([]*model.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT * FROM alert WHERE acknowledged = false ORDER BY created_on DESC LIMIT $limit`
	vars := map[string]any{"limit": limit}

	rows, err := r.db.Execute(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	alerts := make([]*model.Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, parseAlert(row))
	}
	return alerts, nil
}

// CountOpen returns the number of unacknowledged alerts
func (r *AlertRepository) CountOpen(ctx context.Context) (int, error) {
	query := `SELECT count() AS count FROM alert WHERE acknowledged = false GROUP ALL`

	row, err := r.db.QueryOne(ctx, query, nil)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return extractCountValue(row["count"]), nil
}

// Acknowledge marks alerts as acknowledged. Either every alert is
// acknowledged or none is.
func (r *AlertRepository) Acknowledge(ctx context.Context, ids []string) error {
	batch := database.NewBatch()
	for _, id := range ids {
		batch.Add(
			`UPDATE type::record($id) SET acknowledged = true, acknowledged_on = time::now()`,
			map[string]any{"id": id},
		)
	}
	if err := batch.Execute(ctx, r.db); err != nil {
		return fmt.Errorf("acknowledge %d alert(s): %w", len(ids), err)
	}
	return nil
}

// DeleteAcknowledgedBefore removes acknowledged alerts created before cutoff
func (r *AlertRepository) DeleteAcknowledgedBefore(ctx context.Context, cutoff time.Time) error {
	query := `DELETE alert WHERE acknowledged = true AND created_on < <datetime>$cutoff`
	vars := map[string]any{"cutoff": cutoff.UTC().Format(time.RFC3339)}

	_, err := r.db.Execute(ctx, query, vars)
	return err
}

func parseAlert(row database.Row) *model.Alert {
	return &model.Alert{
		ID:             extractRecordID(row["id"]),
		Key:            getString(row, "key"),
		Source:         getString(row, "source"),
		Severity:       model.AlertSeverity(getString(row, "severity")),
		Message:        getString(row, "message"),
		Acknowledged:   getBool(row, "acknowledged"),
		CreatedOn:      parseTime(row["created_on"]),
		AcknowledgedOn: getTime(row, "acknowledged_on"),
	}
}
