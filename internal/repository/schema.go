package repository

import (
	"context"
	"fmt"

	"github.com/forgo/vitals/internal/database"
)

// schema defines the tables the repositories read and write. Every statement
// is idempotent so Migrate can run on each start.
var schema = []string{
	`DEFINE TABLE IF NOT EXISTS alert SCHEMAFULL`,
	`DEFINE FIELD IF NOT EXISTS key ON alert TYPE string ASSERT string::len($value) > 0 AND string::len($value) <= 128`,
	`DEFINE FIELD IF NOT EXISTS source ON alert TYPE string ASSERT string::len($value) > 0 AND string::len($value) <= 64`,
	`DEFINE FIELD IF NOT EXISTS severity ON alert TYPE string ASSERT $value IN ["info", "warning", "critical"]`,
	`DEFINE FIELD IF NOT EXISTS message ON alert TYPE string ASSERT string::len($value) > 0 AND string::len($value) <= 1000`,
	`DEFINE FIELD IF NOT EXISTS acknowledged ON alert TYPE bool DEFAULT false`,
	`DEFINE FIELD IF NOT EXISTS created_on ON alert TYPE datetime DEFAULT time::now()`,
	`DEFINE FIELD IF NOT EXISTS acknowledged_on ON alert TYPE option<datetime>`,
	`DEFINE INDEX IF NOT EXISTS alert_open ON alert FIELDS acknowledged, created_on`,
	`DEFINE INDEX IF NOT EXISTS alert_key ON alert FIELDS key UNIQUE`,
}

// Migrate applies the schema in one transaction.
func Migrate(ctx context.Context, db Store) error {
	if err := schemaBatch().Execute(ctx, db); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func schemaBatch() *database.Batch {
	batch := database.NewBatch()
	for _, stmt := range schema {
		batch.Add(stmt, nil)
	}
	return batch
}
