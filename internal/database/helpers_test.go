package database_test

import (
	"testing"
	"time"

	"github.com/forgo/vitals/internal/database"
	"github.com/forgo/vitals/internal/database/dbtest"
)

func testConfig() database.Config {
	return database.Config{
		URL:       "ws://db.test:8000",
		Namespace: "vitals",
		Database:  "test",
		Credentials: database.Credentials{
			Method:   database.AuthRoot,
			Username: "root",
			Password: "root",
		},
		Retry: database.RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
			Multiplier:  2,
		},
	}
}

func newTestManager(t *testing.T, opts ...database.Option) (*database.Manager, *dbtest.Driver) {
	t.Helper()
	drv := dbtest.NewDriver()
	return database.NewManager(testConfig(), drv, opts...), drv
}
