// Package testdb provides real SurrealDB instances for integration tests.
//
// Tests get an isolated namespace on a shared server. The server is taken
// from VITALS_TEST_DB_URL when set, otherwise a SurrealDB container is started
// once per test binary with testcontainers. Tests are skipped under -short or
// when neither is available.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    tdb := testdb.New(t)
//	    rows := tdb.MustQuery("SELECT * FROM alert", nil)
//	}
package testdb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/forgo/vitals/internal/database"
)

const (
	// SurrealImage is the server image started when no external URL is set.
	SurrealImage = "surrealdb/surrealdb:v2.3.7"
	RootUser     = "root"
	RootPassword = "root"

	// URLEnv names an already running server, e.g. ws://localhost:8000.
	URLEnv = "VITALS_TEST_DB_URL"

	startupTimeout = 90 * time.Second
)

// TestDB is an isolated namespace on the shared test server.
type TestDB struct {
	Manager   *database.Manager
	URL       string
	Namespace string
	Database  string
	t         *testing.T
}

var (
	serverOnce sync.Once
	serverURL  string
	serverErr  error
)

// ServerURL returns the WebSocket endpoint of the shared test server,
// starting the container on first use.
func ServerURL(ctx context.Context) (string, error) {
	serverOnce.Do(func() {
		if url := os.Getenv(URLEnv); url != "" {
			serverURL = url
			return
		}
		serverURL, serverErr = startContainer(ctx)
	})
	return serverURL, serverErr
}

func startContainer(ctx context.Context) (string, error) {
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        SurrealImage,
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", RootUser, "--pass", RootPassword, "memory"},
			WaitingFor: wait.ForHTTP("/health").
				WithPort("8000/tcp").
				WithStartupTimeout(startupTimeout),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("start surrealdb: %w", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return "", fmt.Errorf("container host: %w", err)
	}
	port, err := ctr.MappedPort(ctx, "8000/tcp")
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return "", fmt.Errorf("container port: %w", err)
	}
	return fmt.Sprintf("ws://%s:%s", host, port.Port()), nil
}

// Config returns a Manager config for namespace on the test server with root
// credentials and a short retry budget.
func Config(url, namespace string) database.Config {
	return database.Config{
		URL:       url,
		Namespace: namespace,
		Database:  "test",
		Credentials: database.Credentials{
			Method:   database.AuthRoot,
			Username: RootUser,
			Password: RootPassword,
		},
		Retry: database.RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   50 * time.Millisecond,
			MaxDelay:    200 * time.Millisecond,
			Multiplier:  2,
		},
	}
}

// New connects a Manager to a fresh namespace and removes the namespace when
// the test finishes.
func New(t *testing.T, opts ...database.Option) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("testdb: skipping integration test in -short mode")
	}
	if os.Getenv(URLEnv) == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	url, err := ServerURL(ctx)
	if err != nil {
		t.Skipf("testdb: no SurrealDB available: %v", err)
	}

	namespace := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	cfg := Config(url, namespace)
	mgr := database.NewManager(cfg, database.SurrealDriver{}, opts...)
	if err := mgr.Connect(ctx); err != nil {
		t.Fatalf("testdb: failed to connect: %v", err)
	}

	tdb := &TestDB{
		Manager:   mgr,
		URL:       url,
		Namespace: namespace,
		Database:  cfg.Database,
		t:         t,
	}
	t.Cleanup(tdb.close)
	return tdb
}

func (tdb *TestDB) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := tdb.Manager.Execute(ctx, fmt.Sprintf("REMOVE NAMESPACE IF EXISTS %s", tdb.Namespace), nil); err != nil {
		tdb.t.Logf("testdb: failed to remove namespace %s: %v", tdb.Namespace, err)
	}
	tdb.Manager.Disconnect(ctx)
}

// Ctx returns a context bounded for a single test operation.
func (tdb *TestDB) Ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	tdb.t.Cleanup(cancel)
	return ctx
}

// MustExec executes a query and fails the test on error.
func (tdb *TestDB) MustExec(query string, vars map[string]any) {
	tdb.t.Helper()
	if _, err := tdb.Manager.Execute(tdb.Ctx(), query, vars); err != nil {
		tdb.t.Fatalf("testdb: exec failed: %v\nQuery: %s", err, query)
	}
}

// MustQuery executes a query and returns its rows, failing the test on error.
func (tdb *TestDB) MustQuery(query string, vars map[string]any) []database.Row {
	tdb.t.Helper()
	rows, err := tdb.Manager.Execute(tdb.Ctx(), query, vars)
	if err != nil {
		tdb.t.Fatalf("testdb: query failed: %v\nQuery: %s", err, query)
	}
	return rows
}
