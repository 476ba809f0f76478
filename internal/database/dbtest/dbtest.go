// Package dbtest starts a throwaway Postgres for store integration tests.
package dbtest

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mnshuhailey/ppa-sap/internal/database"
)

//go:embed schema.sql
var schema string

// DSNEnv points the tests at an existing database instead of a container.
const DSNEnv = "SAPSYNC_TEST_PG_DSN"

// Open returns a database with the integration tables created. The test is
// skipped when neither DSNEnv nor a Docker daemon is available.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		dsn = startContainer(ctx, t)
	}

	db, err := database.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return db
}

// Truncate empties the given tables between cases.
func Truncate(t *testing.T, db *sql.DB, tables ...string) {
	t.Helper()

	for _, table := range tables {
		if _, err := db.Exec("TRUNCATE TABLE " + table); err != nil {
			t.Fatalf("truncating %s: %v", table, err)
		}
	}
}

func startContainer(ctx context.Context, t *testing.T) string {
	t.Helper()

	c, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sapsync"),
		postgres.WithUsername("sapsync"),
		postgres.WithPassword("sapsync"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}

	return dsn
}
