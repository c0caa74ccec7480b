// Package dbtest starts a throwaway postgres for integration tests and
// applies the embedded migrations.
package dbtest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/db"
)

// Database is a migrated postgres container.
type Database struct {
	DSN  string
	Pool *pgxpool.Pool
}

// Start launches postgres, migrates it to the latest version and registers
// cleanup on t.
func Start(t *testing.T) Database {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ledger_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	m, err := db.NewMigrator(dsn, Logger())
	if err != nil {
		t.Fatalf("open migrator: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	_ = m.Close()

	pool, err := db.New(ctx, dsn)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return Database{DSN: dsn, Pool: pool}
}

// Logger discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
