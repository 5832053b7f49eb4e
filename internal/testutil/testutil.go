// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/Attaullahwazir/Payzenix/internal/repository"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

// Now is the fixed clock used across tests. Cards expiring 12/26 are valid on it.
var Now = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

// VisaTestCard passes Luhn and settles successfully.
const VisaTestCard = "4111111111111111"

// NewSQLiteDB creates a migrated SQLite database in a temp dir, closed on cleanup.
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "payments.db"))
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := repository.Migrate(ctx, db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// CountRows returns the number of stored transactions.
func CountRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		t.Fatalf("Failed to count transactions: %v", err)
	}
	return n
}

// NewRedis starts an in-process Redis server and a client bound to it.
func NewRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// DiscardLogger drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
