package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func newTestDB(t *testing.T) *ConnectionManager {
	t.Helper()
	return NewConnectionManager(DefaultSQLiteConfig(filepath.Join(t.TempDir(), "nested", "scheduler.db")))
}

func TestRunner_Up(t *testing.T) {
	t.Parallel()

	db, err := newTestDB(t).GetConnection()
	if err != nil {
		t.Fatalf("GetConnection failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	runner := NewRunner(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	if err := runner.Up(ctx); err != nil {
		t.Fatalf("first Up failed: %v", err)
	}
	if err := runner.Up(ctx); err != nil {
		t.Fatalf("second Up should be a no-op, got: %v", err)
	}

	v, dirty, err := runner.Version()
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if v != 4 || dirty {
		t.Fatalf("expected clean version 4, got %d dirty=%v", v, dirty)
	}

	for _, table := range []string{"series_instances", "generation_records", "commitments", "workflow_runs", "workflow_decisions"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("expected table %s to exist: %v", table, err)
		}
	}
}

func TestConnectionManager(t *testing.T) {
	t.Parallel()

	cm := NewConnectionManager(DefaultSQLiteConfig("data/scheduler.db"))
	dsn := cm.DataSourceName()
	if !strings.HasPrefix(dsn, "data/scheduler.db?") {
		t.Fatalf("unexpected DSN prefix: %s", dsn)
	}
	if !strings.Contains(dsn, "foreign_keys%281%29") {
		t.Fatalf("expected foreign key pragma in DSN: %s", dsn)
	}

	bad := DefaultSQLiteConfig("x.db")
	bad.JournalMode = "SIDEWAYS"
	if err := NewConnectionManager(bad).ValidateConfig(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if err := NewConnectionManager(SQLiteConfig{}).ValidateConfig(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for empty DSN, got %v", err)
	}
}
