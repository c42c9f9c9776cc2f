package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/persistence/memory"
	"github.com/example/meeting-lifecycle/internal/persistence/sqlite"
	"github.com/example/meeting-lifecycle/internal/persistence/sqlite/migration"
)

// NewSQLiteStore opens a migrated SQLite store in a temporary directory. The
// store is closed automatically when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Storage {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	storage, err := sqlite.Open(migration.DefaultSQLiteConfig(path))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	return storage
}

// StoreFactory builds a fresh store for one test.
type StoreFactory struct {
	Name string
	New  func(tb testing.TB) persistence.Store
}

// StoreFactories lists every persistence.Store backend so contract tests can
// run against each of them.
func StoreFactories() []StoreFactory {
	return []StoreFactory{
		{Name: "memory", New: func(testing.TB) persistence.Store { return memory.New() }},
		{Name: "sqlite", New: func(tb testing.TB) persistence.Store { return NewSQLiteStore(tb) }},
	}
}
