// Package sqlite is the durable persistence.Store backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/persistence/sqlite/migration"
)

// Storage bundles the SQLite repositories behind persistence.Store.
type Storage struct {
	*SeriesRepository
	*CommitmentRepository
	*WorkflowRepository

	pool *ConnectionPool
}

var _ persistence.Store = (*Storage)(nil)

// Open connects to the configured database. Call Migrate before first use.
func Open(config migration.SQLiteConfig) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		SeriesRepository:     NewSeriesRepository(pool),
		CommitmentRepository: NewCommitmentRepository(pool),
		WorkflowRepository:   NewWorkflowRepository(pool),
		pool:                 pool,
	}, nil
}

// Migrate applies pending schema migrations.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) error {
	if err := migration.NewRunner(s.pool.DB(), logger).Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the underlying connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
