package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Runner applies the embedded migrations to a database handle.
type Runner struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunner returns a Runner logging through logger (slog.Default when nil).
func NewRunner(db *sql.DB, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{db: db, logger: logger.With("component", "migration")}
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (r *Runner) Up(ctx context.Context) error {
	m, err := r.migrator()
	if err != nil {
		return err
	}

	before, dirty, err := version(m)
	if err != nil {
		return err
	}
	if dirty {
		return &MigrationError{Version: before, Operation: "up", Err: ErrDirtyDatabase}
	}
	r.logger.InfoContext(ctx, "checking current database schema version", "version", before)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.logger.InfoContext(ctx, "database schema is up to date", "version", before)
			return nil
		}
		r.logger.ErrorContext(ctx, "database migrations failed", "error", err)
		return &MigrationError{Version: before, Operation: "up", Err: fmt.Errorf("%w: %v", ErrMigrationFailed, err)}
	}

	after, _, err := version(m)
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "database migrations completed successfully", "from", before, "to", after)
	return nil
}

// Version reports the applied schema version; zero means no migration ran yet.
func (r *Runner) Version() (uint, bool, error) {
	m, err := r.migrator()
	if err != nil {
		return 0, false, err
	}
	return version(m)
}

// migrator builds a migrate instance bound to r.db. It is deliberately never
// closed: closing the sqlite driver would close the shared *sql.DB.
func (r *Runner) migrator() (*migrate.Migrate, error) {
	source, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("migration: open embedded source: %w", err)
	}
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration: init sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("migration: init migrate: %w", err)
	}
	m.Log = migrateLogger{logger: r.logger}
	return m, nil
}

func version(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration: read version: %w", err)
	}
	return v, dirty, nil
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return false
}
