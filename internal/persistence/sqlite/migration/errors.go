package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrMigrationFailed indicates that applying migrations failed.
	ErrMigrationFailed = errors.New("migration execution failed")
	// ErrDirtyDatabase indicates a previous migration stopped half way.
	ErrDirtyDatabase = errors.New("database schema is dirty")
	// ErrInvalidConfig indicates an unusable SQLite configuration.
	ErrInvalidConfig = errors.New("invalid SQLite configuration")
)

// MigrationError wraps migration failures with the operation and schema version.
type MigrationError struct {
	Version   uint
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s (version %d): %v", e.Operation, e.Version, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *MigrationError) Unwrap() error {
	return e.Err
}
