package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConflict is returned when a write lost a race: a version mismatch, an
	// active workflow run already attached to the target, or a series that
	// already has active instances.
	ErrConflict = errors.New("persistence: conflict")
)
