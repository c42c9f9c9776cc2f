package persistence

import (
	"context"
	"time"

	"github.com/example/meeting-lifecycle/internal/availability"
	"github.com/example/meeting-lifecycle/internal/workflow"
)

// SeriesRepository stores generated instances and their audit records.
type SeriesRepository interface {
	SaveGeneration(ctx context.Context, batch GenerationBatch) (retired int, err error)
	ListInstances(ctx context.Context, seriesID string, includeRetired bool) ([]Instance, error)
	ListGenerationRecords(ctx context.Context, seriesID string) ([]GenerationRecord, error)
	PurgeGenerationRecords(ctx context.Context, before time.Time) (int, error)
}

// CommitmentRepository stores external commitments and serves busy intervals.
// Busy intervals include active, successfully generated series instances,
// attributed to their series id.
type CommitmentRepository interface {
	ReplaceCommitments(ctx context.Context, entityID string, commitments []Commitment) error
	DeleteCommitments(ctx context.Context, entityID string) error
	BusyIntervals(ctx context.Context, participantIDs []string, window availability.Interval) ([]availability.BusyInterval, error)
}

// WorkflowRepository stores definitions and runs. UpdateRun is a
// compare-and-swap on the run version. Targets are identified by kind and id.
type WorkflowRepository interface {
	SaveDefinition(ctx context.Context, def workflow.Definition) error
	GetDefinition(ctx context.Context, id string) (workflow.Definition, error)
	ListDefinitions(ctx context.Context) ([]workflow.Definition, error)
	CreateRun(ctx context.Context, run workflow.Run) error
	UpdateRun(ctx context.Context, run workflow.Run, expectedVersion int) error
	GetRun(ctx context.Context, id string) (workflow.Run, error)
	ListRunsForTarget(ctx context.Context, target workflow.Target) ([]workflow.Run, error)
}

// Store bundles every repository. Both the in-memory and SQLite backends implement it.
type Store interface {
	SeriesRepository
	CommitmentRepository
	WorkflowRepository
	Close() error
}
