// Package memory is a map-backed persistence.Store used by tests, the CLI and
// deployments that configure SCHEDULER_STORAGE=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/meeting-lifecycle/internal/availability"
	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/workflow"
)

// Storage provides an in-memory persistence layer implementation.
type Storage struct {
	mu          sync.RWMutex
	instances   map[string]persistence.Instance
	records     map[string]persistence.GenerationRecord
	commitments map[string][]persistence.Commitment
	definitions map[string]workflow.Definition
	runs        map[string]workflow.Run
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		instances:   make(map[string]persistence.Instance),
		records:     make(map[string]persistence.GenerationRecord),
		commitments: make(map[string][]persistence.Commitment),
		definitions: make(map[string]workflow.Definition),
		runs:        make(map[string]workflow.Run),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- SeriesRepository implementation ---

// SaveGeneration applies the batch under a single write lock.
func (s *Storage) SaveGeneration(ctx context.Context, batch persistence.GenerationBatch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]string, 0)
	for id, inst := range s.instances {
		if inst.SeriesID == batch.SeriesID && inst.Active() {
			active = append(active, id)
		}
	}
	if batch.RequireNoActive && len(active) > 0 {
		return 0, persistence.ErrConflict
	}
	for _, inst := range batch.Instances {
		if _, ok := s.instances[inst.ID]; ok {
			return 0, persistence.ErrDuplicate
		}
	}
	for _, rec := range batch.Records {
		if _, ok := s.records[rec.ID]; ok {
			return 0, persistence.ErrDuplicate
		}
	}

	retired := 0
	if batch.RetireAt != nil {
		for _, id := range active {
			inst := s.instances[id]
			at := *batch.RetireAt
			inst.RetiredAt = &at
			s.instances[id] = inst
			retired++
		}
	}
	for _, inst := range batch.Instances {
		s.instances[inst.ID] = cloneInstance(inst)
	}
	for _, rec := range batch.Records {
		s.records[rec.ID] = rec
	}
	return retired, nil
}

// ListInstances returns the series instances ordered by start then generation time.
func (s *Storage) ListInstances(ctx context.Context, seriesID string, includeRetired bool) ([]persistence.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Instance, 0)
	for _, inst := range s.instances {
		if inst.SeriesID != seriesID {
			continue
		}
		if !includeRetired && !inst.Active() {
			continue
		}
		out = append(out, cloneInstance(inst))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.Before(out[j].GeneratedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListGenerationRecords returns audit records for a series ordered by recording time.
func (s *Storage) ListGenerationRecords(ctx context.Context, seriesID string) ([]persistence.GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.GenerationRecord, 0)
	for _, rec := range s.records {
		if rec.SeriesID == seriesID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// PurgeGenerationRecords deletes records recorded strictly before the cutoff.
func (s *Storage) PurgeGenerationRecords(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, rec := range s.records {
		if rec.RecordedAt.Before(before) {
			delete(s.records, id)
			purged++
		}
	}
	return purged, nil
}

// --- CommitmentRepository implementation ---

// ReplaceCommitments swaps every commitment of an entity.
func (s *Storage) ReplaceCommitments(ctx context.Context, entityID string, commitments []persistence.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(commitments) == 0 {
		delete(s.commitments, entityID)
		return nil
	}
	s.commitments[entityID] = append([]persistence.Commitment(nil), commitments...)
	return nil
}

// DeleteCommitments removes the commitments of an entity.
func (s *Storage) DeleteCommitments(ctx context.Context, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.commitments[entityID]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.commitments, entityID)
	return nil
}

// BusyIntervals implements availability.BusySource.
func (s *Storage) BusyIntervals(ctx context.Context, participantIDs []string, window availability.Interval) ([]availability.BusyInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(participantIDs))
	for _, id := range participantIDs {
		wanted[id] = struct{}{}
	}

	var busy []availability.BusyInterval
	add := func(participantID, entityID string, start, end time.Time) {
		if _, ok := wanted[participantID]; !ok {
			return
		}
		b := availability.BusyInterval{ParticipantID: participantID, EntityID: entityID, Start: start, End: end}
		if b.Interval().Overlaps(window) {
			busy = append(busy, b)
		}
	}

	for entityID, commitments := range s.commitments {
		for _, c := range commitments {
			add(c.ParticipantID, entityID, c.Start, c.End)
		}
	}
	for _, inst := range s.instances {
		if !inst.Active() || inst.Outcome != persistence.OutcomeSuccess {
			continue
		}
		for _, p := range inst.ParticipantIDs {
			add(p, inst.SeriesID, inst.Start, inst.End)
		}
	}
	return busy, nil
}

// --- WorkflowRepository implementation ---

// SaveDefinition creates or replaces a definition.
func (s *Storage) SaveDefinition(ctx context.Context, def workflow.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.definitions[def.ID] = cloneDefinition(def)
	return nil
}

// GetDefinition retrieves a definition by ID.
func (s *Storage) GetDefinition(ctx context.Context, id string) (workflow.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.definitions[id]
	if !ok {
		return workflow.Definition{}, persistence.ErrNotFound
	}
	return cloneDefinition(def), nil
}

// ListDefinitions returns all definitions ordered by ID.
func (s *Storage) ListDefinitions(ctx context.Context) ([]workflow.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]workflow.Definition, 0, len(s.definitions))
	for _, def := range s.definitions {
		defs = append(defs, cloneDefinition(def))
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

// CreateRun stores a new run, allowing one in-progress run per target.
func (s *Storage) CreateRun(ctx context.Context, run workflow.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return persistence.ErrDuplicate
	}
	if run.Status == workflow.StatusInProgress {
		for _, existing := range s.runs {
			if existing.Target == run.Target && existing.Status == workflow.StatusInProgress {
				return persistence.ErrConflict
			}
		}
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

// UpdateRun replaces a run when its stored version equals expectedVersion.
func (s *Storage) UpdateRun(ctx context.Context, run workflow.Run, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.runs[run.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if current.Version != expectedVersion {
		return persistence.ErrConflict
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

// GetRun retrieves a run by ID.
func (s *Storage) GetRun(ctx context.Context, id string) (workflow.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return workflow.Run{}, persistence.ErrNotFound
	}
	return run.Clone(), nil
}

// ListRunsForTarget returns runs for a target ordered by CreatedAt.
func (s *Storage) ListRunsForTarget(ctx context.Context, target workflow.Target) ([]workflow.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]workflow.Run, 0)
	for _, run := range s.runs {
		if run.Target == target {
			runs = append(runs, run.Clone())
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

// --- Helpers ---

func cloneInstance(inst persistence.Instance) persistence.Instance {
	clone := inst
	clone.ParticipantIDs = append([]string(nil), inst.ParticipantIDs...)
	if inst.RetiredAt != nil {
		at := *inst.RetiredAt
		clone.RetiredAt = &at
	}
	return clone
}

func cloneDefinition(def workflow.Definition) workflow.Definition {
	clone := def
	clone.Steps = append([]workflow.Step(nil), def.Steps...)
	if def.Config != nil {
		clone.Config = make(map[string]string, len(def.Config))
		for k, v := range def.Config {
			clone.Config[k] = v
		}
	}
	return clone
}
