package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/example/meeting-lifecycle/internal/availability"
	"github.com/example/meeting-lifecycle/internal/events"
	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/recurrence"
)

// DefaultRetentionHorizon is how long generation records are kept.
const DefaultRetentionHorizon = 90 * 24 * time.Hour

// SeriesRepository captures the persistence interactions needed by the service.
type SeriesRepository interface {
	SaveGeneration(ctx context.Context, batch persistence.GenerationBatch) (int, error)
	ListInstances(ctx context.Context, seriesID string, includeRetired bool) ([]persistence.Instance, error)
	ListGenerationRecords(ctx context.Context, seriesID string) ([]persistence.GenerationRecord, error)
	PurgeGenerationRecords(ctx context.Context, before time.Time) (int, error)
}

// AvailabilityChecker is the slice of the availability index used during generation.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, participantID string, start, end time.Time, excludeEntityID string) (availability.Result, error)
}

// GenerateSeriesParams describes one generation request. The series id is
// taken from Rule.SeriesID.
type GenerateSeriesParams struct {
	Rule           recurrence.Rule
	ParticipantIDs []string
	RangeEnd       *time.Time
}

// SeriesService expands recurrence rules into persisted meeting instances.
type SeriesService struct {
	series      SeriesRepository
	checker     AvailabilityChecker
	engine      *recurrence.Engine
	publisher   events.Publisher
	idGenerator func() string
	now         func() time.Time
	retention   time.Duration
	locks       *keyedMutex
	logger      *slog.Logger
}

// NewSeriesService wires dependencies for series generation.
func NewSeriesService(series SeriesRepository, checker AvailabilityChecker, engine *recurrence.Engine, publisher events.Publisher, idGenerator func() string, now func() time.Time) *SeriesService {
	return NewSeriesServiceWithLogger(series, checker, engine, publisher, idGenerator, now, nil)
}

// NewSeriesServiceWithLogger wires dependencies and a base logger.
func NewSeriesServiceWithLogger(series SeriesRepository, checker AvailabilityChecker, engine *recurrence.Engine, publisher events.Publisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *SeriesService {
	if engine == nil {
		engine = recurrence.NewEngine(time.UTC)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SeriesService{
		series:      series,
		checker:     checker,
		engine:      engine,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		retention:   DefaultRetentionHorizon,
		locks:       newKeyedMutex(),
		logger:      defaultLogger(logger),
	}
}

// SetRetentionHorizon overrides DefaultRetentionHorizon. Non-positive values are ignored.
func (s *SeriesService) SetRetentionHorizon(horizon time.Duration) {
	if horizon > 0 {
		s.retention = horizon
	}
}

// GenerateSeries creates the first generation of a series. A series that
// already has active instances must be regenerated instead.
func (s *SeriesService) GenerateSeries(ctx context.Context, params GenerateSeriesParams) ([]persistence.Instance, error) {
	return s.generate(ctx, params, false)
}

// RegenerateSeries retires every active instance of the series and generates
// again from the supplied rule, in one storage transaction.
func (s *SeriesService) RegenerateSeries(ctx context.Context, params GenerateSeriesParams) ([]persistence.Instance, error) {
	return s.generate(ctx, params, true)
}

func (s *SeriesService) generate(ctx context.Context, params GenerateSeriesParams, regenerate bool) ([]persistence.Instance, error) {
	if s == nil {
		return nil, fmt.Errorf("SeriesService is nil")
	}
	if s.series == nil {
		return nil, fmt.Errorf("series repository not configured")
	}
	operation := "GenerateSeries"
	if regenerate {
		operation = "RegenerateSeries"
	}
	rule := params.Rule
	seriesID := strings.TrimSpace(rule.SeriesID)
	logger := serviceLogger(ctx, s.logger, "SeriesService", operation, "series_id", seriesID, "periodicity", string(rule.Periodicity))

	vErr := &ValidationError{}
	if seriesID == "" {
		vErr.add("series_id", "series id is required")
	}
	if err := rule.Validate(); err != nil {
		var inner *ValidationError
		if errors.As(ruleValidationError(err), &inner) {
			vErr.merge(inner)
		} else {
			return nil, err
		}
	}
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "generation request rejected", "error_kind", ErrorKind(vErr), "fields", vErr.FieldErrors)
		return nil, vErr
	}

	unlock := s.locks.Lock(seriesID)
	defer unlock()

	occurrences, err := s.engine.Plan(rule, params.RangeEnd)
	if err != nil {
		logger.WarnContext(ctx, "failed to plan occurrences", "error_kind", ErrorKind(err), "error", err)
		return nil, err
	}

	fingerprint := s.engine.Fingerprint(rule)
	changed := false
	if regenerate {
		previous, err := s.series.ListInstances(ctx, seriesID, false)
		if err != nil {
			logger.ErrorContext(ctx, "failed to load active instances", "error", err)
			return nil, mapRepoError(err)
		}
		for _, inst := range previous {
			if inst.RuleFingerprint != fingerprint {
				changed = true
				break
			}
		}
	}

	participants := uniqueSortedIDs(params.ParticipantIDs)
	generatedAt := s.now()
	batch := persistence.GenerationBatch{
		SeriesID:        seriesID,
		RequireNoActive: !regenerate,
		Instances:       make([]persistence.Instance, 0, len(occurrences)),
		Records:         make([]persistence.GenerationRecord, 0, len(occurrences)),
	}
	if regenerate {
		batch.RetireAt = &generatedAt
	}

	failed := 0
	for _, occ := range occurrences {
		message, err := s.conflictMessage(ctx, seriesID, participants, occ)
		if err != nil {
			logger.ErrorContext(ctx, "availability check failed during generation", "date", occ.Date.Format("2006-01-02"), "error", err)
			return nil, err
		}
		outcome := persistence.OutcomeSuccess
		if message != "" {
			outcome = persistence.OutcomeError
			failed++
		}

		inst := persistence.Instance{
			ID:              s.idGenerator(),
			SeriesID:        seriesID,
			RuleID:          rule.ID,
			RuleFingerprint: fingerprint,
			Date:            occ.Date,
			Start:           occ.Start,
			End:             occ.End,
			ParticipantIDs:  append([]string(nil), participants...),
			Outcome:         outcome,
			ErrorMessage:    message,
			GeneratedAt:     generatedAt,
		}
		batch.Instances = append(batch.Instances, inst)
		batch.Records = append(batch.Records, persistence.GenerationRecord{
			ID:         s.idGenerator(),
			SeriesID:   seriesID,
			InstanceID: inst.ID,
			Date:       occ.Date,
			Outcome:    outcome,
			Message:    message,
			RecordedAt: generatedAt,
		})
	}

	retired, err := s.series.SaveGeneration(ctx, batch)
	if err != nil {
		mapped := mapRepoError(err)
		if errors.Is(mapped, ErrConflict) && !regenerate {
			mapped = fmt.Errorf("%w: series %s already has active instances", ErrConflict, seriesID)
		}
		logger.WarnContext(ctx, "failed to save generation", "error_kind", ErrorKind(mapped), "error", err)
		return nil, mapped
	}

	if retired > 0 {
		publish(ctx, logger, s.publisher, events.Event{
			ID:         s.idGenerator(),
			Type:       events.TypeSeriesRetired,
			OccurredAt: generatedAt,
			SeriesID:   seriesID,
			Attributes: map[string]string{
				"retired":      strconv.Itoa(retired),
				"rule_changed": strconv.FormatBool(changed),
			},
		})
	}
	for _, inst := range batch.Instances {
		publish(ctx, logger, s.publisher, instanceEvent(s.idGenerator(), inst))
	}

	logger.InfoContext(ctx, "series generated",
		"instances", len(batch.Instances),
		"conflicted", failed,
		"retired", retired,
		"rule_changed", changed,
	)
	return batch.Instances, nil
}

// conflictMessage checks every participant and describes the first
// conflicts found. An empty message means everyone is free.
func (s *SeriesService) conflictMessage(ctx context.Context, seriesID string, participants []string, occ recurrence.Occurrence) (string, error) {
	if s.checker == nil || len(participants) == 0 {
		return "", nil
	}
	var parts []string
	for _, p := range participants {
		result, err := s.checker.CheckAvailability(ctx, p, occ.Start, occ.End, seriesID)
		if err != nil {
			return "", err
		}
		if result.Available {
			continue
		}
		entities := make([]string, 0, len(result.Conflicts))
		for _, c := range result.Conflicts {
			entities = append(entities, c.EntityID)
		}
		parts = append(parts, fmt.Sprintf("participant %s is busy (%s)", p, strings.Join(entities, ", ")))
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "conflict: " + strings.Join(parts, "; "), nil
}

// ListInstances returns the instances of a series ordered by start time.
func (s *SeriesService) ListInstances(ctx context.Context, seriesID string, includeRetired bool) ([]persistence.Instance, error) {
	if strings.TrimSpace(seriesID) == "" {
		return nil, fmt.Errorf("%w: series id is required", ErrInvalidInput)
	}
	instances, err := s.series.ListInstances(ctx, seriesID, includeRetired)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return instances, nil
}

// ListGenerationRecords returns the audit trail of a series.
func (s *SeriesService) ListGenerationRecords(ctx context.Context, seriesID string) ([]persistence.GenerationRecord, error) {
	if strings.TrimSpace(seriesID) == "" {
		return nil, fmt.Errorf("%w: series id is required", ErrInvalidInput)
	}
	records, err := s.series.ListGenerationRecords(ctx, seriesID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return records, nil
}

// PurgeGenerationRecords deletes audit records older than now minus horizon.
// A non-positive horizon uses the configured retention.
func (s *SeriesService) PurgeGenerationRecords(ctx context.Context, horizon time.Duration) (int, error) {
	if horizon <= 0 {
		horizon = s.retention
	}
	cutoff := s.now().Add(-horizon)
	logger := serviceLogger(ctx, s.logger, "SeriesService", "PurgeGenerationRecords", "cutoff", cutoff)

	purged, err := s.series.PurgeGenerationRecords(ctx, cutoff)
	if err != nil {
		logger.ErrorContext(ctx, "retention sweep failed", "error", err)
		return 0, mapRepoError(err)
	}
	logger.InfoContext(ctx, "retention sweep completed", "purged", purged)
	return purged, nil
}
