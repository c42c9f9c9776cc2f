package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/meeting-lifecycle/internal/availability"
	"github.com/example/meeting-lifecycle/internal/persistence"
)

// CommitmentRepository stores external commitments and serves busy intervals.
type CommitmentRepository interface {
	availability.BusySource
	ReplaceCommitments(ctx context.Context, entityID string, commitments []persistence.Commitment) error
	DeleteCommitments(ctx context.Context, entityID string) error
}

// SlotPolicy bounds the meeting length accepted by slot searches.
type SlotPolicy struct {
	MinMinutes int
	MaxMinutes int
}

// DefaultSlotPolicy allows meetings between 15 minutes and 8 hours.
func DefaultSlotPolicy() SlotPolicy {
	return SlotPolicy{MinMinutes: 15, MaxMinutes: 480}
}

// clamp applies the policy to positive durations. Non-positive durations are
// left for the index to reject.
func (p SlotPolicy) clamp(minutes int) int {
	if minutes <= 0 {
		return minutes
	}
	if p.MinMinutes > 0 && minutes < p.MinMinutes {
		return p.MinMinutes
	}
	if p.MaxMinutes > 0 && minutes > p.MaxMinutes {
		return p.MaxMinutes
	}
	return minutes
}

// AvailabilityService answers availability queries and maintains the
// commitments that feed them.
type AvailabilityService struct {
	index       *availability.Index
	commitments CommitmentRepository
	policy      SlotPolicy
	logger      *slog.Logger
}

// NewAvailabilityService wires the availability index over the commitment store.
func NewAvailabilityService(commitments CommitmentRepository, policy SlotPolicy, logger *slog.Logger) *AvailabilityService {
	var source availability.BusySource
	if commitments != nil {
		source = commitments
	}
	return &AvailabilityService{
		index:       availability.NewIndex(source),
		commitments: commitments,
		policy:      policy,
		logger:      defaultLogger(logger),
	}
}

// Index exposes the underlying availability index for collaborating services.
func (s *AvailabilityService) Index() *availability.Index {
	return s.index
}

// CheckAvailability reports whether the participant is free for [start, end).
func (s *AvailabilityService) CheckAvailability(ctx context.Context, participantID string, start, end time.Time, excludeEntityID string) (availability.Result, error) {
	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "CheckAvailability", "participant_id", participantID)

	result, err := s.index.CheckAvailability(ctx, participantID, start, end, excludeEntityID)
	if err != nil {
		logger.WarnContext(ctx, "availability check failed", "error_kind", ErrorKind(err), "error", err)
		return availability.Result{}, err
	}
	logger.DebugContext(ctx, "availability checked", "available", result.Available, "conflicts", len(result.Conflicts))
	return result, nil
}

// FindAvailableSlots searches common free windows after applying the slot policy.
func (s *AvailabilityService) FindAvailableSlots(ctx context.Context, participantIDs []string, searchStart, searchEnd time.Time, durationMinutes int) ([]availability.Slot, error) {
	duration := s.policy.clamp(durationMinutes)
	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "FindAvailableSlots",
		"participants", len(participantIDs), "duration_minutes", duration)
	if duration != durationMinutes {
		logger.InfoContext(ctx, "slot duration clamped", "requested_minutes", durationMinutes)
	}

	slots, err := s.index.FindAvailableSlots(ctx, participantIDs, searchStart, searchEnd, duration)
	if err != nil {
		logger.WarnContext(ctx, "slot search failed", "error_kind", ErrorKind(err), "error", err)
		return nil, err
	}
	logger.DebugContext(ctx, "slot search completed", "slots", len(slots))
	return slots, nil
}

// ReplaceCommitmentsParams describes one externally owned meeting.
type ReplaceCommitmentsParams struct {
	EntityID       string
	ParticipantIDs []string
	Start          time.Time
	End            time.Time
}

// ReplaceCommitments records the participants occupied by an external entity,
// replacing whatever was stored for it before.
func (s *AvailabilityService) ReplaceCommitments(ctx context.Context, params ReplaceCommitmentsParams) error {
	if s.commitments == nil {
		return errors.New("commitment repository not configured")
	}
	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "ReplaceCommitments", "entity_id", params.EntityID)

	vErr := &ValidationError{}
	entityID := strings.TrimSpace(params.EntityID)
	if entityID == "" {
		vErr.add("entity_id", "entity id is required")
	}
	participants := uniqueSortedIDs(params.ParticipantIDs)
	if len(participants) == 0 {
		vErr.add("participant_ids", "at least one participant is required")
	}
	if !params.End.After(params.Start) {
		vErr.add("end", "end must be after start")
	}
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "commitment rejected", "error_kind", ErrorKind(vErr), "fields", vErr.FieldErrors)
		return vErr
	}

	commitments := make([]persistence.Commitment, 0, len(participants))
	for _, p := range participants {
		commitments = append(commitments, persistence.Commitment{
			EntityID:      entityID,
			ParticipantID: p,
			Start:         params.Start,
			End:           params.End,
		})
	}
	if err := s.commitments.ReplaceCommitments(ctx, entityID, commitments); err != nil {
		logger.ErrorContext(ctx, "failed to store commitments", "error", err)
		return mapRepoError(err)
	}
	logger.InfoContext(ctx, "commitments replaced", "participants", len(commitments))
	return nil
}

// DeleteCommitments removes an external entity from every calendar.
func (s *AvailabilityService) DeleteCommitments(ctx context.Context, entityID string) error {
	if s.commitments == nil {
		return errors.New("commitment repository not configured")
	}
	if strings.TrimSpace(entityID) == "" {
		return fmt.Errorf("%w: entity id is required", ErrInvalidInput)
	}
	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "DeleteCommitments", "entity_id", entityID)
	if err := s.commitments.DeleteCommitments(ctx, entityID); err != nil {
		mapped := mapRepoError(err)
		logger.WarnContext(ctx, "failed to delete commitments", "error_kind", ErrorKind(mapped), "error", err)
		return mapped
	}
	logger.InfoContext(ctx, "commitments deleted")
	return nil
}

func uniqueSortedIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
