package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidInput reports a malformed query: empty participants, inverted or
// empty windows, or a duration that cannot fit the search range.
var ErrInvalidInput = errors.New("availability: invalid input")

// Result answers a single participant availability query.
type Result struct {
	ParticipantID string
	Window        Interval
	Available     bool
	Conflicts     []BusyInterval
}

// Slot is a candidate window that is free for every requested participant.
type Slot struct {
	Start time.Time
	End   time.Time
}

// BusySource supplies the commitments overlapping a window for the given participants.
type BusySource interface {
	BusyIntervals(ctx context.Context, participantIDs []string, window Interval) ([]BusyInterval, error)
}

// StaticSource serves a fixed set of busy intervals.
type StaticSource []BusyInterval

// BusyIntervals implements BusySource.
func (s StaticSource) BusyIntervals(_ context.Context, participantIDs []string, window Interval) ([]BusyInterval, error) {
	wanted := make(map[string]struct{}, len(participantIDs))
	for _, id := range participantIDs {
		wanted[id] = struct{}{}
	}
	var out []BusyInterval
	for _, b := range s {
		if _, ok := wanted[b.ParticipantID]; !ok {
			continue
		}
		if b.Interval().Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Index answers availability queries against a BusySource. It holds no mutable
// state and is safe for concurrent use.
type Index struct {
	source BusySource
}

// NewIndex returns an Index reading commitments from source. A nil source is
// treated as an empty calendar.
func NewIndex(source BusySource) *Index {
	if source == nil {
		source = StaticSource(nil)
	}
	return &Index{source: source}
}

// CheckAvailability reports whether participantID is free for [start, end).
func (idx *Index) CheckAvailability(ctx context.Context, participantID string, start, end time.Time, excludeEntityID string) (Result, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return Result{}, fmt.Errorf("%w: participant id is required", ErrInvalidInput)
	}
	window := Interval{Start: start, End: end}
	if window.Empty() {
		return Result{}, fmt.Errorf("%w: end must be after start", ErrInvalidInput)
	}

	busy, err := idx.source.BusyIntervals(ctx, []string{participantID}, window)
	if err != nil {
		return Result{}, fmt.Errorf("availability: load busy intervals: %w", err)
	}

	own := busy[:0:0]
	for _, b := range busy {
		if b.ParticipantID == participantID {
			own = append(own, b)
		}
	}

	conflicts := DetectConflicts(own, window, excludeEntityID)
	return Result{
		ParticipantID: participantID,
		Window:        window,
		Available:     len(conflicts) == 0,
		Conflicts:     conflicts,
	}, nil
}

// FindAvailableSlots returns, in ascending order, one slot of exactly
// durationMinutes at the start of every maximal window inside
// [searchStart, searchEnd) where all participants are free.
func (idx *Index) FindAvailableSlots(ctx context.Context, participantIDs []string, searchStart, searchEnd time.Time, durationMinutes int) ([]Slot, error) {
	ids := normalizeParticipants(participantIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one participant is required", ErrInvalidInput)
	}
	window := Interval{Start: searchStart, End: searchEnd}
	if window.Empty() {
		return nil, fmt.Errorf("%w: search end must be after search start", ErrInvalidInput)
	}
	duration := time.Duration(durationMinutes) * time.Minute
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	if duration > window.Duration() {
		return nil, fmt.Errorf("%w: duration exceeds search range", ErrInvalidInput)
	}

	busy, err := idx.source.BusyIntervals(ctx, ids, window)
	if err != nil {
		return nil, fmt.Errorf("availability: load busy intervals: %w", err)
	}

	perParticipant := make(map[string][]Interval, len(ids))
	for _, b := range busy {
		perParticipant[b.ParticipantID] = append(perParticipant[b.ParticipantID], b.Interval())
	}

	common := []Interval{window}
	for _, id := range ids {
		free := complement(mergeIntervals(perParticipant[id], window), window)
		common = intersect(common, free)
		if len(common) == 0 {
			return []Slot{}, nil
		}
	}

	slots := make([]Slot, 0, len(common))
	for _, free := range common {
		if free.Duration() < duration {
			continue
		}
		slots = append(slots, Slot{Start: free.Start, End: free.Start.Add(duration)})
	}
	return slots, nil
}

func normalizeParticipants(ids []string) []string {
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
