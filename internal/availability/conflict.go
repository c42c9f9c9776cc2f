package availability

import (
	"sort"
	"time"
)

// BusyInterval is one existing commitment of a participant.
type BusyInterval struct {
	ParticipantID string
	EntityID      string
	Start         time.Time
	End           time.Time
}

// Interval returns the time range occupied by the commitment.
func (b BusyInterval) Interval() Interval {
	return Interval{Start: b.Start, End: b.End}
}

// DetectConflicts returns the busy intervals overlapping window, skipping any
// that belong to excludeEntityID. The result is ordered by start, end and entity.
func DetectConflicts(busy []BusyInterval, window Interval, excludeEntityID string) []BusyInterval {
	var conflicts []BusyInterval
	for _, b := range busy {
		if excludeEntityID != "" && b.EntityID == excludeEntityID {
			continue
		}
		if b.Interval().Overlaps(window) {
			conflicts = append(conflicts, b)
		}
	}
	sortBusy(conflicts)
	return conflicts
}

func sortBusy(busy []BusyInterval) {
	sort.Slice(busy, func(i, j int) bool {
		a, b := busy[i], busy[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		if a.ParticipantID != b.ParticipantID {
			return a.ParticipantID < b.ParticipantID
		}
		return a.EntityID < b.EntityID
	})
}
