package availability

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.March, 4, hour, minute, 0, 0, time.UTC)
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	busy := []BusyInterval{
		{ParticipantID: "alice", EntityID: "m-2", Start: at(11, 0), End: at(12, 0)},
		{ParticipantID: "alice", EntityID: "m-1", Start: at(9, 0), End: at(10, 0)},
		{ParticipantID: "alice", EntityID: "m-3", Start: at(13, 0), End: at(14, 0)},
	}

	t.Run("touching intervals do not conflict", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(busy, Interval{Start: at(10, 0), End: at(11, 0)}, "")
		if len(got) != 0 {
			t.Fatalf("expected no conflicts, got %#v", got)
		}
	})

	t.Run("overlaps are reported in start order", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(busy, Interval{Start: at(9, 30), End: at(13, 30)}, "")
		if len(got) != 3 {
			t.Fatalf("expected 3 conflicts, got %d", len(got))
		}
		if got[0].EntityID != "m-1" || got[1].EntityID != "m-2" || got[2].EntityID != "m-3" {
			t.Fatalf("unexpected order: %#v", got)
		}
	})

	t.Run("excluded entity is skipped", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(busy, Interval{Start: at(9, 30), End: at(10, 30)}, "m-1")
		if len(got) != 0 {
			t.Fatalf("expected exclusion to drop conflict, got %#v", got)
		}
	})

	t.Run("zero length window never conflicts", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(busy, Interval{Start: at(9, 30), End: at(9, 30)}, "")
		if len(got) != 0 {
			t.Fatalf("expected no conflicts for empty window, got %#v", got)
		}
	})
}

func TestMergeAndComplement(t *testing.T) {
	t.Parallel()

	window := Interval{Start: at(8, 0), End: at(18, 0)}
	merged := mergeIntervals([]Interval{
		{Start: at(7, 0), End: at(9, 0)},
		{Start: at(10, 0), End: at(11, 0)},
		{Start: at(10, 30), End: at(12, 0)},
		{Start: at(12, 0), End: at(12, 30)},
		{Start: at(17, 30), End: at(19, 0)},
	}, window)

	want := []Interval{
		{Start: at(8, 0), End: at(9, 0)},
		{Start: at(10, 0), End: at(12, 30)},
		{Start: at(17, 30), End: at(18, 0)},
	}
	if len(merged) != len(want) {
		t.Fatalf("expected %d merged intervals, got %#v", len(want), merged)
	}
	for i := range want {
		if !merged[i].Start.Equal(want[i].Start) || !merged[i].End.Equal(want[i].End) {
			t.Fatalf("merged[%d] = %v, want %v", i, merged[i], want[i])
		}
	}

	free := complement(merged, window)
	wantFree := []Interval{
		{Start: at(9, 0), End: at(10, 0)},
		{Start: at(12, 30), End: at(17, 30)},
	}
	if len(free) != len(wantFree) {
		t.Fatalf("expected %d free intervals, got %#v", len(wantFree), free)
	}
	for i := range wantFree {
		if !free[i].Start.Equal(wantFree[i].Start) || !free[i].End.Equal(wantFree[i].End) {
			t.Fatalf("free[%d] = %v, want %v", i, free[i], wantFree[i])
		}
	}
}
