package availability

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type failingSource struct{ err error }

func (f failingSource) BusyIntervals(context.Context, []string, Interval) ([]BusyInterval, error) {
	return nil, f.err
}

func TestIndex_CheckAvailability(t *testing.T) {
	t.Parallel()

	source := StaticSource{
		{ParticipantID: "alice", EntityID: "standup", Start: at(9, 0), End: at(10, 0)},
		{ParticipantID: "bob", EntityID: "review", Start: at(10, 0), End: at(11, 0)},
	}
	index := NewIndex(source)
	ctx := context.Background()

	tests := []struct {
		name      string
		who       string
		start     time.Time
		end       time.Time
		exclude   string
		available bool
		conflicts int
	}{
		{name: "meeting ending at start of window", who: "alice", start: at(10, 0), end: at(11, 0), available: true},
		{name: "overlapping window", who: "alice", start: at(9, 30), end: at(10, 30), available: false, conflicts: 1},
		{name: "other participant busy only", who: "alice", start: at(10, 15), end: at(10, 45), available: true},
		{name: "excluded entity", who: "alice", start: at(9, 0), end: at(10, 0), exclude: "standup", available: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result, err := index.CheckAvailability(ctx, tc.who, tc.start, tc.end, tc.exclude)
			if err != nil {
				t.Fatalf("CheckAvailability returned error: %v", err)
			}
			if result.Available != tc.available {
				t.Fatalf("expected available=%v, got %v", tc.available, result.Available)
			}
			if len(result.Conflicts) != tc.conflicts {
				t.Fatalf("expected %d conflicts, got %d", tc.conflicts, len(result.Conflicts))
			}
		})
	}

	t.Run("rejects empty window", func(t *testing.T) {
		t.Parallel()
		_, err := index.CheckAvailability(ctx, "alice", at(9, 0), at(9, 0), "")
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("rejects blank participant", func(t *testing.T) {
		t.Parallel()
		_, err := index.CheckAvailability(ctx, "  ", at(9, 0), at(10, 0), "")
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("wraps source failures", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		_, err := NewIndex(failingSource{err: boom}).CheckAvailability(ctx, "alice", at(9, 0), at(10, 0), "")
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped source error, got %v", err)
		}
	})
}

func TestIndex_FindAvailableSlots(t *testing.T) {
	t.Parallel()

	source := StaticSource{
		{ParticipantID: "alice", EntityID: "a1", Start: at(9, 0), End: at(10, 0)},
		{ParticipantID: "alice", EntityID: "a2", Start: at(13, 0), End: at(14, 0)},
		{ParticipantID: "bob", EntityID: "b1", Start: at(9, 30), End: at(11, 0)},
		{ParticipantID: "bob", EntityID: "b2", Start: at(15, 0), End: at(17, 30)},
		{ParticipantID: "carol", EntityID: "c1", Start: at(6, 0), End: at(8, 30)},
	}
	index := NewIndex(source)
	ctx := context.Background()

	slots, err := index.FindAvailableSlots(ctx, []string{"bob", "alice", "alice"}, at(8, 0), at(18, 0), 60)
	if err != nil {
		t.Fatalf("FindAvailableSlots returned error: %v", err)
	}

	want := []Slot{
		{Start: at(8, 0), End: at(9, 0)},
		{Start: at(11, 0), End: at(12, 0)},
		{Start: at(14, 0), End: at(15, 0)},
	}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("unexpected slots:\n got %v\nwant %v", slots, want)
	}

	t.Run("every slot is free for every participant", func(t *testing.T) {
		t.Parallel()
		for _, slot := range slots {
			if slot.End.Sub(slot.Start) != time.Hour {
				t.Fatalf("slot %v does not match requested duration", slot)
			}
			for _, who := range []string{"alice", "bob"} {
				res, err := index.CheckAvailability(ctx, who, slot.Start, slot.End, "")
				if err != nil {
					t.Fatalf("CheckAvailability returned error: %v", err)
				}
				if !res.Available {
					t.Fatalf("slot %v is not free for %s", slot, who)
				}
			}
		}
	})

	t.Run("output is deterministic", func(t *testing.T) {
		t.Parallel()
		again, err := index.FindAvailableSlots(ctx, []string{"alice", "bob"}, at(8, 0), at(18, 0), 60)
		if err != nil {
			t.Fatalf("FindAvailableSlots returned error: %v", err)
		}
		if !reflect.DeepEqual(again, slots) {
			t.Fatalf("expected identical output for identical input")
		}
	})

	t.Run("busy intervals outside the range are clipped", func(t *testing.T) {
		t.Parallel()
		got, err := index.FindAvailableSlots(ctx, []string{"carol"}, at(8, 0), at(10, 0), 90)
		if err != nil {
			t.Fatalf("FindAvailableSlots returned error: %v", err)
		}
		want := []Slot{{Start: at(8, 30), End: at(10, 0)}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("unexpected slots: %v", got)
		}
	})

	t.Run("no slot yields empty result", func(t *testing.T) {
		t.Parallel()
		got, err := index.FindAvailableSlots(ctx, []string{"alice", "bob"}, at(9, 0), at(11, 0), 30)
		if err != nil {
			t.Fatalf("FindAvailableSlots returned error: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no slots, got %v", got)
		}
	})

	invalid := []struct {
		name     string
		ids      []string
		start    time.Time
		end      time.Time
		duration int
	}{
		{name: "empty participant set", ids: nil, start: at(8, 0), end: at(9, 0), duration: 15},
		{name: "inverted range", ids: []string{"alice"}, start: at(9, 0), end: at(8, 0), duration: 15},
		{name: "zero duration", ids: []string{"alice"}, start: at(8, 0), end: at(9, 0), duration: 0},
		{name: "duration longer than range", ids: []string{"alice"}, start: at(8, 0), end: at(9, 0), duration: 61},
	}
	for _, tc := range invalid {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := index.FindAvailableSlots(ctx, tc.ids, tc.start, tc.end, tc.duration)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
