package availability

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the interval covers no instant.
func (i Interval) Empty() bool {
	return !i.End.After(i.Start)
}

// Duration returns the length of the interval, or zero when empty.
func (i Interval) Duration() time.Duration {
	if i.Empty() {
		return 0
	}
	return i.End.Sub(i.Start)
}

// Overlaps applies the half-open overlap test. Empty intervals never overlap.
func (i Interval) Overlaps(other Interval) bool {
	if i.Empty() || other.Empty() {
		return false
	}
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// clip restricts the interval to window, returning false when nothing remains.
func (i Interval) clip(window Interval) (Interval, bool) {
	start := i.Start
	if window.Start.After(start) {
		start = window.Start
	}
	end := i.End
	if window.End.Before(end) {
		end = window.End
	}
	clipped := Interval{Start: start, End: end}
	return clipped, !clipped.Empty()
}

// mergeIntervals clips intervals to window and folds overlapping or touching
// ranges into a sorted, disjoint list.
func mergeIntervals(intervals []Interval, window Interval) []Interval {
	clipped := make([]Interval, 0, len(intervals))
	for _, interval := range intervals {
		if c, ok := interval.clip(window); ok {
			clipped = append(clipped, c)
		}
	}
	if len(clipped) == 0 {
		return nil
	}

	sort.Slice(clipped, func(a, b int) bool {
		if clipped[a].Start.Equal(clipped[b].Start) {
			return clipped[a].End.Before(clipped[b].End)
		}
		return clipped[a].Start.Before(clipped[b].Start)
	})

	merged := []Interval{clipped[0]}
	for _, next := range clipped[1:] {
		last := &merged[len(merged)-1]
		if !next.Start.After(last.End) {
			if next.End.After(last.End) {
				last.End = next.End
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// complement returns the free ranges of window not covered by busy, which must
// already be merged.
func complement(busy []Interval, window Interval) []Interval {
	free := make([]Interval, 0, len(busy)+1)
	cursor := window.Start
	for _, b := range busy {
		if b.Start.After(cursor) {
			free = append(free, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if window.End.After(cursor) {
		free = append(free, Interval{Start: cursor, End: window.End})
	}
	return free
}

// intersect sweeps two sorted, disjoint lists and keeps the ranges present in both.
func intersect(a, b []Interval) []Interval {
	out := make([]Interval, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := a[i].Start
		if b[j].Start.After(start) {
			start = b[j].Start
		}
		end := a[i].End
		if b[j].End.Before(end) {
			end = b[j].End
		}
		if end.After(start) {
			out = append(out, Interval{Start: start, End: end})
		}
		if a[i].End.Before(b[j].End) {
			i++
		} else {
			j++
		}
	}
	return out
}
