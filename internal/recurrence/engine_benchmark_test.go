package recurrence

import (
	"testing"
	"time"
)

func BenchmarkEnginePlan(b *testing.B) {
	engine := NewEngine(nil)
	until := time.Date(2024, 8, 6, 0, 0, 0, 0, time.UTC)
	rule := Rule{
		ID:          "rule-1",
		SeriesID:    "series-1",
		Periodicity: Daily,
		StartDate:   time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
		EndDate:     &until,
		StartTime:   TimeOfDay{Hour: 9},
		EndTime:     TimeOfDay{Hour: 10, Minute: 30},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		occurrences, err := engine.Plan(rule, nil)
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		if len(occurrences) == 0 {
			b.Fatal("expected occurrences to be generated")
		}
	}
}
