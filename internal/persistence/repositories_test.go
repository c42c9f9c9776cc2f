package persistence_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/meeting-lifecycle/internal/availability"
	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/testfixtures"
	"github.com/example/meeting-lifecycle/internal/workflow"
)

func forEachStore(t *testing.T, fn func(t *testing.T, store persistence.Store)) {
	t.Helper()
	for _, factory := range testfixtures.StoreFactories() {
		factory := factory
		t.Run(factory.Name, func(t *testing.T) {
			t.Parallel()
			fn(t, factory.New(t))
		})
	}
}

func record(id string, inst persistence.Instance, at time.Time) persistence.GenerationRecord {
	return persistence.GenerationRecord{
		ID:         id,
		SeriesID:   inst.SeriesID,
		InstanceID: inst.ID,
		Date:       inst.Date,
		Outcome:    inst.Outcome,
		Message:    inst.ErrorMessage,
		RecordedAt: at,
	}
}

func TestSeriesRepository(t *testing.T) {
	t.Parallel()

	t.Run("saves, lists and retires instances", func(t *testing.T) {
		t.Parallel()

		forEachStore(t, func(t *testing.T, store persistence.Store) {
			ctx := context.Background()
			base := testfixtures.ReferenceTime()

			first := testfixtures.NewInstance("inst-2", "series-1", testfixtures.Date(2024, time.January, 8), "alice", "bob")
			second := testfixtures.NewInstance("inst-1", "series-1", testfixtures.Date(2024, time.January, 1), "alice", "bob")
			second.Outcome = persistence.OutcomeError
			second.ErrorMessage = "conflict"

			retired, err := store.SaveGeneration(ctx, persistence.GenerationBatch{
				SeriesID:        "series-1",
				RequireNoActive: true,
				Instances:       []persistence.Instance{first, second},
				Records:         []persistence.GenerationRecord{record("rec-1", first, base), record("rec-2", second, base)},
			})
			if err != nil {
				t.Fatalf("SaveGeneration failed: %v", err)
			}
			if retired != 0 {
				t.Fatalf("expected nothing retired, got %d", retired)
			}

			listed, err := store.ListInstances(ctx, "series-1", false)
			if err != nil {
				t.Fatalf("ListInstances failed: %v", err)
			}
			if len(listed) != 2 || listed[0].ID != "inst-1" || listed[1].ID != "inst-2" {
				t.Fatalf("expected instances ordered by start, got %+v", listed)
			}
			if listed[0].Outcome != persistence.OutcomeError || listed[0].ErrorMessage != "conflict" {
				t.Fatalf("outcome not persisted: %+v", listed[0])
			}
			if !listed[1].Start.Equal(first.Start) || !listed[1].End.Equal(first.End) {
				t.Fatalf("timestamps not persisted: %+v", listed[1])
			}
			if got := listed[1].Date.Format("2006-01-02"); got != "2024-01-08" {
				t.Fatalf("expected date 2024-01-08, got %s", got)
			}
			if !slices.Equal(listed[1].ParticipantIDs, []string{"alice", "bob"}) {
				t.Fatalf("participants not persisted: %v", listed[1].ParticipantIDs)
			}

			if _, err := store.SaveGeneration(ctx, persistence.GenerationBatch{SeriesID: "series-1", RequireNoActive: true}); !errors.Is(err, persistence.ErrConflict) {
				t.Fatalf("expected ErrConflict for second generation, got %v", err)
			}

			retireAt := base.Add(time.Hour)
			replacement := testfixtures.NewInstance("inst-3", "series-1", testfixtures.Date(2024, time.January, 15), "alice")
			retired, err = store.SaveGeneration(ctx, persistence.GenerationBatch{
				SeriesID:  "series-1",
				RetireAt:  &retireAt,
				Instances: []persistence.Instance{replacement},
				Records:   []persistence.GenerationRecord{record("rec-3", replacement, retireAt)},
			})
			if err != nil {
				t.Fatalf("regeneration failed: %v", err)
			}
			if retired != 2 {
				t.Fatalf("expected 2 retired instances, got %d", retired)
			}

			active, err := store.ListInstances(ctx, "series-1", false)
			if err != nil {
				t.Fatalf("ListInstances failed: %v", err)
			}
			if len(active) != 1 || active[0].ID != "inst-3" {
				t.Fatalf("expected only the replacement to be active, got %+v", active)
			}

			all, err := store.ListInstances(ctx, "series-1", true)
			if err != nil {
				t.Fatalf("ListInstances failed: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("expected 3 instances including retired, got %d", len(all))
			}
			for _, inst := range all {
				if inst.ID == "inst-3" {
					continue
				}
				if inst.RetiredAt == nil || !inst.RetiredAt.Equal(retireAt) {
					t.Fatalf("expected %s retired at %v, got %v", inst.ID, retireAt, inst.RetiredAt)
				}
			}
		})
	})

	t.Run("failed batch leaves state untouched", func(t *testing.T) {
		t.Parallel()

		forEachStore(t, func(t *testing.T, store persistence.Store) {
			ctx := context.Background()
			inst := testfixtures.NewInstance("dup", "series-2", testfixtures.Date(2024, time.January, 1))
			if _, err := store.SaveGeneration(ctx, persistence.GenerationBatch{SeriesID: "series-2", Instances: []persistence.Instance{inst}}); err != nil {
				t.Fatalf("SaveGeneration failed: %v", err)
			}

			retireAt := testfixtures.ReferenceTime()
			_, err := store.SaveGeneration(ctx, persistence.GenerationBatch{
				SeriesID:  "series-2",
				RetireAt:  &retireAt,
				Instances: []persistence.Instance{inst},
			})
			if !errors.Is(err, persistence.ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate, got %v", err)
			}

			active, err := store.ListInstances(ctx, "series-2", false)
			if err != nil {
				t.Fatalf("ListInstances failed: %v", err)
			}
			if len(active) != 1 || active[0].RetiredAt != nil {
				t.Fatalf("expected original instance to stay active, got %+v", active)
			}
		})
	})

	t.Run("purges generation records before cutoff", func(t *testing.T) {
		t.Parallel()

		forEachStore(t, func(t *testing.T, store persistence.Store) {
			ctx := context.Background()
			base := testfixtures.ReferenceTime()
			old := testfixtures.NewInstance("old", "series-3", testfixtures.Date(2024, time.January, 1))
			recent := testfixtures.NewInstance("recent", "series-3", testfixtures.Date(2024, time.January, 8))

			_, err := store.SaveGeneration(ctx, persistence.GenerationBatch{
				SeriesID:  "series-3",
				Instances: []persistence.Instance{old, recent},
				Records: []persistence.GenerationRecord{
					record("rec-old", old, base),
					record("rec-recent", recent, base.Add(48*time.Hour)),
				},
			})
			if err != nil {
				t.Fatalf("SaveGeneration failed: %v", err)
			}

			purged, err := store.PurgeGenerationRecords(ctx, base.Add(24*time.Hour))
			if err != nil {
				t.Fatalf("PurgeGenerationRecords failed: %v", err)
			}
			if purged != 1 {
				t.Fatalf("expected 1 purged record, got %d", purged)
			}

			records, err := store.ListGenerationRecords(ctx, "series-3")
			if err != nil {
				t.Fatalf("ListGenerationRecords failed: %v", err)
			}
			if len(records) != 1 || records[0].ID != "rec-recent" {
				t.Fatalf("expected only the recent record, got %+v", records)
			}
		})
	})

	t.Run("keeps the zone of generated instances", func(t *testing.T) {
		t.Parallel()

		tokyo, err := time.LoadLocation("Asia/Tokyo")
		if err != nil {
			t.Skipf("time zone data unavailable: %v", err)
		}
		fixed := time.FixedZone("Workshop", 5*3600+30*60)

		forEachStore(t, func(t *testing.T, store persistence.Store) {
			ctx := context.Background()
			inTokyo := testfixtures.NewInstance("inst-tokyo", "series-4", testfixtures.Date(2024, time.March, 1))
			inTokyo.Date = time.Date(2024, time.March, 1, 0, 0, 0, 0, tokyo)
			inTokyo.Start = time.Date(2024, time.March, 1, 9, 0, 0, 0, tokyo)
			inTokyo.End = time.Date(2024, time.March, 1, 10, 0, 0, 0, tokyo)
			inFixed := testfixtures.NewInstance("inst-fixed", "series-4", testfixtures.Date(2024, time.March, 2))
			inFixed.Date = time.Date(2024, time.March, 2, 0, 0, 0, 0, fixed)
			inFixed.Start = time.Date(2024, time.March, 2, 9, 0, 0, 0, fixed)
			inFixed.End = time.Date(2024, time.March, 2, 10, 0, 0, 0, fixed)

			if _, err := store.SaveGeneration(ctx, persistence.GenerationBatch{
				SeriesID:  "series-4",
				Instances: []persistence.Instance{inTokyo, inFixed},
			}); err != nil {
				t.Fatalf("SaveGeneration failed: %v", err)
			}

			listed, err := store.ListInstances(ctx, "series-4", false)
			if err != nil {
				t.Fatalf("ListInstances failed: %v", err)
			}
			if len(listed) != 2 {
				t.Fatalf("expected 2 instances, got %d", len(listed))
			}
			for i, want := range []string{"2024-03-01T09:00:00+09:00", "2024-03-02T09:00:00+05:30"} {
				if got := listed[i].Start.Format(time.RFC3339); got != want {
					t.Fatalf("expected start %s, got %s", want, got)
				}
			}
			if got := listed[0].End.Format(time.RFC3339); got != "2024-03-01T10:00:00+09:00" {
				t.Fatalf("unexpected end %s", got)
			}
			if got := listed[0].Date.Format(time.RFC3339); got != "2024-03-01T00:00:00+09:00" {
				t.Fatalf("unexpected date %s", got)
			}
		})
	})
}

func TestCommitmentRepository(t *testing.T) {
	t.Parallel()

	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		day := testfixtures.Date(2024, time.January, 1)
		window := availability.Interval{Start: day, End: day.Add(24 * time.Hour)}

		err := store.ReplaceCommitments(ctx, "meeting-1", []persistence.Commitment{
			testfixtures.NewCommitment("meeting-1", "alice", day.Add(9*time.Hour), day.Add(10*time.Hour)),
			testfixtures.NewCommitment("meeting-1", "bob", day.Add(9*time.Hour), day.Add(10*time.Hour)),
		})
		if err != nil {
			t.Fatalf("ReplaceCommitments failed: %v", err)
		}
		err = store.ReplaceCommitments(ctx, "meeting-1", []persistence.Commitment{
			testfixtures.NewCommitment("meeting-1", "alice", day.Add(13*time.Hour), day.Add(14*time.Hour)),
		})
		if err != nil {
			t.Fatalf("ReplaceCommitments failed: %v", err)
		}

		inst := testfixtures.NewInstance("inst-1", "series-1", day, "alice")
		retired := testfixtures.NewInstance("inst-0", "series-0", day, "alice")
		if _, err := store.SaveGeneration(ctx, persistence.GenerationBatch{SeriesID: "series-0", Instances: []persistence.Instance{retired}}); err != nil {
			t.Fatalf("SaveGeneration failed: %v", err)
		}
		retireAt := day
		if _, err := store.SaveGeneration(ctx, persistence.GenerationBatch{SeriesID: "series-0", RetireAt: &retireAt}); err != nil {
			t.Fatalf("retire failed: %v", err)
		}
		if _, err := store.SaveGeneration(ctx, persistence.GenerationBatch{SeriesID: "series-1", Instances: []persistence.Instance{inst}}); err != nil {
			t.Fatalf("SaveGeneration failed: %v", err)
		}

		busy, err := store.BusyIntervals(ctx, []string{"alice", "bob"}, window)
		if err != nil {
			t.Fatalf("BusyIntervals failed: %v", err)
		}
		entities := make([]string, 0, len(busy))
		for _, b := range busy {
			if b.ParticipantID != "alice" {
				t.Fatalf("bob's replaced commitment should be gone, got %+v", b)
			}
			entities = append(entities, b.EntityID)
		}
		slices.Sort(entities)
		if !slices.Equal(entities, []string{"meeting-1", "series-1"}) {
			t.Fatalf("unexpected busy entities: %v", entities)
		}

		outside := availability.Interval{Start: day.Add(48 * time.Hour), End: day.Add(72 * time.Hour)}
		busy, err = store.BusyIntervals(ctx, []string{"alice"}, outside)
		if err != nil {
			t.Fatalf("BusyIntervals failed: %v", err)
		}
		if len(busy) != 0 {
			t.Fatalf("expected no busy intervals outside the window, got %+v", busy)
		}

		if err := store.DeleteCommitments(ctx, "meeting-1"); err != nil {
			t.Fatalf("DeleteCommitments failed: %v", err)
		}
		if err := store.DeleteCommitments(ctx, "meeting-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestWorkflowRepository(t *testing.T) {
	t.Parallel()

	t.Run("stores definitions with steps and config", func(t *testing.T) {
		t.Parallel()

		forEachStore(t, func(t *testing.T, store persistence.Store) {
			ctx := context.Background()
			def := testfixtures.NewDefinition("v1", "v2")
			def.ID = "minutes-approval"
			def.Mandatory = true
			def.Config = map[string]string{"escalation": "none"}
			def.UpdatedAt = testfixtures.ReferenceTime()

			if err := store.SaveDefinition(ctx, def); err != nil {
				t.Fatalf("SaveDefinition failed: %v", err)
			}

			def.Steps = def.Steps[:1]
			if err := store.SaveDefinition(ctx, def); err != nil {
				t.Fatalf("SaveDefinition (replace) failed: %v", err)
			}

			fetched, err := store.GetDefinition(ctx, "minutes-approval")
			if err != nil {
				t.Fatalf("GetDefinition failed: %v", err)
			}
			if len(fetched.Steps) != 1 || fetched.Steps[0].ValidatorID != "v1" || !fetched.Steps[0].Notify {
				t.Fatalf("unexpected steps: %+v", fetched.Steps)
			}
			if !fetched.Mandatory || fetched.Config["escalation"] != "none" {
				t.Fatalf("unexpected definition attributes: %+v", fetched)
			}
			if !fetched.UpdatedAt.Equal(def.UpdatedAt) {
				t.Fatalf("expected updated_at %v, got %v", def.UpdatedAt, fetched.UpdatedAt)
			}

			if _, err := store.GetDefinition(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			defs, err := store.ListDefinitions(ctx)
			if err != nil {
				t.Fatalf("ListDefinitions failed: %v", err)
			}
			if len(defs) != 1 || defs[0].ID != "minutes-approval" {
				t.Fatalf("unexpected definitions: %+v", defs)
			}
		})
	})

	t.Run("enforces one active run per target and version CAS", func(t *testing.T) {
		t.Parallel()

		forEachStore(t, func(t *testing.T, store persistence.Store) {
			ctx := context.Background()
			def := testfixtures.NewDefinition("v1", "v2")
			if err := store.SaveDefinition(ctx, def); err != nil {
				t.Fatalf("SaveDefinition failed: %v", err)
			}

			base := testfixtures.ReferenceTime()
			started, err := workflow.Start(def, "run-1", testfixtures.MeetingTarget("meeting-1"), "requester", base)
			if err != nil {
				t.Fatalf("Start failed: %v", err)
			}
			if err := store.CreateRun(ctx, started.Run); err != nil {
				t.Fatalf("CreateRun failed: %v", err)
			}

			second, _ := workflow.Start(def, "run-2", testfixtures.MeetingTarget("meeting-1"), "requester", base)
			if err := store.CreateRun(ctx, second.Run); !errors.Is(err, persistence.ErrConflict) {
				t.Fatalf("expected ErrConflict for second active run, got %v", err)
			}

			validated, err := workflow.Validate(started.Run, 1, "v1", "looks good", base.Add(time.Minute))
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if err := store.UpdateRun(ctx, validated.Run, started.Run.Version); err != nil {
				t.Fatalf("UpdateRun failed: %v", err)
			}
			if err := store.UpdateRun(ctx, validated.Run, started.Run.Version); !errors.Is(err, persistence.ErrConflict) {
				t.Fatalf("expected ErrConflict for stale version, got %v", err)
			}

			cancelled, err := workflow.Cancel(validated.Run, "requester", "withdrawn", base.Add(2*time.Minute))
			if err != nil {
				t.Fatalf("Cancel failed: %v", err)
			}
			if err := store.UpdateRun(ctx, cancelled.Run, validated.Run.Version); err != nil {
				t.Fatalf("UpdateRun failed: %v", err)
			}

			fetched, err := store.GetRun(ctx, "run-1")
			if err != nil {
				t.Fatalf("GetRun failed: %v", err)
			}
			if fetched.Status != workflow.StatusCancelled || fetched.Version != cancelled.Run.Version {
				t.Fatalf("unexpected run state: %+v", fetched)
			}
			if len(fetched.Steps) != 2 || fetched.Steps[1].ValidatorID != "v2" {
				t.Fatalf("step snapshot not persisted: %+v", fetched.Steps)
			}
			if len(fetched.History) != 2 || fetched.History[0].Comment != "looks good" || fetched.History[1].Kind != workflow.DecisionCancelled {
				t.Fatalf("unexpected history: %+v", fetched.History)
			}

			third, _ := workflow.Start(def, "run-3", testfixtures.MeetingTarget("meeting-1"), "requester", base.Add(time.Hour))
			if err := store.CreateRun(ctx, third.Run); err != nil {
				t.Fatalf("CreateRun after cancel failed: %v", err)
			}

			runs, err := store.ListRunsForTarget(ctx, testfixtures.MeetingTarget("meeting-1"))
			if err != nil {
				t.Fatalf("ListRunsForTarget failed: %v", err)
			}
			if len(runs) != 2 || runs[0].ID != "run-1" || runs[1].ID != "run-3" {
				t.Fatalf("unexpected runs: %+v", runs)
			}

			if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := store.UpdateRun(ctx, workflow.Run{ID: "missing", Version: 2}, 1); !errors.Is(err, persistence.ErrNotFound) {
				t.Fatalf("expected ErrNotFound for unknown run, got %v", err)
			}
		})
	})
	t.Run("identifies targets by kind and id", func(t *testing.T) {
		t.Parallel()

		forEachStore(t, func(t *testing.T, store persistence.Store) {
			ctx := context.Background()
			def := testfixtures.NewDefinition("v1")
			if err := store.SaveDefinition(ctx, def); err != nil {
				t.Fatalf("SaveDefinition failed: %v", err)
			}

			base := testfixtures.ReferenceTime()
			meeting, _ := workflow.Start(def, "run-meeting", testfixtures.MeetingTarget("7"), "requester", base)
			minutes, _ := workflow.Start(def, "run-minutes", testfixtures.MinutesTarget("7"), "requester", base)
			if err := store.CreateRun(ctx, meeting.Run); err != nil {
				t.Fatalf("CreateRun (meeting) failed: %v", err)
			}
			if err := store.CreateRun(ctx, minutes.Run); err != nil {
				t.Fatalf("CreateRun (minutes) failed: %v", err)
			}

			for _, target := range []workflow.Target{testfixtures.MeetingTarget("7"), testfixtures.MinutesTarget("7")} {
				runs, err := store.ListRunsForTarget(ctx, target)
				if err != nil {
					t.Fatalf("ListRunsForTarget failed: %v", err)
				}
				if len(runs) != 1 || runs[0].Target != target {
					t.Fatalf("expected one run for %+v, got %+v", target, runs)
				}
			}
		})
	})
}
