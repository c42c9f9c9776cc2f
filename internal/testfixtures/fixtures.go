package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/recurrence"
	"github.com/example/meeting-lifecycle/internal/workflow"
)

var (
	ruleCounter       uint64
	definitionCounter uint64
)

// referenceTime is a Monday, which keeps weekly fixtures easy to reason about.
var referenceTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// At returns the UTC timestamp for the given day and wall clock.
func At(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

// ----------------------------- Rule fixtures -----------------------------

// RuleOption configures the generated recurrence rule.
type RuleOption func(*recurrence.Rule)

// NewRule returns a weekly 10:00-11:00 rule starting on ReferenceTime and
// ending four weeks later, with optional overrides.
func NewRule(opts ...RuleOption) recurrence.Rule {
	idx := atomic.AddUint64(&ruleCounter, 1)
	end := referenceTime.AddDate(0, 0, 27)
	rule := recurrence.Rule{
		ID:          fmt.Sprintf("rule-%03d", idx),
		SeriesID:    fmt.Sprintf("series-%03d", idx),
		Periodicity: recurrence.Weekly,
		StartDate:   referenceTime,
		EndDate:     &end,
		DayOfWeek:   1,
		StartTime:   recurrence.TimeOfDay{Hour: 10},
		EndTime:     recurrence.TimeOfDay{Hour: 11},
	}
	for _, opt := range opts {
		opt(&rule)
	}
	return rule
}

// WithRuleID overrides the rule and series identifiers.
func WithRuleID(ruleID, seriesID string) RuleOption {
	return func(r *recurrence.Rule) {
		r.ID = ruleID
		r.SeriesID = seriesID
	}
}

// WithPeriodicity overrides the periodicity.
func WithPeriodicity(p recurrence.Periodicity) RuleOption {
	return func(r *recurrence.Rule) {
		r.Periodicity = p
	}
}

// WithDates sets the start date and an optional end date.
func WithDates(start time.Time, end *time.Time) RuleOption {
	return func(r *recurrence.Rule) {
		r.StartDate = start
		r.EndDate = end
	}
}

// WithoutEndDate clears the end date.
func WithoutEndDate() RuleOption {
	return func(r *recurrence.Rule) {
		r.EndDate = nil
	}
}

// WithDayOfWeek sets the ISO weekday (1 = Monday).
func WithDayOfWeek(day int) RuleOption {
	return func(r *recurrence.Rule) {
		r.DayOfWeek = day
	}
}

// WithDayOfMonth sets the day of month for the monthly family.
func WithDayOfMonth(day int) RuleOption {
	return func(r *recurrence.Rule) {
		r.DayOfMonth = day
	}
}

// WithTimes sets the start and end time of day.
func WithTimes(startHour, startMinute, endHour, endMinute int) RuleOption {
	return func(r *recurrence.Rule) {
		r.StartTime = recurrence.TimeOfDay{Hour: startHour, Minute: startMinute}
		r.EndTime = recurrence.TimeOfDay{Hour: endHour, Minute: endMinute}
	}
}

// WithLocation sets the rule location.
func WithLocation(loc *time.Location) RuleOption {
	return func(r *recurrence.Rule) {
		r.Location = loc
	}
}

// -------------------------- Definition fixtures --------------------------

// NewDefinition returns a definition whose steps are validated by the given
// validators in order, notifying on every step.
func NewDefinition(validators ...string) workflow.Definition {
	idx := atomic.AddUint64(&definitionCounter, 1)
	def := workflow.Definition{
		ID:   fmt.Sprintf("definition-%03d", idx),
		Name: fmt.Sprintf("Definition %03d", idx),
	}
	for i, validator := range validators {
		def.Steps = append(def.Steps, workflow.Step{
			Index:       i + 1,
			Name:        fmt.Sprintf("step %d", i+1),
			ValidatorID: validator,
			Notify:      true,
		})
	}
	return def
}

// MeetingTarget returns a meeting target with the given id.
func MeetingTarget(id string) workflow.Target {
	return workflow.Target{Kind: workflow.TargetMeeting, ID: id}
}

// MinutesTarget returns the minutes of the meeting with the given id.
func MinutesTarget(id string) workflow.Target {
	return workflow.Target{Kind: workflow.TargetMinutes, ID: id}
}

// -------------------------- Commitment fixtures --------------------------

// NewCommitment returns an external commitment for one participant.
func NewCommitment(entityID, participantID string, start, end time.Time) persistence.Commitment {
	return persistence.Commitment{
		EntityID:      entityID,
		ParticipantID: participantID,
		Start:         start,
		End:           end,
	}
}

// --------------------------- Instance fixtures ---------------------------

// NewInstance returns an active SUCCESS instance of a series on the given day,
// 10:00-11:00 UTC.
func NewInstance(id, seriesID string, day time.Time, participants ...string) persistence.Instance {
	y, m, d := day.Date()
	return persistence.Instance{
		ID:              id,
		SeriesID:        seriesID,
		RuleID:          "rule-" + seriesID,
		RuleFingerprint: "fp-" + seriesID,
		Date:            Date(y, m, d),
		Start:           At(y, m, d, 10, 0),
		End:             At(y, m, d, 11, 0),
		ParticipantIDs:  participants,
		Outcome:         persistence.OutcomeSuccess,
		GeneratedAt:     referenceTime,
	}
}
