package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultMaxOccurrences caps a single expansion.
const DefaultMaxOccurrences = 1000

// ErrUnboundedGeneration indicates neither the rule nor the caller supplied an end bound.
var ErrUnboundedGeneration = errors.New("recurrence: generation window requires an end bound")

// ErrTooManyOccurrences indicates the bounded window still exceeds the engine cap.
var ErrTooManyOccurrences = errors.New("recurrence: too many occurrences in window")

// Occurrence is one planned date of a series.
type Occurrence struct {
	SeriesID string
	RuleID   string
	Date     time.Time
	Start    time.Time
	End      time.Time
}

// Engine expands recurrence rules into occurrences.
type Engine struct {
	location       *time.Location
	maxOccurrences int
}

// Option customises an Engine.
type Option func(*Engine)

// WithMaxOccurrences overrides DefaultMaxOccurrences. Non-positive values are ignored.
func WithMaxOccurrences(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxOccurrences = n
		}
	}
}

// NewEngine constructs an Engine using loc for rules that carry no location.
// If loc is nil, UTC is used.
func NewEngine(loc *time.Location, opts ...Option) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	e := &Engine{location: loc, maxOccurrences: DefaultMaxOccurrences}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan lists the occurrences of rule from its start date up to and including
// the earlier of the rule's end date and rangeEnd.
//
// Monthly, quarterly, semiannual and annual rules keep the same day of month,
// falling back to the last day of months that are too short.
func (e *Engine) Plan(rule Rule, rangeEnd *time.Time) ([]Occurrence, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	bound, ok := upperBound(rule.EndDate, rangeEnd)
	if !ok {
		return nil, ErrUnboundedGeneration
	}

	loc := rule.Location
	if loc == nil {
		loc = e.location
	}

	first := civilDate(rule.StartDate)
	if bound.Before(first) {
		return []Occurrence{}, nil
	}

	option, err := e.buildOption(rule, first, bound, loc)
	if err != nil {
		return nil, err
	}
	rr, err := rrule.NewRRule(option)
	if err != nil {
		return nil, fmt.Errorf("recurrence: build rrule: %w", err)
	}

	occurrences := make([]Occurrence, 0)
	next := rr.Iterator()
	for {
		start, ok := next()
		if !ok {
			break
		}
		if len(occurrences) == e.maxOccurrences {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManyOccurrences, e.maxOccurrences)
		}
		y, m, d := start.Date()
		occurrences = append(occurrences, Occurrence{
			SeriesID: rule.SeriesID,
			RuleID:   rule.ID,
			Date:     time.Date(y, m, d, 0, 0, 0, 0, loc),
			Start:    start,
			End:      combineDateTime(start, rule.EndTime, loc),
		})
	}

	return occurrences, nil
}

func (e *Engine) buildOption(rule Rule, first, bound time.Time, loc *time.Location) (rrule.ROption, error) {
	option := rrule.ROption{
		Dtstart:  combineDateTime(first, rule.StartTime, loc),
		Until:    time.Date(bound.Year(), bound.Month(), bound.Day(), 23, 59, 59, 0, loc),
		Interval: 1,
		Wkst:     rrule.MO,
	}

	switch rule.Periodicity {
	case Daily:
		option.Freq = rrule.DAILY
	case Weekly:
		day := rule.DayOfWeek
		if day == 0 {
			day = isoWeekday(rule.StartDate.Weekday())
		}
		option.Freq = rrule.WEEKLY
		option.Byweekday = []rrule.Weekday{isoToRRule(day)}
	default:
		step := rule.Periodicity.monthStep()
		if step == 0 {
			return rrule.ROption{}, fmt.Errorf("%w: %q", ErrInvalidPeriodicity, rule.Periodicity)
		}
		day := rule.DayOfMonth
		if day == 0 {
			day = rule.StartDate.Day()
		}
		// ANNUAL is expressed as a 12 month step: a YEARLY rule with only
		// BYMONTHDAY would match every month.
		option.Freq = rrule.MONTHLY
		option.Interval = step
		option.Bymonthday, option.Bysetpos = monthDaySelector(day)
	}

	return option, nil
}

// monthDaySelector picks day in every month, or the last existing day in
// [28, day] when the month is shorter than day.
func monthDaySelector(day int) ([]int, []int) {
	if day <= 28 {
		return []int{day}, nil
	}
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days, []int{-1}
}

func upperBound(ruleEnd, rangeEnd *time.Time) (time.Time, bool) {
	var bound time.Time
	hasBound := false
	if ruleEnd != nil {
		bound = civilDate(*ruleEnd)
		hasBound = true
	}
	if rangeEnd != nil {
		candidate := civilDate(*rangeEnd)
		if !hasBound || candidate.Before(bound) {
			bound = candidate
		}
		hasBound = true
	}
	return bound, hasBound
}

func combineDateTime(date time.Time, clock TimeOfDay, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, clock.Hour, clock.Minute, 0, 0, loc)
}

func isoToRRule(day int) rrule.Weekday {
	switch day {
	case 1:
		return rrule.MO
	case 2:
		return rrule.TU
	case 3:
		return rrule.WE
	case 4:
		return rrule.TH
	case 5:
		return rrule.FR
	case 6:
		return rrule.SA
	default:
		return rrule.SU
	}
}
