package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Periodicity is the repetition cadence of a series.
type Periodicity string

const (
	Daily      Periodicity = "DAILY"
	Weekly     Periodicity = "WEEKLY"
	Monthly    Periodicity = "MONTHLY"
	Quarterly  Periodicity = "QUARTERLY"
	Semiannual Periodicity = "SEMIANNUAL"
	Annual     Periodicity = "ANNUAL"
)

// ParsePeriodicity accepts the periodicity names case-insensitively.
func ParsePeriodicity(value string) (Periodicity, error) {
	p := Periodicity(strings.ToUpper(strings.TrimSpace(value)))
	switch p {
	case Daily, Weekly, Monthly, Quarterly, Semiannual, Annual:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriodicity, value)
}

// monthStep returns the month interval for the monthly family, zero otherwise.
func (p Periodicity) monthStep() int {
	switch p {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Semiannual:
		return 6
	case Annual:
		return 12
	}
	return 0
}

// TimeOfDay is a wall clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("recurrence: time of day %q must be HH:MM", value)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("recurrence: time of day %q must be HH:MM", value)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("recurrence: time of day %q must be HH:MM", value)
	}
	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.valid() {
		return TimeOfDay{}, fmt.Errorf("recurrence: time of day %q is out of range", value)
	}
	return t, nil
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Rule describes how a series repeats. Only the calendar date of StartDate and
// EndDate is used, read in their own location; timestamps are produced in
// Location (UTC when nil).
type Rule struct {
	ID          string
	SeriesID    string
	Periodicity Periodicity
	StartDate   time.Time
	EndDate     *time.Time
	// DayOfWeek uses ISO numbering, 1 = Monday through 7 = Sunday. Zero means
	// the weekday of StartDate.
	DayOfWeek int
	// DayOfMonth applies to the monthly family. Zero means the day of StartDate.
	DayOfMonth int
	StartTime  TimeOfDay
	EndTime    TimeOfDay
	Location   *time.Location
	Extra      map[string]string
}

var (
	// ErrInvalidRule wraps every RuleError.
	ErrInvalidRule = errors.New("recurrence: invalid rule")
	// ErrInvalidPeriodicity indicates an unknown periodicity name.
	ErrInvalidPeriodicity = errors.New("recurrence: invalid periodicity")
)

// RuleError identifies the rule field that failed validation.
type RuleError struct {
	Field   string
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("recurrence: %s %s", e.Field, e.Message)
}

// Is matches ErrInvalidRule.
func (e *RuleError) Is(target error) bool {
	return target == ErrInvalidRule
}

// Validate checks the rule invariants and returns the first violation.
func (r Rule) Validate() error {
	if r.Periodicity.monthStep() == 0 && r.Periodicity != Daily && r.Periodicity != Weekly {
		return &RuleError{Field: "periodicity", Message: "is not supported"}
	}
	if r.StartDate.IsZero() {
		return &RuleError{Field: "start_date", Message: "is required"}
	}
	if r.EndDate != nil && civilDate(*r.EndDate).Before(civilDate(r.StartDate)) {
		return &RuleError{Field: "end_date", Message: "must not be before start_date"}
	}
	if r.DayOfWeek < 0 || r.DayOfWeek > 7 {
		return &RuleError{Field: "day_of_week", Message: "must be between 1 and 7"}
	}
	if r.DayOfMonth < 0 || r.DayOfMonth > 31 {
		return &RuleError{Field: "day_of_month", Message: "must be between 1 and 31"}
	}
	if !r.StartTime.valid() {
		return &RuleError{Field: "start_time", Message: "is out of range"}
	}
	if !r.EndTime.valid() {
		return &RuleError{Field: "end_time", Message: "is out of range"}
	}
	if r.EndTime.minutes() <= r.StartTime.minutes() {
		return &RuleError{Field: "end_time", Message: "must be after start_time"}
	}
	return nil
}

// civilDate drops the clock part, keeping the date as written in t's location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// isoWeekday converts time.Weekday to 1 = Monday .. 7 = Sunday.
func isoWeekday(day time.Weekday) int {
	if day == time.Sunday {
		return 7
	}
	return int(day)
}
