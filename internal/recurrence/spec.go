package recurrence

import (
	"strings"
	"time"
)

// RuleSpec is the textual form of a Rule shared by request bodies and rule files.
// Dates are "YYYY-MM-DD", times "HH:MM" and Timezone an IANA name.
type RuleSpec struct {
	ID          string            `json:"id" yaml:"id"`
	SeriesID    string            `json:"series_id,omitempty" yaml:"series_id"`
	Periodicity string            `json:"periodicity" yaml:"periodicity"`
	StartDate   string            `json:"start_date" yaml:"start_date"`
	EndDate     string            `json:"end_date,omitempty" yaml:"end_date"`
	DayOfWeek   int               `json:"day_of_week,omitempty" yaml:"day_of_week"`
	DayOfMonth  int               `json:"day_of_month,omitempty" yaml:"day_of_month"`
	StartTime   string            `json:"start_time" yaml:"start_time"`
	EndTime     string            `json:"end_time" yaml:"end_time"`
	Timezone    string            `json:"timezone,omitempty" yaml:"timezone"`
	Extra       map[string]string `json:"extra,omitempty" yaml:"extra"`
}

// Rule converts s into a Rule. Parse failures are reported as *RuleError so callers
// can surface the offending field. The result is not validated.
func (s RuleSpec) Rule() (Rule, error) {
	rule := Rule{
		ID:         strings.TrimSpace(s.ID),
		SeriesID:   strings.TrimSpace(s.SeriesID),
		DayOfWeek:  s.DayOfWeek,
		DayOfMonth: s.DayOfMonth,
		Extra:      s.Extra,
	}

	periodicity, err := ParsePeriodicity(s.Periodicity)
	if err != nil {
		return Rule{}, &RuleError{Field: "periodicity", Message: "is not supported"}
	}
	rule.Periodicity = periodicity

	if tz := strings.TrimSpace(s.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Rule{}, &RuleError{Field: "timezone", Message: "is not a known time zone"}
		}
		rule.Location = loc
	}

	if rule.StartDate, err = ParseDate(s.StartDate); err != nil {
		return Rule{}, &RuleError{Field: "start_date", Message: "must be YYYY-MM-DD"}
	}
	if strings.TrimSpace(s.EndDate) != "" {
		end, err := ParseDate(s.EndDate)
		if err != nil {
			return Rule{}, &RuleError{Field: "end_date", Message: "must be YYYY-MM-DD"}
		}
		rule.EndDate = &end
	}

	if rule.StartTime, err = ParseTimeOfDay(s.StartTime); err != nil {
		return Rule{}, &RuleError{Field: "start_time", Message: "must be HH:MM"}
	}
	if rule.EndTime, err = ParseTimeOfDay(s.EndTime); err != nil {
		return Rule{}, &RuleError{Field: "end_time", Message: "must be HH:MM"}
	}
	return rule, nil
}

// ParseDate parses a "YYYY-MM-DD" calendar date as midnight UTC.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(time.DateOnly, strings.TrimSpace(value))
}
