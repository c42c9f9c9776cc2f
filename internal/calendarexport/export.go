// Package calendarexport renders generated instances as an iCalendar feed.
// The export is one way; nothing here reads calendars back into the engine.
package calendarexport

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/recurrence"
)

const productID = "-//meeting-lifecycle//scheduler//EN"

// ErrEmpty indicates there is nothing to export.
var ErrEmpty = errors.New("calendarexport: no entries to export")

// Entry is one VEVENT.
type Entry struct {
	UID          string
	Summary      string
	Description  string
	Location     string
	Start        time.Time
	End          time.Time
	Cancelled    bool
	Participants []string
}

// FromInstances converts active instances. Instances that failed generation
// are exported as cancelled so subscribers see the gap.
func FromInstances(summary string, instances []persistence.Instance) []Entry {
	entries := make([]Entry, 0, len(instances))
	for _, inst := range instances {
		if !inst.Active() {
			continue
		}
		entry := Entry{
			UID:          inst.ID + "@" + inst.SeriesID,
			Summary:      summary,
			Start:        inst.Start,
			End:          inst.End,
			Participants: append([]string(nil), inst.ParticipantIDs...),
		}
		if inst.Outcome == persistence.OutcomeError {
			entry.Cancelled = true
			entry.Description = inst.ErrorMessage
		}
		entries = append(entries, entry)
	}
	return entries
}

// FromOccurrences converts a plan that has not been persisted yet.
func FromOccurrences(summary, location string, occurrences []recurrence.Occurrence) []Entry {
	entries := make([]Entry, 0, len(occurrences))
	for _, occ := range occurrences {
		entries = append(entries, Entry{
			UID:      fmt.Sprintf("%s-%s@%s", occ.RuleID, occ.Date.Format("20060102"), occ.SeriesID),
			Summary:  summary,
			Location: location,
			Start:    occ.Start,
			End:      occ.End,
		})
	}
	return entries
}

// Encode writes entries as a VCALENDAR named name. stamp becomes DTSTAMP on
// every event.
func Encode(w io.Writer, name string, entries []Entry, stamp time.Time) error {
	if len(entries) == 0 {
		return ErrEmpty
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	if name = strings.TrimSpace(name); name != "" {
		cal.Props.SetText("X-WR-CALNAME", name)
	}

	stamp = stamp.UTC()
	for _, entry := range entries {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, entry.UID)
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		event.Props.SetDateTime(ical.PropDateTimeStart, entry.Start.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, entry.End.UTC())
		if entry.Summary != "" {
			event.Props.SetText(ical.PropSummary, entry.Summary)
		}
		if entry.Description != "" {
			event.Props.SetText(ical.PropDescription, entry.Description)
		}
		if entry.Location != "" {
			event.Props.SetText(ical.PropLocation, entry.Location)
		}
		status := "CONFIRMED"
		if entry.Cancelled {
			status = "CANCELLED"
		}
		event.Props.SetText(ical.PropStatus, status)
		for _, participant := range entry.Participants {
			attendee := ical.NewProp(ical.PropAttendee)
			attendee.Value = "urn:participant:" + participant
			event.Props.Add(attendee)
		}
		cal.Children = append(cal.Children, event.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("calendarexport: encode: %w", err)
	}
	return nil
}
