package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/meeting-lifecycle/internal/availability"
	"github.com/example/meeting-lifecycle/internal/recurrence"
)

// ruleFile is the YAML layout read by plan and export.
type ruleFile struct {
	Summary  string              `yaml:"summary"`
	Location string              `yaml:"location"`
	Rule     recurrence.RuleSpec `yaml:"rule"`
}

type busyFile struct {
	Busy []busyEntry `yaml:"busy"`
}

type busyEntry struct {
	Participant string    `yaml:"participant"`
	Entity      string    `yaml:"entity"`
	Start       time.Time `yaml:"start"`
	End         time.Time `yaml:"end"`
}

func readYAML(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open "+path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return WrapExitError(ExitCommandError, "cannot parse "+path, err)
	}
	return nil
}

func loadRule(path string) (ruleFile, recurrence.Rule, error) {
	var file ruleFile
	if err := readYAML(path, &file); err != nil {
		return ruleFile{}, recurrence.Rule{}, err
	}
	rule, err := file.Rule.Rule()
	if err == nil {
		err = rule.Validate()
	}
	if err != nil {
		return ruleFile{}, recurrence.Rule{}, WrapExitError(ExitCommandError, "invalid rule in "+path, err)
	}
	if rule.SeriesID == "" {
		rule.SeriesID = rule.ID
	}
	return file, rule, nil
}

func loadBusy(path string) (availability.StaticSource, error) {
	if path == "" {
		return nil, nil
	}
	var file busyFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}
	source := make(availability.StaticSource, 0, len(file.Busy))
	for i, b := range file.Busy {
		if b.Participant == "" || !b.End.After(b.Start) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: busy entry #%d needs a participant and end after start", path, i+1))
		}
		source = append(source, availability.BusyInterval{
			ParticipantID: b.Participant,
			EntityID:      b.Entity,
			Start:         b.Start,
			End:           b.End,
		})
	}
	return source, nil
}

// parseDateFlag parses an optional YYYY-MM-DD flag.
func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := recurrence.ParseDate(value)
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("--%s must be YYYY-MM-DD", name))
	}
	return &t, nil
}
