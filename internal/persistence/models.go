package persistence

import "time"

// Outcome is the generation result recorded on every instance.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeError   Outcome = "ERROR"
)

// Instance is one concrete occurrence generated for a series.
type Instance struct {
	ID              string
	SeriesID        string
	RuleID          string
	RuleFingerprint string
	Date            time.Time
	Start           time.Time
	End             time.Time
	ParticipantIDs  []string
	Outcome         Outcome
	ErrorMessage    string
	GeneratedAt     time.Time
	RetiredAt       *time.Time
}

// Active reports whether the instance has not been superseded.
func (i Instance) Active() bool {
	return i.RetiredAt == nil
}

// GenerationRecord is the audit entry appended for every generated instance.
type GenerationRecord struct {
	ID         string
	SeriesID   string
	InstanceID string
	Date       time.Time
	Outcome    Outcome
	Message    string
	RecordedAt time.Time
}

// Commitment is an externally owned meeting occupying a participant.
type Commitment struct {
	EntityID      string
	ParticipantID string
	Start         time.Time
	End           time.Time
}

// GenerationBatch is written atomically by SaveGeneration.
type GenerationBatch struct {
	SeriesID string
	// RequireNoActive fails the batch with ErrConflict when the series still
	// has active instances.
	RequireNoActive bool
	// RetireAt, when set, retires every active instance of the series first.
	RetireAt  *time.Time
	Instances []Instance
	Records   []GenerationRecord
}
