// Package workflow implements the approval chain state machine. Every
// transition is a pure function from a run to a new run plus exactly one
// notification intent; storage and delivery belong to the caller.
package workflow

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput reports malformed arguments such as a missing reason.
	ErrInvalidInput = errors.New("workflow: invalid input")
	// ErrEmptyDefinition reports a definition without steps.
	ErrEmptyDefinition = fmt.Errorf("%w: definition has no steps", ErrInvalidInput)
	// ErrStepMismatch reports a decision for a step other than the current one.
	ErrStepMismatch = errors.New("workflow: step mismatch")
	// ErrNotAuthorized reports a decision by someone other than the step validator.
	ErrNotAuthorized = errors.New("workflow: actor is not the step validator")
	// ErrInvalidState reports a transition on a run that is no longer in progress.
	ErrInvalidState = errors.New("workflow: run is not in progress")
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether no further decisions are accepted.
func (s Status) Terminal() bool {
	return s != StatusInProgress
}

// DecisionKind records what happened at a step.
type DecisionKind string

const (
	DecisionValidated DecisionKind = "VALIDATED"
	DecisionRejected  DecisionKind = "REJECTED"
	DecisionCancelled DecisionKind = "CANCELLED"
)

// TargetKind is the type of entity under approval.
type TargetKind string

const (
	TargetMeeting TargetKind = "meeting"
	TargetMinutes TargetKind = "minutes"
)

// ParseTargetKind accepts "meeting" or "minutes"; empty defaults to meeting.
func ParseTargetKind(value string) (TargetKind, error) {
	switch TargetKind(value) {
	case "", TargetMeeting:
		return TargetMeeting, nil
	case TargetMinutes:
		return TargetMinutes, nil
	}
	return "", fmt.Errorf("%w: unknown target kind %q", ErrInvalidInput, value)
}

// Target identifies the entity a run is attached to.
type Target struct {
	Kind TargetKind
	ID   string
}

// Step is one ordered stage owned by a single validator.
type Step struct {
	Index       int
	Name        string
	ValidatorID string
	Notify      bool
}

// Definition is a named approval chain.
type Definition struct {
	ID        string
	Name      string
	Steps     []Step
	Mandatory bool
	Config    map[string]string
	// UpdatedAt is stamped by whoever registers the definition.
	UpdatedAt time.Time
}

// Validate checks that steps are numbered 1..n in order and each has a validator.
func (d Definition) Validate() error {
	if len(d.Steps) == 0 {
		return ErrEmptyDefinition
	}
	for i, step := range d.Steps {
		if step.Index != i+1 {
			return fmt.Errorf("%w: step %d has index %d, want %d", ErrInvalidInput, i+1, step.Index, i+1)
		}
		if step.ValidatorID == "" {
			return fmt.Errorf("%w: step %d has no validator", ErrInvalidInput, step.Index)
		}
	}
	return nil
}

// Step returns the step with the given 1-based index.
func (d Definition) Step(index int) (Step, bool) {
	return stepAt(d.Steps, index)
}

func stepAt(steps []Step, index int) (Step, bool) {
	if index < 1 || index > len(steps) {
		return Step{}, false
	}
	return steps[index-1], true
}

// Decision is one append-only history entry.
type Decision struct {
	StepIndex int
	Kind      DecisionKind
	ActorID   string
	Comment   string
	At        time.Time
}

// Run is a single execution of a definition against one target.
type Run struct {
	ID           string
	DefinitionID string
	Target       Target
	RequesterID  string
	// Steps is the definition's chain as it stood when the run started.
	// Replacing the definition later does not affect the run.
	Steps       []Step
	CurrentStep int
	Status      Status
	History     []Decision
	// Version increases by one on every transition and backs compare-and-swap writes.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the run.
func (r Run) Clone() Run {
	clone := r
	if r.Steps != nil {
		clone.Steps = append([]Step(nil), r.Steps...)
	}
	if r.History != nil {
		clone.History = append([]Decision(nil), r.History...)
	}
	return clone
}

// Step returns the run's step with the given 1-based index.
func (r Run) Step(index int) (Step, bool) {
	return stepAt(r.Steps, index)
}
