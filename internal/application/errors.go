package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/meeting-lifecycle/internal/availability"
	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/recurrence"
	"github.com/example/meeting-lifecycle/internal/workflow"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when the operation collides with existing state:
	// an active run on the target, active instances on a series, or a lost
	// compare-and-swap.
	ErrConflict = errors.New("application: conflict")
	// ErrInvalidInput is returned for malformed requests that are not tied to a single field.
	ErrInvalidInput = errors.New("application: invalid input")

	// ErrUnboundedGeneration is returned when a rule has no end date and no range end was given.
	ErrUnboundedGeneration = recurrence.ErrUnboundedGeneration
	// ErrStepMismatch is returned when a decision names a step other than the current one.
	ErrStepMismatch = workflow.ErrStepMismatch
	// ErrNotAuthorized is returned when the actor is not the validator of the step.
	ErrNotAuthorized = workflow.ErrNotAuthorized
	// ErrInvalidState is returned for decisions on a run that is no longer in progress.
	ErrInvalidState = workflow.ErrInvalidState
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// Is lets errors.Is(err, ErrInvalidInput) match validation failures.
func (v *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// ruleValidationError converts a recurrence rule error into a field error.
func ruleValidationError(err error) error {
	var ruleErr *recurrence.RuleError
	if errors.As(err, &ruleErr) {
		vErr := &ValidationError{}
		vErr.add("rule."+ruleErr.Field, ruleErr.Message)
		return vErr
	}
	return err
}

// mapRepoError translates persistence sentinels into application sentinels.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, persistence.ErrConflict), errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// isInvalidInput reports any of the domain-level invalid input sentinels.
func isInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, availability.ErrInvalidInput) ||
		errors.Is(err, workflow.ErrInvalidInput) ||
		errors.Is(err, recurrence.ErrInvalidRule) ||
		errors.Is(err, recurrence.ErrInvalidPeriodicity) ||
		errors.Is(err, recurrence.ErrTooManyOccurrences)
}
