package workflow

import (
	"fmt"
	"strings"
	"time"
)

// Start opens a run at step 1 and addresses the first validator. The run keeps
// its own copy of the definition's steps.
func Start(def Definition, runID string, target Target, requesterID string, now time.Time) (Transition, error) {
	if err := def.Validate(); err != nil {
		return Transition{}, err
	}
	if strings.TrimSpace(runID) == "" {
		return Transition{}, fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(target.ID) == "" {
		return Transition{}, fmt.Errorf("%w: target id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(requesterID) == "" {
		return Transition{}, fmt.Errorf("%w: requester id is required", ErrInvalidInput)
	}
	if target.Kind == "" {
		target.Kind = TargetMeeting
	}

	run := Run{
		ID:           runID,
		DefinitionID: def.ID,
		Target:       target,
		RequesterID:  requesterID,
		Steps:        append([]Step(nil), def.Steps...),
		CurrentStep:  1,
		Status:       StatusInProgress,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	first := def.Steps[0]
	return Transition{
		Run:          run,
		Notification: stepNotification(EventStarted, run, first, requesterID, "", now),
	}, nil
}

// Validate records a VALIDATED decision for the current step, approving the
// run on the last step and advancing by one otherwise.
func Validate(run Run, stepIndex int, actorID, comment string, now time.Time) (Transition, error) {
	step, err := checkDecision(run, stepIndex, actorID)
	if err != nil {
		return Transition{}, err
	}

	next := run.Clone()
	next.History = append(next.History, Decision{
		StepIndex: step.Index,
		Kind:      DecisionValidated,
		ActorID:   actorID,
		Comment:   comment,
		At:        now,
	})
	next.Version++
	next.UpdatedAt = now

	following, hasNext := run.Step(step.Index + 1)
	if !hasNext {
		next.Status = StatusApproved
		return Transition{
			Run:          next,
			Notification: requesterNotification(EventApproved, next, step, actorID, comment, now),
		}, nil
	}

	next.CurrentStep = following.Index
	return Transition{
		Run:          next,
		Notification: stepNotification(EventAdvanced, next, following, actorID, comment, now),
	}, nil
}

// Reject records a REJECTED decision and terminates the run.
func Reject(run Run, stepIndex int, actorID, reason string, now time.Time) (Transition, error) {
	step, err := checkDecision(run, stepIndex, actorID)
	if err != nil {
		return Transition{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return Transition{}, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}

	next := run.Clone()
	next.History = append(next.History, Decision{
		StepIndex: step.Index,
		Kind:      DecisionRejected,
		ActorID:   actorID,
		Comment:   reason,
		At:        now,
	})
	next.Status = StatusRejected
	next.Version++
	next.UpdatedAt = now

	return Transition{
		Run:          next,
		Notification: requesterNotification(EventRejected, next, step, actorID, reason, now),
	}, nil
}

// Cancel stops an in-progress run and appends a synthetic history entry at the
// current step.
func Cancel(run Run, actorID, reason string, now time.Time) (Transition, error) {
	if run.Status.Terminal() {
		return Transition{}, fmt.Errorf("%w: run %s is %s", ErrInvalidState, run.ID, run.Status)
	}
	if strings.TrimSpace(actorID) == "" {
		return Transition{}, fmt.Errorf("%w: actor id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(reason) == "" {
		return Transition{}, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}

	step, _ := run.Step(run.CurrentStep)
	next := run.Clone()
	next.History = append(next.History, Decision{
		StepIndex: run.CurrentStep,
		Kind:      DecisionCancelled,
		ActorID:   actorID,
		Comment:   reason,
		At:        now,
	})
	next.Status = StatusCancelled
	next.Version++
	next.UpdatedAt = now

	return Transition{
		Run:          next,
		Notification: requesterNotification(EventCancelled, next, step, actorID, reason, now),
	}, nil
}

// checkDecision enforces, in order: run in progress, matching step, matching validator.
func checkDecision(run Run, stepIndex int, actorID string) (Step, error) {
	if run.Status.Terminal() {
		return Step{}, fmt.Errorf("%w: run %s is %s", ErrInvalidState, run.ID, run.Status)
	}
	if stepIndex != run.CurrentStep {
		return Step{}, fmt.Errorf("%w: current step is %d, got %d", ErrStepMismatch, run.CurrentStep, stepIndex)
	}
	step, ok := run.Step(stepIndex)
	if !ok {
		return Step{}, fmt.Errorf("%w: run %s has no step %d", ErrStepMismatch, run.ID, stepIndex)
	}
	if actorID == "" || actorID != step.ValidatorID {
		return Step{}, fmt.Errorf("%w: step %d", ErrNotAuthorized, stepIndex)
	}
	return step, nil
}

func stepNotification(event EventType, run Run, step Step, actorID, comment string, now time.Time) Notification {
	return Notification{
		Event:     event,
		RunID:     run.ID,
		Target:    run.Target,
		Recipient: step.ValidatorID,
		StepIndex: step.Index,
		StepName:  step.Name,
		ActorID:   actorID,
		Comment:   comment,
		Notify:    step.Notify,
		At:        now,
	}
}

func requesterNotification(event EventType, run Run, step Step, actorID, comment string, now time.Time) Notification {
	return Notification{
		Event:     event,
		RunID:     run.ID,
		Target:    run.Target,
		Recipient: run.RequesterID,
		StepIndex: step.Index,
		StepName:  step.Name,
		ActorID:   actorID,
		Comment:   comment,
		Notify:    true,
		At:        now,
	}
}
