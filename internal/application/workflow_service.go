package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/meeting-lifecycle/internal/events"
	"github.com/example/meeting-lifecycle/internal/workflow"
)

// WorkflowRepository captures the persistence interactions needed by the service.
type WorkflowRepository interface {
	SaveDefinition(ctx context.Context, def workflow.Definition) error
	GetDefinition(ctx context.Context, id string) (workflow.Definition, error)
	ListDefinitions(ctx context.Context) ([]workflow.Definition, error)
	CreateRun(ctx context.Context, run workflow.Run) error
	UpdateRun(ctx context.Context, run workflow.Run, expectedVersion int) error
	GetRun(ctx context.Context, id string) (workflow.Run, error)
	ListRunsForTarget(ctx context.Context, target workflow.Target) ([]workflow.Run, error)
}

// StartWorkflowParams opens a run for a target.
type StartWorkflowParams struct {
	DefinitionID string
	Target       workflow.Target
	RequesterID  string
}

// StepDecisionParams carries a validate or reject decision. Comment is the
// rejection reason for RejectStep.
type StepDecisionParams struct {
	RunID     string
	StepIndex int
	ActorID   string
	Comment   string
}

// CancelWorkflowParams cancels an in-progress run.
type CancelWorkflowParams struct {
	RunID   string
	ActorID string
	Reason  string
}

// WorkflowService drives approval runs. Transitions on one run are serialised
// in process and guarded by a version compare-and-swap in storage.
type WorkflowService struct {
	workflows   WorkflowRepository
	publisher   events.Publisher
	idGenerator func() string
	now         func() time.Time
	locks       *keyedMutex
	logger      *slog.Logger
}

// NewWorkflowService wires dependencies for workflow operations.
func NewWorkflowService(workflows WorkflowRepository, publisher events.Publisher, idGenerator func() string, now func() time.Time) *WorkflowService {
	return NewWorkflowServiceWithLogger(workflows, publisher, idGenerator, now, nil)
}

// NewWorkflowServiceWithLogger wires dependencies and a base logger.
func NewWorkflowServiceWithLogger(workflows WorkflowRepository, publisher events.Publisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *WorkflowService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &WorkflowService{
		workflows:   workflows,
		publisher:   publisher,
		idGenerator: idGenerator,
		now:         now,
		locks:       newKeyedMutex(),
		logger:      defaultLogger(logger),
	}
}

// RegisterDefinition validates and stores a definition, replacing any previous
// version. Runs already started keep the steps they were started with.
func (s *WorkflowService) RegisterDefinition(ctx context.Context, def workflow.Definition) (workflow.Definition, error) {
	logger := serviceLogger(ctx, s.logger, "WorkflowService", "RegisterDefinition", "definition_id", def.ID)

	def.ID = strings.TrimSpace(def.ID)
	if def.ID == "" {
		vErr := &ValidationError{}
		vErr.add("id", "definition id is required")
		return workflow.Definition{}, vErr
	}
	if err := def.Validate(); err != nil {
		logger.WarnContext(ctx, "definition rejected", "error_kind", ErrorKind(err), "error", err)
		return workflow.Definition{}, err
	}
	def.UpdatedAt = s.now()
	if err := s.workflows.SaveDefinition(ctx, def); err != nil {
		logger.ErrorContext(ctx, "failed to save definition", "error", err)
		return workflow.Definition{}, mapRepoError(err)
	}
	logger.InfoContext(ctx, "definition registered", "steps", len(def.Steps))
	return def, nil
}

// GetDefinition returns a stored definition.
func (s *WorkflowService) GetDefinition(ctx context.Context, id string) (workflow.Definition, error) {
	def, err := s.workflows.GetDefinition(ctx, id)
	if err != nil {
		return workflow.Definition{}, mapRepoError(err)
	}
	return def, nil
}

// ListDefinitions returns every stored definition.
func (s *WorkflowService) ListDefinitions(ctx context.Context) ([]workflow.Definition, error) {
	defs, err := s.workflows.ListDefinitions(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return defs, nil
}

// StartWorkflow opens a run at step 1. A target may have one run in progress.
func (s *WorkflowService) StartWorkflow(ctx context.Context, params StartWorkflowParams) (workflow.Run, error) {
	logger := serviceLogger(ctx, s.logger, "WorkflowService", "StartWorkflow",
		"definition_id", params.DefinitionID, "target_kind", string(params.Target.Kind), "target_id", params.Target.ID)

	vErr := &ValidationError{}
	if strings.TrimSpace(params.DefinitionID) == "" {
		vErr.add("definition_id", "definition id is required")
	}
	if strings.TrimSpace(params.Target.ID) == "" {
		vErr.add("target_id", "target id is required")
	}
	if strings.TrimSpace(params.RequesterID) == "" {
		vErr.add("requester_id", "requester id is required")
	}
	if vErr.HasErrors() {
		logger.WarnContext(ctx, "start request rejected", "error_kind", ErrorKind(vErr), "fields", vErr.FieldErrors)
		return workflow.Run{}, vErr
	}

	def, err := s.workflows.GetDefinition(ctx, params.DefinitionID)
	if err != nil {
		mapped := mapRepoError(err)
		logger.WarnContext(ctx, "failed to load definition", "error_kind", ErrorKind(mapped), "error", err)
		return workflow.Run{}, mapped
	}

	target := params.Target
	if target.Kind == "" {
		target.Kind = workflow.TargetMeeting
	}
	unlock := s.locks.Lock("target:" + string(target.Kind) + ":" + target.ID)
	defer unlock()

	transition, err := workflow.Start(def, s.idGenerator(), target, params.RequesterID, s.now())
	if err != nil {
		logger.WarnContext(ctx, "failed to start run", "error_kind", ErrorKind(err), "error", err)
		return workflow.Run{}, err
	}
	if err := s.workflows.CreateRun(ctx, transition.Run); err != nil {
		mapped := mapRepoError(err)
		if errors.Is(mapped, ErrConflict) {
			mapped = fmt.Errorf("%w: %s %s already has a run in progress", ErrConflict, target.Kind, target.ID)
		}
		logger.WarnContext(ctx, "failed to create run", "error_kind", ErrorKind(mapped), "error", err)
		return workflow.Run{}, mapped
	}

	publish(ctx, logger, s.publisher, notificationEvent(s.idGenerator(), transition.Run, transition.Notification))
	logger.InfoContext(ctx, "workflow started", "run_id", transition.Run.ID, "recipient", transition.Notification.Recipient)
	return transition.Run, nil
}

// ValidateStep records a VALIDATED decision on the current step.
func (s *WorkflowService) ValidateStep(ctx context.Context, params StepDecisionParams) (workflow.Run, error) {
	return s.transition(ctx, "ValidateStep", params.RunID, params.ActorID,
		func(run workflow.Run, now time.Time) (workflow.Transition, error) {
			return workflow.Validate(run, params.StepIndex, params.ActorID, params.Comment, now)
		})
}

// RejectStep records a REJECTED decision on the current step and closes the run.
func (s *WorkflowService) RejectStep(ctx context.Context, params StepDecisionParams) (workflow.Run, error) {
	return s.transition(ctx, "RejectStep", params.RunID, params.ActorID,
		func(run workflow.Run, now time.Time) (workflow.Transition, error) {
			return workflow.Reject(run, params.StepIndex, params.ActorID, params.Comment, now)
		})
}

// CancelWorkflow closes an in-progress run on behalf of actorID.
func (s *WorkflowService) CancelWorkflow(ctx context.Context, params CancelWorkflowParams) (workflow.Run, error) {
	return s.transition(ctx, "CancelWorkflow", params.RunID, params.ActorID,
		func(run workflow.Run, now time.Time) (workflow.Transition, error) {
			return workflow.Cancel(run, params.ActorID, params.Reason, now)
		})
}

type transitionFunc func(run workflow.Run, now time.Time) (workflow.Transition, error)

// transition loads the run under its lock, applies fn and writes the result
// with a compare-and-swap on the loaded version.
func (s *WorkflowService) transition(ctx context.Context, operation, runID, actorID string, fn transitionFunc) (workflow.Run, error) {
	logger := serviceLogger(ctx, s.logger, "WorkflowService", operation, "run_id", runID, "actor_id", actorID)

	if strings.TrimSpace(runID) == "" {
		return workflow.Run{}, fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}

	unlock := s.locks.Lock("run:" + runID)
	defer unlock()

	run, err := s.workflows.GetRun(ctx, runID)
	if err != nil {
		mapped := mapRepoError(err)
		logger.WarnContext(ctx, "failed to load run", "error_kind", ErrorKind(mapped), "error", err)
		return workflow.Run{}, mapped
	}
	transition, err := fn(run, s.now())
	if err != nil {
		logger.WarnContext(ctx, "transition refused", "error_kind", ErrorKind(err), "error", err,
			"status", string(run.Status), "current_step", run.CurrentStep)
		return workflow.Run{}, err
	}
	if err := s.workflows.UpdateRun(ctx, transition.Run, run.Version); err != nil {
		mapped := mapRepoError(err)
		logger.WarnContext(ctx, "failed to store transition", "error_kind", ErrorKind(mapped), "error", err)
		return workflow.Run{}, mapped
	}

	publish(ctx, logger, s.publisher, notificationEvent(s.idGenerator(), transition.Run, transition.Notification))
	logger.InfoContext(ctx, "workflow transitioned",
		"event", string(transition.Notification.Event),
		"status", string(transition.Run.Status),
		"current_step", transition.Run.CurrentStep,
		"version", transition.Run.Version,
	)
	return transition.Run, nil
}

// GetRun returns a run with its full history.
func (s *WorkflowService) GetRun(ctx context.Context, runID string) (workflow.Run, error) {
	run, err := s.workflows.GetRun(ctx, runID)
	if err != nil {
		return workflow.Run{}, mapRepoError(err)
	}
	return run, nil
}

// ListRuns returns every run attached to a target, oldest first. An empty
// kind means a meeting.
func (s *WorkflowService) ListRuns(ctx context.Context, target workflow.Target) ([]workflow.Run, error) {
	if strings.TrimSpace(target.ID) == "" {
		return nil, fmt.Errorf("%w: target id is required", ErrInvalidInput)
	}
	if target.Kind == "" {
		target.Kind = workflow.TargetMeeting
	}
	runs, err := s.workflows.ListRunsForTarget(ctx, target)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return runs, nil
}
