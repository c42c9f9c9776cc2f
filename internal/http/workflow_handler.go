package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/meeting-lifecycle/internal/application"
	"github.com/example/meeting-lifecycle/internal/workflow"
)

type workflowService interface {
	RegisterDefinition(ctx context.Context, def workflow.Definition) (workflow.Definition, error)
	GetDefinition(ctx context.Context, id string) (workflow.Definition, error)
	ListDefinitions(ctx context.Context) ([]workflow.Definition, error)
	StartWorkflow(ctx context.Context, params application.StartWorkflowParams) (workflow.Run, error)
	ValidateStep(ctx context.Context, params application.StepDecisionParams) (workflow.Run, error)
	RejectStep(ctx context.Context, params application.StepDecisionParams) (workflow.Run, error)
	CancelWorkflow(ctx context.Context, params application.CancelWorkflowParams) (workflow.Run, error)
	GetRun(ctx context.Context, runID string) (workflow.Run, error)
	ListRuns(ctx context.Context, target workflow.Target) ([]workflow.Run, error)
}

// WorkflowHandler serves definitions and approval runs.
type WorkflowHandler struct {
	service   workflowService
	responder responder
	logger    *slog.Logger
}

func NewWorkflowHandler(service workflowService, logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{service: service, responder: newResponder(logger), logger: logger}
}

type stepDTO struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	ValidatorID string `json:"validator_id"`
	Notify      *bool  `json:"notify,omitempty"`
}

type definitionDTO struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Mandatory bool              `json:"mandatory"`
	Config    map[string]string `json:"config,omitempty"`
	Steps     []stepDTO         `json:"steps"`
}

type decisionDTO struct {
	StepIndex int       `json:"step_index"`
	Kind      string    `json:"kind"`
	ActorID   string    `json:"actor_id"`
	Comment   string    `json:"comment,omitempty"`
	At        time.Time `json:"at"`
}

type runDTO struct {
	ID           string        `json:"id"`
	DefinitionID string        `json:"definition_id"`
	TargetKind   string        `json:"target_kind"`
	TargetID     string        `json:"target_id"`
	RequesterID  string        `json:"requester_id"`
	Steps        []stepDTO     `json:"steps"`
	CurrentStep  int           `json:"current_step"`
	Status       string        `json:"status"`
	Version      int           `json:"version"`
	History      []decisionDTO `json:"history"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type runsResponse struct {
	Runs []runDTO `json:"runs"`
}

func (h *WorkflowHandler) PutDefinition(w http.ResponseWriter, r *http.Request) {
	var req definitionDTO
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	def := workflow.Definition{
		ID:        pathParam(r, "definitionID"),
		Name:      req.Name,
		Mandatory: req.Mandatory,
		Config:    req.Config,
	}
	for i, s := range req.Steps {
		index := s.Index
		if index == 0 {
			index = i + 1
		}
		notify := true
		if s.Notify != nil {
			notify = *s.Notify
		}
		def.Steps = append(def.Steps, workflow.Step{Index: index, Name: s.Name, ValidatorID: s.ValidatorID, Notify: notify})
	}

	stored, err := h.service.RegisterDefinition(r.Context(), def)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDefinitionDTO(stored))
}

func (h *WorkflowHandler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := h.service.GetDefinition(r.Context(), pathParam(r, "definitionID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDefinitionDTO(def))
}

type definitionsResponse struct {
	Definitions []definitionDTO `json:"definitions"`
}

func (h *WorkflowHandler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.service.ListDefinitions(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	resp := definitionsResponse{Definitions: make([]definitionDTO, 0, len(defs))}
	for _, def := range defs {
		resp.Definitions = append(resp.Definitions, toDefinitionDTO(def))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type startRunRequest struct {
	DefinitionID string `json:"definition_id"`
	TargetKind   string `json:"target_kind"`
	TargetID     string `json:"target_id"`
}

func (h *WorkflowHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	actorID, ok := ActorIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
		return
	}

	var req startRunRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	kind, err := workflow.ParseTargetKind(req.TargetKind)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	run, err := h.service.StartWorkflow(r.Context(), application.StartWorkflowParams{
		DefinitionID: req.DefinitionID,
		Target:       workflow.Target{Kind: kind, ID: req.TargetID},
		RequesterID:  actorID,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "WorkflowHandler", "StartRun", "run_id", run.ID).
		InfoContext(r.Context(), "workflow run started", "target_id", run.Target.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toRunDTO(run))
}

func (h *WorkflowHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), pathParam(r, "runID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRunDTO(run))
}

func (h *WorkflowHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	targetID := r.URL.Query().Get("target_id")
	if targetID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingTargetID)
		return
	}
	kind, err := workflow.ParseTargetKind(r.URL.Query().Get("target_kind"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	runs, err := h.service.ListRuns(r.Context(), workflow.Target{Kind: kind, ID: targetID})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	resp := runsResponse{Runs: make([]runDTO, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, toRunDTO(run))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type decisionRequest struct {
	Comment string `json:"comment"`
	Reason  string `json:"reason"`
}

func (h *WorkflowHandler) ValidateStep(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "ValidateStep", h.service.ValidateStep, func(req decisionRequest) string { return req.Comment })
}

func (h *WorkflowHandler) RejectStep(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "RejectStep", h.service.RejectStep, func(req decisionRequest) string { return req.Reason })
}

type decideFunc func(ctx context.Context, params application.StepDecisionParams) (workflow.Run, error)

func (h *WorkflowHandler) decide(w http.ResponseWriter, r *http.Request, operation string, fn decideFunc, comment func(decisionRequest) string) {
	actorID, ok := ActorIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
		return
	}
	stepIndex, ok := stepParam(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidStep)
		return
	}

	var req decisionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	run, err := fn(r.Context(), application.StepDecisionParams{
		RunID:     pathParam(r, "runID"),
		StepIndex: stepIndex,
		ActorID:   actorID,
		Comment:   comment(req),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "WorkflowHandler", operation, "run_id", run.ID).
		InfoContext(r.Context(), "workflow decision recorded", "status", run.Status, "current_step", run.CurrentStep)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRunDTO(run))
}

func (h *WorkflowHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	actorID, ok := ActorIDFromContext(r.Context())
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingActor)
		return
	}

	var req decisionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	run, err := h.service.CancelWorkflow(r.Context(), application.CancelWorkflowParams{
		RunID:   pathParam(r, "runID"),
		ActorID: actorID,
		Reason:  req.Reason,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toRunDTO(run))
}

func toDefinitionDTO(def workflow.Definition) definitionDTO {
	dto := definitionDTO{
		ID:        def.ID,
		Name:      def.Name,
		Mandatory: def.Mandatory,
		Config:    def.Config,
		Steps:     make([]stepDTO, 0, len(def.Steps)),
	}
	for _, s := range def.Steps {
		notify := s.Notify
		dto.Steps = append(dto.Steps, stepDTO{Index: s.Index, Name: s.Name, ValidatorID: s.ValidatorID, Notify: &notify})
	}
	return dto
}

func toRunDTO(run workflow.Run) runDTO {
	dto := runDTO{
		ID:           run.ID,
		DefinitionID: run.DefinitionID,
		TargetKind:   string(run.Target.Kind),
		TargetID:     run.Target.ID,
		RequesterID:  run.RequesterID,
		Steps:        make([]stepDTO, 0, len(run.Steps)),
		CurrentStep:  run.CurrentStep,
		Status:       string(run.Status),
		Version:      run.Version,
		History:      make([]decisionDTO, 0, len(run.History)),
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
	}
	for _, s := range run.Steps {
		notify := s.Notify
		dto.Steps = append(dto.Steps, stepDTO{Index: s.Index, Name: s.Name, ValidatorID: s.ValidatorID, Notify: &notify})
	}
	for _, d := range run.History {
		dto.History = append(dto.History, decisionDTO{
			StepIndex: d.StepIndex,
			Kind:      string(d.Kind),
			ActorID:   d.ActorID,
			Comment:   d.Comment,
			At:        d.At,
		})
	}
	return dto
}
