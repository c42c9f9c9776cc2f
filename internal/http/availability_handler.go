package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/meeting-lifecycle/internal/application"
	"github.com/example/meeting-lifecycle/internal/availability"
)

type availabilityService interface {
	CheckAvailability(ctx context.Context, participantID string, start, end time.Time, excludeEntityID string) (availability.Result, error)
	FindAvailableSlots(ctx context.Context, participantIDs []string, searchStart, searchEnd time.Time, durationMinutes int) ([]availability.Slot, error)
	ReplaceCommitments(ctx context.Context, params application.ReplaceCommitmentsParams) error
	DeleteCommitments(ctx context.Context, entityID string) error
}

// AvailabilityHandler serves availability queries and commitment updates.
type AvailabilityHandler struct {
	service   availabilityService
	responder responder
	logger    *slog.Logger
}

func NewAvailabilityHandler(service availabilityService, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, responder: newResponder(logger), logger: logger}
}

type checkAvailabilityRequest struct {
	ParticipantID   string    `json:"participant_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	ExcludeEntityID string    `json:"exclude_entity_id"`
}

type busyIntervalDTO struct {
	ParticipantID string    `json:"participant_id"`
	EntityID      string    `json:"entity_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

type availabilityResponse struct {
	ParticipantID string            `json:"participant_id"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Available     bool              `json:"available"`
	Conflicts     []busyIntervalDTO `json:"conflicts"`
}

func (h *AvailabilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkAvailabilityRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.CheckAvailability(r.Context(), req.ParticipantID, req.Start, req.End, req.ExcludeEntityID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	conflicts := make([]busyIntervalDTO, 0, len(result.Conflicts))
	for _, c := range result.Conflicts {
		conflicts = append(conflicts, busyIntervalDTO{ParticipantID: c.ParticipantID, EntityID: c.EntityID, Start: c.Start, End: c.End})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		ParticipantID: result.ParticipantID,
		Start:         result.Window.Start,
		End:           result.Window.End,
		Available:     result.Available,
		Conflicts:     conflicts,
	})
}

type findSlotsRequest struct {
	ParticipantIDs  []string  `json:"participant_ids"`
	SearchStart     time.Time `json:"search_start"`
	SearchEnd       time.Time `json:"search_end"`
	DurationMinutes int       `json:"duration_minutes"`
}

type slotDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type slotsResponse struct {
	Slots []slotDTO `json:"slots"`
}

func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	var req findSlotsRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	slots, err := h.service.FindAvailableSlots(r.Context(), req.ParticipantIDs, req.SearchStart, req.SearchEnd, req.DurationMinutes)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := slotsResponse{Slots: make([]slotDTO, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, slotDTO{Start: s.Start, End: s.End})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type commitmentRequest struct {
	ParticipantIDs []string  `json:"participant_ids"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
}

func (h *AvailabilityHandler) PutCommitments(w http.ResponseWriter, r *http.Request) {
	entityID := pathParam(r, "entityID")
	var req commitmentRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	err := h.service.ReplaceCommitments(r.Context(), application.ReplaceCommitmentsParams{
		EntityID:       entityID,
		ParticipantIDs: req.ParticipantIDs,
		Start:          req.Start,
		End:            req.End,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	handlerLogger(r.Context(), h.logger, "AvailabilityHandler", "PutCommitments", "entity_id", entityID).
		DebugContext(r.Context(), "commitments replaced", "participants", len(req.ParticipantIDs))
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *AvailabilityHandler) DeleteCommitments(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCommitments(r.Context(), pathParam(r, "entityID")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
