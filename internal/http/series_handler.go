package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/meeting-lifecycle/internal/application"
	"github.com/example/meeting-lifecycle/internal/calendarexport"
	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/recurrence"
)

type seriesService interface {
	GenerateSeries(ctx context.Context, params application.GenerateSeriesParams) ([]persistence.Instance, error)
	RegenerateSeries(ctx context.Context, params application.GenerateSeriesParams) ([]persistence.Instance, error)
	ListInstances(ctx context.Context, seriesID string, includeRetired bool) ([]persistence.Instance, error)
	PurgeGenerationRecords(ctx context.Context, horizon time.Duration) (int, error)
}

// SeriesHandler serves series generation, listing, export and retention.
type SeriesHandler struct {
	service   seriesService
	responder responder
	logger    *slog.Logger
	now       func() time.Time
}

func NewSeriesHandler(service seriesService, logger *slog.Logger, now func() time.Time) *SeriesHandler {
	if now == nil {
		now = time.Now
	}
	return &SeriesHandler{service: service, responder: newResponder(logger), logger: logger, now: now}
}

type generateRequest struct {
	Rule           recurrence.RuleSpec `json:"rule"`
	ParticipantIDs []string            `json:"participant_ids"`
	RangeEnd       string              `json:"range_end"`
}

type instanceDTO struct {
	ID              string     `json:"id"`
	SeriesID        string     `json:"series_id"`
	RuleID          string     `json:"rule_id"`
	RuleFingerprint string     `json:"rule_fingerprint"`
	Date            string     `json:"date"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	ParticipantIDs  []string   `json:"participant_ids"`
	Outcome         string     `json:"outcome"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	GeneratedAt     time.Time  `json:"generated_at"`
	RetiredAt       *time.Time `json:"retired_at,omitempty"`
}

type instancesResponse struct {
	SeriesID  string        `json:"series_id"`
	Instances []instanceDTO `json:"instances"`
}

func (h *SeriesHandler) Generate(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, false)
}

func (h *SeriesHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, true)
}

func (h *SeriesHandler) generate(w http.ResponseWriter, r *http.Request, regenerate bool) {
	seriesID := pathParam(r, "seriesID")
	var req generateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params, err := req.toParams(seriesID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	var instances []persistence.Instance
	status := http.StatusCreated
	if regenerate {
		instances, err = h.service.RegenerateSeries(r.Context(), params)
		status = http.StatusOK
	} else {
		instances, err = h.service.GenerateSeries(r.Context(), params)
	}
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, status, instancesResponse{SeriesID: seriesID, Instances: toInstanceDTOs(instances)})
}

func (req generateRequest) toParams(seriesID string) (application.GenerateSeriesParams, error) {
	rule, err := req.Rule.Rule()
	if err != nil {
		var ruleErr *recurrence.RuleError
		if errors.As(err, &ruleErr) {
			return application.GenerateSeriesParams{}, &application.ValidationError{
				FieldErrors: map[string]string{"rule." + ruleErr.Field: ruleErr.Message},
			}
		}
		return application.GenerateSeriesParams{}, err
	}
	rule.SeriesID = seriesID

	params := application.GenerateSeriesParams{Rule: rule, ParticipantIDs: req.ParticipantIDs}
	if strings.TrimSpace(req.RangeEnd) != "" {
		rangeEnd, err := recurrence.ParseDate(req.RangeEnd)
		if err != nil {
			return application.GenerateSeriesParams{}, &application.ValidationError{
				FieldErrors: map[string]string{"range_end": "must be YYYY-MM-DD"},
			}
		}
		params.RangeEnd = &rangeEnd
	}
	return params, nil
}

func (h *SeriesHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	seriesID := pathParam(r, "seriesID")
	instances, err := h.service.ListInstances(r.Context(), seriesID, boolQuery(r, "include_retired"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, instancesResponse{SeriesID: seriesID, Instances: toInstanceDTOs(instances)})
}

// Calendar renders the active instances of a series as text/calendar.
func (h *SeriesHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	seriesID := pathParam(r, "seriesID")
	instances, err := h.service.ListInstances(r.Context(), seriesID, false)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	summary := strings.TrimSpace(r.URL.Query().Get("summary"))
	if summary == "" {
		summary = seriesID
	}

	var buf bytes.Buffer
	if err := calendarexport.Encode(&buf, summary, calendarexport.FromInstances(summary, instances), h.now()); err != nil {
		if errors.Is(err, calendarexport.ErrEmpty) {
			h.responder.writeError(r.Context(), w, http.StatusNotFound, nil)
			return
		}
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+seriesID+`.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		handlerLogger(r.Context(), h.logger, "SeriesHandler", "Calendar").
			ErrorContext(r.Context(), "failed to write calendar", "error", err)
	}
}

type retentionRequest struct {
	Horizon string `json:"horizon"`
}

type retentionResponse struct {
	Purged int `json:"purged"`
}

// PurgeRecords runs the retention sweep. An empty horizon uses the configured default.
func (h *SeriesHandler) PurgeRecords(w http.ResponseWriter, r *http.Request) {
	var req retentionRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	var horizon time.Duration
	if value := strings.TrimSpace(req.Horizon); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
				FieldErrors: map[string]string{"horizon": "must be a positive duration"},
			})
			return
		}
		horizon = parsed
	}

	purged, err := h.service.PurgeGenerationRecords(r.Context(), horizon)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, retentionResponse{Purged: purged})
}

func toInstanceDTOs(instances []persistence.Instance) []instanceDTO {
	dtos := make([]instanceDTO, 0, len(instances))
	for _, inst := range instances {
		dtos = append(dtos, instanceDTO{
			ID:              inst.ID,
			SeriesID:        inst.SeriesID,
			RuleID:          inst.RuleID,
			RuleFingerprint: inst.RuleFingerprint,
			Date:            inst.Date.Format(time.DateOnly),
			Start:           inst.Start,
			End:             inst.End,
			ParticipantIDs:  append([]string{}, inst.ParticipantIDs...),
			Outcome:         string(inst.Outcome),
			ErrorMessage:    inst.ErrorMessage,
			GeneratedAt:     inst.GeneratedAt,
			RetiredAt:       inst.RetiredAt,
		})
	}
	return dtos
}
