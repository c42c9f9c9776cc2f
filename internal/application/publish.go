package application

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/example/meeting-lifecycle/internal/events"
	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/workflow"
)

// publish hands an event to the publisher. Delivery failures are logged and
// never undo the state change that produced the event.
func publish(ctx context.Context, logger *slog.Logger, publisher events.Publisher, event events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "event_type", event.Type, "event_id", event.ID, "error", err)
	}
}

func instanceEvent(id string, inst persistence.Instance) events.Event {
	attrs := map[string]string{
		"date":    inst.Date.Format("2006-01-02"),
		"start":   inst.Start.Format(time.RFC3339),
		"end":     inst.End.Format(time.RFC3339),
		"outcome": string(inst.Outcome),
	}
	if inst.ErrorMessage != "" {
		attrs["error_message"] = inst.ErrorMessage
	}
	return events.Event{
		ID:         id,
		Type:       events.TypeInstanceGenerated,
		OccurredAt: inst.GeneratedAt,
		SeriesID:   inst.SeriesID,
		InstanceID: inst.ID,
		Attributes: attrs,
	}
}

func notificationEvent(id string, run workflow.Run, n workflow.Notification) events.Event {
	attrs := map[string]string{
		"definition_id": run.DefinitionID,
		"target_kind":   string(n.Target.Kind),
		"status":        string(run.Status),
		"step_index":    strconv.Itoa(n.StepIndex),
		"actor_id":      n.ActorID,
		"notify":        strconv.FormatBool(n.Notify),
	}
	if n.StepName != "" {
		attrs["step_name"] = n.StepName
	}
	if n.Comment != "" {
		attrs["comment"] = n.Comment
	}
	return events.Event{
		ID:         id,
		Type:       string(n.Event),
		OccurredAt: n.At,
		RunID:      n.RunID,
		TargetID:   n.Target.ID,
		Recipient:  n.Recipient,
		Attributes: attrs,
	}
}
