// Package events carries domain events from the engine to whoever delivers
// notifications. Publishers never format user-facing messages.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Event types emitted by the engine.
const (
	TypeInstanceGenerated = "series.instance.generated"
	TypeSeriesRetired     = "series.instances.retired"
	TypeRunStarted        = "workflow.run.started"
	TypeRunAdvanced       = "workflow.run.advanced"
	TypeRunApproved       = "workflow.run.approved"
	TypeRunRejected       = "workflow.run.rejected"
	TypeRunCancelled      = "workflow.run.cancelled"
)

// Event is a serialisable domain event.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	SeriesID   string            `json:"series_id,omitempty"`
	InstanceID string            `json:"instance_id,omitempty"`
	RunID      string            `json:"run_id,omitempty"`
	TargetID   string            `json:"target_id,omitempty"`
	Recipient  string            `json:"recipient,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publisher hands events to an external collaborator.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// LogPublisher writes events to a structured logger.
type LogPublisher struct {
	Logger *slog.Logger
}

// Publish implements Publisher.
func (p LogPublisher) Publish(ctx context.Context, event Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "domain event",
		"event_id", event.ID,
		"event_type", event.Type,
		"series_id", event.SeriesID,
		"run_id", event.RunID,
		"recipient", event.Recipient,
	)
	return nil
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
