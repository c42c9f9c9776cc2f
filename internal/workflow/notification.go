package workflow

import "time"

// EventType names the transition a notification describes.
type EventType string

const (
	EventStarted   EventType = "workflow.run.started"
	EventAdvanced  EventType = "workflow.run.advanced"
	EventApproved  EventType = "workflow.run.approved"
	EventRejected  EventType = "workflow.run.rejected"
	EventCancelled EventType = "workflow.run.cancelled"
)

// Notification is the intent to tell one recipient about a transition.
// Delivery is left to whoever consumes it.
type Notification struct {
	Event     EventType
	RunID     string
	Target    Target
	Recipient string
	StepIndex int
	StepName  string
	ActorID   string
	Comment   string
	// Notify mirrors the step's notify flag for validator notifications and is
	// always true for requester notifications.
	Notify bool
	At     time.Time
}

// Transition is the outcome of a successful state change.
type Transition struct {
	Run          Run
	Notification Notification
}
