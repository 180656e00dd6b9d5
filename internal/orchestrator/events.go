package orchestrator

import "time"

// EventType identifies the kind of engine event.
type EventType string

const (
	// EventInitialized fires once when the engine finishes Initialize.
	EventInitialized EventType = "initialized"
	// EventTaskStarted fires when ExecuteTask begins a task.
	EventTaskStarted EventType = "taskStarted"
	// EventTaskCompleted fires when a task finishes successfully.
	EventTaskCompleted EventType = "taskCompleted"
	// EventTaskFailed fires when a task ends in error.
	EventTaskFailed EventType = "taskFailed"
	// EventStepStarted fires when a plan step begins executing.
	EventStepStarted EventType = "stepStarted"
	// EventStepCompleted fires when a plan step completes.
	EventStepCompleted EventType = "stepCompleted"
	// EventStepFailed fires when a plan step fails.
	EventStepFailed EventType = "stepFailed"
)

// Event is one observable engine occurrence. Events are delivered on a
// buffered channel and dropped rather than blocking execution when no one
// is reading.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// StepID is the ID of the related step, if applicable.
	StepID string
	// Agent is the sub-agent involved, if applicable.
	Agent string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
