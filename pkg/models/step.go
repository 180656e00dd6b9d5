package models

// StepKind identifies which executor a planned step is routed to.
type StepKind string

const (
	// StepKindLLM routes the step to the conversation collaborator.
	StepKindLLM StepKind = "llm"
	// StepKindTool routes the step to the tool scheduler.
	StepKindTool StepKind = "tool"
	// StepKindSubAgent routes the step to the sub-agent registry.
	StepKindSubAgent StepKind = "subagent"
)

// Valid returns true if the kind is a known value.
func (k StepKind) Valid() bool {
	switch k {
	case StepKindLLM, StepKindTool, StepKindSubAgent:
		return true
	default:
		return false
	}
}

// StepStatus represents the execution state of a planned step.
// Transitions are monotonic: pending -> running -> completed|failed.
// A step never re-enters a prior state.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates the step is being executed.
	StepStatusRunning StepStatus = "running"
	// StepStatusCompleted indicates the step finished successfully.
	StepStatusCompleted StepStatus = "completed"
	// StepStatusFailed indicates the step raised an error.
	StepStatusFailed StepStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusPending, StepStatusRunning, StepStatusCompleted, StepStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are allowed from s.
func (s StepStatus) Terminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a forward
// transition. Terminal states admit no successors.
func (s StepStatus) CanTransitionTo(next StepStatus) bool {
	switch s {
	case StepStatusPending:
		return next == StepStatusRunning
	case StepStatusRunning:
		return next == StepStatusCompleted || next == StepStatusFailed
	default:
		return false
	}
}

// ExecutionStep is one planned unit of work with its own status.
// Status is owned exclusively by the orchestrator during execution.
type ExecutionStep struct {
	// ID is the unique identifier for this step.
	ID string `json:"id"`
	// Kind determines which executor handles this step.
	Kind StepKind `json:"kind"`
	// Description is a human-readable summary of the step's purpose.
	Description string `json:"description"`
	// Status is the current execution state.
	Status StepStatus `json:"status"`
	// Result holds the step's output once completed.
	Result string `json:"result,omitempty"`
	// Error holds the failure message if the step failed.
	Error string `json:"error,omitempty"`
	// Metadata carries executor hints, e.g. the target agent or tool name.
	Metadata map[string]any `json:"metadata,omitempty"`
}
