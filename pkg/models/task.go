package models

import "time"

// TaskKind classifies how a task should be approached during planning.
type TaskKind string

const (
	// TaskKindSimple indicates a task answerable in a single pass.
	TaskKindSimple TaskKind = "simple"
	// TaskKindComplex indicates a task requiring decomposition.
	TaskKindComplex TaskKind = "complex"
	// TaskKindRecursive indicates a task whose steps may spawn sub-tasks.
	TaskKindRecursive TaskKind = "recursive"
)

// Valid returns true if the kind is a known value.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskKindSimple, TaskKindComplex, TaskKindRecursive:
		return true
	default:
		return false
	}
}

// Task represents a unit of user intent submitted to the orchestrator.
// A task is immutable for the duration of one orchestration run.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Kind classifies the task for planning purposes.
	Kind TaskKind `json:"kind"`
	// Prompt is the user's request text.
	Prompt string `json:"prompt"`
	// Context carries optional caller-supplied context values.
	Context map[string]any `json:"context,omitempty"`
	// Priority orders tasks when callers queue more than one.
	Priority int `json:"priority,omitempty"`
	// Metadata carries optional caller-supplied annotations.
	Metadata map[string]any `json:"metadata,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
}

// TaskResult is the aggregate outcome of one orchestration run.
type TaskResult struct {
	// TaskID is the ID of the task that produced this result.
	TaskID string `json:"task_id"`
	// Content is the integrated response text.
	Content string `json:"content"`
	// SubAgentResults maps agent names to their individual outputs.
	SubAgentResults map[string]string `json:"sub_agent_results,omitempty"`
	// ExecutionPlan is the full step list, including failed steps,
	// for diagnostics even on an otherwise-successful task.
	ExecutionPlan []*ExecutionStep `json:"execution_plan,omitempty"`
	// Metadata carries run-level annotations such as the steering analysis.
	Metadata map[string]any `json:"metadata,omitempty"`
}
