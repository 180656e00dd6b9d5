package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of one recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord is one journaled task execution.
type RunRecord struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	Prompt      string     `json:"prompt"`
	Complexity  string     `json:"complexity"`
	Status      RunStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StepRecord is one journaled execution step within a run.
type StepRecord struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id"`
	Kind        string     `json:"kind"`
	Description string     `json:"description"`
	Agent       string     `json:"agent,omitempty"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ToolCallRecord is one journaled tool execution.
type ToolCallRecord struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id,omitempty"`
	Tool        string     `json:"tool"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreateRun inserts a new run in the running state.
func (j *Journal) CreateRun(r *RunRecord) error {
	_, err := j.Exec(`
		INSERT INTO runs (id, task_id, prompt, complexity, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.TaskID, r.Prompt, r.Complexity, string(r.Status), formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun marks a run completed or failed.
func (j *Journal) FinishRun(id string, status RunStatus, runErr string) error {
	_, err := j.Exec(`
		UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?
	`, string(status), runErr, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. A missing run returns (nil, nil).
func (j *Journal) GetRun(id string) (*RunRecord, error) {
	row := j.QueryRow(`
		SELECT id, task_id, prompt, complexity, status, COALESCE(error, ''), started_at, completed_at
		FROM runs WHERE id = ?
	`, id)

	var r RunRecord
	var startedAt string
	var completedAt sql.NullString
	err := row.Scan(&r.ID, &r.TaskID, &r.Prompt, &r.Complexity, &r.Status, &r.Error, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.CompletedAt = parseNullableTime(completedAt)
	return &r, nil
}

// ListRecentRuns returns up to limit runs, newest first.
func (j *Journal) ListRecentRuns(limit int) ([]RunRecord, error) {
	rows, err := j.Query(`
		SELECT id, task_id, prompt, complexity, status, COALESCE(error, ''), started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.TaskID, &r.Prompt, &r.Complexity, &r.Status, &r.Error, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = parseTime(startedAt)
		r.CompletedAt = parseNullableTime(completedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CreateStep inserts a step under a run.
func (j *Journal) CreateStep(s *StepRecord) error {
	var startedAt any
	if s.StartedAt != nil {
		startedAt = formatTime(*s.StartedAt)
	}
	_, err := j.Exec(`
		INSERT INTO steps (id, run_id, kind, description, agent, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.RunID, s.Kind, s.Description, s.Agent, s.Status, startedAt)
	if err != nil {
		return fmt.Errorf("create step: %w", err)
	}
	return nil
}

// FinishStep records a step's terminal status.
func (j *Journal) FinishStep(id, status, stepErr string) error {
	_, err := j.Exec(`
		UPDATE steps SET status = ?, error = ?, completed_at = ? WHERE id = ?
	`, status, stepErr, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish step: %w", err)
	}
	return nil
}

// StepsForRun returns the steps of one run in insertion order.
func (j *Journal) StepsForRun(runID string) ([]StepRecord, error) {
	rows, err := j.Query(`
		SELECT id, run_id, kind, COALESCE(description, ''), COALESCE(agent, ''), status, COALESCE(error, ''), started_at, completed_at
		FROM steps WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []StepRecord
	for rows.Next() {
		var s StepRecord
		var startedAt, completedAt sql.NullString
		if err := rows.Scan(&s.ID, &s.RunID, &s.Kind, &s.Description, &s.Agent, &s.Status, &s.Error, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		s.StartedAt = parseNullableTime(startedAt)
		s.CompletedAt = parseNullableTime(completedAt)
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

// RecordToolCall inserts a completed tool call.
func (j *Journal) RecordToolCall(c *ToolCallRecord) error {
	var completedAt any
	if c.CompletedAt != nil {
		completedAt = formatTime(*c.CompletedAt)
	}
	_, err := j.Exec(`
		INSERT INTO tool_calls (id, run_id, tool, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.RunID, c.Tool, c.Status, c.Error, formatTime(c.StartedAt), completedAt)
	if err != nil {
		return fmt.Errorf("record tool call: %w", err)
	}
	return nil
}

// ToolCallsForRun returns the tool calls of one run in insertion order.
func (j *Journal) ToolCallsForRun(runID string) ([]ToolCallRecord, error) {
	rows, err := j.Query(`
		SELECT id, COALESCE(run_id, ''), tool, status, COALESCE(error, ''), started_at, completed_at
		FROM tool_calls WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list tool calls: %w", err)
	}
	defer rows.Close()

	var calls []ToolCallRecord
	for rows.Next() {
		var c ToolCallRecord
		var startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&c.ID, &c.RunID, &c.Tool, &c.Status, &c.Error, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		c.StartedAt, _ = parseTime(startedAt)
		c.CompletedAt = parseNullableTime(completedAt)
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
