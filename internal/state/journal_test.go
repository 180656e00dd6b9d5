package state

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := j.Migrate(); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestMigrateIsIdempotent(t *testing.T) {
	j := openTestJournal(t)
	if err := j.Migrate(); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	j := openTestJournal(t)

	run := &RunRecord{
		ID:         "run_1",
		TaskID:     "task_1",
		Prompt:     "review the parser",
		Complexity: "medium",
		Status:     RunRunning,
		StartedAt:  time.Now(),
	}
	if err := j.CreateRun(run); err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}

	got, err := j.GetRun("run_1")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got == nil || got.Status != RunRunning || got.CompletedAt != nil {
		t.Fatalf("GetRun() = %+v, want running with no completion time", got)
	}

	if err := j.FinishRun("run_1", RunFailed, "llm unavailable"); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}
	got, err = j.GetRun("run_1")
	if err != nil {
		t.Fatalf("GetRun() after finish error: %v", err)
	}
	if got.Status != RunFailed || got.Error != "llm unavailable" || got.CompletedAt == nil {
		t.Errorf("finished run = %+v", got)
	}
}

func TestGetRunMissing(t *testing.T) {
	j := openTestJournal(t)
	got, err := j.GetRun("nope")
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got != nil {
		t.Errorf("GetRun() on missing id = %+v, want nil", got)
	}
}

func TestStepsForRunPreserveOrder(t *testing.T) {
	j := openTestJournal(t)
	if err := j.CreateRun(&RunRecord{ID: "run_1", TaskID: "t", Prompt: "p", Complexity: "simple", Status: RunRunning, StartedAt: time.Now()}); err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}

	now := time.Now()
	for i, kind := range []string{"subagent", "llm"} {
		step := &StepRecord{
			ID:        "step_" + string(rune('a'+i)),
			RunID:     "run_1",
			Kind:      kind,
			Status:    "pending",
			StartedAt: &now,
		}
		if err := j.CreateStep(step); err != nil {
			t.Fatalf("CreateStep() error: %v", err)
		}
	}
	if err := j.FinishStep("step_a", "completed", ""); err != nil {
		t.Fatalf("FinishStep() error: %v", err)
	}

	steps, err := j.StepsForRun("run_1")
	if err != nil {
		t.Fatalf("StepsForRun() error: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("StepsForRun() = %d steps, want 2", len(steps))
	}
	if steps[0].Kind != "subagent" || steps[1].Kind != "llm" {
		t.Errorf("step order = %s, %s", steps[0].Kind, steps[1].Kind)
	}
	if steps[0].Status != "completed" || steps[0].CompletedAt == nil {
		t.Errorf("finished step = %+v", steps[0])
	}
	if steps[1].Status != "pending" {
		t.Errorf("unfinished step status = %s", steps[1].Status)
	}
}

func TestToolCallsForRun(t *testing.T) {
	j := openTestJournal(t)
	done := time.Now()
	call := &ToolCallRecord{
		ID:          "exec_1",
		RunID:       "run_9",
		Tool:        "workspace_scan",
		Status:      "completed",
		StartedAt:   done.Add(-time.Second),
		CompletedAt: &done,
	}
	if err := j.RecordToolCall(call); err != nil {
		t.Fatalf("RecordToolCall() error: %v", err)
	}

	calls, err := j.ToolCallsForRun("run_9")
	if err != nil {
		t.Fatalf("ToolCallsForRun() error: %v", err)
	}
	if len(calls) != 1 || calls[0].Tool != "workspace_scan" {
		t.Errorf("ToolCallsForRun() = %+v", calls)
	}
}

func TestListRecentRunsNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		run := &RunRecord{
			ID:         "run_" + string(rune('a'+i)),
			TaskID:     "t",
			Prompt:     "p",
			Complexity: "simple",
			Status:     RunCompleted,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := j.CreateRun(run); err != nil {
			t.Fatalf("CreateRun() error: %v", err)
		}
	}

	runs, err := j.ListRecentRuns(2)
	if err != nil {
		t.Fatalf("ListRecentRuns() error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRecentRuns(2) = %d runs", len(runs))
	}
	if runs[0].ID != "run_c" || runs[1].ID != "run_b" {
		t.Errorf("order = %s, %s, want run_c, run_b", runs[0].ID, runs[1].ID)
	}
}

func TestPurgeOldRuns(t *testing.T) {
	j := openTestJournal(t)
	old := &RunRecord{ID: "old", TaskID: "t", Prompt: "p", Complexity: "simple", Status: RunCompleted, StartedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &RunRecord{ID: "fresh", TaskID: "t", Prompt: "p", Complexity: "simple", Status: RunCompleted, StartedAt: time.Now()}
	for _, r := range []*RunRecord{old, fresh} {
		if err := j.CreateRun(r); err != nil {
			t.Fatalf("CreateRun() error: %v", err)
		}
	}

	n, err := j.PurgeOldRuns(24 * time.Hour)
	if err != nil {
		t.Fatalf("PurgeOldRuns() error: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d runs, want 1", n)
	}
	if got, _ := j.GetRun("old"); got != nil {
		t.Error("old run should be gone")
	}
	if got, _ := j.GetRun("fresh"); got == nil {
		t.Error("fresh run should survive")
	}
}
