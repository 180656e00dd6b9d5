package models

import "testing"

func TestStepStatusValid(t *testing.T) {
	valid := []StepStatus{StepStatusPending, StepStatusRunning, StepStatusCompleted, StepStatusFailed}
	for _, s := range valid {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}

	if StepStatus("unknown").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestStepStatusTransitions(t *testing.T) {
	tests := []struct {
		from    StepStatus
		to      StepStatus
		allowed bool
	}{
		{StepStatusPending, StepStatusRunning, true},
		{StepStatusRunning, StepStatusCompleted, true},
		{StepStatusRunning, StepStatusFailed, true},
		{StepStatusPending, StepStatusCompleted, false},
		{StepStatusCompleted, StepStatusRunning, false},
		{StepStatusFailed, StepStatusPending, false},
		{StepStatusCompleted, StepStatusFailed, false},
	}

	for _, tt := range tests {
		got := tt.from.CanTransitionTo(tt.to)
		if got != tt.allowed {
			t.Errorf("CanTransitionTo(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestStepStatusTerminal(t *testing.T) {
	if StepStatusPending.Terminal() || StepStatusRunning.Terminal() {
		t.Error("pending and running must not be terminal")
	}
	if !StepStatusCompleted.Terminal() || !StepStatusFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
}

func TestTaskKindValid(t *testing.T) {
	for _, k := range []TaskKind{TaskKindSimple, TaskKindComplex, TaskKindRecursive} {
		if !k.Valid() {
			t.Errorf("expected %q to be valid", k)
		}
	}
	if TaskKind("other").Valid() {
		t.Error("expected unknown kind to be invalid")
	}
}

func TestStepKindValid(t *testing.T) {
	for _, k := range []StepKind{StepKindLLM, StepKindTool, StepKindSubAgent} {
		if !k.Valid() {
			t.Errorf("expected %q to be valid", k)
		}
	}
	if StepKind("other").Valid() {
		t.Error("expected unknown kind to be invalid")
	}
}
