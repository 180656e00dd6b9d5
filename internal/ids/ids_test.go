package ids

import (
	"strings"
	"testing"
)

func TestNewFormat(t *testing.T) {
	id := New("task")

	if !strings.HasPrefix(id, "task_") {
		t.Fatalf("expected task_ prefix, got %q", id)
	}

	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d in %q", len(parts), id)
	}
	if len(parts[2]) != suffixLen {
		t.Errorf("expected %d-char suffix, got %q", suffixLen, parts[2])
	}
}

func TestNewDistinctSuffixes(t *testing.T) {
	// IDs are only weakly unique, but suffix collisions across a small
	// sample should still be rare enough that all-identical means broken.
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[New("step")] = true
	}
	if len(seen) < 2 {
		t.Error("expected distinct IDs across 50 generations")
	}
}
