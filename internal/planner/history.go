package planner

import (
	"sync"
	"time"
)

// historyCapacity bounds the planning decision history.
const historyCapacity = 1000

// decision is one recorded planning outcome. History is used only for
// statistics; it has no effect on subsequent planning.
type decision struct {
	TaskID         string
	Complexity     Complexity
	EstimatedSteps int
	Factors        []string
	StepCount      int
	TruncatedCount int
	At             time.Time
}

// historyRing is a fixed-capacity ring of planning decisions.
type historyRing struct {
	mu      sync.Mutex
	entries []decision
	next    int
	full    bool
}

func newHistoryRing(capacity int) *historyRing {
	return &historyRing{entries: make([]decision, capacity)}
}

func (r *historyRing) record(d decision) {
	d.At = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = d
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

func (r *historyRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

// snapshot returns the recorded decisions, oldest first.
func (r *historyRing) snapshot() []decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]decision, r.next)
		copy(out, r.entries[:r.next])
		return out
	}

	out := make([]decision, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

// Stats summarizes the recorded planning history.
type Stats struct {
	// Total is the number of decisions currently retained.
	Total int
	// ByComplexity counts decisions per complexity level.
	ByComplexity map[Complexity]int
	// AverageSteps is the mean generated step count.
	AverageSteps float64
	// TruncatedPlans counts plans that had steps dropped by limits.
	TruncatedPlans int
}

// Stats computes statistics over the retained planning history.
func (p *Planner) Stats() Stats {
	decisions := p.history.snapshot()

	stats := Stats{
		Total:        len(decisions),
		ByComplexity: make(map[Complexity]int),
	}
	if len(decisions) == 0 {
		return stats
	}

	totalSteps := 0
	for _, d := range decisions {
		stats.ByComplexity[d.Complexity]++
		totalSteps += d.StepCount
		if d.TruncatedCount > 0 {
			stats.TruncatedPlans++
		}
	}
	stats.AverageSteps = float64(totalSteps) / float64(len(decisions))
	return stats
}
