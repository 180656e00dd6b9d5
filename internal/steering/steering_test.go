package steering

import (
	"fmt"
	"testing"
	"time"

	"github.com/tandem-cli/tandem/pkg/models"
)

func newTask(prompt string) *models.Task {
	return &models.Task{ID: "task-1", Prompt: prompt}
}

func TestAnalyzeTaskConfidenceBounds(t *testing.T) {
	c := NewController()
	c.SetAgentKeywords("coder", []string{"code", "debug", "function", "compile", "bug", "fix"})
	c.SetAgentKeywords("writer", []string{"write", "essay", "story"})

	prompts := []string{
		"",
		"hello",
		"please debug this code, the function won't compile, can you fix the bug?",
		"write a story and a poem, imagine a creative world, analyze the themes",
	}

	for _, p := range prompts {
		result := c.AnalyzeTask(newTask(p))
		if result.Confidence < 0 || result.Confidence > 1 {
			t.Errorf("AnalyzeTask(%q).Confidence = %f, want within [0, 1]", p, result.Confidence)
		}
	}
}

func TestAnalyzeTaskDelegation(t *testing.T) {
	c := NewController()
	c.SetAgentKeywords("coder", []string{"code", "debug", "function", "compile"})

	// Four keyword hits => 0.8, above the 0.7 delegation threshold.
	result := c.AnalyzeTask(newTask("debug this code: the function does not compile"))
	if !result.ShouldDelegate {
		t.Fatalf("expected delegation, got %+v", result)
	}
	if result.RecommendedAgent != "coder" {
		t.Errorf("expected coder recommended, got %q", result.RecommendedAgent)
	}
}

func TestAnalyzeTaskNoDelegationBelowThreshold(t *testing.T) {
	c := NewController()
	c.SetAgentKeywords("coder", []string{"code"})

	// One hit => 0.2, below main's 0.5: main wins, no delegation.
	result := c.AnalyzeTask(newTask("look at this code"))
	if result.ShouldDelegate {
		t.Errorf("expected no delegation, got %+v", result)
	}
	if result.RecommendedAgent != "" {
		t.Errorf("expected empty recommendation, got %q", result.RecommendedAgent)
	}
}

func TestSetDelegationThresholdTakesEffect(t *testing.T) {
	c := NewController()
	c.SetAgentKeywords("coder", []string{"code", "debug", "function"})

	// Three keyword hits => 0.6, below the default 0.7 threshold.
	prompt := "debug this code, the function is wrong"
	if result := c.AnalyzeTask(newTask(prompt)); result.ShouldDelegate {
		t.Fatalf("expected no delegation at the default threshold, got %+v", result)
	}

	c.SetDelegationThreshold(0.5)
	result := c.AnalyzeTask(newTask(prompt))
	if !result.ShouldDelegate {
		t.Fatalf("expected delegation at threshold 0.5, got %+v", result)
	}
	if result.RecommendedAgent != "coder" {
		t.Errorf("expected coder recommended, got %q", result.RecommendedAgent)
	}

	// Out-of-range values leave the threshold alone.
	c.SetDelegationThreshold(0)
	c.SetDelegationThreshold(1.5)
	if got := c.DelegationThreshold(); got != 0.5 {
		t.Errorf("DelegationThreshold() = %f, want 0.5", got)
	}
}

func TestScoreAgentsDeterministicTie(t *testing.T) {
	c := NewController()
	c.SetAgentKeywords("beta", []string{"widget"})
	c.SetAgentKeywords("alpha", []string{"widget"})

	// Both agents hit once; sorted name order keeps "alpha" on ties,
	// regardless of registration order.
	for i := 0; i < 10; i++ {
		agent, score := c.scoreAgents([]string{"alpha:widget", "beta:widget"})
		if agent != "alpha" {
			t.Fatalf("iteration %d: expected alpha on tie, got %s (%f)", i, agent, score)
		}
	}
}

func TestAdjustmentRulesIndependent(t *testing.T) {
	// A prompt matching both coding and analysis rules emits both.
	adjustments := proposeAdjustments("analyze this code", 0)

	params := make(map[string]bool)
	for _, a := range adjustments {
		params[a.Parameter] = true
	}
	if !params["temperature"] {
		t.Error("expected temperature adjustment for coding intent")
	}
	if !params["context_window"] {
		t.Error("expected context_window adjustment for analysis intent")
	}
}

func TestAdjustmentHighFeatureCount(t *testing.T) {
	adjustments := proposeAdjustments("plain prompt", 6)

	found := false
	for _, a := range adjustments {
		if a.Parameter == "model" {
			found = true
		}
	}
	if !found {
		t.Error("expected model adjustment when feature count exceeds 5")
	}
}

func TestRecordOutcomeWindow(t *testing.T) {
	c := NewController()

	// No history: default success rate.
	if got := c.recentSuccessRate(); got != defaultSuccessRate {
		t.Fatalf("expected default rate %f, got %f", defaultSuccessRate, got)
	}

	// 30 failures then 20 successes: window keeps only the last 20.
	for i := 0; i < 30; i++ {
		c.RecordOutcome("coder", false, time.Second)
	}
	for i := 0; i < 20; i++ {
		c.RecordOutcome("coder", true, time.Second)
	}

	if got := c.recentSuccessRate(); got != 1.0 {
		t.Errorf("expected success rate 1.0 over window, got %f", got)
	}
}

func TestRecordOutcomeMetrics(t *testing.T) {
	c := NewController()

	c.RecordOutcome("coder", true, 2*time.Second)
	m, ok := c.Metrics("coder")
	if !ok {
		t.Fatal("expected metrics for coder")
	}
	if m.AverageResponseTime != 2.0 {
		t.Errorf("first sample should seed average, got %f", m.AverageResponseTime)
	}

	c.RecordOutcome("coder", false, 4*time.Second)
	m, _ = c.Metrics("coder")

	want := responseTimeDecay*2.0 + (1-responseTimeDecay)*4.0
	if diff := m.AverageResponseTime - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected smoothed response time %f, got %f", want, m.AverageResponseTime)
	}
	if m.ErrorRate <= 0 {
		t.Error("expected error rate to rise after a failure")
	}
	if m.QualityScore < 0 || m.QualityScore > 1 {
		t.Errorf("quality score out of range: %f", m.QualityScore)
	}
}

func TestQualityScoreClamped(t *testing.T) {
	c := NewController()
	for i := 0; i < 200; i++ {
		c.RecordOutcome("coder", true, time.Second)
	}
	m, _ := c.Metrics("coder")
	if m.QualityScore > 1 {
		t.Errorf("quality score exceeded 1: %f", m.QualityScore)
	}

	for i := 0; i < 200; i++ {
		c.RecordOutcome("coder", false, time.Second)
	}
	m, _ = c.Metrics("coder")
	if m.QualityScore < 0 {
		t.Errorf("quality score below 0: %f", m.QualityScore)
	}
}

func TestAnalysisCacheInvalidatedOnAgentChange(t *testing.T) {
	c := NewController()
	c.SetAgentKeywords("coder", []string{"code"})

	first := c.AnalyzeTask(newTask("review this code"))

	// Adding a stronger agent must not be masked by the cache.
	c.SetAgentKeywords("reviewer", []string{"review", "this", "code", "review this"})
	second := c.AnalyzeTask(newTask("review this code"))

	if fmt.Sprintf("%+v", first) == fmt.Sprintf("%+v", second) {
		t.Error("expected re-analysis after agent set changed")
	}
	if !second.ShouldDelegate || second.RecommendedAgent != "reviewer" {
		t.Errorf("expected reviewer recommendation, got %+v", second)
	}
}
