// Package planner turns a task into an ordered list of typed execution steps.
//
// Planning is keyword-driven: weighted keyword families estimate complexity,
// the estimate maps to a discrete level, and each level has its own step
// generation strategy. Planning is informational only; the orchestrator owns
// step execution.
package planner

import (
	"fmt"
	"log"
	"strings"

	"github.com/tandem-cli/tandem/internal/ids"
	"github.com/tandem-cli/tandem/pkg/models"
)

// Complexity is the discrete complexity level a task maps to.
type Complexity string

const (
	ComplexitySimple      Complexity = "simple"
	ComplexityMedium      Complexity = "medium"
	ComplexityComplex     Complexity = "complex"
	ComplexityVeryComplex Complexity = "very_complex"
)

// keywordFamily is one weighted family of prompt keywords. A prompt matching
// any keyword in the family fires the factor once and adds the weight to the
// step estimate.
type keywordFamily struct {
	factor   string
	weight   int
	keywords []string
}

// defaultFamilies is the authoritative keyword table used for complexity
// estimation. Families fire at most once per prompt.
var defaultFamilies = []keywordFamily{
	{
		factor: "requires analysis",
		weight: 2,
		keywords: []string{
			"analyze", "analysis", "investigate", "examine",
			"research", "understand", "explain why",
		},
	},
	{
		factor: "content generation",
		weight: 1,
		keywords: []string{
			"generate", "create", "write", "build", "implement",
			"compose", "draft",
		},
	},
	{
		factor: "batch operations",
		weight: 2,
		keywords: []string{
			"batch", "all files", "multiple", "each of", "every",
			"bulk", "across the",
		},
	},
	{
		factor: "file operations",
		weight: 1,
		keywords: []string{
			"file", "directory", "folder", "read from", "save to",
		},
	},
	{
		factor: "requires verification",
		weight: 1,
		keywords: []string{
			"verify", "validate", "test", "check", "confirm",
		},
	},
	{
		factor: "optimization",
		weight: 1,
		keywords: []string{
			"optimize", "improve", "refactor", "performance", "speed up",
		},
	},
}

// Factor names referenced by the step generation strategies.
const (
	factorAnalysis     = "requires analysis"
	factorBatch        = "batch operations"
	factorFileOps      = "file operations"
	factorVerification = "requires verification"
)

// maxPhaseSteps caps the number of phase-execution steps in a very_complex plan.
const maxPhaseSteps = 5

// Options are caller-supplied resource limits enforced after generation.
// Zero means unlimited.
type Options struct {
	// MaxSubAgentTasks caps the number of subagent steps in the plan.
	MaxSubAgentTasks int
	// MaxToolCalls caps the number of tool steps in the plan.
	MaxToolCalls int
}

// Plan is the output of one planning pass.
type Plan struct {
	// Steps is the ordered step list. Always at least one step.
	Steps []*models.ExecutionStep
	// Complexity is the level the task mapped to.
	Complexity Complexity
	// EstimatedSteps is the raw weighted keyword estimate.
	EstimatedSteps int
	// Factors are the human-readable labels of the families that fired.
	Factors []string
	// Truncated lists descriptions of steps dropped by resource limits.
	// Empty when no limit was exceeded.
	Truncated []string
}

// Planner generates execution plans and keeps a bounded decision history
// used only for statistics.
type Planner struct {
	families []keywordFamily
	history  *historyRing
}

// New creates a Planner with the default keyword table.
func New() *Planner {
	return &Planner{
		families: defaultFamilies,
		history:  newHistoryRing(historyCapacity),
	}
}

// PlanTask scans the task prompt, maps the weighted estimate to a complexity
// level, and generates steps per that level's strategy. Caller-supplied
// limits truncate excess steps of the offending kind, keeping the first N in
// plan order; dropped work is surfaced in Plan.Truncated and logged, never
// silently discarded.
func (p *Planner) PlanTask(task *models.Task, opts Options) (*Plan, error) {
	if task == nil || task.Prompt == "" {
		return nil, fmt.Errorf("%w: task prompt is required", models.ErrValidation)
	}

	estimate, factors := p.estimate(task.Prompt)
	complexity := classify(estimate)

	steps, err := p.generateSteps(task, complexity, estimate, factors)
	if err != nil {
		return nil, err
	}

	steps, truncated := applyLimits(steps, opts)
	if len(truncated) > 0 {
		log.Printf("[planner] resource limits truncated %d steps for task %s: %v",
			len(truncated), task.ID, truncated)
	}

	plan := &Plan{
		Steps:          steps,
		Complexity:     complexity,
		EstimatedSteps: estimate,
		Factors:        factors,
		Truncated:      truncated,
	}

	p.history.record(decision{
		TaskID:         task.ID,
		Complexity:     complexity,
		EstimatedSteps: estimate,
		Factors:        factors,
		StepCount:      len(steps),
		TruncatedCount: len(truncated),
	})

	return plan, nil
}

// estimate scans the prompt against the keyword table. The estimate starts
// at 1 (every task takes at least one step) and each fired family adds its
// weight once.
func (p *Planner) estimate(prompt string) (int, []string) {
	lower := strings.ToLower(prompt)

	estimate := 1
	var factors []string
	for _, fam := range p.families {
		for _, kw := range fam.keywords {
			if strings.Contains(lower, kw) {
				estimate += fam.weight
				factors = append(factors, fam.factor)
				break
			}
		}
	}
	return estimate, factors
}

// classify maps a weighted estimate to a discrete complexity level.
func classify(estimate int) Complexity {
	switch {
	case estimate <= 2:
		return ComplexitySimple
	case estimate <= 4:
		return ComplexityMedium
	case estimate <= 7:
		return ComplexityComplex
	default:
		return ComplexityVeryComplex
	}
}

// generateSteps builds the step list for the given complexity level.
func (p *Planner) generateSteps(task *models.Task, complexity Complexity, estimate int, factors []string) ([]*models.ExecutionStep, error) {
	has := func(factor string) bool {
		for _, f := range factors {
			if f == factor {
				return true
			}
		}
		return false
	}

	var steps []*models.ExecutionStep

	switch complexity {
	case ComplexitySimple:
		steps = append(steps, llmStep("Process request directly"))

	case ComplexityMedium:
		if has(factorAnalysis) {
			steps = append(steps, subagentStep("Analyze request before responding", "analysis"))
		}
		steps = append(steps, llmStep("Produce response"))

	case ComplexityComplex:
		steps = append(steps, subagentStep("Decompose request into work items", "analysis"))
		if has(factorBatch) {
			steps = append(steps, subagentStep("Execute batch operations in parallel", "batch"))
		}
		if has(factorFileOps) || has(factorVerification) {
			steps = append(steps, toolStep("Inspect workspace for referenced files", "workspace_scan", task.Prompt))
		}
		steps = append(steps, llmStep("Integrate results into final response"))

	case ComplexityVeryComplex:
		steps = append(steps, subagentStep("Deep analysis of request", "analysis"))
		steps = append(steps, subagentStep("Plan execution phases", "analysis"))

		phases := estimate - 2
		if phases > maxPhaseSteps {
			phases = maxPhaseSteps
		}
		for i := 1; i <= phases; i++ {
			// Phase steps carry no agent hint: the registry picks the
			// best available agent at dispatch time.
			steps = append(steps, subagentStep(fmt.Sprintf("Execute phase %d of %d", i, phases), ""))
		}

		steps = append(steps, subagentStep("Quality check combined output", "quality"))
		steps = append(steps, llmStep("Integrate results into final response"))

	default:
		// Unreachable: classify is exhaustive over its input range.
		return nil, fmt.Errorf("unknown complexity level %q", complexity)
	}

	return steps, nil
}

// applyLimits enforces caller-supplied resource limits by truncating excess
// steps of the offending kind, keeping the first N in plan order. It returns
// the kept steps and the descriptions of dropped ones.
func applyLimits(steps []*models.ExecutionStep, opts Options) ([]*models.ExecutionStep, []string) {
	if opts.MaxSubAgentTasks <= 0 && opts.MaxToolCalls <= 0 {
		return steps, nil
	}

	var kept []*models.ExecutionStep
	var truncated []string
	subagents, tools := 0, 0

	for _, s := range steps {
		switch s.Kind {
		case models.StepKindSubAgent:
			if opts.MaxSubAgentTasks > 0 && subagents >= opts.MaxSubAgentTasks {
				truncated = append(truncated, s.Description)
				continue
			}
			subagents++
		case models.StepKindTool:
			if opts.MaxToolCalls > 0 && tools >= opts.MaxToolCalls {
				truncated = append(truncated, s.Description)
				continue
			}
			tools++
		}
		kept = append(kept, s)
	}

	return kept, truncated
}

func llmStep(description string) *models.ExecutionStep {
	return &models.ExecutionStep{
		ID:          ids.New("step"),
		Kind:        models.StepKindLLM,
		Description: description,
		Status:      models.StepStatusPending,
	}
}

func subagentStep(description, agent string) *models.ExecutionStep {
	step := &models.ExecutionStep{
		ID:          ids.New("step"),
		Kind:        models.StepKindSubAgent,
		Description: description,
		Status:      models.StepStatusPending,
	}
	if agent != "" {
		step.Metadata = map[string]any{"agent": agent}
	}
	return step
}

func toolStep(description, tool, prompt string) *models.ExecutionStep {
	return &models.ExecutionStep{
		ID:          ids.New("step"),
		Kind:        models.StepKindTool,
		Description: description,
		Status:      models.StepStatusPending,
		Metadata: map[string]any{
			"tool":   tool,
			"params": map[string]any{"prompt": prompt},
		},
	}
}
