package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tandem-cli/tandem/internal/ids"
	"github.com/tandem-cli/tandem/internal/llm"
	"github.com/tandem-cli/tandem/internal/planner"
	"github.com/tandem-cli/tandem/internal/state"
	"github.com/tandem-cli/tandem/internal/toolexec"
	"github.com/tandem-cli/tandem/pkg/models"
)

// agentOutcome tracks one sub-agent invocation for outcome reporting.
type agentOutcome struct {
	agent    string
	success  bool
	duration time.Duration
}

// ExecuteTask runs one task through plan, steer, execute, integrate. The
// steering pass is advisory and overlaps planning; its adjustments inform
// llm steps but never gate routing. Steps execute strictly in plan order:
// an llm step failure aborts the task, while subagent and tool step
// failures are recorded and the loop continues.
func (o *Orchestrator) ExecuteTask(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	if !o.initialized {
		return nil, fmt.Errorf("%w: orchestrator is not initialized", models.ErrValidation)
	}
	if task == nil || strings.TrimSpace(task.Prompt) == "" {
		return nil, fmt.Errorf("%w: task prompt is required", models.ErrValidation)
	}
	if task.ID == "" {
		task.ID = ids.New("task")
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	o.emitEvent(Event{
		Type:      EventTaskStarted,
		TaskID:    task.ID,
		Message:   task.Prompt,
		Timestamp: time.Now(),
	})
	debugLog("task %s started: %.80s", task.ID, task.Prompt)

	tunables := o.Tunables()

	var steeringCh chan models.SteeringResult
	if tunables.SteeringEnabled {
		steeringCh = make(chan models.SteeringResult, 1)
		go func() {
			steeringCh <- o.steering.AnalyzeTask(task)
		}()
	}

	plan, err := o.planner.PlanTask(task, planner.Options{
		MaxSubAgentTasks: tunables.MaxSubAgentTasks,
		MaxToolCalls:     tunables.MaxToolCalls,
	})
	if err != nil {
		o.failTask(task, "", err)
		return nil, fmt.Errorf("planning task %s: %w", task.ID, err)
	}
	debugLog("task %s planned: complexity=%s steps=%d", task.ID, plan.Complexity, len(plan.Steps))

	runID := o.journalRunStart(task, plan)

	var analysis *models.SteeringResult
	if steeringCh != nil {
		a := <-steeringCh
		analysis = &a
	}
	var adjustments []models.Adjustment
	if analysis != nil {
		adjustments = analysis.Adjustments
	}

	subAgentResults := make(map[string]string)
	var resultOrder []string
	var outcomes []agentOutcome
	var lastLLMOutput string

	for _, step := range plan.Steps {
		step.Status = models.StepStatusRunning
		o.emitEvent(Event{
			Type:      EventStepStarted,
			TaskID:    task.ID,
			StepID:    step.ID,
			Message:   step.Description,
			Timestamp: time.Now(),
		})
		o.journalStepStart(runID, step)

		switch step.Kind {
		case models.StepKindSubAgent:
			name, _ := step.Metadata["agent"].(string)
			started := time.Now()
			output, ranAgent, err := o.registry.Dispatch(ctx, name, task)
			elapsed := time.Since(started)
			if ranAgent != "" {
				outcomes = append(outcomes, agentOutcome{agent: ranAgent, success: err == nil, duration: elapsed})
			}
			if err != nil {
				o.failStep(task, step, runID, err)
				continue
			}
			key := ranAgent
			if _, dup := subAgentResults[key]; dup {
				key = fmt.Sprintf("%s (%s)", ranAgent, step.ID)
			}
			subAgentResults[key] = output
			resultOrder = append(resultOrder, key)
			o.completeStep(task, step, runID, output)

		case models.StepKindLLM:
			output, err := o.runLLMStep(ctx, task, step, subAgentResults, resultOrder, adjustments)
			if err != nil {
				o.failStep(task, step, runID, err)
				o.failTask(task, runID, err)
				o.reportOutcomes(outcomes)
				return nil, fmt.Errorf("llm step %s: %w", step.ID, err)
			}
			lastLLMOutput = output
			o.completeStep(task, step, runID, output)

		case models.StepKindTool:
			toolName, _ := step.Metadata["tool"].(string)
			if toolName == "" {
				o.failStep(task, step, runID, fmt.Errorf("%w: step has no tool bound", models.ErrValidation))
				continue
			}
			params, _ := step.Metadata["params"].(map[string]any)
			started := time.Now()
			result, err := o.scheduler.ExecuteTool(ctx, toolName, params, toolexec.Options{})
			o.journalToolCall(runID, toolName, started, err)
			if err != nil {
				o.failStep(task, step, runID, err)
				continue
			}
			o.completeStep(task, step, runID, fmt.Sprint(result))

		default:
			o.failStep(task, step, runID, fmt.Errorf("%w: unknown step kind %q", models.ErrValidation, step.Kind))
		}
	}

	result := &models.TaskResult{
		TaskID:          task.ID,
		Content:         integrate(lastLLMOutput, subAgentResults, resultOrder),
		SubAgentResults: subAgentResults,
		ExecutionPlan:   plan.Steps,
		Metadata: map[string]any{
			"complexity":      string(plan.Complexity),
			"estimated_steps": plan.EstimatedSteps,
		},
	}
	if len(plan.Truncated) > 0 {
		result.Metadata["truncated_steps"] = plan.Truncated
	}
	if analysis != nil {
		result.Metadata["steering"] = *analysis
		debugLog("task %s steering: delegate=%t agent=%s confidence=%.2f",
			task.ID, analysis.ShouldDelegate, analysis.RecommendedAgent, analysis.Confidence)
	}

	o.reportOutcomes(outcomes)
	o.journalRunFinish(runID, state.RunCompleted, "")

	o.emitEvent(Event{
		Type:      EventTaskCompleted,
		TaskID:    task.ID,
		Message:   fmt.Sprintf("%d steps executed", len(plan.Steps)),
		Timestamp: time.Now(),
	})
	debugLog("task %s completed", task.ID)
	return result, nil
}

// runLLMStep asks the conversation backend to perform an llm step, giving
// it whatever sub-agent output exists so far as context. Steering
// adjustments with concrete values are applied when the backend supports
// per-call parameters.
func (o *Orchestrator) runLLMStep(ctx context.Context, task *models.Task, step *models.ExecutionStep, subAgentResults map[string]string, order []string, adjustments []models.Adjustment) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "%s\n\nTask: %s", step.Description, task.Prompt)
	if len(order) > 0 {
		prompt.WriteString("\n\nContext from completed work:")
		for _, name := range order {
			fmt.Fprintf(&prompt, "\n%s: %s", name, subAgentResults[name])
		}
	}
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt.String()}}

	var output string
	var err error
	tunable, isTunable := o.conversation.(llm.TunableConversation)
	if params, concrete := paramsFromAdjustments(adjustments); isTunable && concrete {
		output, err = tunable.ProcessConversationWithParams(ctx, messages, params)
	} else {
		output, err = o.conversation.ProcessConversation(ctx, messages)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExecution, err)
	}
	return output, nil
}

// paramsFromAdjustments maps steering adjustments onto per-call parameters.
// Only concrete values are mapped; symbolic recommendations such as model
// tier or context window stay advisory metadata.
func paramsFromAdjustments(adjustments []models.Adjustment) (llm.Params, bool) {
	params := llm.Params{Temperature: -1}
	concrete := false
	for _, a := range adjustments {
		switch a.Parameter {
		case "temperature":
			if v, ok := a.Value.(float64); ok {
				params.Temperature = v
				concrete = true
			}
		}
	}
	return params, concrete
}

// integrate builds the final response content. With no sub-agent output the
// last llm output stands alone; otherwise named sections are concatenated
// in execution order.
func integrate(lastLLMOutput string, subAgentResults map[string]string, order []string) string {
	if len(order) == 0 {
		return lastLLMOutput
	}
	var b strings.Builder
	for _, name := range order {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s: %s", name, subAgentResults[name])
	}
	if lastLLMOutput != "" {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(lastLLMOutput)
	}
	return b.String()
}

func (o *Orchestrator) completeStep(task *models.Task, step *models.ExecutionStep, runID, output string) {
	step.Status = models.StepStatusCompleted
	step.Result = output
	o.emitEvent(Event{
		Type:      EventStepCompleted,
		TaskID:    task.ID,
		StepID:    step.ID,
		Message:   step.Description,
		Timestamp: time.Now(),
	})
	o.journalStepFinish(runID, step, "")
}

func (o *Orchestrator) failStep(task *models.Task, step *models.ExecutionStep, runID string, err error) {
	step.Status = models.StepStatusFailed
	step.Error = err.Error()
	o.emitEvent(Event{
		Type:      EventStepFailed,
		TaskID:    task.ID,
		StepID:    step.ID,
		Message:   step.Description,
		Error:     err,
		Timestamp: time.Now(),
	})
	debugLog("task %s step %s failed: %v", task.ID, step.ID, err)
	o.journalStepFinish(runID, step, err.Error())
}

func (o *Orchestrator) failTask(task *models.Task, runID string, err error) {
	o.emitEvent(Event{
		Type:      EventTaskFailed,
		TaskID:    task.ID,
		Error:     err,
		Timestamp: time.Now(),
	})
	debugLog("task %s failed: %v", task.ID, err)
	o.journalRunFinish(runID, state.RunFailed, err.Error())
}

// reportOutcomes feeds execution results back into steering so future
// recommendations reflect observed agent performance.
func (o *Orchestrator) reportOutcomes(outcomes []agentOutcome) {
	for _, out := range outcomes {
		o.steering.RecordOutcome(out.agent, out.success, out.duration)
	}
}

func (o *Orchestrator) journalRunStart(task *models.Task, plan *planner.Plan) string {
	if o.journal == nil {
		return ""
	}
	runID := ids.New("run")
	err := o.journal.CreateRun(&state.RunRecord{
		ID:         runID,
		TaskID:     task.ID,
		Prompt:     task.Prompt,
		Complexity: string(plan.Complexity),
		Status:     state.RunRunning,
		StartedAt:  time.Now(),
	})
	if err != nil {
		debugLog("journal run start: %v", err)
		return ""
	}
	return runID
}

func (o *Orchestrator) journalRunFinish(runID string, status state.RunStatus, errMsg string) {
	if o.journal == nil || runID == "" {
		return
	}
	if err := o.journal.FinishRun(runID, status, errMsg); err != nil {
		debugLog("journal run finish: %v", err)
	}
}

func (o *Orchestrator) journalStepStart(runID string, step *models.ExecutionStep) {
	if o.journal == nil || runID == "" {
		return
	}
	agent, _ := step.Metadata["agent"].(string)
	now := time.Now()
	err := o.journal.CreateStep(&state.StepRecord{
		ID:          step.ID,
		RunID:       runID,
		Kind:        string(step.Kind),
		Description: step.Description,
		Agent:       agent,
		Status:      string(step.Status),
		StartedAt:   &now,
	})
	if err != nil {
		debugLog("journal step start: %v", err)
	}
}

func (o *Orchestrator) journalToolCall(runID, tool string, startedAt time.Time, execErr error) {
	if o.journal == nil || runID == "" {
		return
	}
	now := time.Now()
	status := "completed"
	errMsg := ""
	if execErr != nil {
		status = "failed"
		errMsg = execErr.Error()
	}
	err := o.journal.RecordToolCall(&state.ToolCallRecord{
		ID:          ids.New("toolcall"),
		RunID:       runID,
		Tool:        tool,
		Status:      status,
		Error:       errMsg,
		StartedAt:   startedAt,
		CompletedAt: &now,
	})
	if err != nil {
		debugLog("journal tool call: %v", err)
	}
}

func (o *Orchestrator) journalStepFinish(runID string, step *models.ExecutionStep, errMsg string) {
	if o.journal == nil || runID == "" {
		return
	}
	if err := o.journal.FinishStep(step.ID, string(step.Status), errMsg); err != nil {
		debugLog("journal step finish: %v", err)
	}
}
