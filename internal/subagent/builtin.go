package subagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tandem-cli/tandem/internal/llm"
	"github.com/tandem-cli/tandem/pkg/models"
)

// PromptAgent is a sub-agent that runs a specialization-specific prompt
// template through the conversation collaborator. All default agents are
// PromptAgents; callers with custom needs implement SubAgent directly.
type PromptAgent struct {
	def      models.SubAgentDefinition
	template string
	conv     llm.Conversation
	// matchAll makes CanHandle accept every task. When false, the agent
	// only handles tasks whose prompt mentions one of its capabilities.
	matchAll    bool
	initialized bool
	destroyed   bool
}

// NewPromptAgent creates a PromptAgent. The template receives the task
// prompt via %s.
func NewPromptAgent(def models.SubAgentDefinition, template string, conv llm.Conversation, matchAll bool) *PromptAgent {
	return &PromptAgent{def: def, template: template, conv: conv, matchAll: matchAll}
}

// Definition returns the agent's static descriptor.
func (a *PromptAgent) Definition() models.SubAgentDefinition { return a.def }

// CanHandle accepts every task for matchAll agents, otherwise requires a
// capability keyword in the task prompt.
func (a *PromptAgent) CanHandle(task *models.Task) bool {
	if a.matchAll {
		return true
	}
	lower := strings.ToLower(task.Prompt)
	for _, capability := range a.def.Capabilities {
		if strings.Contains(lower, strings.ToLower(capability)) {
			return true
		}
	}
	return false
}

// Execute runs the task prompt through the agent's template and the
// conversation collaborator.
func (a *PromptAgent) Execute(ctx context.Context, task *models.Task) (string, error) {
	if !a.initialized || a.destroyed {
		return "", fmt.Errorf("agent %q is not active", a.def.Name)
	}

	messages := []llm.Message{
		{Role: llm.RoleUser, Content: fmt.Sprintf(a.template, task.Prompt)},
	}
	return a.conv.ProcessConversation(ctx, messages)
}

// Initialize marks the agent ready. Invoked exactly once by the registry.
func (a *PromptAgent) Initialize(_ context.Context) error {
	if a.initialized {
		return fmt.Errorf("agent %q initialized twice", a.def.Name)
	}
	a.initialized = true
	return nil
}

// Destroy marks the agent inactive. Invoked exactly once by the registry.
func (a *PromptAgent) Destroy(_ context.Context) error {
	if a.destroyed {
		return fmt.Errorf("agent %q destroyed twice", a.def.Name)
	}
	a.destroyed = true
	return nil
}

// Defaults returns the built-in agent set registered by the orchestrator
// on initialization.
func Defaults(conv llm.Conversation) []SubAgent {
	return []SubAgent{
		NewPromptAgent(models.SubAgentDefinition{
			Name:               "analysis",
			Capabilities:       []string{"analyze", "analysis", "investigate", "examine", "research"},
			Specialization:     "breaking requests down and surfacing structure",
			Priority:           5,
			MaxConcurrentTasks: 3,
		}, "You are an analysis agent. Break the following request into its key parts, surface assumptions, and summarize what a complete answer needs to cover.\n\n%s", conv, true),

		NewPromptAgent(models.SubAgentDefinition{
			Name:               "generation",
			Capabilities:       []string{"generate", "create", "write", "draft", "compose"},
			Specialization:     "producing new content from a brief",
			Priority:           4,
			MaxConcurrentTasks: 3,
		}, "You are a generation agent. Produce the content requested below, following any constraints it states.\n\n%s", conv, true),

		NewPromptAgent(models.SubAgentDefinition{
			Name:               "batch",
			Capabilities:       []string{"batch", "bulk", "multiple", "every", "all files"},
			Specialization:     "repetitive operations over many items",
			Priority:           3,
			MaxConcurrentTasks: 5,
		}, "You are a batch-operations agent. Identify the repeated operation in the request below and describe its application to each item.\n\n%s", conv, true),

		NewPromptAgent(models.SubAgentDefinition{
			Name:               "quality",
			Capabilities:       []string{"verify", "validate", "check", "review", "quality"},
			Specialization:     "verifying combined output against the original request",
			Priority:           2,
			MaxConcurrentTasks: 2,
		}, "You are a quality-check agent. Review the work described below for gaps, inconsistencies, and unmet requirements, and report what you find.\n\n%s", conv, true),
	}
}
