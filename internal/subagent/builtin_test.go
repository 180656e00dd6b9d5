package subagent

import (
	"context"
	"strings"
	"testing"

	"github.com/tandem-cli/tandem/internal/llm"
	"github.com/tandem-cli/tandem/pkg/models"
)

// echoConversation returns the last user message, prefixed.
type echoConversation struct{}

func (echoConversation) ProcessConversation(_ context.Context, messages []llm.Message) (string, error) {
	return "echo: " + messages[len(messages)-1].Content, nil
}

func TestPromptAgentLifecycle(t *testing.T) {
	agent := NewPromptAgent(models.SubAgentDefinition{
		Name:               "analysis",
		MaxConcurrentTasks: 1,
	}, "Analyze: %s", echoConversation{}, true)

	ctx := context.Background()
	task := &models.Task{ID: "t", Prompt: "hello"}

	// Execute before Initialize must fail.
	if _, err := agent.Execute(ctx, task); err == nil {
		t.Fatal("expected error before initialization")
	}

	if err := agent.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err := agent.Initialize(ctx); err == nil {
		t.Error("expected second Initialize to fail")
	}

	out, err := agent.Execute(ctx, task)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Analyze: hello") {
		t.Errorf("expected templated prompt in output, got %q", out)
	}

	if err := agent.Destroy(ctx); err != nil {
		t.Fatal(err)
	}
	if err := agent.Destroy(ctx); err == nil {
		t.Error("expected second Destroy to fail")
	}
	if _, err := agent.Execute(ctx, task); err == nil {
		t.Error("expected error after destroy")
	}
}

func TestPromptAgentCapabilityMatching(t *testing.T) {
	agent := NewPromptAgent(models.SubAgentDefinition{
		Name:               "verifier",
		Capabilities:       []string{"verify", "validate"},
		MaxConcurrentTasks: 1,
	}, "%s", echoConversation{}, false)

	if !agent.CanHandle(&models.Task{Prompt: "please verify this output"}) {
		t.Error("expected capability keyword to match")
	}
	if agent.CanHandle(&models.Task{Prompt: "write a poem"}) {
		t.Error("expected non-matching prompt to be rejected")
	}
}

func TestDefaultsRegister(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	for _, agent := range Defaults(echoConversation{}) {
		if err := r.Register(ctx, agent); err != nil {
			t.Fatalf("register default %q: %v", agent.Definition().Name, err)
		}
	}

	names := map[string]bool{}
	for _, info := range r.List() {
		names[info.Definition.Name] = true
	}
	for _, want := range []string{"analysis", "generation", "batch", "quality"} {
		if !names[want] {
			t.Errorf("expected default agent %q registered", want)
		}
	}
}
