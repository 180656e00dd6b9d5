package main

import (
	"context"
	"fmt"
	"log"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/tandem-cli/tandem/internal/config"
	"github.com/tandem-cli/tandem/internal/llm"
	"github.com/tandem-cli/tandem/internal/orchestrator"
	"github.com/tandem-cli/tandem/internal/session"
	"github.com/tandem-cli/tandem/internal/state"
	"github.com/tandem-cli/tandem/internal/subagent"
	"github.com/tandem-cli/tandem/internal/toolexec"
	"github.com/tandem-cli/tandem/pkg/models"
)

// buildEngine assembles an orchestrator from file config: LLM backend,
// tool catalog with builtins, run journal, session providers, and any
// user-defined sub-agents.
func buildEngine(cfg *config.Config, debugLog string) (*orchestrator.Orchestrator, error) {
	apiKey, err := config.GetAPIKey(cfg)
	if err != nil && !cfg.Anthropic.UseBedrock {
		return nil, err
	}

	conversation, err := llm.NewAnthropicClient(llm.AnthropicConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	catalog := toolexec.NewCatalog()
	registerBuiltinTools(catalog)
	scheduler := toolexec.NewScheduler(catalog, toolexec.Config{
		MaxConcurrentTools: cfg.Tools.MaxConcurrent,
		DefaultTimeout:     cfg.Tools.DefaultTimeout,
	})

	var journal *state.Journal
	if cfg.Journal.Enabled {
		path := cfg.Journal.Path
		if path == "" {
			path = state.DefaultPath()
		}
		journal, err = state.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening run journal: %w", err)
		}
		if cfg.Journal.Retention > 0 {
			if err := journal.Migrate(); err != nil {
				return nil, fmt.Errorf("migrating journal: %w", err)
			}
			if _, err := journal.PurgeOldRuns(cfg.Journal.Retention); err != nil {
				log.Printf("[journal] purging old runs: %v", err)
			}
		}
	}

	var sessions *session.Manager
	if len(cfg.Providers) > 0 {
		sessions = session.NewManager()
		for _, p := range cfg.Providers {
			err := sessions.AddProvider(session.ProviderConfig{
				Name:      p.Name,
				Transport: p.Transport,
				Command:   p.Command,
				Args:      p.Args,
				URL:       p.URL,
				Timeout:   p.Timeout,
			})
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", p.Name, err)
			}
		}
	}

	registry := subagent.NewRegistry()
	if cfg.Agents.DefinitionsFile != "" {
		defs, err := config.LoadAgentDefinitions(cfg.Agents.DefinitionsFile)
		if err != nil {
			return nil, fmt.Errorf("loading agent definitions: %w", err)
		}
		for _, def := range defs {
			agent := subagent.NewPromptAgent(def, userAgentTemplate(def), conversation, false)
			if err := registry.Register(context.Background(), agent); err != nil {
				return nil, fmt.Errorf("registering agent %s: %w", def.Name, err)
			}
		}
	}

	return orchestrator.New(orchestrator.Config{
		Conversation:     conversation,
		Registry:         registry,
		Scheduler:        scheduler,
		Sessions:         sessions,
		Journal:          journal,
		MaxSubAgentTasks:    cfg.Planner.MaxSubAgentSteps,
		MaxToolCalls:        cfg.Planner.MaxSteps,
		DisableSteering:     !cfg.Steering.Enabled,
		DelegationThreshold: cfg.Steering.DelegationThreshold,
		DebugLogPath:        debugLog,
	})
}

// userAgentTemplate builds the prompt template for a user-defined agent.
func userAgentTemplate(def models.SubAgentDefinition) string {
	specialization := def.Specialization
	if specialization == "" {
		specialization = "general assistance"
	}
	return fmt.Sprintf("You are the %s agent, specialized in %s. Handle this task:\n\n%%s",
		def.Name, specialization)
}
