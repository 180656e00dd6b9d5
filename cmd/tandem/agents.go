package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tandem-cli/tandem/internal/config"
	"github.com/tandem-cli/tandem/internal/llm"
	"github.com/tandem-cli/tandem/internal/subagent"
	"github.com/tandem-cli/tandem/pkg/models"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List available sub-agents",
	Long: `List the sub-agents the engine would register: the built-in
defaults plus any definitions from the configured agents file.`,
	RunE: listAgents,
}

// silentConversation satisfies the LLM interface for listing purposes only.
type silentConversation struct{}

func (silentConversation) ProcessConversation(_ context.Context, _ []llm.Message) (string, error) {
	return "", nil
}

func listAgents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	color.Cyan("Built-in agents:")
	for _, agent := range subagent.Defaults(silentConversation{}) {
		printAgent(agent.Definition())
	}

	if cfg.Agents.DefinitionsFile == "" {
		return nil
	}
	defs, err := config.LoadAgentDefinitions(cfg.Agents.DefinitionsFile)
	if err != nil {
		return fmt.Errorf("loading agent definitions: %w", err)
	}
	fmt.Println()
	color.Cyan("Agents from %s:", cfg.Agents.DefinitionsFile)
	for _, def := range defs {
		printAgent(def)
	}
	return nil
}

func printAgent(def models.SubAgentDefinition) {
	fmt.Printf("  %s  priority=%d  max=%d\n    capabilities: %s\n",
		color.GreenString(def.Name), def.Priority, def.MaxConcurrentTasks,
		strings.Join(def.Capabilities, ", "))
	if def.Specialization != "" {
		fmt.Printf("    %s\n", def.Specialization)
	}
}
