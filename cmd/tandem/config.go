package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tandem-cli/tandem/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	RunE:  showConfig,
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	color.Cyan("Config files:")
	fmt.Printf("  user:    %s\n", config.GetUserConfigPath())
	project := config.GetProjectConfigPath()
	if project == "" {
		project = "(none)"
	}
	fmt.Printf("  project: %s\n", project)

	fmt.Println()
	color.Cyan("Anthropic:")
	key, _ := config.GetAPIKey(cfg)
	fmt.Printf("  api_key:     %s\n", config.MaskAPIKey(key))
	fmt.Printf("  model:       %s\n", cfg.Anthropic.Model)
	fmt.Printf("  max_tokens:  %d\n", cfg.Anthropic.MaxTokens)
	fmt.Printf("  use_bedrock: %t\n", cfg.Anthropic.UseBedrock)

	fmt.Println()
	color.Cyan("Engine:")
	fmt.Printf("  planner.max_steps:            %d\n", cfg.Planner.MaxSteps)
	fmt.Printf("  planner.max_subagent_steps:   %d\n", cfg.Planner.MaxSubAgentSteps)
	fmt.Printf("  steering.enabled:             %t\n", cfg.Steering.Enabled)
	fmt.Printf("  steering.delegation_threshold: %.2f\n", cfg.Steering.DelegationThreshold)
	fmt.Printf("  tools.max_concurrent:         %d\n", cfg.Tools.MaxConcurrent)
	fmt.Printf("  tools.default_timeout:        %s\n", cfg.Tools.DefaultTimeout)
	fmt.Printf("  journal.enabled:              %t\n", cfg.Journal.Enabled)

	if len(cfg.Providers) > 0 {
		fmt.Println()
		color.Cyan("Providers:")
		for _, p := range cfg.Providers {
			target := p.Command
			if p.Transport == "websocket" {
				target = p.URL
			}
			fmt.Printf("  %s (%s) -> %s\n", p.Name, p.Transport, target)
		}
	}
	return nil
}
