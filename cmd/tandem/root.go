package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tandem",
	Short: "Assistant task orchestration engine",
	Long: `Tandem plans, steers, and executes assistant tasks.

A task is classified by complexity, expanded into an execution plan, and
run step by step: LLM calls, delegations to capability-matched sub-agents,
and tool invocations through a bounded scheduler. Steering analysis runs
alongside each task and feeds back observed agent performance.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
