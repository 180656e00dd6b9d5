package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tandem-cli/tandem/internal/state"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent runs from the journal",
	RunE:  listRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "Number of runs to show")
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := cfg.Journal.Path
	if path == "" {
		path = state.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No runs recorded yet. Run 'tandem run <prompt>' to start.")
		return nil
	}

	journal, err := state.Open(path)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer journal.Close()

	if err := journal.Migrate(); err != nil {
		return fmt.Errorf("migrating journal: %w", err)
	}

	runs, err := journal.ListRecentRuns(runsLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	for _, run := range runs {
		status := color.GreenString(string(run.Status))
		switch run.Status {
		case state.RunFailed:
			status = color.RedString(string(run.Status))
		case state.RunRunning:
			status = color.YellowString(string(run.Status))
		}
		fmt.Printf("%s  %s  %s  [%s]\n", run.StartedAt.Local().Format(time.DateTime),
			run.ID, status, run.Complexity)
		fmt.Printf("    %.100s\n", run.Prompt)
		if run.Error != "" {
			fmt.Printf("    %s\n", color.RedString(run.Error))
		}

		steps, err := journal.StepsForRun(run.ID)
		if err != nil {
			continue
		}
		for _, step := range steps {
			marker := "✓"
			if step.Status == "failed" {
				marker = color.RedString("✗")
			}
			fmt.Printf("    %s [%s] %s\n", marker, step.Kind, step.Description)
		}
	}
	return nil
}
