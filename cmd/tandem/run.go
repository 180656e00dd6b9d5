package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tandem-cli/tandem/internal/config"
	"github.com/tandem-cli/tandem/internal/orchestrator"
	"github.com/tandem-cli/tandem/pkg/models"
)

var (
	runConfigPath  string
	runNoSteering  bool
	runMaxAgents   int
	runMaxTools    int
	runDebugLog    string
	runShowPlan    bool
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Execute a task through the engine",
	Long: `Execute one task: classify its complexity, expand it into a plan,
and run the steps in order. Sub-agent and tool step failures are recorded
and skipped; an LLM step failure aborts the task.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Config file path (defaults to XDG lookup)")
	runCmd.Flags().BoolVar(&runNoSteering, "no-steering", false, "Skip the advisory steering pass")
	runCmd.Flags().IntVar(&runMaxAgents, "max-subagents", 0, "Cap sub-agent steps per plan")
	runCmd.Flags().IntVar(&runMaxTools, "max-tools", 0, "Cap tool steps per plan")
	runCmd.Flags().StringVar(&runDebugLog, "debug-log", "", "Write a debug log to this path")
	runCmd.Flags().BoolVar(&runShowPlan, "show-plan", false, "Print the executed plan after the result")
}

func runTask(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runNoSteering {
		cfg.Steering.Enabled = false
	}
	if runMaxAgents > 0 {
		cfg.Planner.MaxSubAgentSteps = runMaxAgents
	}
	if runMaxTools > 0 {
		cfg.Planner.MaxSteps = runMaxTools
	}

	engine, err := buildEngine(cfg, runDebugLog)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Initialize(ctx); err != nil {
		engine.Destroy(context.Background())
		return fmt.Errorf("initializing engine: %w", err)
	}

	if path := watchableConfigPath(); path != "" {
		if watcher, werr := watchTunables(path, engine); werr == nil {
			defer watcher.Close()
		}
	}

	result, err := executeAndDrain(ctx, engine, prompt)
	if err != nil {
		return fmt.Errorf("task failed: %w", err)
	}

	fmt.Println()
	fmt.Println(result.Content)

	if runShowPlan {
		fmt.Println()
		color.Cyan("Execution plan (%v):", result.Metadata["complexity"])
		for _, step := range result.ExecutionPlan {
			marker := color.GreenString("✓")
			if step.Status == models.StepStatusFailed {
				marker = color.RedString("✗")
			}
			fmt.Printf("  %s [%s] %s\n", marker, step.Kind, step.Description)
			if step.Error != "" {
				fmt.Printf("      %s\n", color.YellowString(step.Error))
			}
		}
	}
	return nil
}

// executeAndDrain runs one task and waits for every emitted event to be
// printed. The engine is destroyed before the wait: the events channel only
// closes in Destroy, so waiting first would never return.
func executeAndDrain(ctx context.Context, engine *orchestrator.Orchestrator, prompt string) (*models.TaskResult, error) {
	done := make(chan struct{})
	go printEvents(engine, done)

	result, err := engine.ExecuteTask(ctx, &models.Task{Prompt: prompt})
	engine.Destroy(context.Background())
	<-done
	return result, err
}

// watchTunables live-reloads runtime knobs from the config file while a
// task runs.
func watchTunables(path string, engine *orchestrator.Orchestrator) (*config.Watcher, error) {
	return config.Watch(path, func(fresh *config.Config) {
		steeringEnabled := fresh.Steering.Enabled
		if runNoSteering {
			steeringEnabled = false
		}
		engine.ApplyTunables(orchestrator.Tunables{
			SteeringEnabled:  steeringEnabled,
			MaxSubAgentTasks: fresh.Planner.MaxSubAgentSteps,
			MaxToolCalls:     fresh.Planner.MaxSteps,
		})
	})
}

// watchableConfigPath returns the config file to watch for live reloads, or
// empty when none exists on disk.
func watchableConfigPath() string {
	if runConfigPath != "" {
		return runConfigPath
	}
	path := config.GetUserConfigPath()
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// printEvents streams engine events to the terminal until the channel
// closes at Destroy.
func printEvents(engine *orchestrator.Orchestrator, done chan<- struct{}) {
	defer close(done)
	for event := range engine.Events() {
		switch event.Type {
		case orchestrator.EventTaskStarted:
			color.Cyan("→ task started: %.80s", event.Message)
		case orchestrator.EventStepStarted:
			fmt.Printf("  … %s\n", event.Message)
		case orchestrator.EventStepFailed:
			color.Yellow("  ✗ %s: %v", event.Message, event.Error)
		case orchestrator.EventTaskCompleted:
			color.Green("→ task completed (%s)", event.Message)
		case orchestrator.EventTaskFailed:
			color.Red("→ task failed: %v", event.Error)
		}
	}
}

func loadConfig() (*config.Config, error) {
	if runConfigPath != "" {
		cfg, err := config.LoadFromPath(runConfigPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
