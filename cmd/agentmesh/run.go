package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kestrelabs/agentmesh/internal/config"
	"github.com/kestrelabs/agentmesh/internal/invoke"
	"github.com/kestrelabs/agentmesh/internal/llm"
	"github.com/kestrelabs/agentmesh/internal/notify"
	"github.com/kestrelabs/agentmesh/internal/orchestrator"
	"github.com/kestrelabs/agentmesh/internal/registry"
	"github.com/kestrelabs/agentmesh/internal/state"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

var (
	runDescription string
	runPriority    string
	runHistoryPath string
	runVerbose     bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task across the agent pool",
	Long: `Run a task end to end: the manager agent decomposes it into
subtasks, independent subtasks execute in parallel on available workers,
and the manager reviews each output before the results are aggregated.

Drop a file named "stop" into .agentmesh/signals/ to abort a running task.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVarP(&runDescription, "description", "d", "", "Detailed task description (defaults to the title)")
	runCmd.Flags().StringVarP(&runPriority, "priority", "p", "medium", "Task priority: low, medium, high, or critical")
	runCmd.Flags().StringVar(&runHistoryPath, "history", "", "Task history database (overrides config)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print subtask progress updates")
}

func runTask(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	priority := models.Priority(runPriority)
	if !priority.Valid() {
		return fmt.Errorf("invalid priority %q", runPriority)
	}

	manager, workers, err := config.LoadAgents(flagAgentsPath)
	if err != nil {
		return err
	}

	reg, err := buildRegistry(cfg, manager, workers)
	if err != nil {
		return err
	}

	invoker, err := buildInvoker(cfg)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	opts := orchestrator.Options{
		Manager:        manager,
		PollInterval:   cfg.Scheduling.PollInterval,
		SubtaskTimeout: cfg.Scheduling.SubtaskTimeout,
		TaskTimeout:    cfg.Scheduling.TaskTimeout,
		Logger:         orchestrator.NewDebugLoggerForDir(cwd),
	}
	defer opts.Logger.Close()

	if runVerbose {
		opts.Progress = func(subtaskID string, progress float64) {
			fmt.Printf("  %s %s: %.0f%%\n", color.CyanString("→"), subtaskID, progress*100)
		}
	}

	historyPath := runHistoryPath
	if historyPath == "" {
		historyPath = cfg.History.Path
	}
	if historyPath != "" {
		db, err := state.Open(historyPath)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrating history: %w", err)
		}
		opts.Recorder = db
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := notify.NewStopWatcher(cwd)
	if err != nil {
		return fmt.Errorf("starting stop watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Clear(); err != nil {
		return fmt.Errorf("clearing stale stop signal: %w", err)
	}
	ctx, cancel := watcher.Bind(ctx, 200*time.Millisecond)
	defer cancel()

	now := time.Now()
	task := &models.Task{
		ID:          uuid.New().String(),
		Title:       strings.Join(args, " "),
		Description: runDescription,
		Priority:    priority,
		Status:      models.TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Description == "" {
		task.Description = task.Title
	}

	fmt.Printf("%s %s\n", color.New(color.Bold).Sprint("Task:"), task.Title)
	orch := orchestrator.New(reg, invoker, opts)
	result := orch.ProcessTask(ctx, task)
	printResult(result)

	if !result.Success {
		return fmt.Errorf("task failed: %s", result.Error.Error())
	}
	return nil
}

// buildRegistry constructs the agent registry with the configured match mode.
func buildRegistry(cfg *config.Config, manager *models.Agent, workers []*models.Agent) (*registry.Registry, error) {
	mode := registry.MatchMode(cfg.Matching.Mode)
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid matching mode %q", cfg.Matching.Mode)
	}
	agents := append([]*models.Agent{manager}, workers...)
	return registry.New(agents, mode), nil
}

// buildInvoker wires the configured LLM backend behind the tool dispatcher.
func buildInvoker(cfg *config.Config) (invoke.Invoker, error) {
	var generator llm.TextGenerator
	var err error

	switch cfg.LLM.Backend {
	case "anthropic":
		generator, err = llm.NewAnthropicClient(llm.AnthropicConfig{
			APIKey:        cfg.Anthropic.APIKey,
			Model:         cfg.Anthropic.Model,
			UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
	case "openai":
		generator, err = llm.NewChatClient(llm.ChatConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.LLM.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("configuring %s backend: %w", cfg.LLM.Backend, err)
	}

	return invoke.NewDispatcher(generator, cfg.Dispatch.SimulatedDelay), nil
}

// printResult renders the aggregate result.
func printResult(result *models.TaskResult) {
	fmt.Println()
	if result.Success {
		fmt.Printf("%s task completed\n", color.GreenString("✓"))
	} else {
		fmt.Printf("%s task failed: %s\n", color.RedString("✗"), result.Error.Error())
	}

	if outputs, ok := result.Output.([]any); ok && len(outputs) > 0 {
		fmt.Printf("\n%s\n", color.New(color.Bold).Sprint("Outputs:"))
		for i, out := range outputs {
			fmt.Printf("  %d. %v\n", i+1, out)
		}
	}

	fmt.Printf("\n%s agent time %s, wall clock %s, est. cpu %.2f, est. memory %.0f MB\n",
		color.New(color.Bold).Sprint("Metrics:"),
		result.Metrics.Duration.Round(time.Millisecond),
		result.Metrics.WallClock.Round(time.Millisecond),
		result.Metrics.ResourceUsage.CPU,
		result.Metrics.ResourceUsage.Memory)
}
