package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kestrelabs/agentmesh/internal/config"
	"github.com/kestrelabs/agentmesh/internal/state"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

var (
	historyLimit int
	historyPath  string
)

var historyCmd = &cobra.Command{
	Use:   "history [task-id]",
	Short: "Show task history",
	Long: `Show previously run tasks, newest first. With a task ID, show the
subtasks of that task including their outputs and failures.`,
	Args: cobra.MaximumNArgs(1),
	RunE: showHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum tasks to list")
	historyCmd.Flags().StringVar(&historyPath, "history", "", "Task history database (overrides config)")
}

func showHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := historyPath
	if path == "" {
		path = cfg.History.Path
	}
	if path == "" {
		path = config.DefaultHistoryPath()
	}

	db, err := state.Open(path)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating history: %w", err)
	}

	if len(args) == 1 {
		return showSubtasks(db, args[0])
	}
	return listTasks(db)
}

func listTasks(db *state.DB) error {
	tasks, err := db.ListTasks(historyLimit)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No task history.")
		return nil
	}

	for _, t := range tasks {
		fmt.Printf("%s  %s  %s  %s\n",
			t.CreatedAt.Format("2006-01-02 15:04"),
			statusIcon(t.Status),
			t.ID,
			t.Title)
	}
	return nil
}

func showSubtasks(db *state.DB, taskID string) error {
	subtasks, err := db.ListSubtasks(taskID)
	if err != nil {
		return err
	}
	if len(subtasks) == 0 {
		fmt.Printf("No subtasks recorded for task %s.\n", taskID)
		return nil
	}

	for _, s := range subtasks {
		fmt.Printf("%s  %s", statusIcon(s.Status), s.Title)
		if s.AgentID != "" {
			fmt.Printf("  (%s, %s)", s.AgentID, s.Duration)
		}
		fmt.Println()
		if s.Output != "" {
			fmt.Printf("    %s\n", s.Output)
		}
		if s.ErrorMessage != "" {
			fmt.Printf("    %s %s: %s\n", color.RedString("error"), s.ErrorCode, s.ErrorMessage)
		}
	}
	return nil
}

func statusIcon(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusCompleted:
		return color.GreenString("✓")
	case models.TaskStatusFailed:
		return color.RedString("✗")
	default:
		return color.YellowString("…")
	}
}
