package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kestrelabs/agentmesh/internal/config"
	"github.com/kestrelabs/agentmesh/internal/decompose"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

var planDescription string

var planCmd = &cobra.Command{
	Use:   "plan <task>",
	Short: "Decompose a task without executing it",
	Long: `Decompose a task into subtasks and print the plan as YAML,
including the dependency structure and a duration estimate based on the
critical path. Nothing is executed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: planTask,
}

func init() {
	planCmd.Flags().StringVarP(&planDescription, "description", "d", "", "Detailed task description (defaults to the title)")
}

// planOutput is the YAML shape of a printed plan.
type planOutput struct {
	Task     string        `yaml:"task"`
	Subtasks []planSubtask `yaml:"subtasks"`
	Estimate planEstimate  `yaml:"estimate"`
}

type planSubtask struct {
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Capabilities []string `yaml:"capabilities,omitempty"`
	DependsOn    []string `yaml:"depends_on,omitempty"`
	Complexity   int      `yaml:"complexity"`
}

type planEstimate struct {
	TotalComplexity int    `yaml:"total_complexity"`
	Parallelizable  int    `yaml:"parallelizable"`
	Sequential      int    `yaml:"sequential"`
	CriticalPath    int    `yaml:"critical_path"`
	Duration        string `yaml:"duration"`
}

func planTask(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager, _, err := config.LoadAgents(flagAgentsPath)
	if err != nil {
		return err
	}

	invoker, err := buildInvoker(cfg)
	if err != nil {
		return err
	}

	now := time.Now()
	task := &models.Task{
		ID:          uuid.New().String(),
		Title:       strings.Join(args, " "),
		Description: planDescription,
		Priority:    models.PriorityMedium,
		Status:      models.TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Description == "" {
		task.Description = task.Title
	}

	subtasks, err := decompose.New(invoker).Decompose(cmd.Context(), task, manager)
	if err != nil {
		return err
	}
	est := decompose.EstimateResources(subtasks, cfg.Estimate.UnitDuration)

	// Dependencies print as titles, which read better than UUIDs.
	titles := make(map[string]string, len(subtasks))
	for _, st := range subtasks {
		titles[st.ID] = st.Title
	}

	out := planOutput{
		Task: task.Title,
		Estimate: planEstimate{
			TotalComplexity: est.TotalComplexity,
			Parallelizable:  est.Parallelizable,
			Sequential:      est.Sequential,
			CriticalPath:    est.CriticalPathLength,
			Duration:        est.Duration.String(),
		},
	}
	for _, st := range subtasks {
		deps := make([]string, 0, len(st.DependsOn))
		for _, id := range st.DependsOn {
			deps = append(deps, titles[id])
		}
		out.Subtasks = append(out.Subtasks, planSubtask{
			Title:        st.Title,
			Description:  st.Description,
			Capabilities: st.RequiredCapabilities,
			DependsOn:    deps,
			Complexity:   st.Complexity,
		})
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("rendering plan: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
