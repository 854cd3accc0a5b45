package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kestrelabs/agentmesh/pkg/models"
)

// agentFile is the on-disk shape of an agent definitions file.
type agentFile struct {
	Manager *agentSpec  `yaml:"manager"`
	Workers []agentSpec `yaml:"workers"`
}

type agentSpec struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description"`
	Model        string     `yaml:"model"`
	SystemPrompt string     `yaml:"system_prompt"`
	Temperature  float64    `yaml:"temperature"`
	MaxTokens    int        `yaml:"max_tokens"`
	Tools        []toolSpec `yaml:"tools"`
	CanDelegate  bool       `yaml:"can_delegate"`
}

type toolSpec struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
}

// LoadAgents reads an agent definitions YAML file and returns the manager
// and worker agents. An empty path returns DefaultAgents.
func LoadAgents(path string) (*models.Agent, []*models.Agent, error) {
	if path == "" {
		manager, workers := DefaultAgents()
		return manager, workers, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading agents file: %w", err)
	}

	var file agentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parsing agents file %s: %w", path, err)
	}
	if file.Manager == nil {
		return nil, nil, fmt.Errorf("agents file %s defines no manager", path)
	}
	if len(file.Workers) == 0 {
		return nil, nil, fmt.Errorf("agents file %s defines no workers", path)
	}

	manager := file.Manager.toAgent(models.RoleManager)
	workers := make([]*models.Agent, 0, len(file.Workers))
	for i := range file.Workers {
		w := file.Workers[i].toAgent(models.RoleWorker)
		w.ParentID = manager.ID
		manager.SubAgents = append(manager.SubAgents, w.ID)
		workers = append(workers, w)
	}
	return manager, workers, nil
}

func (s *agentSpec) toAgent(role models.Role) *models.Agent {
	id := s.ID
	if id == "" {
		id = uuid.New().String()
	}

	tools := make([]models.Tool, 0, len(s.Tools))
	for _, t := range s.Tools {
		toolID := t.ID
		if toolID == "" {
			toolID = uuid.New().String()
		}
		tools = append(tools, models.Tool{
			ID:          toolID,
			Name:        t.Name,
			Description: t.Description,
			Tags:        t.Tags,
		})
	}
	if len(tools) == 0 {
		tools = []models.Tool{{
			ID:          "text-gen-" + id,
			Name:        models.TextGenerationTool,
			Description: "Generates text",
		}}
	}

	return &models.Agent{
		ID:           id,
		Name:         s.Name,
		Description:  s.Description,
		Role:         role,
		Tools:        tools,
		Capabilities: models.Capabilities{CanDelegateWork: s.CanDelegate || role == models.RoleManager},
		Model:        s.Model,
		SystemPrompt: s.SystemPrompt,
		Temperature:  s.Temperature,
		MaxTokens:    s.MaxTokens,
	}
}

// DefaultAgents returns a built-in manager plus a small worker pool, used
// when no agents file is configured.
func DefaultAgents() (*models.Agent, []*models.Agent) {
	manager := &models.Agent{
		ID:           "manager",
		Name:         "Task Manager",
		Description:  "Breaks work into subtasks and reviews results",
		Role:         models.RoleManager,
		Capabilities: models.Capabilities{CanDelegateWork: true},
		Tools: []models.Tool{{
			ID:          "text-gen-manager",
			Name:        models.TextGenerationTool,
			Description: "Generates text for planning and review",
		}},
	}

	workers := []*models.Agent{
		{
			ID:          "researcher",
			Name:        "Researcher",
			Description: "Gathers and summarizes information",
			Role:        models.RoleWorker,
			ParentID:    manager.ID,
			Tools: []models.Tool{{
				ID:          "text-gen-researcher",
				Name:        models.TextGenerationTool,
				Description: "Generates text for research, analysis, and summarization",
				Tags:        []string{"research", "analysis", "summarization"},
			}},
		},
		{
			ID:          "writer",
			Name:        "Writer",
			Description: "Drafts and edits prose",
			Role:        models.RoleWorker,
			ParentID:    manager.ID,
			Tools: []models.Tool{{
				ID:          "text-gen-writer",
				Name:        models.TextGenerationTool,
				Description: "Generates text for writing, editing, and documentation",
				Tags:        []string{"writing", "editing", "documentation"},
			}},
		},
		{
			ID:          "coder",
			Name:        "Coder",
			Description: "Produces and reviews code",
			Role:        models.RoleWorker,
			ParentID:    manager.ID,
			Tools: []models.Tool{{
				ID:          "text-gen-coder",
				Name:        models.TextGenerationTool,
				Description: "Generates text for coding, debugging, and code review",
				Tags:        []string{"coding", "debugging", "review"},
			}},
		},
	}
	manager.SubAgents = []string{"researcher", "writer", "coder"}
	return manager, workers
}
