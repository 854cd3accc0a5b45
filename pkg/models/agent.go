package models

// Role represents the function an agent serves in an orchestration run.
type Role string

const (
	// RoleWorker executes subtasks.
	RoleWorker Role = "worker"
	// RoleCoordinator coordinates groups of workers but does not execute.
	RoleCoordinator Role = "coordinator"
	// RoleManager decomposes tasks and validates results.
	RoleManager Role = "manager"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleWorker, RoleCoordinator, RoleManager:
		return true
	default:
		return false
	}
}

// TextGenerationTool is the tool name that marks an agent as LLM-invocable.
const TextGenerationTool = "text-generation"

// Capabilities holds the capability flags of an agent.
type Capabilities struct {
	// CanDelegateWork indicates the agent may hand work to other agents.
	CanDelegateWork bool `json:"can_delegate_work"`
	// CanCreateSubAgents indicates the agent may spawn sub-agents.
	CanCreateSubAgents bool `json:"can_create_sub_agents"`
	// CanAccessOtherAgents indicates the agent may read other agents' state.
	CanAccessOtherAgents bool `json:"can_access_other_agents"`
	// CanUseMemory indicates the agent may use the shared memory store.
	CanUseMemory bool `json:"can_use_memory"`
}

// Parameter describes one input accepted by a tool.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Tool is a named capability an agent can invoke.
type Tool struct {
	// ID is the unique identifier for this tool.
	ID string `json:"id"`
	// Name is the tool name, e.g. "text-generation".
	Name string `json:"name"`
	// Description is free text used for capability matching.
	Description string `json:"description,omitempty"`
	// Tags are explicit capability tags; empty unless tag matching is enabled.
	Tags []string `json:"tags,omitempty"`
	// Parameters describes the tool's inputs.
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Agent represents an LLM-backed agent. The orchestration core treats
// agents as immutable inputs for the duration of one run; availability is
// tracked externally by the resource allocator, never on the Agent itself.
// Relationships are stored as ID lists rather than object references so
// manager/worker cycles cannot form in memory.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Name is the display name of the agent.
	Name string `json:"name"`
	// Description summarizes what the agent does.
	Description string `json:"description,omitempty"`
	// Role is the agent's function: worker, coordinator, or manager.
	Role Role `json:"role"`
	// Tools is the ordered list of tools the agent can invoke.
	Tools []Tool `json:"tools"`
	// Capabilities holds the agent's capability flags.
	Capabilities Capabilities `json:"capabilities"`
	// SubAgents lists IDs of agents managed by this agent.
	SubAgents []string `json:"sub_agents,omitempty"`
	// ParentID is the ID of the managing agent, if any.
	ParentID string `json:"parent_id,omitempty"`
	// Model is the LLM model identifier used for text generation.
	Model string `json:"model"`
	// SystemPrompt is prepended to every LLM invocation.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// Temperature is the sampling temperature for text generation.
	Temperature float64 `json:"temperature"`
	// MaxTokens caps the response length for text generation.
	MaxTokens int `json:"max_tokens"`
}

// TextGeneration returns the agent's text-generation tool, or nil if the
// agent cannot be invoked as an LLM.
func (a *Agent) TextGeneration() *Tool {
	for i := range a.Tools {
		if a.Tools[i].Name == TextGenerationTool {
			return &a.Tools[i]
		}
	}
	return nil
}

// FindTool returns the tool with the given ID, or nil if absent.
func (a *Agent) FindTool(toolID string) *Tool {
	for i := range a.Tools {
		if a.Tools[i].ID == toolID {
			return &a.Tools[i]
		}
	}
	return nil
}
