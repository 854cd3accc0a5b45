// Package registry provides read-only capability lookup over a pool of agents.
package registry

import (
	"strings"

	"github.com/kestrelabs/agentmesh/pkg/models"
)

// MatchMode selects how capability tags are matched against agent tools.
type MatchMode string

const (
	// MatchSubstring matches a capability tag via case-insensitive substring
	// search over tool descriptions. The default. Incidental word overlap
	// produces false positives.
	MatchSubstring MatchMode = "substring"
	// MatchTags matches capability tags by set intersection against explicit
	// tool tags. Stricter; tools without tags never match.
	MatchTags MatchMode = "tags"
)

// Valid returns true if the mode is a known value.
func (m MatchMode) Valid() bool {
	return m == MatchSubstring || m == MatchTags
}

// Registry is an arena of agents indexed by ID with capability lookup.
// It is immutable after construction; agent relationships are ID lists,
// never object references.
type Registry struct {
	agents map[string]*models.Agent
	// order preserves the registration order for deterministic iteration.
	order []string
	mode  MatchMode
}

// New creates a registry over the given agents. Duplicate IDs keep the
// first registration.
func New(agents []*models.Agent, mode MatchMode) *Registry {
	if !mode.Valid() {
		mode = MatchSubstring
	}

	r := &Registry{
		agents: make(map[string]*models.Agent, len(agents)),
		mode:   mode,
	}
	for _, a := range agents {
		if _, exists := r.agents[a.ID]; exists {
			continue
		}
		r.agents[a.ID] = a
		r.order = append(r.order, a.ID)
	}
	return r
}

// Get returns the agent with the given ID, or nil if not registered.
func (r *Registry) Get(id string) *models.Agent {
	return r.agents[id]
}

// Size returns the number of registered agents.
func (r *Registry) Size() int {
	return len(r.agents)
}

// Workers returns all worker-role agents in registration order.
// Coordinators and managers are never auto-assigned execution work.
func (r *Registry) Workers() []*models.Agent {
	var workers []*models.Agent
	for _, id := range r.order {
		if a := r.agents[id]; a.Role == models.RoleWorker {
			workers = append(workers, a)
		}
	}
	return workers
}

// MatchingTools returns the agent's tools that satisfy at least one of the
// required capabilities.
func (r *Registry) MatchingTools(agent *models.Agent, capabilities []string) []models.Tool {
	var tools []models.Tool
	for _, tool := range agent.Tools {
		for _, cap := range capabilities {
			if r.toolMatches(tool, cap) {
				tools = append(tools, tool)
				break
			}
		}
	}
	return tools
}

// CanPerform returns true if every required capability is satisfied by at
// least one of the agent's tools. An empty capability set is satisfied by
// any agent.
func (r *Registry) CanPerform(agent *models.Agent, capabilities []string) bool {
	for _, cap := range capabilities {
		matched := false
		for _, tool := range agent.Tools {
			if r.toolMatches(tool, cap) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (r *Registry) toolMatches(tool models.Tool, capability string) bool {
	switch r.mode {
	case MatchTags:
		for _, tag := range tool.Tags {
			if strings.EqualFold(tag, capability) {
				return true
			}
		}
		return false
	default:
		return strings.Contains(strings.ToLower(tool.Description), strings.ToLower(capability))
	}
}
