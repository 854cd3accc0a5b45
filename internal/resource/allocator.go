// Package resource tracks agent availability and grants exclusive allocations.
package resource

import (
	"sync"
	"time"

	"github.com/kestrelabs/agentmesh/internal/registry"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

// UsageEstimator predicts the resource usage of executing a subtask.
// The default is a placeholder policy keyed on complexity, not a measured
// value; callers wanting different numbers supply their own.
type UsageEstimator func(subtask *models.Subtask) models.ResourceUsage

// DefaultUsageEstimator scales CPU and memory linearly with complexity.
func DefaultUsageEstimator(subtask *models.Subtask) models.ResourceUsage {
	complexity := subtask.Complexity
	if complexity < 1 {
		complexity = 1
	}
	cpu := 0.2 * float64(complexity)
	if cpu > 1 {
		cpu = 1
	}
	return models.ResourceUsage{
		CPU:    cpu,
		Memory: 64 * float64(complexity),
	}
}

// Allocator grants exclusive agent allocations for subtask execution.
// At most one in-flight subtask per agent at any time. The availability
// map is the only shared mutable state in the orchestration core; every
// check-then-set runs under one lock so two subtasks can never race for
// the same agent.
type Allocator struct {
	mu          sync.Mutex
	registry    *registry.Registry
	available   map[string]bool
	allocations map[string]*models.ResourceAllocation
	estimate    UsageEstimator
}

// NewAllocator creates an allocator over the registry's agents, all
// initially available.
func NewAllocator(reg *registry.Registry) *Allocator {
	a := &Allocator{
		registry:    reg,
		available:   make(map[string]bool),
		allocations: make(map[string]*models.ResourceAllocation),
		estimate:    DefaultUsageEstimator,
	}
	for _, w := range reg.Workers() {
		a.available[w.ID] = true
	}
	return a
}

// SetUsageEstimator replaces the default usage estimator.
func (a *Allocator) SetUsageEstimator(fn UsageEstimator) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.estimate = fn
}

// Allocate selects an available worker agent whose tools satisfy every one
// of the subtask's required capabilities, marks it busy, and returns the
// allocation. Returns nil when no agent is currently allocatable - the
// caller treats nil as transient and either waits for a release or fails
// the run if nothing is in flight.
func (a *Allocator) Allocate(subtask *models.Subtask) *models.ResourceAllocation {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, agent := range a.registry.Workers() {
		if !a.available[agent.ID] {
			continue
		}
		if !a.registry.CanPerform(agent, subtask.RequiredCapabilities) {
			continue
		}

		tools := a.registry.MatchingTools(agent, subtask.RequiredCapabilities)
		if len(subtask.RequiredCapabilities) == 0 {
			// No declared capabilities: fall back to the agent's
			// text-generation tool so there is something to invoke.
			if tg := agent.TextGeneration(); tg != nil {
				tools = []models.Tool{*tg}
			}
		}
		if len(tools) == 0 {
			// Capabilities matched on description text but no tool is
			// actually invocable. Not allocatable.
			continue
		}

		alloc := &models.ResourceAllocation{
			SubtaskID:      subtask.ID,
			Agent:          agent,
			AgentID:        agent.ID,
			Tools:          tools,
			StartedAt:      time.Now(),
			EstimatedUsage: a.estimate(subtask),
		}
		a.available[agent.ID] = false
		a.allocations[agent.ID] = alloc
		return alloc
	}

	return nil
}

// Release restores the agent's availability. Idempotent; called exactly
// once per subtask on every exit path, success or failure.
func (a *Allocator) Release(agentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if alloc, ok := a.allocations[agentID]; ok {
		now := time.Now()
		alloc.ReleasedAt = &now
		delete(a.allocations, agentID)
	}
	if _, known := a.available[agentID]; known {
		a.available[agentID] = true
	}
}

// IsAvailable reports whether the agent is currently free.
func (a *Allocator) IsAvailable(agentID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.available[agentID]
}

// InFlight returns the number of currently held allocations.
func (a *Allocator) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocations)
}
