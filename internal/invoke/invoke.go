// Package invoke dispatches agent tool invocations to their backends.
package invoke

import (
	"context"
	"fmt"

	"github.com/kestrelabs/agentmesh/pkg/models"
)

// Invocation describes one agent action: a single tool call with a prompt.
type Invocation struct {
	// Agent is the agent whose tool is invoked.
	Agent *models.Agent
	// ToolID identifies the tool on the agent.
	ToolID string
	// Prompt is the input to the tool.
	Prompt string
	// RequiresDelegation indicates the caller expects the agent to delegate.
	RequiresDelegation bool
}

// Delegation describes a requested hand-off to another agent.
type Delegation struct {
	// TargetAgent is the ID of the agent work should be delegated to.
	TargetAgent string `json:"target_agent"`
	// Reason explains why delegation was requested.
	Reason string `json:"reason"`
}

// Result is the outcome of one tool invocation.
type Result struct {
	// Success indicates the invocation completed.
	Success bool `json:"success"`
	// Output is the produced text.
	Output string `json:"output"`
	// RequiresDelegation indicates the agent asked to delegate the work.
	RequiresDelegation bool `json:"requires_delegation"`
	// Delegation carries hand-off details when RequiresDelegation is set.
	Delegation *Delegation `json:"delegation,omitempty"`
}

// Invoker runs one agent tool invocation. The executor depends only on
// this interface; production wiring routes text-generation to a real LLM
// backend and everything else to the simulated invoker.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (*Result, error)
}

// Func adapts a function to the Invoker interface.
type Func func(ctx context.Context, inv Invocation) (*Result, error)

// Invoke implements Invoker.
func (f Func) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	return f(ctx, inv)
}

// checkInvocation validates that the agent owns the tool and may perform
// the requested action. Returns the resolved tool.
func checkInvocation(inv Invocation) (*models.Tool, error) {
	if inv.Agent == nil {
		return nil, fmt.Errorf("invocation has no agent")
	}

	tool := inv.Agent.FindTool(inv.ToolID)
	if tool == nil {
		return nil, fmt.Errorf("agent %s does not have access to tool %s", inv.Agent.Name, inv.ToolID)
	}

	if inv.RequiresDelegation && !inv.Agent.Capabilities.CanDelegateWork {
		return nil, fmt.Errorf("agent %s cannot delegate work", inv.Agent.Name)
	}

	return tool, nil
}
