// Package executor runs allocated subtasks to completion.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelabs/agentmesh/internal/invoke"
	"github.com/kestrelabs/agentmesh/internal/resource"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

// ProgressFunc receives progress updates for a subtask in [0,1].
type ProgressFunc func(subtaskID string, progress float64)

// Executor executes one subtask with an allocated agent and records the
// outcome on the subtask. The allocation is released on every exit path,
// exactly once, before Execute returns.
type Executor struct {
	invoker   invoke.Invoker
	allocator *resource.Allocator
	timeout   time.Duration
	progress  ProgressFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout bounds each subtask execution. Zero means no bound beyond
// the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Executor) { e.progress = fn }
}

// New creates an executor.
func New(invoker invoke.Invoker, allocator *resource.Allocator, opts ...Option) *Executor {
	e := &Executor{invoker: invoker, allocator: allocator}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the subtask with its allocated agent. The returned result is
// never nil; failures are encoded in the result with code SUBTASK_ERROR and
// the subtask ID in the message. The subtask's status, progress, assignment
// fields, and Result are updated in place.
func (e *Executor) Execute(ctx context.Context, subtask *models.Subtask, alloc *models.ResourceAllocation) *models.TaskResult {
	return e.ExecutePrompt(ctx, subtask, alloc, buildPrompt(subtask))
}

// ExecutePrompt runs the subtask with an explicit prompt instead of the one
// derived from the subtask. Used for validation retries, where the prompt
// embeds the rejected output and the reviewer's feedback.
func (e *Executor) ExecutePrompt(ctx context.Context, subtask *models.Subtask, alloc *models.ResourceAllocation, prompt string) *models.TaskResult {
	defer e.allocator.Release(alloc.AgentID)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	subtask.Status = models.TaskStatusExecuting
	subtask.UpdatedAt = time.Now()
	subtask.AssignedAgentID = alloc.AgentID
	subtask.AssignedToolID = alloc.Tools[0].ID
	e.report(subtask.ID, 0.1)

	start := time.Now()
	out, err := e.invoker.Invoke(ctx, invoke.Invocation{
		Agent:  alloc.Agent,
		ToolID: alloc.Tools[0].ID,
		Prompt: prompt,
	})
	end := time.Now()

	metrics := models.Metrics{
		StartTime:     start,
		EndTime:       end,
		Duration:      end.Sub(start),
		WallClock:     end.Sub(start),
		ResourceUsage: alloc.EstimatedUsage,
	}

	result := &models.TaskResult{Metrics: metrics}
	switch {
	case err != nil:
		result.Error = &models.TaskError{
			Code:    models.ErrCodeSubtask,
			Message: fmt.Sprintf("subtask %s failed: %v", subtask.ID, err),
		}
	case !out.Success:
		result.Error = &models.TaskError{
			Code:    models.ErrCodeSubtask,
			Message: fmt.Sprintf("subtask %s failed: %s", subtask.ID, out.Output),
		}
	default:
		result.Success = true
		result.Output = out.Output
		if out.RequiresDelegation {
			recordDelegation(subtask, out.Delegation)
		}
	}

	if result.Success {
		subtask.Status = models.TaskStatusCompleted
		subtask.Progress = 1.0
	} else {
		subtask.Status = models.TaskStatusFailed
	}
	subtask.UpdatedAt = time.Now()
	subtask.Result = result
	e.report(subtask.ID, subtask.Progress)

	return result
}

func (e *Executor) report(subtaskID string, progress float64) {
	if e.progress != nil {
		e.progress(subtaskID, progress)
	}
}

// recordDelegation notes a delegation request on the subtask's metadata.
// Delegated execution is not performed here; the hand-off details are kept
// for whoever reads the result.
func recordDelegation(subtask *models.Subtask, d *invoke.Delegation) {
	if subtask.Metadata == nil {
		subtask.Metadata = make(map[string]any)
	}
	subtask.Metadata["requires_delegation"] = true
	if d != nil {
		subtask.Metadata["delegation_target_agent"] = d.TargetAgent
		subtask.Metadata["delegation_reason"] = d.Reason
	}
}

// buildPrompt renders the instruction sent to the agent's tool.
func buildPrompt(subtask *models.Subtask) string {
	prompt := subtask.Description
	if subtask.ExpectedOutput != "" {
		prompt += "\n\nExpected output: " + subtask.ExpectedOutput
	}
	return prompt
}
