package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kestrelabs/agentmesh/internal/graph"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

// errAllocationExhausted indicates ready subtasks exist but no agent can
// ever serve them: nothing is in flight, so no release will free one.
var errAllocationExhausted = errors.New("no agent can serve remaining subtasks")

// completion carries one finished subtask back to the scheduler.
type completion struct {
	subtaskID string
	result    *models.TaskResult
}

// runLoop schedules ready subtasks onto available agents until every node
// of the graph is terminal. Subtask failures do not stop the loop; the
// failed node's dependents are cascade-failed and independent branches run
// to completion. Returns subtask results in completion order.
func (o *Orchestrator) runLoop(ctx context.Context, g *graph.ExecutionGraph) ([]*models.TaskResult, error) {
	completionCh := make(chan completion, g.Size())
	inflight := 0
	results := make([]*models.TaskResult, 0, g.Size())

	for {
		if g.Done() && inflight == 0 {
			return results, nil
		}

		ready := g.Ready()
		launched := 0
		for _, st := range ready {
			alloc := o.allocator.Allocate(st)
			if alloc == nil {
				// No agent free right now. A release will make one
				// available, so wait unless nothing is in flight.
				continue
			}
			g.MarkExecuting(st.ID)
			st.Status = models.TaskStatusAssigned
			inflight++
			launched++
			o.log("[runLoop] launching subtask %s on agent %s", st.ID, alloc.AgentID)

			go func(st *models.Subtask, alloc *models.ResourceAllocation) {
				result := o.executor.Execute(ctx, st, alloc)
				result = o.reviewer.Review(ctx, st, result, o.retryExecute)
				completionCh <- completion{subtaskID: st.ID, result: result}
			}(st, alloc)
		}

		if launched == 0 && inflight == 0 {
			if len(ready) > 0 {
				return results, fmt.Errorf("%w: %d ready subtasks, none allocatable", errAllocationExhausted, len(ready))
			}
			// Nothing ready, nothing running, nodes still pending.
			return results, fmt.Errorf("%w: %d subtasks can never become ready", graph.ErrDeadlock, g.Pending())
		}

		select {
		case <-ctx.Done():
			// In-flight executions observe the same context and unwind on
			// their own; their releases are deferred inside the executor.
			// Wait for each of them so no goroutine is still writing to a
			// subtask when the caller reads the outcomes.
			for inflight > 0 {
				c := <-completionCh
				inflight--
				results = append(results, c.result)
			}
			return results, ctx.Err()
		case c := <-completionCh:
			inflight--
			results = append(results, c.result)
			if c.result.Success {
				o.log("[runLoop] subtask %s completed", c.subtaskID)
				g.MarkCompleted(c.subtaskID)
			} else {
				o.log("[runLoop] subtask %s failed: %v", c.subtaskID, c.result.Error)
				blocked := g.MarkFailed(c.subtaskID)
				for _, id := range blocked {
					results = append(results, o.blockResult(g, id, c.subtaskID))
				}
			}
		case <-time.After(o.opts.pollInterval()):
			// Re-scan in case an allocation freed up without a completion.
		}
	}
}

// blockResult marks a cascade-failed subtask and synthesizes its result,
// so every subtask reaches a terminal status with a recorded outcome.
func (o *Orchestrator) blockResult(g *graph.ExecutionGraph, id, failedID string) *models.TaskResult {
	result := &models.TaskResult{
		Error: &models.TaskError{
			Code:    models.ErrCodeSubtask,
			Message: fmt.Sprintf("subtask %s blocked by failed dependency %s", id, failedID),
		},
	}
	if st := g.Subtask(id); st != nil {
		st.Status = models.TaskStatusFailed
		st.Result = result
		st.UpdatedAt = time.Now()
	}
	return result
}
