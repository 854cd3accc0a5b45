// Package orchestrator coordinates task decomposition, scheduling, and
// result aggregation across the agent pool.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kestrelabs/agentmesh/internal/decompose"
	"github.com/kestrelabs/agentmesh/internal/executor"
	"github.com/kestrelabs/agentmesh/internal/graph"
	"github.com/kestrelabs/agentmesh/internal/invoke"
	"github.com/kestrelabs/agentmesh/internal/registry"
	"github.com/kestrelabs/agentmesh/internal/resource"
	"github.com/kestrelabs/agentmesh/internal/validate"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

// Orchestrator runs tasks end to end: decompose, schedule, execute,
// review, aggregate. One orchestrator serves one agent registry and may
// process tasks sequentially; each ProcessTask call builds its own
// execution graph.
type Orchestrator struct {
	registry   *registry.Registry
	allocator  *resource.Allocator
	decomposer *decompose.Decomposer
	executor   *executor.Executor
	reviewer   *validate.Reviewer
	opts       Options
	logger     *DebugLogger
}

// New creates an orchestrator over the registry, dispatching invocations
// through the invoker.
func New(reg *registry.Registry, invoker invoke.Invoker, opts Options) *Orchestrator {
	allocator := resource.NewAllocator(reg)

	execOpts := []executor.Option{}
	if opts.SubtaskTimeout > 0 {
		execOpts = append(execOpts, executor.WithTimeout(opts.SubtaskTimeout))
	}
	if opts.Progress != nil {
		execOpts = append(execOpts, executor.WithProgress(opts.Progress))
	}

	var reviewManager *models.Agent
	if opts.Manager != nil && opts.Manager.TextGeneration() != nil {
		reviewManager = opts.Manager
	}

	return &Orchestrator{
		registry:   reg,
		allocator:  allocator,
		decomposer: decompose.New(invoker),
		executor:   executor.New(invoker, allocator, execOpts...),
		reviewer:   validate.NewReviewer(validate.New(invoker), reviewManager),
		opts:       opts,
		logger:     opts.Logger,
	}
}

// ProcessTask runs one task through the full pipeline. The returned result
// is never nil: failures are encoded as a TaskResult with Success false and
// a coded TaskError. The task's status always reaches a terminal value.
func (o *Orchestrator) ProcessTask(ctx context.Context, task *models.Task) *models.TaskResult {
	if o.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.TaskTimeout)
		defer cancel()
	}

	start := time.Now()
	o.log("[process] task %s: %s", task.ID, task.Title)
	o.record(task)

	subtasks, err := o.decomposer.Decompose(ctx, task, o.opts.Manager)
	if err != nil {
		o.log("[process] decomposition failed: %v", err)
		return o.fail(task, start, models.ErrCodeDecomposition, err)
	}
	o.log("[process] decomposed into %d subtasks", len(subtasks))

	g := graph.New()
	if err := g.Build(subtasks); err != nil {
		o.log("[process] graph build failed: %v", err)
		code := models.ErrCodeWorkflow
		if errors.Is(err, graph.ErrDeadlock) {
			code = models.ErrCodeDeadlock
		}
		return o.fail(task, start, code, err)
	}

	task.Status = models.TaskStatusAssigned
	task.UpdatedAt = time.Now()
	o.record(task)

	task.Status = models.TaskStatusExecuting
	task.UpdatedAt = time.Now()

	results, err := o.runLoop(ctx, g)
	for _, st := range subtasks {
		o.recordSubtask(st)
	}
	if err != nil {
		o.log("[process] run loop failed: %v", err)
		code := models.ErrCodeWorkflow
		switch {
		case errors.Is(err, graph.ErrDeadlock):
			code = models.ErrCodeDeadlock
		case errors.Is(err, errAllocationExhausted):
			code = models.ErrCodeAllocation
		}
		return o.fail(task, start, code, err)
	}

	if o.reviewer.Enabled() {
		task.Status = models.TaskStatusReviewing
		task.UpdatedAt = time.Now()
		o.record(task)
	}

	aggregate := Aggregate(results)
	if aggregate.Success {
		task.Status = models.TaskStatusCompleted
	} else {
		task.Status = models.TaskStatusFailed
	}
	task.UpdatedAt = time.Now()
	o.record(task)
	o.log("[process] task %s finished: success=%t", task.ID, aggregate.Success)
	return aggregate
}

// Estimate decomposes the task and reports the resource estimate without
// executing anything.
func (o *Orchestrator) Estimate(ctx context.Context, task *models.Task, unit time.Duration) ([]*models.Subtask, *decompose.Estimate, error) {
	subtasks, err := o.decomposer.Decompose(ctx, task, o.opts.Manager)
	if err != nil {
		return nil, nil, err
	}
	est := decompose.EstimateResources(subtasks, unit)
	return subtasks, &est, nil
}

// retryExecute re-runs a subtask with a fresh allocation for a validation
// retry. Waits for an agent when all are busy; gives up only when the
// context ends.
func (o *Orchestrator) retryExecute(ctx context.Context, subtask *models.Subtask, prompt string) *models.TaskResult {
	for {
		if alloc := o.allocator.Allocate(subtask); alloc != nil {
			return o.executor.ExecutePrompt(ctx, subtask, alloc, prompt)
		}
		select {
		case <-ctx.Done():
			return &models.TaskResult{
				Error: &models.TaskError{
					Code:    models.ErrCodeSubtask,
					Message: fmt.Sprintf("subtask %s retry cancelled: %v", subtask.ID, ctx.Err()),
				},
			}
		case <-time.After(o.opts.pollInterval()):
		}
	}
}

// fail stamps the task failed and wraps the error in a coded result.
func (o *Orchestrator) fail(task *models.Task, start time.Time, code string, err error) *models.TaskResult {
	task.Status = models.TaskStatusFailed
	task.UpdatedAt = time.Now()
	o.record(task)

	end := time.Now()
	return &models.TaskResult{
		Metrics: models.Metrics{
			StartTime: start,
			EndTime:   end,
			Duration:  end.Sub(start),
			WallClock: end.Sub(start),
		},
		Error: &models.TaskError{Code: code, Message: err.Error()},
	}
}

func (o *Orchestrator) record(task *models.Task) {
	if o.opts.Recorder == nil {
		return
	}
	if err := o.opts.Recorder.RecordTask(task); err != nil {
		o.log("[record] task %s: %v", task.ID, err)
	}
}

func (o *Orchestrator) recordSubtask(subtask *models.Subtask) {
	if o.opts.Recorder == nil {
		return
	}
	if err := o.opts.Recorder.RecordSubtask(subtask); err != nil {
		o.log("[record] subtask %s: %v", subtask.ID, err)
	}
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Log(format, args...)
	}
}
