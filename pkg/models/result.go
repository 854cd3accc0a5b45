package models

import "time"

// ResourceUsage is an estimate of the resources one execution consumed.
type ResourceUsage struct {
	// CPU is the estimated CPU fraction in [0,1].
	CPU float64 `json:"cpu"`
	// Memory is the estimated memory in megabytes.
	Memory float64 `json:"memory"`
}

// Add returns the elementwise sum of two usage estimates.
func (u ResourceUsage) Add(other ResourceUsage) ResourceUsage {
	return ResourceUsage{
		CPU:    u.CPU + other.CPU,
		Memory: u.Memory + other.Memory,
	}
}

// Metrics records timing and resource usage for one execution.
type Metrics struct {
	// StartTime is when execution began.
	StartTime time.Time `json:"start_time"`
	// EndTime is when execution finished.
	EndTime time.Time `json:"end_time"`
	// Duration is EndTime minus StartTime. For aggregate results this is
	// the sum of subtask durations, not the wall-clock span, since subtasks
	// overlap; WallClock carries the span.
	Duration time.Duration `json:"duration"`
	// WallClock is max(EndTime) minus min(StartTime) across subtasks.
	// Equal to Duration for single-subtask results.
	WallClock time.Duration `json:"wall_clock,omitempty"`
	// ResourceUsage is the resource estimate for this execution.
	ResourceUsage ResourceUsage `json:"resource_usage"`
}

// Error codes attached to TaskResult errors.
const (
	// ErrCodeDecomposition marks a failed task breakdown.
	ErrCodeDecomposition = "DECOMPOSITION_ERROR"
	// ErrCodeDeadlock marks a dependency cycle or dangling reference.
	ErrCodeDeadlock = "DEADLOCK_ERROR"
	// ErrCodeSubtask marks a failed subtask execution.
	ErrCodeSubtask = "SUBTASK_ERROR"
	// ErrCodeAllocation marks an unallocatable subtask.
	ErrCodeAllocation = "ALLOCATION_EXHAUSTED"
	// ErrCodeValidation marks a result rejected by the manager agent.
	ErrCodeValidation = "VALIDATION_FAILED"
	// ErrCodeWorkflow marks a top-level orchestration failure.
	ErrCodeWorkflow = "WORKFLOW_ERROR"
)

// TaskError is the code/message contract carried on failed results.
// Top-level callers always receive one of these, never a bare error.
type TaskError struct {
	// Code is a stable machine-readable error code.
	Code string `json:"code"`
	// Message is a human-readable description of the failure.
	Message string `json:"message"`
	// Details holds optional structured context.
	Details any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return e.Code + ": " + e.Message
}

// TaskResult is the outcome of one subtask or one whole task.
type TaskResult struct {
	// Success indicates the execution completed acceptably.
	Success bool `json:"success"`
	// Output is the produced payload; opaque to the orchestration core.
	Output any `json:"output"`
	// Metrics records timing and resource usage.
	Metrics Metrics `json:"metrics"`
	// Error describes the failure when Success is false.
	Error *TaskError `json:"error,omitempty"`
}

// ResourceAllocation binds one subtask to one allocated agent for the
// duration of a single execution. Owned by the resource allocator.
type ResourceAllocation struct {
	// SubtaskID is the subtask this allocation serves.
	SubtaskID string `json:"subtask_id"`
	// Agent is the allocated agent.
	Agent *Agent `json:"-"`
	// AgentID is the allocated agent's ID.
	AgentID string `json:"agent_id"`
	// Tools are the agent tools matched to the subtask's capabilities.
	Tools []Tool `json:"tools"`
	// StartedAt is when the allocation was granted.
	StartedAt time.Time `json:"started_at"`
	// ReleasedAt is when the allocation was released, if it has been.
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	// EstimatedUsage is the resource estimate recorded at allocation time.
	EstimatedUsage ResourceUsage `json:"estimated_usage"`
}
