package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusAnalyzing indicates the task is being decomposed.
	TaskStatusAnalyzing TaskStatus = "analyzing"
	// TaskStatusAssigned indicates subtasks have been assigned to agents.
	TaskStatusAssigned TaskStatus = "assigned"
	// TaskStatusExecuting indicates subtasks are running.
	TaskStatusExecuting TaskStatus = "executing"
	// TaskStatusReviewing indicates results are being validated.
	TaskStatusReviewing TaskStatus = "reviewing"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAnalyzing, TaskStatusAssigned,
		TaskStatusExecuting, TaskStatusReviewing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Priority represents the urgency of a task.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Task represents a top-level unit of work submitted by a user.
// Tasks are never deleted; they are retained for conversation history.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Priority is the urgency of the task.
	Priority Priority `json:"priority"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at"`
	// Deadline is an optional completion deadline.
	Deadline *time.Time `json:"deadline,omitempty"`
	// ParentID is the ID of the parent task, if any.
	ParentID string `json:"parent_id,omitempty"`
	// Metadata holds open, caller-defined attributes.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Subtask is one decomposed unit of a Task.
type Subtask struct {
	Task

	// ParentTaskID is the ID of the task this subtask belongs to. Required.
	ParentTaskID string `json:"parent_task_id"`
	// AssignedAgentID is the ID of the agent executing this subtask, if any.
	AssignedAgentID string `json:"assigned_agent_id,omitempty"`
	// AssignedToolID is the ID of the tool used for this subtask, if any.
	AssignedToolID string `json:"assigned_tool_id,omitempty"`
	// DependsOn lists sibling subtask IDs that must complete first.
	DependsOn []string `json:"depends_on,omitempty"`
	// Progress is the completion fraction in [0,1].
	Progress float64 `json:"progress"`
	// Result holds the execution result once the subtask is terminal.
	Result *TaskResult `json:"result,omitempty"`
	// RequiredCapabilities lists capability tags this subtask needs.
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	// Complexity is the estimated effort on a 1-5 scale.
	Complexity int `json:"complexity"`
	// ExpectedOutput describes the output shape the subtask should produce.
	ExpectedOutput string `json:"expected_output,omitempty"`
	// OrderIndex is the position in the original decomposition. Used as the
	// deterministic tie-break when ready subtasks compete for agents.
	OrderIndex int `json:"order_index"`
	// Retry declares the retry policy for this subtask. The validation path
	// currently pins retries to a single attempt regardless of this field,
	// matching the behavior the field was declared alongside.
	Retry *RetryStrategy `json:"retry,omitempty"`
}

// RetryStrategy declares how a subtask should be retried on failure.
type RetryStrategy struct {
	// MaxAttempts is the maximum number of attempts.
	MaxAttempts int `json:"max_attempts"`
	// Delay is the wait between attempts.
	Delay time.Duration `json:"delay"`
}
