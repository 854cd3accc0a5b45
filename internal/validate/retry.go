package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelabs/agentmesh/pkg/models"
)

// ExecuteFunc re-runs a subtask with an explicit prompt. The caller owns
// agent allocation; the returned result is never nil.
type ExecuteFunc func(ctx context.Context, subtask *models.Subtask, prompt string) *models.TaskResult

// Reviewer drives the validate-and-retry phase for one subtask result.
// A rejected output gets exactly one retry; the retry's verdict is final.
type Reviewer struct {
	validator *Validator
	manager   *models.Agent
}

// NewReviewer creates a reviewer. A nil manager disables review, passing
// every successful result through unvalidated.
func NewReviewer(validator *Validator, manager *models.Agent) *Reviewer {
	return &Reviewer{validator: validator, manager: manager}
}

// Enabled reports whether a manager is configured to review results.
func (r *Reviewer) Enabled() bool {
	return r.manager != nil
}

// Review validates a successful subtask result and retries once on
// rejection. Failed results are returned unchanged; validation only judges
// outputs that executed successfully. When both attempts are rejected the
// returned result is a failure with code VALIDATION_FAILED carrying the
// final feedback.
func (r *Reviewer) Review(ctx context.Context, subtask *models.Subtask, result *models.TaskResult, execute ExecuteFunc) *models.TaskResult {
	if r.manager == nil || !result.Success {
		return result
	}

	subtask.Status = models.TaskStatusReviewing
	subtask.UpdatedAt = time.Now()

	output := fmt.Sprintf("%v", result.Output)
	verdict := r.validator.Validate(ctx, subtask, output, r.manager)
	if verdict.IsValid {
		subtask.Status = models.TaskStatusCompleted
		return result
	}

	retried := execute(ctx, subtask, RetryPrompt(subtask, output, verdict))
	if !retried.Success {
		return retried
	}

	subtask.Status = models.TaskStatusReviewing
	finalVerdict := r.validator.Validate(ctx, subtask, fmt.Sprintf("%v", retried.Output), r.manager)
	if finalVerdict.IsValid {
		subtask.Status = models.TaskStatusCompleted
		return retried
	}

	failed := &models.TaskResult{
		Output:  retried.Output,
		Metrics: retried.Metrics,
		Error: &models.TaskError{
			Code:    models.ErrCodeValidation,
			Message: fmt.Sprintf("subtask %s rejected after retry: %s", subtask.ID, finalVerdict.Feedback),
		},
	}
	subtask.Status = models.TaskStatusFailed
	subtask.Result = failed
	subtask.UpdatedAt = time.Now()
	return failed
}
