package validate

import (
	"context"
	"strings"
	"testing"

	"github.com/kestrelabs/agentmesh/internal/invoke"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

// sequencedVerdicts returns one canned verdict response per Validate call.
func sequencedVerdicts(t *testing.T, responses ...string) invoke.Invoker {
	t.Helper()
	i := 0
	return invoke.Func(func(context.Context, invoke.Invocation) (*invoke.Result, error) {
		if i >= len(responses) {
			t.Fatal("more validation calls than expected")
		}
		r := responses[i]
		i++
		return &invoke.Result{Success: true, Output: r}, nil
	})
}

func successResult(output string) *models.TaskResult {
	return &models.TaskResult{Success: true, Output: output}
}

func TestReviewAcceptsFirstAttempt(t *testing.T) {
	reviewer := NewReviewer(New(sequencedVerdicts(t, `{"isValid": true, "feedback": "good"}`)), testManager())
	st := reviewSubtask()

	executed := false
	result := reviewer.Review(context.Background(), st, successResult("draft"), func(context.Context, *models.Subtask, string) *models.TaskResult {
		executed = true
		return nil
	})

	if !result.Success {
		t.Fatalf("expected success, got %v", result.Error)
	}
	if executed {
		t.Error("accepted result must not trigger a retry")
	}
	if st.Status != models.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", st.Status)
	}
}

func TestReviewRetriesOnceAndAccepts(t *testing.T) {
	reviewer := NewReviewer(New(sequencedVerdicts(t,
		`{"isValid": false, "feedback": "too short", "suggestedImprovements": ["expand"]}`,
		`{"isValid": true, "feedback": "better"}`,
	)), testManager())
	st := reviewSubtask()

	var retryPrompt string
	result := reviewer.Review(context.Background(), st, successResult("draft"), func(_ context.Context, _ *models.Subtask, prompt string) *models.TaskResult {
		retryPrompt = prompt
		return successResult("longer draft")
	})

	if !result.Success {
		t.Fatalf("expected retry to be accepted, got %v", result.Error)
	}
	if result.Output != "longer draft" {
		t.Errorf("expected retried output, got %v", result.Output)
	}
	if !strings.Contains(retryPrompt, "draft") || !strings.Contains(retryPrompt, "too short") {
		t.Errorf("retry prompt missing previous output or feedback: %q", retryPrompt)
	}
}

func TestReviewFailsAfterSecondRejection(t *testing.T) {
	reviewer := NewReviewer(New(sequencedVerdicts(t,
		`{"isValid": false, "feedback": "too short"}`,
		`{"isValid": false, "feedback": "still too short"}`,
	)), testManager())
	st := reviewSubtask()

	retries := 0
	result := reviewer.Review(context.Background(), st, successResult("draft"), func(context.Context, *models.Subtask, string) *models.TaskResult {
		retries++
		return successResult("second draft")
	})

	if retries != 1 {
		t.Fatalf("expected exactly one retry, got %d", retries)
	}
	if result.Success {
		t.Fatal("expected failure after second rejection")
	}
	if result.Error.Code != models.ErrCodeValidation {
		t.Errorf("expected %s, got %s", models.ErrCodeValidation, result.Error.Code)
	}
	if !strings.Contains(result.Error.Message, "still too short") {
		t.Errorf("final feedback missing from error: %q", result.Error.Message)
	}
	if st.Status != models.TaskStatusFailed {
		t.Errorf("expected failed, got %s", st.Status)
	}
}

func TestReviewSkipsFailedResults(t *testing.T) {
	reviewer := NewReviewer(New(sequencedVerdicts(t)), testManager())
	failed := &models.TaskResult{Error: &models.TaskError{Code: models.ErrCodeSubtask, Message: "boom"}}

	result := reviewer.Review(context.Background(), reviewSubtask(), failed, func(context.Context, *models.Subtask, string) *models.TaskResult {
		t.Fatal("failed result must not be retried by review")
		return nil
	})
	if result != failed {
		t.Error("failed result should pass through unchanged")
	}
}

func TestReviewWithoutManager(t *testing.T) {
	reviewer := NewReviewer(New(sequencedVerdicts(t)), nil)
	result := reviewer.Review(context.Background(), reviewSubtask(), successResult("draft"), nil)
	if !result.Success {
		t.Error("nil manager should pass successful results through")
	}
}

func TestReviewRetryExecutionFailure(t *testing.T) {
	reviewer := NewReviewer(New(sequencedVerdicts(t,
		`{"isValid": false, "feedback": "too short"}`,
	)), testManager())

	failed := &models.TaskResult{Error: &models.TaskError{Code: models.ErrCodeSubtask, Message: "agent crashed"}}
	result := reviewer.Review(context.Background(), reviewSubtask(), successResult("draft"), func(context.Context, *models.Subtask, string) *models.TaskResult {
		return failed
	})
	if result != failed {
		t.Error("retry execution failure should be returned as-is")
	}
}
