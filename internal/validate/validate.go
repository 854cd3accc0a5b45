// Package validate runs manager review of subtask results.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kestrelabs/agentmesh/internal/invoke"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

// Verdict is the manager agent's judgment of one subtask result.
type Verdict struct {
	// IsValid indicates the output satisfies the subtask.
	IsValid bool `json:"isValid"`
	// Feedback explains the judgment.
	Feedback string `json:"feedback"`
	// SuggestedImprovements lists concrete changes for a retry.
	SuggestedImprovements []string `json:"suggestedImprovements,omitempty"`
}

const verdictPrompt = `Review the following subtask output and judge whether it satisfies the subtask.

Subtask: %s
Description: %s
Expected output: %s

Output to review:
%s

Respond with a JSON object:
{
  "isValid": true or false,
  "feedback": "explanation of the judgment",
  "suggestedImprovements": ["concrete change", ...]
}`

// Validator asks a manager agent to review subtask outputs.
type Validator struct {
	invoker invoke.Invoker
}

// New creates a validator.
func New(invoker invoke.Invoker) *Validator {
	return &Validator{invoker: invoker}
}

// Validate submits the subtask output to the manager for review. A verdict
// that cannot be obtained or parsed counts as invalid; an unreviewable
// result is never passed through as valid.
func (v *Validator) Validate(ctx context.Context, subtask *models.Subtask, output string, manager *models.Agent) *Verdict {
	tool := manager.TextGeneration()
	if tool == nil {
		return &Verdict{Feedback: fmt.Sprintf("manager %s has no text-generation tool", manager.Name)}
	}

	prompt := fmt.Sprintf(verdictPrompt, subtask.Title, subtask.Description, subtask.ExpectedOutput, output)
	res, err := v.invoker.Invoke(ctx, invoke.Invocation{
		Agent:  manager,
		ToolID: tool.ID,
		Prompt: prompt,
	})
	if err != nil {
		return &Verdict{Feedback: fmt.Sprintf("validation request failed: %v", err)}
	}

	verdict, err := ParseVerdict(res.Output)
	if err != nil {
		return &Verdict{Feedback: fmt.Sprintf("validation verdict unparseable: %v", err)}
	}
	return verdict
}

// ParseVerdict extracts the verdict JSON object from free-form model text.
func ParseVerdict(response string) (*Verdict, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(response[start:end+1]), &verdict); err != nil {
		return nil, fmt.Errorf("decoding verdict: %w", err)
	}
	return &verdict, nil
}

// RetryPrompt renders the prompt for a validation retry. It embeds the
// rejected output and the reviewer's feedback so the second attempt can
// correct rather than repeat.
func RetryPrompt(subtask *models.Subtask, previousOutput string, verdict *Verdict) string {
	var b strings.Builder
	b.WriteString(subtask.Description)
	if subtask.ExpectedOutput != "" {
		b.WriteString("\n\nExpected output: ")
		b.WriteString(subtask.ExpectedOutput)
	}
	b.WriteString("\n\nA previous attempt was rejected by review.\n\nPrevious output:\n")
	b.WriteString(previousOutput)
	b.WriteString("\n\nReviewer feedback: ")
	b.WriteString(verdict.Feedback)
	if len(verdict.SuggestedImprovements) > 0 {
		b.WriteString("\n\nApply these improvements:\n")
		for _, s := range verdict.SuggestedImprovements {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}
	return b.String()
}
