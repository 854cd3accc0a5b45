// Package decompose breaks user tasks into dependency-ordered subtasks.
package decompose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelabs/agentmesh/internal/invoke"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

// ErrDecomposition indicates task breakdown failed: the manager agent
// cannot generate text, the LLM call failed, or the response could not be
// parsed into a valid subtask batch. No partial plan is ever returned.
var ErrDecomposition = errors.New("task decomposition failed")

// llmSubtask is the JSON structure the manager agent returns per subtask.
type llmSubtask struct {
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	RequiredCapabilities []string `json:"requiredCapabilities"`
	Dependencies         []string `json:"dependencies"`
	Complexity           int      `json:"complexity"`
	ExpectedOutput       string   `json:"expectedOutput"`
}

// Decomposer turns a task into subtasks using a manager agent's LLM.
type Decomposer struct {
	invoker invoke.Invoker
}

// New creates a Decomposer backed by the given invoker.
func New(invoker invoke.Invoker) *Decomposer {
	return &Decomposer{invoker: invoker}
}

// Decompose asks the manager agent to break the task down and returns the
// validated subtask batch. The task transitions to analyzing. All failure
// modes wrap ErrDecomposition.
func (d *Decomposer) Decompose(ctx context.Context, task *models.Task, manager *models.Agent) ([]*models.Subtask, error) {
	if manager == nil {
		return nil, fmt.Errorf("%w: no manager agent configured", ErrDecomposition)
	}
	textGen := manager.TextGeneration()
	if textGen == nil {
		return nil, fmt.Errorf("%w: manager agent %s does not have text generation capability", ErrDecomposition, manager.Name)
	}

	task.Status = models.TaskStatusAnalyzing
	task.UpdatedAt = time.Now()

	prompt := fmt.Sprintf(analysisPrompt, task.Title, task.Description, task.Priority)

	result, err := d.invoker.Invoke(ctx, invoke.Invocation{
		Agent:  manager,
		ToolID: textGen.ID,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecomposition, err)
	}

	subtasks, err := ParseResponse(result.Output, task.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecomposition, err)
	}

	return subtasks, nil
}

// ParseResponse extracts the first JSON array from the LLM's free-text
// response and converts it into subtasks. The LLM is not trusted to return
// pure JSON. The batch is validated atomically: one structurally invalid
// element rejects the whole response, since a partial subtask set risks an
// incomplete plan.
func ParseResponse(response, parentTaskID string) ([]*models.Subtask, error) {
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		preview := response
		if len(preview) > 300 {
			preview = preview[:300] + "... (truncated)"
		}
		return nil, fmt.Errorf("no JSON array found in response (got %d chars): %q", len(response), preview)
	}

	var decoded []llmSubtask
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal subtask array: %w", err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("empty subtask list returned")
	}

	now := time.Now()
	titleToID := make(map[string]string, len(decoded))
	subtasks := make([]*models.Subtask, len(decoded))

	for i, ls := range decoded {
		if ls.Title == "" || ls.Description == "" {
			return nil, fmt.Errorf("invalid subtask at index %d: missing required fields", i)
		}

		complexity := ls.Complexity
		if complexity < 1 {
			complexity = 1
		}
		if complexity > 5 {
			complexity = 5
		}

		if _, dup := titleToID[ls.Title]; dup {
			// Titles are the dependency keys; a duplicate makes every
			// reference to it ambiguous.
			return nil, fmt.Errorf("duplicate subtask title %q at index %d", ls.Title, i)
		}
		id := uuid.New().String()
		titleToID[ls.Title] = id

		subtasks[i] = &models.Subtask{
			Task: models.Task{
				ID:          id,
				Title:       ls.Title,
				Description: ls.Description,
				Priority:    models.PriorityMedium,
				Status:      models.TaskStatusPending,
				CreatedAt:   now,
				UpdatedAt:   now,
				ParentID:    parentTaskID,
			},
			ParentTaskID:         parentTaskID,
			RequiredCapabilities: ls.RequiredCapabilities,
			Complexity:           complexity,
			ExpectedOutput:       ls.ExpectedOutput,
			OrderIndex:           i,
		}
	}

	// Second pass: resolve declared dependency titles against sibling IDs.
	for i, ls := range decoded {
		for _, depTitle := range ls.Dependencies {
			depID, ok := titleToID[depTitle]
			if !ok {
				return nil, fmt.Errorf("unknown dependency %q for subtask %q", depTitle, ls.Title)
			}
			if depID == subtasks[i].ID {
				return nil, fmt.Errorf("subtask %q depends on itself", ls.Title)
			}
			subtasks[i].DependsOn = append(subtasks[i].DependsOn, depID)
		}
	}

	return subtasks, nil
}

// Capabilities returns the de-duplicated union of every subtask's required
// capability tags, in first-seen order. This is a derived view over the
// subtask set, never stored, so it cannot drift out of sync.
func Capabilities(subtasks []*models.Subtask) []string {
	seen := make(map[string]bool)
	var union []string
	for _, st := range subtasks {
		for _, cap := range st.RequiredCapabilities {
			if !seen[cap] {
				seen[cap] = true
				union = append(union, cap)
			}
		}
	}
	return union
}
