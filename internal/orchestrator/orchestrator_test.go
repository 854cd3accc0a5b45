package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kestrelabs/agentmesh/internal/invoke"
	"github.com/kestrelabs/agentmesh/internal/registry"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

func worker(id string) *models.Agent {
	return &models.Agent{
		ID:   id,
		Name: id,
		Role: models.RoleWorker,
		Tools: []models.Tool{
			{ID: "tg", Name: models.TextGenerationTool, Description: "generates text"},
		},
	}
}

func manager() *models.Agent {
	return &models.Agent{
		ID:   "mgr",
		Name: "manager",
		Role: models.RoleManager,
		Tools: []models.Tool{
			{ID: "tg", Name: models.TextGenerationTool, Description: "generates text"},
		},
	}
}

func task(title string) *models.Task {
	return &models.Task{
		ID:       "task-1",
		Title:    title,
		Priority: models.PriorityMedium,
		Status:   models.TaskStatusPending,
	}
}

// decompositionJSON renders a decomposition response with three subtasks:
// A and B independent, C depending on both.
const decompositionJSON = `[
  {"title": "A", "description": "do A", "dependencies": [], "complexity": 1, "expectedOutput": "a"},
  {"title": "B", "description": "do B", "dependencies": [], "complexity": 1, "expectedOutput": "b"},
  {"title": "C", "description": "do C", "dependencies": ["A", "B"], "complexity": 2, "expectedOutput": "c"}
]`

// testInvoker routes decomposition, execution, and validation calls.
type testInvoker struct {
	mu            sync.Mutex
	decomposition string
	verdicts      []string
	verdictIdx    int
	execute       func(inv invoke.Invocation) (*invoke.Result, error)
	executions    []string
}

func (ti *testInvoker) Invoke(_ context.Context, inv invoke.Invocation) (*invoke.Result, error) {
	if inv.Agent.Role == models.RoleManager {
		if strings.HasPrefix(inv.Prompt, "Review the following subtask output") {
			ti.mu.Lock()
			defer ti.mu.Unlock()
			if ti.verdictIdx >= len(ti.verdicts) {
				return &invoke.Result{Success: true, Output: `{"isValid": true, "feedback": "ok"}`}, nil
			}
			v := ti.verdicts[ti.verdictIdx]
			ti.verdictIdx++
			return &invoke.Result{Success: true, Output: v}, nil
		}
		return &invoke.Result{Success: true, Output: ti.decomposition}, nil
	}

	ti.mu.Lock()
	ti.executions = append(ti.executions, inv.Prompt)
	ti.mu.Unlock()
	if ti.execute != nil {
		return ti.execute(inv)
	}
	return &invoke.Result{Success: true, Output: "done: " + inv.Prompt}, nil
}

func TestProcessTaskWaves(t *testing.T) {
	ti := &testInvoker{decomposition: decompositionJSON}
	reg := registry.New([]*models.Agent{worker("w1"), worker("w2")}, registry.MatchSubstring)
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond})

	tk := task("build report")
	result := orch.ProcessTask(context.Background(), tk)

	if !result.Success {
		t.Fatalf("expected success, got %v", result.Error)
	}
	outputs, ok := result.Output.([]any)
	if !ok || len(outputs) != 3 {
		t.Fatalf("expected 3 outputs, got %v", result.Output)
	}
	// C runs only after A and B, so its output completes last.
	last, _ := outputs[2].(string)
	if !strings.Contains(last, "do C") {
		t.Errorf("expected dependent subtask to finish last, got %q", last)
	}
	if tk.Status != models.TaskStatusCompleted {
		t.Errorf("expected completed task, got %s", tk.Status)
	}
}

func TestProcessTaskSingleWorkerSerializes(t *testing.T) {
	var mu sync.Mutex
	running, maxRunning := 0, 0
	ti := &testInvoker{
		decomposition: decompositionJSON,
		execute: func(inv invoke.Invocation) (*invoke.Result, error) {
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return &invoke.Result{Success: true, Output: "done"}, nil
		},
	}
	reg := registry.New([]*models.Agent{worker("w1")}, registry.MatchSubstring)
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond})

	result := orch.ProcessTask(context.Background(), task("serial"))
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Error)
	}
	if maxRunning != 1 {
		t.Errorf("one worker must serialize execution; saw %d concurrent", maxRunning)
	}
	if len(ti.executions) != 3 {
		t.Errorf("expected 3 executions, got %d", len(ti.executions))
	}
}

func TestProcessTaskFailureCascades(t *testing.T) {
	ti := &testInvoker{
		decomposition: decompositionJSON,
		execute: func(inv invoke.Invocation) (*invoke.Result, error) {
			if strings.Contains(inv.Prompt, "do B") {
				return nil, errors.New("NetworkError")
			}
			return &invoke.Result{Success: true, Output: "done"}, nil
		},
	}
	reg := registry.New([]*models.Agent{worker("w1"), worker("w2")}, registry.MatchSubstring)
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond})

	tk := task("cascade")
	result := orch.ProcessTask(context.Background(), tk)

	if result.Success {
		t.Fatal("expected failure when a subtask fails")
	}
	if result.Error == nil || result.Error.Code != models.ErrCodeSubtask {
		t.Fatalf("expected %s rollup, got %v", models.ErrCodeSubtask, result.Error)
	}
	if !strings.Contains(result.Error.Message, "NetworkError") {
		t.Errorf("root cause missing from rollup: %q", result.Error.Message)
	}
	if tk.Status != models.TaskStatusFailed {
		t.Errorf("expected failed task, got %s", tk.Status)
	}
	// A succeeded, B failed, C was blocked: three results total.
	outputs, _ := result.Output.([]any)
	if len(outputs) != 1 {
		t.Errorf("expected 1 successful output, got %d", len(outputs))
	}
	// C must never execute.
	for _, prompt := range ti.executions {
		if strings.Contains(prompt, "do C") {
			t.Error("blocked subtask was executed")
		}
	}
}

func TestProcessTaskDecompositionError(t *testing.T) {
	ti := &testInvoker{decomposition: "I refuse to answer with JSON."}
	reg := registry.New([]*models.Agent{worker("w1")}, registry.MatchSubstring)
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond})

	tk := task("bad decomposition")
	result := orch.ProcessTask(context.Background(), tk)

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error.Code != models.ErrCodeDecomposition {
		t.Errorf("expected %s, got %s", models.ErrCodeDecomposition, result.Error.Code)
	}
	if tk.Status != models.TaskStatusFailed {
		t.Errorf("expected failed task, got %s", tk.Status)
	}
}

func TestProcessTaskDependencyCycle(t *testing.T) {
	cycle := `[
	  {"title": "A", "description": "do A", "dependencies": ["B"], "complexity": 1},
	  {"title": "B", "description": "do B", "dependencies": ["A"], "complexity": 1}
	]`
	ti := &testInvoker{decomposition: cycle}
	reg := registry.New([]*models.Agent{worker("w1")}, registry.MatchSubstring)
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond})

	result := orch.ProcessTask(context.Background(), task("cyclic"))
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error.Code != models.ErrCodeDeadlock {
		t.Errorf("expected %s, got %s", models.ErrCodeDeadlock, result.Error.Code)
	}
}

func TestProcessTaskAllocationExhausted(t *testing.T) {
	unservable := `[
	  {"title": "A", "description": "do A", "requiredCapabilities": ["quantum-annealing"], "dependencies": [], "complexity": 1}
	]`
	ti := &testInvoker{decomposition: unservable}
	reg := registry.New([]*models.Agent{worker("w1")}, registry.MatchSubstring)
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond})

	result := orch.ProcessTask(context.Background(), task("unservable"))
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error.Code != models.ErrCodeAllocation {
		t.Errorf("expected %s, got %s", models.ErrCodeAllocation, result.Error.Code)
	}
}

func TestProcessTaskValidationRetry(t *testing.T) {
	single := `[
	  {"title": "A", "description": "write the summary", "dependencies": [], "complexity": 1, "expectedOutput": "a summary"}
	]`
	ti := &testInvoker{
		decomposition: single,
		verdicts: []string{
			`{"isValid": false, "feedback": "too short", "suggestedImprovements": ["expand"]}`,
			`{"isValid": true, "feedback": "good"}`,
		},
	}
	reg := registry.New([]*models.Agent{worker("w1")}, registry.MatchSubstring)
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond})

	result := orch.ProcessTask(context.Background(), task("review me"))
	if !result.Success {
		t.Fatalf("expected retried result to pass, got %v", result.Error)
	}
	if len(ti.executions) != 2 {
		t.Fatalf("expected original execution plus one retry, got %d", len(ti.executions))
	}
	if !strings.Contains(ti.executions[1], "too short") {
		t.Errorf("retry prompt missing feedback: %q", ti.executions[1])
	}
}

func TestProcessTaskValidationRejectsTwice(t *testing.T) {
	single := `[
	  {"title": "A", "description": "write the summary", "dependencies": [], "complexity": 1}
	]`
	ti := &testInvoker{
		decomposition: single,
		verdicts: []string{
			`{"isValid": false, "feedback": "too short"}`,
			`{"isValid": false, "feedback": "still too short"}`,
		},
	}
	reg := registry.New([]*models.Agent{worker("w1")}, registry.MatchSubstring)
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond})

	result := orch.ProcessTask(context.Background(), task("never good enough"))
	if result.Success {
		t.Fatal("expected failure after two rejections")
	}
	if result.Error.Code != models.ErrCodeValidation {
		t.Errorf("expected %s, got %s", models.ErrCodeValidation, result.Error.Code)
	}
}

func TestProcessTaskCancellation(t *testing.T) {
	ti := &testInvoker{
		decomposition: decompositionJSON,
		execute: func(invoke.Invocation) (*invoke.Result, error) {
			time.Sleep(50 * time.Millisecond)
			return &invoke.Result{Success: true, Output: "done"}, nil
		},
	}
	reg := registry.New([]*models.Agent{worker("w1")}, registry.MatchSubstring)
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	tk := task("cancelled")
	result := orch.ProcessTask(ctx, tk)
	if result.Success {
		t.Fatal("expected cancellation to fail the task")
	}
	if tk.Status != models.TaskStatusFailed {
		t.Errorf("expected failed task, got %s", tk.Status)
	}
}

// statusReader reads the fields executor goroutines write, like the real
// history recorder does.
type statusReader struct {
	mu       sync.Mutex
	statuses []models.TaskStatus
}

func (r *statusReader) RecordTask(*models.Task) error { return nil }

func (r *statusReader) RecordSubtask(st *models.Subtask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, st.Status)
	if st.Result != nil {
		_ = st.Result.Success
	}
	return nil
}

func TestProcessTaskCancellationWaitsForInflight(t *testing.T) {
	var started, finished atomic.Int32
	ti := &testInvoker{
		decomposition: decompositionJSON,
		execute: func(invoke.Invocation) (*invoke.Result, error) {
			started.Add(1)
			time.Sleep(30 * time.Millisecond)
			finished.Add(1)
			return &invoke.Result{Success: true, Output: "done"}, nil
		},
	}
	reg := registry.New([]*models.Agent{worker("w1"), worker("w2")}, registry.MatchSubstring)
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond, Recorder: &statusReader{}})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	result := orch.ProcessTask(ctx, task("cancelled midway"))
	if result.Success {
		t.Fatal("expected cancellation to fail the task")
	}
	if s, f := started.Load(), finished.Load(); s != f {
		t.Errorf("returned with %d of %d executions still running", s-f, s)
	}
}

// recorderSpy captures recorded tasks and subtasks.
type recorderSpy struct {
	mu       sync.Mutex
	tasks    []models.TaskStatus
	subtasks []string
}

func (r *recorderSpy) RecordTask(task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task.Status)
	return nil
}

func (r *recorderSpy) RecordSubtask(st *models.Subtask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subtasks = append(r.subtasks, st.ID)
	return nil
}

func TestProcessTaskRecords(t *testing.T) {
	ti := &testInvoker{decomposition: decompositionJSON}
	reg := registry.New([]*models.Agent{worker("w1"), worker("w2")}, registry.MatchSubstring)
	spy := &recorderSpy{}
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond, Recorder: spy})

	if result := orch.ProcessTask(context.Background(), task("recorded")); !result.Success {
		t.Fatalf("expected success, got %v", result.Error)
	}

	if len(spy.subtasks) != 3 {
		t.Errorf("expected 3 recorded subtasks, got %d", len(spy.subtasks))
	}
	if len(spy.tasks) == 0 || spy.tasks[len(spy.tasks)-1] != models.TaskStatusCompleted {
		t.Errorf("expected final recorded status completed, got %v", spy.tasks)
	}
	var reviewing bool
	for _, s := range spy.tasks {
		if s == models.TaskStatusReviewing {
			reviewing = true
		}
	}
	if !reviewing {
		t.Errorf("task never passed through reviewing: %v", spy.tasks)
	}
}

func TestEstimate(t *testing.T) {
	ti := &testInvoker{decomposition: decompositionJSON}
	reg := registry.New([]*models.Agent{worker("w1")}, registry.MatchSubstring)
	orch := New(reg, ti, Options{Manager: manager()})

	subtasks, est, err := orch.Estimate(context.Background(), task("estimate"), time.Minute)
	if err != nil {
		t.Fatalf("Estimate failed: %v", err)
	}
	if len(subtasks) != 3 {
		t.Fatalf("expected 3 subtasks, got %d", len(subtasks))
	}
	if est.TotalComplexity != 4 {
		t.Errorf("expected total complexity 4, got %d", est.TotalComplexity)
	}
	// Critical path is 1 (A or B) + 2 (C) units.
	if est.Duration != 3*time.Minute {
		t.Errorf("expected 3m critical path, got %v", est.Duration)
	}
}

func TestProcessTaskEverySubtaskTerminal(t *testing.T) {
	ti := &testInvoker{
		decomposition: decompositionJSON,
		execute: func(inv invoke.Invocation) (*invoke.Result, error) {
			if strings.Contains(inv.Prompt, "do A") {
				return nil, fmt.Errorf("boom")
			}
			return &invoke.Result{Success: true, Output: "done"}, nil
		},
	}
	reg := registry.New([]*models.Agent{worker("w1"), worker("w2")}, registry.MatchSubstring)
	spy := &recorderSpy{}
	orch := New(reg, ti, Options{Manager: manager(), PollInterval: time.Millisecond, Recorder: spy})

	result := orch.ProcessTask(context.Background(), task("terminal check"))
	if result.Success {
		t.Fatal("expected failure")
	}
	// All three subtasks recorded, each with a terminal status.
	if len(spy.subtasks) != 3 {
		t.Errorf("expected 3 recorded subtasks, got %d", len(spy.subtasks))
	}
}
