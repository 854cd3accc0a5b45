package graph

import (
	"errors"
	"testing"

	"github.com/kestrelabs/agentmesh/pkg/models"
)

func subtask(id string, order int, deps ...string) *models.Subtask {
	return &models.Subtask{
		Task:       models.Task{ID: id, Title: id, Status: models.TaskStatusPending},
		DependsOn:  deps,
		OrderIndex: order,
	}
}

func TestBuildAndReady(t *testing.T) {
	g := New()
	err := g.Build([]*models.Subtask{
		subtask("a", 0),
		subtask("b", 1),
		subtask("c", 2, "a", "b"),
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}

	ready := g.Ready()
	if len(ready) != 2 {
		t.Fatalf("expected 2 ready subtasks, got %d", len(ready))
	}
	if ready[0].ID != "a" || ready[1].ID != "b" {
		t.Errorf("expected ready order [a b], got [%s %s]", ready[0].ID, ready[1].ID)
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	g := New()
	err := g.Build([]*models.Subtask{
		subtask("a", 0, "missing"),
	})
	if err == nil {
		t.Fatal("expected error for unknown dependency")
	}
	if !errors.Is(err, ErrDeadlock) {
		t.Errorf("expected ErrDeadlock, got %v", err)
	}
}

func TestBuildCycle(t *testing.T) {
	g := New()
	err := g.Build([]*models.Subtask{
		subtask("a", 0, "c"),
		subtask("b", 1, "a"),
		subtask("c", 2, "b"),
	})
	if err == nil {
		t.Fatal("expected error for cycle")
	}
	if !errors.Is(err, ErrDeadlock) {
		t.Errorf("expected ErrDeadlock, got %v", err)
	}
}

func TestCascadingReadiness(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Subtask{
		subtask("a", 0),
		subtask("b", 1),
		subtask("c", 2, "a", "b"),
	}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	g.MarkExecuting("a")
	g.MarkExecuting("b")
	g.MarkCompleted("a")

	// c still blocked on b.
	for _, st := range g.Ready() {
		if st.ID == "c" {
			t.Fatal("c became ready before b completed")
		}
	}

	g.MarkCompleted("b")
	ready := g.Ready()
	if len(ready) != 1 || ready[0].ID != "c" {
		t.Fatalf("expected [c] ready, got %v", ready)
	}
}

func TestMarkFailedCascades(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Subtask{
		subtask("a", 0),
		subtask("b", 1, "a"),
		subtask("c", 2, "b"),
		subtask("d", 3),
	}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	g.MarkExecuting("a")
	blocked := g.MarkFailed("a")
	if len(blocked) != 2 || blocked[0] != "b" || blocked[1] != "c" {
		t.Fatalf("expected blocked [b c], got %v", blocked)
	}

	if g.Status("b") != NodeFailed || g.Status("c") != NodeFailed {
		t.Error("transitive dependents not marked failed")
	}
	if g.Status("d") != NodePending {
		t.Error("independent subtask should stay pending")
	}

	// d is still schedulable and the graph terminates once it runs.
	ready := g.Ready()
	if len(ready) != 1 || ready[0].ID != "d" {
		t.Fatalf("expected [d] ready, got %v", ready)
	}
	g.MarkExecuting("d")
	g.MarkCompleted("d")
	if !g.Done() {
		t.Error("graph should be done after all nodes reach terminal state")
	}
}

func TestFailedDependentNotRescheduled(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Subtask{
		subtask("a", 0),
		subtask("b", 1, "a"),
	}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	g.MarkExecuting("a")
	g.MarkFailed("a")

	if got := g.Ready(); len(got) != 0 {
		t.Errorf("expected no ready subtasks after cascade, got %d", len(got))
	}
	if !g.Done() {
		t.Error("graph with all-failed nodes should be done")
	}
}

func TestCounts(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Subtask{
		subtask("a", 0),
		subtask("b", 1, "a"),
	}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if g.Pending() != 2 || g.Executing() != 0 {
		t.Errorf("unexpected initial counts: pending=%d executing=%d", g.Pending(), g.Executing())
	}
	g.MarkExecuting("a")
	if g.Pending() != 1 || g.Executing() != 1 {
		t.Errorf("unexpected counts after launch: pending=%d executing=%d", g.Pending(), g.Executing())
	}
	if g.Done() {
		t.Error("graph should not be done with work in flight")
	}
}
