package invoke

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kestrelabs/agentmesh/internal/llm"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

func testAgent() *models.Agent {
	return &models.Agent{
		ID:   "agent-1",
		Name: "Researcher",
		Role: models.RoleWorker,
		Tools: []models.Tool{
			{ID: "tg", Name: models.TextGenerationTool},
			{ID: "ws", Name: "web-search", Description: "Searches the web"},
		},
	}
}

func TestDispatcherTextGeneration(t *testing.T) {
	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.GenerateRequest) (string, error) {
		if req.Prompt != "summarize this" {
			t.Errorf("unexpected prompt: %q", req.Prompt)
		}
		return "the summary", nil
	})
	d := NewDispatcher(gen, 0)

	result, err := d.Invoke(context.Background(), Invocation{
		Agent:  testAgent(),
		ToolID: "tg",
		Prompt: "summarize this",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Output != "the summary" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestDispatcherGenerationError(t *testing.T) {
	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.GenerateRequest) (string, error) {
		return "", errors.New("connection refused")
	})
	d := NewDispatcher(gen, 0)

	_, err := d.Invoke(context.Background(), Invocation{
		Agent:  testAgent(),
		ToolID: "tg",
		Prompt: "anything",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestDispatcherSimulatedTool(t *testing.T) {
	d := NewDispatcher(nil, 0)

	result, err := d.Invoke(context.Background(), Invocation{
		Agent:  testAgent(),
		ToolID: "ws",
		Prompt: "golang scheduler",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected simulated success")
	}
	if !strings.Contains(result.Output, "web-search") {
		t.Errorf("expected tool name in output, got %q", result.Output)
	}
}

func TestDispatcherUnknownTool(t *testing.T) {
	d := NewDispatcher(nil, 0)

	_, err := d.Invoke(context.Background(), Invocation{
		Agent:  testAgent(),
		ToolID: "missing",
	})
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !strings.Contains(err.Error(), "does not have access") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDispatcherDelegationDenied(t *testing.T) {
	d := NewDispatcher(nil, 0)

	_, err := d.Invoke(context.Background(), Invocation{
		Agent:              testAgent(),
		ToolID:             "ws",
		RequiresDelegation: true,
	})
	if err == nil {
		t.Fatal("expected error for delegation without capability")
	}
	if !strings.Contains(err.Error(), "cannot delegate") {
		t.Errorf("unexpected error: %v", err)
	}
}
