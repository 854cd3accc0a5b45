package invoke

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelabs/agentmesh/internal/llm"
	"github.com/kestrelabs/agentmesh/pkg/models"
)

// Dispatcher routes invocations by tool kind: text-generation goes to the
// configured TextGenerator, every other tool runs through the simulated
// path with a fixed delay and a templated output string. Real dispatch for
// non-LLM tools is out of scope of the orchestration core.
type Dispatcher struct {
	generator llm.TextGenerator
	simDelay  time.Duration
}

// NewDispatcher creates a dispatcher backed by the given text generator.
// simDelay is the artificial latency applied to simulated tools; zero
// disables the delay.
func NewDispatcher(generator llm.TextGenerator, simDelay time.Duration) *Dispatcher {
	return &Dispatcher{
		generator: generator,
		simDelay:  simDelay,
	}
}

// Invoke implements Invoker.
func (d *Dispatcher) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	tool, err := checkInvocation(inv)
	if err != nil {
		return nil, err
	}

	if tool.Name == models.TextGenerationTool {
		return d.generate(ctx, inv)
	}
	return d.simulate(ctx, tool)
}

// generate performs the one real external effect of the core: an outbound
// LLM call through the configured backend.
func (d *Dispatcher) generate(ctx context.Context, inv Invocation) (*Result, error) {
	if d.generator == nil {
		return nil, fmt.Errorf("no text-generation backend configured")
	}

	text, err := d.generator.Generate(ctx, llm.GenerateRequest{
		Model:        inv.Agent.Model,
		SystemPrompt: inv.Agent.SystemPrompt,
		Prompt:       inv.Prompt,
		Temperature:  inv.Agent.Temperature,
		MaxTokens:    inv.Agent.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("tool execution failed: %w", err)
	}

	return &Result{Success: true, Output: text}, nil
}

// simulate fakes a non-LLM tool run.
func (d *Dispatcher) simulate(ctx context.Context, tool *models.Tool) (*Result, error) {
	if d.simDelay > 0 {
		select {
		case <-time.After(d.simDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return &Result{
		Success: true,
		Output:  fmt.Sprintf("Executed %s (simulated)", tool.Name),
	}, nil
}
