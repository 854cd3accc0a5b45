// Package llm provides text-generation backends for agent tool invocation.
package llm

import "context"

// GenerateRequest describes one text-generation call.
type GenerateRequest struct {
	// Model is the model identifier to use.
	Model string
	// SystemPrompt is prepended as the system message, if non-empty.
	SystemPrompt string
	// Prompt is the user message content.
	Prompt string
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens caps the response length. Zero means backend default.
	MaxTokens int
}

// TextGenerator produces text from a prompt. Implementations wrap one
// provider API; callers treat generation as an opaque capability that
// either returns text or fails.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GeneratorFunc adapts a function to the TextGenerator interface.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

// Generate implements TextGenerator.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}
