package llm

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// ChatConfig contains configuration for creating a ChatClient.
type ChatConfig struct {
	// APIKey is the bearer token. If empty, uses OPENAI_API_KEY env var.
	APIKey string
	// BaseURL overrides the API endpoint, e.g. an OpenRouter URL.
	// Empty means the provider default.
	BaseURL string
	// Model is the default model when a request does not name one.
	Model string
}

// ChatClient is a TextGenerator backed by an OpenAI-compatible
// chat-completions endpoint. Any provider speaking that surface works,
// including OpenRouter.
type ChatClient struct {
	client *openai.Client
	model  string
}

// NewChatClient creates a chat-completions text generator.
func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required for chat completions")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &ChatClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Generate implements TextGenerator.
func (c *ChatClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion response contains no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
