// ABOUTME: OpenAI generation backend using the go-openai chat completions client
// ABOUTME: Same single-attempt, timeout-bounded contract as the Gemini backend

package genai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI backend
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // overridable for tests and proxies
	Timeout time.Duration
}

// OpenAIBackend implements Backend via chat completions
type OpenAIBackend struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIBackend creates an OpenAI backend
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIBackend{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  slog.Default().With("component", "genai", "provider", "openai"),
	}
}

// Generate sends the prompt as a single user message and returns the first
// choice's content.
func (b *OpenAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Choices) == 0 {
		b.logger.Warn("openai response had no choices")
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}
