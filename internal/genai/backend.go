// ABOUTME: Generation backend interface and factory for docbot-gateway
// ABOUTME: Backends are opaque prompt-in/completion-out calls with no internal retries

package genai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docbot/docbot-gateway/internal/config"
)

// ErrGenerationFailed wraps backend transport and API failures. The pipeline
// treats any Generate error as a signal to fall back, never to retry.
var ErrGenerationFailed = errors.New("generation failed")

// DefaultTimeout bounds a single generation call when the config does not
// set one.
const DefaultTimeout = 20 * time.Second

// Backend is an opaque text-generation call: prompt in, completion text or
// failure out. Implementations apply their own request-level timeout and make
// exactly one attempt per call.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New creates a generation backend from config. Supported providers are
// "gemini" and "openai".
func New(cfg config.GenerationConfig) (Backend, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiBackend(GeminiConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		}), nil
	case "openai":
		return NewOpenAIBackend(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %q", cfg.Provider)
	}
}
