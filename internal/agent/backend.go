package agent

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// BackendConfig selects and configures the chat backend. The backend is
// fixed at construction; switching requires a restart.
type BackendConfig struct {
	// Backend is "ollama" (default) or "openai". The openai backend
	// works against any OpenAI-compatible chat completions endpoint.
	Backend string

	// BaseURL of the backend server. Required for openai; defaults to
	// the local Ollama socket for ollama.
	BaseURL string

	// Model name, e.g. "llama3.1" or "gpt-4o-mini".
	Model string

	// APIKey authenticates openai requests. Optional for self-hosted
	// endpoints, langchaingo still requires a non-empty token.
	APIKey string
}

// NewChatModel builds the configured chat backend.
func NewChatModel(cfg BackendConfig) (llms.Model, error) {
	switch cfg.Backend {
	case "ollama", "":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
		return llm, nil

	case "openai":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai backend requires a base URL")
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "not-needed"
		}
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithModel(cfg.Model),
			openai.WithToken(apiKey),
		)
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		return llm, nil

	default:
		return nil, fmt.Errorf("unknown chat backend %q (supported: ollama, openai)", cfg.Backend)
	}
}
