package llm

import (
	"context"
	"fmt"
)

// Client is an abstraction over LLM providers. Implementations are safe for concurrent use.
type Client interface {
	// Generate sends the prompt as a single user message and returns the raw text reply
	Generate(ctx context.Context, prompt string) (string, error)
	// Model returns the model name requests are sent to
	Model() string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config = config.withDefaults()

	switch config.Provider {
	case ProviderAnthropic:
		return NewAnthropicClient(config, apiKey, nil)
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", config.Provider)
	}
}
