// Package llm provides the remote language-model clients used by the pipeline.
// One client is built at startup and shared read-only by all requests.
package llm

import "time"

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderAnthropic is the Anthropic Messages API
	ProviderAnthropic Provider = "anthropic"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Defaults for the Anthropic provider
const (
	DefaultAnthropicModel   = "claude-sonnet-4-20250514"
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
	DefaultMaxTokens        = 4000
	DefaultTimeout          = 120 * time.Second
)

// DefaultGeminiModel is used when the Gemini provider is selected without a model.
const DefaultGeminiModel = "gemini-2.5-flash"

// Config holds the model configuration for the application
type Config struct {
	Provider    Provider
	Model       string
	MaxTokens   int
	Temperature float32
	BaseURL     string        // Anthropic only
	Timeout     time.Duration // per-attempt HTTP timeout
}

// DefaultConfig returns the default configuration (Anthropic)
func DefaultConfig() *Config {
	return &Config{
		Provider:    ProviderAnthropic,
		Model:       DefaultAnthropicModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: 0.1,
		BaseURL:     DefaultAnthropicBaseURL,
		Timeout:     DefaultTimeout,
	}
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider:    ProviderGemini,
		Model:       DefaultGeminiModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: 0.1,
		Timeout:     DefaultTimeout,
	}
}

// withDefaults fills zero fields from the provider's defaults.
func (c *Config) withDefaults() *Config {
	base := DefaultConfig()
	if c.Provider == ProviderGemini {
		base = DefaultGeminiConfig()
	}
	out := *c
	if out.Provider == "" {
		out.Provider = base.Provider
	}
	if out.Model == "" {
		out.Model = base.Model
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = base.MaxTokens
	}
	if out.BaseURL == "" {
		out.BaseURL = base.BaseURL
	}
	if out.Timeout <= 0 {
		out.Timeout = base.Timeout
	}
	return &out
}
