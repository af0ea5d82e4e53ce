// Package config loads the service configuration from the environment.
// Values are read once at startup and never mutated afterwards.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/jonathan/cv-generator/internal/llm"
	"github.com/jonathan/cv-generator/internal/retry"
	"github.com/jonathan/cv-generator/internal/server/ratelimit"
)

var singleConfig *Config = nil

// Config is the complete service configuration
type Config struct {
	LLM       LLMConfig
	Retry     RetryConfig
	Pipeline  PipelineConfig
	Render    RenderConfig
	HTTP      HTTPConfig
	RateLimit RateLimitConfig
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// LLMConfig selects and tunes the remote model
type LLMConfig struct {
	Provider        string        `envconfig:"LLM_PROVIDER" default:"anthropic" validate:"oneof=anthropic gemini"`
	AnthropicAPIKey string        `envconfig:"ANTHROPIC_API_KEY" validate:"required_if=Provider anthropic"`
	GeminiAPIKey    string        `envconfig:"GEMINI_API_KEY" validate:"required_if=Provider gemini"`
	Model           string        `envconfig:"LLM_MODEL"`
	MaxTokens       int           `envconfig:"LLM_MAX_TOKENS" default:"4000" validate:"gte=1,lte=64000"`
	BaseURL         string        `envconfig:"LLM_BASE_URL" validate:"omitempty,url"`
	Timeout         time.Duration `envconfig:"LLM_TIMEOUT" default:"2m" validate:"gt=0"`
}

// RetryConfig bounds the remote call retries
type RetryConfig struct {
	MaxRetries        int           `envconfig:"RETRY_MAX" default:"4" validate:"gte=0,lte=10"`
	BaseDelay         time.Duration `envconfig:"RETRY_BASE_DELAY" default:"2s" validate:"gt=0"`
	RemoteCallCeiling time.Duration `envconfig:"REMOTE_CALL_CEILING" default:"5m" validate:"gt=0"`
}

// PipelineConfig covers extraction and scratch storage
type PipelineConfig struct {
	ScratchDir     string        `envconfig:"CV_SCRATCH_DIR"`
	PdftotextBin   string        `envconfig:"PDFTOTEXT_BIN" default:"pdftotext"`
	ReferenceURLs  bool          `envconfig:"REFERENCE_URL_ENABLED" default:"false"`
	UseBrowser     bool          `envconfig:"REFERENCE_USE_BROWSER" default:"false"`
	FetchTimeout   time.Duration `envconfig:"REFERENCE_FETCH_TIMEOUT" default:"30s" validate:"gt=0"`
	MaxUploadBytes int64         `envconfig:"MAX_UPLOAD_BYTES" default:"10485760" validate:"gte=1024"`
}

// RenderConfig points at the external document renderer
type RenderConfig struct {
	TemplatePath string        `envconfig:"CV_TEMPLATE_PATH" default:"public/szablon_firmowy.docx" validate:"required"`
	Script       string        `envconfig:"CV_RENDER_SCRIPT" default:"lib/generate_cv.py" validate:"required"`
	Python       string        `envconfig:"CV_PYTHON" default:"python3" validate:"required"`
	Timeout      time.Duration `envconfig:"CV_RENDER_TIMEOUT" default:"60s" validate:"gt=0"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8080" validate:"gte=1,lte=65535"`
	MaxConcurrent   int64         `envconfig:"MAX_CONCURRENT" default:"8" validate:"gte=1"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s" validate:"gt=0"`
}

// RateLimitConfig configures per-client rate limiting
type RateLimitConfig struct {
	Enabled         bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	DefaultLimit    int           `envconfig:"RATE_LIMIT_DEFAULT_LIMIT" default:"600" validate:"gte=0"`
	DefaultWindow   time.Duration `envconfig:"RATE_LIMIT_DEFAULT_WINDOW" default:"1m" validate:"gt=0"`
	GenerateLimit   int           `envconfig:"RATE_LIMIT_GENERATE_LIMIT" default:"30" validate:"gte=0"`
	GenerateWindow  time.Duration `envconfig:"RATE_LIMIT_GENERATE_WINDOW" default:"1h" validate:"gt=0"`
	GenerateBurst   int           `envconfig:"RATE_LIMIT_GENERATE_BURST" default:"5" validate:"gte=0"`
	CleanupInterval time.Duration `envconfig:"RATE_LIMIT_CLEANUP_INTERVAL" default:"5m"`
	Whitelist       string        `envconfig:"RATE_LIMIT_WHITELIST"`
	Blacklist       string        `envconfig:"RATE_LIMIT_BLACKLIST"`
}

// New returns the process-wide configuration, loading it on first use.
func New() (*Config, error) {
	if singleConfig == nil {
		cfg, err := Load()
		if err != nil {
			return nil, err
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}

// Load reads and validates the configuration from the environment.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if cfg.Pipeline.ScratchDir == "" {
		cfg.Pipeline.ScratchDir = filepath.Join(os.TempDir(), "cv-generator")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// LLMClientConfig converts to the llm package configuration
func (c *Config) LLMClientConfig() *llm.Config {
	return &llm.Config{
		Provider:  llm.Provider(c.LLM.Provider),
		Model:     c.LLM.Model,
		MaxTokens: c.LLM.MaxTokens,
		BaseURL:   c.LLM.BaseURL,
		Timeout:   c.LLM.Timeout,
	}
}

// APIKey returns the key for the selected provider
func (c *Config) APIKey() string {
	if llm.Provider(c.LLM.Provider) == llm.ProviderGemini {
		return c.LLM.GeminiAPIKey
	}
	return c.LLM.AnthropicAPIKey
}

// RetryPolicy converts to the retry controller configuration
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		MaxRetries: c.Retry.MaxRetries,
		BaseDelay:  c.Retry.BaseDelay,
	}
}

// RateLimiter converts to the rate limiter configuration
func (c *Config) RateLimiter() *ratelimit.Config {
	return &ratelimit.Config{
		Enabled:         c.RateLimit.Enabled,
		DefaultLimit:    c.RateLimit.DefaultLimit,
		DefaultWindow:   c.RateLimit.DefaultWindow,
		CleanupInterval: c.RateLimit.CleanupInterval,
		IdleTTL:         time.Hour,
		Whitelist:       ratelimit.ParseIPList(c.RateLimit.Whitelist),
		Blacklist:       ratelimit.ParseIPList(c.RateLimit.Blacklist),
		EndpointConfigs: ratelimit.DefaultEndpointConfigs(c.RateLimit.GenerateLimit, c.RateLimit.GenerateWindow, c.RateLimit.GenerateBurst),
	}
}
