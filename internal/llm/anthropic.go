package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const shouldRetryHeader = "x-should-retry"

// AnthropicClient implements Client for the Anthropic Messages API.
// The SDK's own retries are disabled; retry.Controller owns the retry loop.
type AnthropicClient struct {
	client anthropic.Client
	config *Config
}

// NewAnthropicClient creates a new Anthropic client. A nil httpClient gets one with the configured timeout.
func NewAnthropicClient(config *Config, apiKey string, httpClient *http.Client) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	config = config.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		config: config,
	}, nil
}

type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the prompt and returns the concatenated text blocks of the reply
func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.config.Model),
		MaxTokens:   int64(c.config.MaxTokens),
		Temperature: anthropic.Float(float64(c.config.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var sdkErr *anthropic.Error
		if errors.As(err, &sdkErr) {
			return "", toAPIError(sdkErr)
		}
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", &ResponseError{Message: "no text content in response"}
	}
	return strings.Join(parts, ""), nil
}

// toAPIError copies the status, the error.type of the body and the
// x-should-retry header of an SDK error into the provider-neutral APIError.
func toAPIError(sdkErr *anthropic.Error) *APIError {
	apiErr := &APIError{
		Provider: ProviderAnthropic,
		Status:   sdkErr.StatusCode,
		Cause:    sdkErr,
	}
	if sdkErr.Response != nil {
		apiErr.Retry = strings.EqualFold(sdkErr.Response.Header.Get(shouldRetryHeader), "true")
	}

	var body anthropicErrorBody
	if err := json.Unmarshal([]byte(sdkErr.RawJSON()), &body); err == nil && body.Error.Type != "" {
		apiErr.Kind = body.Error.Type
		apiErr.Message = body.Error.Message
		return apiErr
	}
	apiErr.Message = http.StatusText(sdkErr.StatusCode)
	return apiErr
}

// Model returns the configured model name
func (c *AnthropicClient) Model() string {
	return c.config.Model
}

// Close is a no-op; the SDK client holds no per-client resources
func (c *AnthropicClient) Close() error {
	return nil
}
