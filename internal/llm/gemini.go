package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config == nil {
		config = DefaultGeminiConfig()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config.withDefaults(),
	}, nil
}

// Generate requests a JSON reply for the prompt
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.config.Model)
	model.SetTemperature(c.config.Temperature)
	model.SetMaxOutputTokens(int32(c.config.MaxTokens))
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", geminiError(err)
	}

	return extractTextFromResponse(resp)
}

// Model returns the configured model name
func (c *GeminiClient) Model() string {
	return c.config.Model
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// geminiError maps Google API errors onto APIError. Gemini reports overload as
// 503/UNAVAILABLE with an "overloaded" message; that case gets the canonical
// overloaded kind so it classifies the same way as the Anthropic 529.
func geminiError(err error) error {
	apiErr := &APIError{Provider: ProviderGemini, Cause: err, Message: err.Error()}

	var gerr *googleapi.Error
	var aerr *apierror.APIError
	switch {
	case errors.As(err, &gerr):
		apiErr.Status = gerr.Code
		apiErr.Message = gerr.Message
		if len(gerr.Errors) > 0 {
			apiErr.Kind = gerr.Errors[0].Reason
		}
	case errors.As(err, &aerr):
		apiErr.Status = aerr.HTTPCode()
		apiErr.Kind = aerr.Reason()
		if st := aerr.GRPCStatus(); st != nil {
			apiErr.Message = st.Message()
			if apiErr.Kind == "" {
				apiErr.Kind = st.Code().String()
			}
			if st.Code() == codes.Unavailable && apiErr.Status <= 0 {
				apiErr.Status = http.StatusServiceUnavailable
			}
		}
	default:
		return fmt.Errorf("failed to generate content: %w", err)
	}

	if apiErr.Status == http.StatusServiceUnavailable && strings.Contains(strings.ToLower(apiErr.Message), "overloaded") {
		apiErr.Kind = "overloaded_error"
	}
	return apiErr
}

// extractTextFromResponse extracts text from Gemini API response
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &ResponseError{Message: "no candidates in response"}
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", &ResponseError{Message: "no content in response"}
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", &ResponseError{Message: "no text parts in response"}
	}

	return strings.Join(parts, ""), nil
}
