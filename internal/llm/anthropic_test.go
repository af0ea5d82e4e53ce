package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *AnthropicClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewAnthropicClient(&Config{BaseURL: srv.URL}, "test-key", srv.Client())
	require.NoError(t, err)
	return client
}

func TestAnthropicGenerate_Success(t *testing.T) {
	client := newTestAnthropic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, DefaultAnthropicModel, req.Model)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		require.Len(t, req.Messages[0].Content, 1)
		assert.Equal(t, "hello", req.Messages[0].Content[0].Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[{"type":"text","text":"{\"name\":"},{"type":"text","text":"\"Jan\"}"}],"stop_reason":"end_turn"}`))
	})

	out, err := client.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Jan"}`, out)
}

func TestAnthropicGenerate_Overloaded(t *testing.T) {
	var calls atomic.Int32
	client := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	})

	_, err := client.Generate(context.Background(), "hello")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 529, apiErr.StatusCode())
	assert.Equal(t, "overloaded_error", apiErr.FailureKind())
	assert.Equal(t, "Overloaded", apiErr.Message)
	assert.False(t, apiErr.ShouldRetry())
	assert.Contains(t, apiErr.Error(), "status 529")
	assert.Equal(t, int32(1), calls.Load(), "client must not retry on its own")
}

func TestAnthropicGenerate_ShouldRetryHeader(t *testing.T) {
	client := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-should-retry", "true")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	})

	_, err := client.Generate(context.Background(), "hello")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.ShouldRetry())
	assert.Equal(t, "api_error", apiErr.Kind)
}

func TestAnthropicGenerate_NonJSONErrorBody(t *testing.T) {
	client := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	_, err := client.Generate(context.Background(), "hello")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Empty(t, apiErr.Kind)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestAnthropicGenerate_NoTextContent(t *testing.T) {
	client := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[],"stop_reason":"end_turn"}`))
	})

	_, err := client.Generate(context.Background(), "hello")

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
}

func TestAnthropicGenerate_ContextCancelled(t *testing.T) {
	client := newTestAnthropic(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"x"}]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport failures carry no provider hints")
}

func TestNewAnthropicClient_RequiresKey(t *testing.T) {
	_, err := NewAnthropicClient(nil, "", nil)
	assert.Error(t, err)
}
