package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rfonseca85/mcp-generator/llm"
)

func newTestProvider(url string) *Provider {
	return New(Config{
		ProviderName: "test",
		APIKey:       "sk-test",
		BaseURL:      url,
		DefaultModel: "gpt-4o-mini",
	}, zap.NewNop())
}

func TestCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-1",
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": "hello"}},
			},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.FirstContent())
	assert.Equal(t, 4, resp.Usage.TotalTokens)
	assert.Equal(t, "test", resp.Provider)
}

func TestCompletionJSONOnlySetsResponseFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rf, ok := body["response_format"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "json_object", rf["type"])

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "{}"}},
			},
		})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "plan"}},
		JSONOnly: true,
	})
	require.NoError(t, err)
}

func TestCompletionErrorMapping(t *testing.T) {
	cases := []struct {
		status    int
		wantCode  llm.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, llm.ErrUnauthorized, false},
		{http.StatusTooManyRequests, llm.ErrRateLimited, true},
		{http.StatusBadGateway, llm.ErrUpstreamError, true},
		{http.StatusGatewayTimeout, llm.ErrUpstreamTimeout, true},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "upstream said no"},
			})
		}))

		p := newTestProvider(srv.URL)
		_, err := p.Completion(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		})
		require.Error(t, err)

		var llmErr *llm.Error
		require.True(t, errors.As(err, &llmErr), "status %d", tc.status)
		assert.Equal(t, tc.wantCode, llmErr.Code, "status %d", tc.status)
		assert.Equal(t, tc.retryable, llmErr.Retryable, "status %d", tc.status)
		assert.Equal(t, "upstream said no", llmErr.Message)
		srv.Close()
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL)
	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Positive(t, status.Latency)
}

func TestHealthCheckUnreachable(t *testing.T) {
	p := newTestProvider("http://127.0.0.1:1")
	status, err := p.HealthCheck(context.Background())
	require.Error(t, err)
	require.NotNil(t, status)
	assert.False(t, status.Healthy)
}
