package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glintcart/glintbot/internal/logging"
)

func newTestClient(t *testing.T, baseURL string) *OpenAICompatClient {
	t.Helper()
	c := NewOpenAICompatClient(OpenAICompatConfig{
		Name:    "deepseek",
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "deepseek-chat",
	}, logging.Nop())
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func completionBody(content string, toolCalls []map[string]any) map[string]any {
	msg := map[string]any{"role": "assistant", "content": content}
	if toolCalls != nil {
		msg["tool_calls"] = toolCalls
	}
	return map[string]any{
		"id":      "cmpl-1",
		"object":  "chat.completion",
		"model":   "deepseek-chat",
		"choices": []map[string]any{{"index": 0, "message": msg, "finish_reason": "stop"}},
		"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func TestComplete_Content(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(completionBody("hello there", nil))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1")
	resp, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestComplete_ToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "auto", req["tool_choice"])
		require.NotEmpty(t, req["tools"])

		json.NewEncoder(w).Encode(completionBody("", []map[string]any{{
			"id":   "call_1",
			"type": "function",
			"function": map[string]any{
				"name":      "search_catalog",
				"arguments": `{"query":"saree"}`,
			},
		}}))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1")
	resp, err := c.Complete(context.Background(), CompletionRequest{
		Messages:   []Message{{Role: RoleUser, Content: "find sarees"}},
		Tools:      []ToolDefinition{{Name: "search_catalog", Schema: `{"type":"object"}`}},
		ToolChoice: ToolChoiceAuto,
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "search_catalog", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"saree"}`, resp.ToolCalls[0].Arguments)
}

func TestComplete_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
			return
		}
		json.NewEncoder(w).Encode(completionBody("recovered", nil))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1")
	resp, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_ExhaustedRetriesSurfaceTypedError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1")
	_, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ErrKindConnection, provErr.Kind)
	assert.Equal(t, int32(maxAttempts), calls.Load())
}

func TestComplete_ProtocolErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/v1")
	_, err := c.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, ErrKindProtocol, provErr.Kind)
	assert.False(t, provErr.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, ErrKindRateLimit, classifyStatus(429))
	assert.Equal(t, ErrKindConnection, classifyStatus(500))
	assert.Equal(t, ErrKindConnection, classifyStatus(503))
	assert.Equal(t, ErrKindConnection, classifyStatus(0))
	assert.Equal(t, ErrKindProtocol, classifyStatus(400))
	assert.Equal(t, ErrKindProtocol, classifyStatus(401))
}

func TestToAPIMessages_ToolTurns(t *testing.T) {
	msgs := toAPIMessages([]Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "search_faq", Arguments: `{"query":"returns"}`}}},
		{Role: RoleTool, ToolCallID: "c1", Content: `{"answer":"30 days"}`},
	})
	require.Len(t, msgs, 2)
	require.Len(t, msgs[0].ToolCalls, 1)
	assert.Equal(t, "search_faq", msgs[0].ToolCalls[0].Function.Name)
	assert.Equal(t, "c1", msgs[1].ToolCallID)
}

func TestUsageAdd(t *testing.T) {
	var total Usage
	total.Add(Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	total.Add(Usage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30})
	assert.Equal(t, Usage{PromptTokens: 30, CompletionTokens: 15, TotalTokens: 45}, total)
}
