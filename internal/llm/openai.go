package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/glintcart/glintbot/internal/logging"
)

const (
	defaultCallTimeout = 60 * time.Second
	maxAttempts        = 3
	backoffBase        = 2 * time.Second
	backoffCap         = 30 * time.Second
)

// OpenAICompatConfig configures an OpenAI-compatible provider (DeepSeek by
// default; any endpoint speaking the chat-completions dialect works).
type OpenAICompatConfig struct {
	Name        string // provider name for logs, e.g. "deepseek"
	APIKey      string
	BaseURL     string // empty uses the OpenAI default
	Model       string
	CallTimeout time.Duration
}

// OpenAICompatClient implements Client over the chat-completions API with
// native function calling and bounded retry at the call boundary.
type OpenAICompatClient struct {
	name    string
	model   string
	timeout time.Duration
	api     *openai.Client
	log     *logging.Logger

	// sleep is swappable in tests so retries don't actually wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOpenAICompatClient creates a provider client.
func NewOpenAICompatClient(cfg OpenAICompatConfig, log *logging.Logger) *OpenAICompatClient {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	return &OpenAICompatClient{
		name:    name,
		model:   cfg.Model,
		timeout: timeout,
		api:     openai.NewClientWithConfig(apiCfg),
		log:     log.Sub("llm." + name),
		sleep:   sleepCtx,
	}
}

// Name returns the provider name.
func (c *OpenAICompatClient) Name() string { return c.name }

// Complete sends a chat completion request, retrying transient failures
// with exponential backoff before surfacing a typed error.
func (c *OpenAICompatClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	apiReq := c.buildRequest(req)

	var lastErr *ProviderError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateChatCompletion(callCtx, apiReq)
		cancel()

		if err == nil {
			return convertResponse(resp), nil
		}

		lastErr = c.classify(err)
		if !lastErr.Retryable() || attempt == maxAttempts {
			break
		}

		wait := backoffBase << (attempt - 1)
		if wait > backoffCap {
			wait = backoffCap
		}
		c.log.Warn().
			Int("attempt", attempt).
			Str("kind", string(lastErr.Kind)).
			Dur("backoff", wait).
			Err(err).
			Msg("completion failed, retrying")
		if err := c.sleep(ctx, wait); err != nil {
			break
		}
	}

	return nil, lastErr
}

func (c *OpenAICompatClient) buildRequest(req CompletionRequest) openai.ChatCompletionRequest {
	apiReq := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  toAPIMessages(req.Messages),
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		apiReq.Temperature = float32(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		apiReq.Tools = toAPITools(req.Tools)
		if req.ToolChoice != "" {
			apiReq.ToolChoice = req.ToolChoice
		}
	}
	return apiReq
}

// classify maps SDK errors onto the ProviderError taxonomy.
func (c *OpenAICompatClient) classify(err error) *ProviderError {
	kind := ErrKindConnection

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	var netErr net.Error

	switch {
	case errors.As(err, &apiErr):
		kind = classifyStatus(apiErr.HTTPStatusCode)
	case errors.As(err, &reqErr):
		kind = classifyStatus(reqErr.HTTPStatusCode)
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		kind = ErrKindConnection
	default:
		kind = ErrKindConnection
	}

	return &ProviderError{Provider: c.name, Kind: kind, Err: err}
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return ErrKindRateLimit
	case status >= 500, status == 0:
		return ErrKindConnection
	default:
		return ErrKindProtocol
	}
}

func toAPIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		am := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			am.ToolCalls = append(am.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, am)
	}
	return out
}

func toAPITools(tools []ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.Schema),
			},
		})
	}
	return out
}

func convertResponse(resp openai.ChatCompletionResponse) *CompletionResponse {
	out := &CompletionResponse{
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	out.FinishReason = string(choice.FinishReason)
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
