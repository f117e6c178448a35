package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/infinitum-cloud/infinitum/internal/domain"
	"github.com/infinitum-cloud/infinitum/internal/domain/retry"
	"github.com/infinitum-cloud/infinitum/internal/metrics"
)

// Message is a single chat completion turn.
type Message struct {
	Role    string
	Content string
}

// Chat message roles.
const (
	RoleSystem = openai.ChatMessageRoleSystem
	RoleUser   = openai.ChatMessageRoleUser
)

// LLM is a chat completion provider using the OpenAI-compatible API.
type LLM struct {
	client      *openai.Client
	model       string
	provider    string
	temperature float32
	maxTokens   int
	policy      retry.Policy
	logger      *zap.Logger
}

// LLMConfig holds the chat completion provider settings.
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Provider    string
	Temperature float32
	MaxTokens   int
	Policy      retry.Policy
	Logger      *zap.Logger
}

// NewLLM creates an OpenAI-compatible chat completion provider.
func NewLLM(cfg *LLMConfig) *LLM {
	clientCfg := clientConfig(cfg.APIKey, cfg.BaseURL)

	policy := cfg.Policy
	if policy.MaxAttempts() == 0 {
		policy = retry.DefaultPolicy()
	}

	return &LLM{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		provider:    cfg.Provider,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		policy:      policy,
		logger:      cfg.Logger,
	}
}

// Complete runs a chat completion and returns the assistant message.
// The purpose label distinguishes pipeline stages in metrics.
func (l *LLM) Complete(ctx context.Context, purpose string, msgs []Message) (string, error) {
	return l.complete(ctx, purpose, msgs, nil)
}

// CompleteJSON runs a chat completion constrained to a JSON object response.
func (l *LLM) CompleteJSON(ctx context.Context, purpose string, msgs []Message) (string, error) {
	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	return l.complete(ctx, purpose, msgs, format)
}

func (l *LLM) complete(ctx context.Context, purpose string, msgs []Message, format *openai.ChatCompletionResponseFormat) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:          l.model,
		Messages:       toChatMessages(msgs),
		Temperature:    l.temperature,
		MaxTokens:      l.maxTokens,
		ResponseFormat: format,
	}

	var content string
	err := l.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		resp, err := l.client.CreateChatCompletion(ctx, req)
		duration := time.Since(start)

		if err != nil {
			metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, purpose, "error").Inc()
			return parseChatError(err)
		}
		if len(resp.Choices) == 0 {
			metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, purpose, "error").Inc()
			return fmt.Errorf("empty completion response: %w", domain.ErrLLMUnavailable)
		}

		metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, purpose, "success").Inc()
		metrics.LLMRequestDuration.WithLabelValues(l.provider, l.model, purpose).Observe(duration.Seconds())
		metrics.LLMTokensTotal.WithLabelValues(l.provider, l.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(l.provider, l.model, "completion").Add(float64(resp.Usage.CompletionTokens))

		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// Stream runs a streaming chat completion, invoking emit for each content
// delta. Returns the full assembled message. Streaming is not retried: a
// failure after the first delta would duplicate output.
func (l *LLM) Stream(ctx context.Context, purpose string, msgs []Message, emit func(delta string) error) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.policy.CallTimeout())
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    toChatMessages(msgs),
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
		Stream:      true,
	}

	start := time.Now()
	stream, err := l.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, purpose, "error").Inc()
		return "", parseChatError(err)
	}
	defer stream.Close()

	var full string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, purpose, "error").Inc()
			return "", parseChatError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full += delta
		if emit != nil {
			if err := emit(delta); err != nil {
				return "", fmt.Errorf("emit delta: %w", err)
			}
		}
	}

	metrics.LLMRequestsTotal.WithLabelValues(l.provider, l.model, purpose, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(l.provider, l.model, purpose).Observe(time.Since(start).Seconds())
	return full, nil
}

// HealthCheck verifies API availability via ListModels.
func (l *LLM) HealthCheck(ctx context.Context) error {
	if _, err := l.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func toChatMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// parseChatError wraps completion failures with domain.ErrLLMUnavailable.
func parseChatError(err error) error {
	wrap := domain.ErrLLMUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("completion API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("completion request failed: %w", wrap)
}
