package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	. "github.com/sozolabs/sozograph/internal/logging"
)

const (
	defaultOpenAITimeout   = 60 * time.Second
	defaultOpenAIMaxTokens = 4096
)

// OpenAIProvider talks to OpenAI or any OpenAI-compatible API via BaseURL.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewOpenAIProvider creates a provider from config. API key is optional for
// local OpenAI-compatible servers.
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		if cfg.BaseURL == "" {
			return nil, ErrUnavailable{Provider: "openai", Reason: "no API key configured"}
		}
		apiKey = "not-needed"
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/v1") && !strings.HasSuffix(baseURL, "/v1/") {
			baseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
		}
		clientCfg.BaseURL = baseURL
	}

	timeout := defaultOpenAITimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultOpenAIMaxTokens
	}

	L_debug("openai provider created", "model", cfg.Model, "baseURL", cfg.BaseURL, "maxTokens", maxTokens)

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
	}, nil
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.model }

// SimpleMessage sends a single-turn chat completion request.
func (p *OpenAIProvider) SimpleMessage(ctx context.Context, userMessage, systemPrompt string) (string, error) {
	return p.complete(ctx, userMessage, systemPrompt, nil)
}

// JSONMessage requests a JSON object response via response_format.
func (p *OpenAIProvider) JSONMessage(ctx context.Context, userMessage, systemPrompt string) (string, error) {
	return p.complete(ctx, userMessage, systemPrompt, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (p *OpenAIProvider) complete(ctx context.Context, userMessage, systemPrompt string, format *openai.ChatCompletionResponseFormat) (string, error) {
	var messages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:          p.model,
		Messages:       messages,
		MaxTokens:      p.maxTokens,
		Temperature:    p.temperature,
		ResponseFormat: format,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty response")
	}

	L_debug("openai: completion finished",
		"model", p.model,
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
		"elapsed", time.Since(start))

	return resp.Choices[0].Message.Content, nil
}
