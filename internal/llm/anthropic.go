package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	. "github.com/sozolabs/sozograph/internal/logging"
)

const (
	defaultAnthropicTimeout   = 60 * time.Second
	defaultAnthropicMaxTokens = 4096
)

// AnthropicProvider talks to the Anthropic Messages API.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewAnthropicProvider creates a provider from config.
func NewAnthropicProvider(cfg ProviderConfig) (*AnthropicProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic: model is required")
	}
	if cfg.APIKey == "" {
		return nil, ErrUnavailable{Provider: "anthropic", Reason: "no API key configured"}
	}

	timeout := defaultAnthropicTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	L_debug("anthropic provider created", "model", cfg.Model, "maxTokens", maxTokens)

	return &AnthropicProvider{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.model }

// SimpleMessage sends a single-turn message.
func (p *AnthropicProvider) SimpleMessage(ctx context.Context, userMessage, systemPrompt string) (string, error) {
	return p.complete(ctx, userMessage, systemPrompt)
}

// JSONMessage sends a single-turn message. The Messages API has no JSON
// response format, so the system prompt carries the JSON-only instruction and
// the reply is stripped of any code fences.
func (p *AnthropicProvider) JSONMessage(ctx context.Context, userMessage, systemPrompt string) (string, error) {
	text, err := p.complete(ctx, userMessage, systemPrompt)
	if err != nil {
		return "", err
	}
	return StripCodeFences(text), nil
}

func (p *AnthropicProvider) complete(ctx context.Context, userMessage, systemPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if p.temperature > 0 {
		params.Temperature = anthropic.Float(float64(p.temperature))
	}

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic message: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(variant.Text)
		}
	}

	L_debug("anthropic: message finished",
		"model", p.model,
		"inputTokens", msg.Usage.InputTokens,
		"outputTokens", msg.Usage.OutputTokens,
		"elapsed", time.Since(start))

	return sb.String(), nil
}

// StripCodeFences removes a surrounding markdown code fence, if any. Models
// without a JSON response mode often wrap JSON in ```json fences.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.Index(trimmed, "\n"); nl >= 0 {
		trimmed = trimmed[nl+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
