package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates the backend named by cfg.Driver.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "openai":
		return NewOpenAIProvider(cfg)
	case "anthropic":
		return NewAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown llm driver %q", cfg.Driver)
	}
}
