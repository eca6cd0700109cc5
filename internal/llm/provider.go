// Package llm provides the model backends used by the extractor and the
// fallback summarizer. Two drivers are supported: "openai" (and any
// OpenAI-compatible endpoint via BaseURL) and "anthropic".
package llm

import "context"

// Provider is the minimal chat interface the pipeline needs.
type Provider interface {
	// Name returns the driver name (e.g. "openai", "anthropic").
	Name() string
	// Model returns the configured model.
	Model() string

	// SimpleMessage sends one user message with a system prompt and returns
	// the text reply.
	SimpleMessage(ctx context.Context, userMessage, systemPrompt string) (string, error)

	// JSONMessage is SimpleMessage with the backend asked for a JSON object
	// reply where the API supports it. The returned string is the raw reply;
	// callers parse and validate it.
	JSONMessage(ctx context.Context, userMessage, systemPrompt string) (string, error)
}

// ProviderConfig configures a single backend.
type ProviderConfig struct {
	Driver         string  `json:"driver"`  // "openai" or "anthropic"
	APIKey         string  `json:"apiKey"`
	BaseURL        string  `json:"baseURL"` // OpenAI-compatible endpoints
	Model          string  `json:"model"`
	MaxTokens      int     `json:"maxTokens"`      // Output limit (0 = default)
	TimeoutSeconds int     `json:"timeoutSeconds"` // Request timeout (0 = default)
	Temperature    float32 `json:"temperature"`    // Sampling temperature
}

// ErrUnavailable is returned when a provider cannot accept requests.
type ErrUnavailable struct {
	Provider string
	Reason   string
}

func (e ErrUnavailable) Error() string {
	if e.Reason != "" {
		return e.Provider + " is unavailable: " + e.Reason
	}
	return e.Provider + " is unavailable"
}
