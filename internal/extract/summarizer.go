package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sozolabs/sozograph/internal/canonical"
	"github.com/sozolabs/sozograph/internal/llm"
)

// Summarizer rewrites raw structured payloads into short prose the extractor
// can work with. Satisfies ingest.Summarizer.
type Summarizer struct {
	provider llm.Provider
}

// NewSummarizer creates a fallback summarizer over the given backend.
func NewSummarizer(provider llm.Provider) *Summarizer {
	return &Summarizer{provider: provider}
}

// Summarize renders payload as JSON and asks the model for a compact summary.
func (s *Summarizer) Summarize(ctx context.Context, payload any) (string, error) {
	objectJSON, err := json.Marshal(payload)
	if err != nil {
		objectJSON = []byte(canonical.SafeStringify(payload))
	}

	prompt := fmt.Sprintf(summarizerUserPromptTemplate, string(objectJSON))
	reply, err := s.provider.SimpleMessage(ctx, prompt, summarizerSystemPrompt)
	if err != nil {
		return "", fmt.Errorf("fallback summarize: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
