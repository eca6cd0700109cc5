package ingest

import (
	"context"
	"strings"
	"unicode"

	"github.com/sozolabs/sozograph/internal/canonical"
	"github.com/sozolabs/sozograph/internal/logging"
	"github.com/sozolabs/sozograph/passport"
)

const (
	weakMinChars      = 30
	weakMinAlnumRatio = 0.35

	// FallbackText is used when summarization is disabled or fails.
	FallbackText = "Database object (unstructured)."
)

// Summarizer rewrites structured-data noise into a short factual summary.
// Implemented by the extract package; stubbed in tests.
type Summarizer interface {
	Summarize(ctx context.Context, payload any) (string, error)
}

// IsTextTooWeak reports whether text is unlikely to yield useful extraction:
// empty, too short, or mostly non-alphanumeric punctuation soup.
func IsTextTooWeak(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	if len([]rune(trimmed)) < weakMinChars {
		return true
	}
	var alnum, total int
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 {
		return true
	}
	return float64(alnum)/float64(total) < weakMinAlnumRatio
}

// ApplyFallbackSummaries bounds each interaction's text and replaces weak
// text with a model-written summary. Summarizer failures are non-fatal; the
// weak text is kept as-is.
func ApplyFallbackSummaries(ctx context.Context, cfg Config, sum Summarizer, items []passport.Interaction) []passport.Interaction {
	out := make([]passport.Interaction, len(items))
	copy(out, items)

	for i := range out {
		out[i].Text = out[i].ShortText(cfg.MaxInteractionChars)

		if !IsTextTooWeak(out[i].Text) {
			continue
		}
		if !cfg.EnableFallbackSummarizer || sum == nil {
			if strings.TrimSpace(out[i].Text) == "" {
				out[i].Text = FallbackText
			}
			continue
		}

		payload := any(out[i].Data)
		if out[i].Data == nil {
			payload = map[string]any{"text": out[i].Text}
		}

		summary, err := sum.Summarize(ctx, payload)
		if err != nil {
			logging.L_warn("ingest: fallback summarizer failed", "id", out[i].ID, "error", err)
			continue
		}
		summary = strings.TrimSpace(summary)
		if summary == "" {
			summary = FallbackText
		}
		out[i].Text = canonical.Truncate(summary, cfg.MaxInteractionChars)
	}
	return out
}
