// Package ingest canonicalizes arbitrary caller input into Interactions and
// SourceRefs, and optionally rewrites weak interaction text through a
// fallback summarizer. Coalescing itself is pure and never calls out.
package ingest

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the two ingest knobs.
type Config struct {
	// EnableFallbackSummarizer allows weak interaction text to be rewritten
	// by the external summarizer.
	EnableFallbackSummarizer bool `json:"enableFallbackSummarizer"`
	// MaxInteractionChars bounds interaction text before the extractor
	// prompt is built.
	MaxInteractionChars int `json:"maxInteractionChars"`
}

// DefaultConfig returns the ingest defaults.
func DefaultConfig() Config {
	return Config{
		EnableFallbackSummarizer: true,
		MaxInteractionChars:      4000,
	}
}

// ConfigFromEnv loads the defaults with SOZOGRAPH_* environment overrides.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.EnableFallbackSummarizer = envBool("SOZOGRAPH_ENABLE_FALLBACK_SUMMARIZER", cfg.EnableFallbackSummarizer)
	if v := os.Getenv("SOZOGRAPH_MAX_INTERACTION_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxInteractionChars = n
		}
	}
	return cfg
}

func envBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
