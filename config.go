package sozograph

import (
	"os"
	"strconv"

	"github.com/sozolabs/sozograph/internal/ingest"
	"github.com/sozolabs/sozograph/internal/llm"
	"github.com/sozolabs/sozograph/internal/logging"
)

// Config is the full pipeline configuration.
type Config struct {
	// Extractor is the backend used for extraction.
	Extractor llm.ProviderConfig `json:"extractor"`
	// FallbackModel is the model used by the fallback summarizer. Empty means
	// the extractor's model.
	FallbackModel string `json:"fallbackModel"`

	Ingest ingest.Config `json:"ingest"`

	// ContextBudget is the default character budget for ExportContext.
	ContextBudget int `json:"contextBudget"`
	// Parallelism bounds concurrent extraction calls. Merging stays ordered
	// regardless.
	Parallelism int `json:"parallelism"`

	Logging *logging.Config `json:"logging"`
}

// DefaultConfig returns the pipeline defaults. No API key is set; callers
// provide one via config or environment.
func DefaultConfig() Config {
	return Config{
		Extractor: llm.ProviderConfig{
			Driver:      "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
		},
		Ingest:        ingest.DefaultConfig(),
		ContextBudget: 3000,
		Parallelism:   1,
		Logging:       logging.DefaultConfig(),
	}
}

// ConfigFromEnv loads the defaults with SOZOGRAPH_* environment overrides.
// The API key also falls back to the driver's conventional variable.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("SOZOGRAPH_LLM_DRIVER"); v != "" {
		cfg.Extractor.Driver = v
	}
	if v := os.Getenv("SOZOGRAPH_EXTRACTOR_MODEL"); v != "" {
		cfg.Extractor.Model = v
	}
	if v := os.Getenv("SOZOGRAPH_FALLBACK_MODEL"); v != "" {
		cfg.FallbackModel = v
	}
	if v := os.Getenv("SOZOGRAPH_BASE_URL"); v != "" {
		cfg.Extractor.BaseURL = v
	}

	cfg.Extractor.APIKey = firstEnv("SOZOGRAPH_API_KEY")
	if cfg.Extractor.APIKey == "" {
		switch cfg.Extractor.Driver {
		case "anthropic":
			cfg.Extractor.APIKey = firstEnv("ANTHROPIC_API_KEY")
		default:
			cfg.Extractor.APIKey = firstEnv("OPENAI_API_KEY")
		}
	}

	if n, ok := envInt("SOZOGRAPH_DEFAULT_CONTEXT_BUDGET"); ok {
		cfg.ContextBudget = n
	}
	if n, ok := envInt("SOZOGRAPH_PARALLELISM"); ok && n > 0 {
		cfg.Parallelism = n
	}

	cfg.Ingest = ingest.ConfigFromEnv()
	return cfg
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
