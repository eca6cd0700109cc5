// Package sozograph turns transcripts and raw database objects into a
// portable cognitive Passport: canonicalize input into Interactions, extract
// candidate beliefs through an LLM, merge them temporally, and render a
// budget-bounded context string.
//
// Callers fetch from their stores however they want and pass plain values
// here; the pipeline never talks to a database on its own.
package sozograph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sozolabs/sozograph/internal/extract"
	"github.com/sozolabs/sozograph/internal/ingest"
	"github.com/sozolabs/sozograph/internal/llm"
	"github.com/sozolabs/sozograph/internal/logging"
	"github.com/sozolabs/sozograph/internal/render"
	"github.com/sozolabs/sozograph/internal/resolve"
	"github.com/sozolabs/sozograph/passport"
)

// Graph is the assembled pipeline.
type Graph struct {
	cfg        Config
	provider   llm.Provider
	extractor  *extract.Extractor
	summarizer ingest.Summarizer
}

// New builds a Graph from config. It fails fast when the extractor backend
// cannot be constructed (missing API key, unknown driver).
func New(cfg Config) (*Graph, error) {
	logging.Init(cfg.Logging)

	provider, err := llm.NewProvider(cfg.Extractor)
	if err != nil {
		return nil, fmt.Errorf("create extractor backend: %w", err)
	}

	summarizerCfg := cfg.Extractor
	if cfg.FallbackModel != "" {
		summarizerCfg.Model = cfg.FallbackModel
	}
	summarizerProvider, err := llm.NewProvider(summarizerCfg)
	if err != nil {
		return nil, fmt.Errorf("create summarizer backend: %w", err)
	}

	g := NewWithProvider(cfg, provider)
	g.summarizer = extract.NewSummarizer(summarizerProvider)
	return g, nil
}

// NewWithProvider builds a Graph over an injected backend. Used by tests and
// by callers that manage their own provider. The same backend serves the
// fallback summarizer.
func NewWithProvider(cfg Config, provider llm.Provider) *Graph {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.Ingest.MaxInteractionChars == 0 {
		cfg.Ingest = ingest.DefaultConfig()
	}
	return &Graph{
		cfg:        cfg,
		provider:   provider,
		extractor:  extract.New(provider),
		summarizer: extract.NewSummarizer(provider),
	}
}

// Ingest canonicalizes data, extracts candidate updates, and merges them into
// p in interaction order. It returns per-interaction merge stats and the
// Interactions themselves.
//
// data can be a string (transcript), a mapping (document / envelope), a list
// (mixed), or a scalar. hint and meta are optional.
func (g *Graph) Ingest(ctx context.Context, p *passport.Passport, data any, hint string, meta map[string]any) ([]passport.ResolveStats, []passport.Interaction, error) {
	interactions, sources := ingest.Coalesce(data, hint, meta)
	if len(interactions) == 0 {
		return nil, nil, nil
	}

	if p.UserKey == "" {
		if uk, ok := meta["user_key"].(string); ok {
			p.UserKey = uk
		}
	}

	sources = ingest.EnsureUniqueSourceIDs(p, sources)
	for _, src := range sources {
		p.UpsertSource(src)
	}
	p.Touch()

	var summarizer ingest.Summarizer
	if g.cfg.Ingest.EnableFallbackSummarizer {
		summarizer = g.summarizer
	}
	interactions = ingest.ApplyFallbackSummaries(ctx, g.cfg.Ingest, summarizer, interactions)

	updates, extractErrs := g.extractAll(ctx, interactions, sources)

	// Merge strictly in input order; stop at the first failed extraction so
	// temporal truth stays deterministic.
	var stats []passport.ResolveStats
	for i := range interactions {
		if extractErrs[i] != nil {
			return stats, interactions[:i], extractErrs[i]
		}
		stats = append(stats, resolve.Merge(p, updates[i]))
	}

	logging.L_info("sozograph: ingest complete",
		"interactions", len(interactions),
		"sources", len(sources))

	return stats, interactions, nil
}

// extractAll runs extraction over a bounded worker window. Results land in
// input order regardless of completion order.
func (g *Graph) extractAll(ctx context.Context, interactions []passport.Interaction, sources []passport.SourceRef) ([]passport.Update, []error) {
	updates := make([]passport.Update, len(interactions))
	errs := make([]error, len(interactions))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(g.cfg.Parallelism)

	for i := range interactions {
		i := i
		grp.Go(func() error {
			update, err := g.extractor.Extract(gctx, interactions[i], sources[i].ID, g.cfg.Ingest.MaxInteractionChars)
			updates[i] = update
			errs[i] = err
			// Errors are per-interaction; keep the window running.
			return nil
		})
	}
	grp.Wait()

	return updates, errs
}

// IngestSource drains src through the pipeline, accumulating stats across
// items. Item failures stop the drain and return what merged so far.
func (g *Graph) IngestSource(ctx context.Context, p *passport.Passport, src ingest.Source) ([]passport.ResolveStats, error) {
	items, err := src.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan %s source: %w", src.Type(), err)
	}

	var all []passport.ResolveStats
	for item := range items {
		stats, _, err := g.Ingest(ctx, p, item.Payload, item.Hint, item.Meta)
		all = append(all, stats...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// Merge applies an already-validated update to p without any model calls.
func (g *Graph) Merge(p *passport.Passport, u passport.Update) passport.ResolveStats {
	return resolve.Merge(p, u)
}

// ExportContext renders the bounded context string. budgetChars zero means
// the configured default.
func (g *Graph) ExportContext(p *passport.Passport, budgetChars int, header string) string {
	if budgetChars == 0 {
		budgetChars = g.cfg.ContextBudget
	}
	return render.ExportContext(p, render.Options{
		BudgetChars: budgetChars,
		Header:      header,
	})
}

// ExportContext renders a context string without building a Graph. Useful
// when only a stored passport is at hand.
func ExportContext(p *passport.Passport, budgetChars int) string {
	return render.ExportContext(p, render.Options{BudgetChars: budgetChars})
}
