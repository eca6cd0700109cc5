// Package extract turns Interactions into candidate Passport updates through
// an LLM backend, and hosts the fallback summarizer for weak structured text.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sozolabs/sozograph/internal/canonical"
	"github.com/sozolabs/sozograph/internal/llm"
	. "github.com/sozolabs/sozograph/internal/logging"
	"github.com/sozolabs/sozograph/internal/tokens"
	"github.com/sozolabs/sozograph/passport"
)

// InvalidResponseError is fatal for the interaction: the model reply was not
// parseable JSON. Raw carries the reply for diagnostics.
type InvalidResponseError struct {
	Raw string
	Err error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("extractor returned invalid JSON: %v", e.Err)
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// Extractor converts Interactions into candidate memory updates.
type Extractor struct {
	provider llm.Provider
}

// New creates an extractor over the given backend.
func New(provider llm.Provider) *Extractor {
	return &Extractor{provider: provider}
}

// rawResponse mirrors the schema echoed in the prompt. Items are validated
// one by one; a bad item never fails the batch.
type rawResponse struct {
	Facts     []map[string]any `json:"facts"`
	Prefs     []map[string]any `json:"prefs"`
	Entities  []map[string]any `json:"entities"`
	OpenLoops []map[string]any `json:"open_loops"`
}

// Extract prompts the model with one Interaction and returns the validated
// update. sourceID stamps every produced item.
func (e *Extractor) Extract(ctx context.Context, it passport.Interaction, sourceID string, maxChars int) (passport.Update, error) {
	prompt := fmt.Sprintf(extractorUserPromptTemplate,
		extractorJSONSchema,
		sourceID,
		it.Type,
		it.TS.Format(time.RFC3339),
		it.ShortText(maxChars),
	)

	requestID := uuid.NewString()
	start := time.Now()
	L_debug("extract: request started",
		"requestID", requestID,
		"source", sourceID,
		"model", e.provider.Model(),
		"promptTokens", tokens.Estimate(prompt))

	raw, err := e.provider.JSONMessage(ctx, prompt, extractorSystemPrompt)
	if err != nil {
		return passport.Update{}, fmt.Errorf("extract interaction %s: %w", it.ID, err)
	}

	var resp rawResponse
	if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &resp); err != nil {
		return passport.Update{}, &InvalidResponseError{Raw: raw, Err: err}
	}

	update := validate(resp, sourceID)
	L_debug("extract: request finished",
		"requestID", requestID,
		"facts", len(update.Facts),
		"prefs", len(update.Prefs),
		"entities", len(update.Entities),
		"openLoops", len(update.OpenLoops),
		"elapsed", time.Since(start))

	return update, nil
}

func validate(resp rawResponse, sourceID string) passport.Update {
	var u passport.Update

	for _, item := range resp.Facts {
		if f, ok := validateKV(item, sourceID); ok {
			u.Facts = append(u.Facts, f)
		}
	}
	for _, item := range resp.Prefs {
		if p, ok := validateKV(item, sourceID); ok {
			u.Prefs = append(u.Prefs, p)
		}
	}
	for _, item := range resp.Entities {
		if ent, ok := validateEntity(item); ok {
			u.Entities = append(u.Entities, ent)
		}
	}
	for _, item := range resp.OpenLoops {
		if loop, ok := validateOpenLoop(item, sourceID); ok {
			u.OpenLoops = append(u.OpenLoops, loop)
		}
	}
	return u
}

func validateKV(item map[string]any, sourceID string) (passport.Fact, bool) {
	key := canonical.NormalizeKey(itemString(item, "key"))
	if key == "" {
		return passport.Fact{}, false
	}

	confidence, ok := coerceConfidence(item["confidence"])
	if !ok {
		return passport.Fact{}, false
	}

	ts, hasTS := canonical.ParseTS(item["ts"])
	if !hasTS {
		ts = canonical.Now()
	}

	return passport.Fact{
		Key:        key,
		Value:      item["value"],
		TS:         ts,
		Confidence: confidence,
		Source:     sourceID,
	}, true
}

func validateEntity(item map[string]any) (passport.Entity, bool) {
	name := strings.TrimSpace(itemString(item, "name"))
	if name == "" {
		return passport.Entity{}, false
	}

	etype := passport.EntityType(itemString(item, "type"))
	if etype == "" {
		etype = passport.EntityOther
	}
	if !passport.ValidEntityType(etype) {
		return passport.Entity{}, false
	}

	var aliases []string
	if raw, ok := item["aliases"].([]any); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				aliases = append(aliases, s)
			}
		}
	}

	return passport.Entity{
		Name:    name,
		Type:    etype,
		Aliases: passport.CleanAliases(aliases),
	}, true
}

func validateOpenLoop(item map[string]any, sourceID string) (passport.OpenLoop, bool) {
	text := strings.TrimSpace(itemString(item, "item"))
	if text == "" {
		return passport.OpenLoop{}, false
	}

	ts, hasTS := canonical.ParseTS(item["ts"])
	if !hasTS {
		ts = canonical.Now()
	}

	return passport.OpenLoop{
		Item:   text,
		TS:     ts,
		Source: sourceID,
	}, true
}

// coerceConfidence accepts numbers and numeric strings, defaults to 0.7 when
// absent, and rejects values outside [0,1].
func coerceConfidence(v any) (float64, bool) {
	if v == nil {
		return passport.DefaultConfidence, true
	}

	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

func itemString(item map[string]any, key string) string {
	if s, ok := item[key].(string); ok {
		return s
	}
	return ""
}
