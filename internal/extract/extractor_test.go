package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sozolabs/sozograph/passport"
)

type fakeProvider struct {
	reply      string
	err        error
	lastPrompt string
	lastSystem string
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) SimpleMessage(ctx context.Context, userMessage, systemPrompt string) (string, error) {
	f.lastPrompt = userMessage
	f.lastSystem = systemPrompt
	return f.reply, f.err
}

func (f *fakeProvider) JSONMessage(ctx context.Context, userMessage, systemPrompt string) (string, error) {
	return f.SimpleMessage(ctx, userMessage, systemPrompt)
}

func testInteraction() passport.Interaction {
	return passport.Interaction{
		ID:   "t1",
		TS:   time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		Type: "transcript",
		Text: "I moved to Bulawayo and I prefer short answers.",
	}
}

func TestExtractValidResponse(t *testing.T) {
	provider := &fakeProvider{reply: `{
		"facts": [{"key": "Location", "value": "Bulawayo", "confidence": 0.9, "ts": "2026-02-01T10:00:00Z"}],
		"prefs": [{"key": "answer style", "value": "short"}],
		"entities": [{"name": "Bulawayo", "type": "place"}],
		"open_loops": [{"item": "confirm new address"}]
	}`}

	update, err := New(provider).Extract(context.Background(), testInteraction(), "src9", 0)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(update.Facts) != 1 {
		t.Fatalf("facts = %+v", update.Facts)
	}
	f := update.Facts[0]
	if f.Key != "location" {
		t.Errorf("key should be normalized, got %q", f.Key)
	}
	if f.Source != "src9" {
		t.Errorf("source should be stamped, got %q", f.Source)
	}
	if f.Confidence != 0.9 {
		t.Errorf("confidence = %v", f.Confidence)
	}

	if len(update.Prefs) != 1 || update.Prefs[0].Key != "answer_style" {
		t.Errorf("prefs = %+v", update.Prefs)
	}
	if update.Prefs[0].Confidence != passport.DefaultConfidence {
		t.Errorf("absent confidence should default, got %v", update.Prefs[0].Confidence)
	}

	if len(update.Entities) != 1 || update.Entities[0].Type != passport.EntityPlace {
		t.Errorf("entities = %+v", update.Entities)
	}
	if len(update.OpenLoops) != 1 || update.OpenLoops[0].Source != "src9" {
		t.Errorf("open loops = %+v", update.OpenLoops)
	}
}

func TestExtractPromptContents(t *testing.T) {
	provider := &fakeProvider{reply: `{"facts":[],"prefs":[],"entities":[],"open_loops":[]}`}
	_, err := New(provider).Extract(context.Background(), testInteraction(), "src42", 0)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	for _, want := range []string{
		"SOURCE_ID: src42",
		"INTERACTION_TYPE: transcript",
		"2026-02-01T10:00:00Z",
		"Bulawayo",
	} {
		if !strings.Contains(provider.lastPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.Contains(provider.lastSystem, "beliefs, not quotes") {
		t.Error("system prompt should carry the extraction directive")
	}
}

func TestExtractDropsBadItems(t *testing.T) {
	provider := &fakeProvider{reply: `{
		"facts": [
			{"value": "no key"},
			{"key": "ok", "value": 1},
			{"key": "bad_conf", "value": 2, "confidence": 1.5}
		],
		"entities": [
			{"type": "person"},
			{"name": "Acme", "type": "martian"},
			{"name": "Acme"}
		],
		"open_loops": [{"source": "x"}, {"item": "  "}]
	}`}

	update, err := New(provider).Extract(context.Background(), testInteraction(), "s", 0)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	if len(update.Facts) != 1 || update.Facts[0].Key != "ok" {
		t.Errorf("facts = %+v", update.Facts)
	}
	if len(update.Entities) != 1 || update.Entities[0].Type != passport.EntityOther {
		t.Errorf("entities = %+v", update.Entities)
	}
	if len(update.OpenLoops) != 0 {
		t.Errorf("open loops = %+v", update.OpenLoops)
	}
}

func TestExtractInvalidJSONIsFatal(t *testing.T) {
	provider := &fakeProvider{reply: "I think the user lives in Bulawayo."}
	_, err := New(provider).Extract(context.Background(), testInteraction(), "s", 0)
	if err == nil {
		t.Fatal("expected error")
	}

	var invalid *InvalidResponseError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidResponseError, got %T", err)
	}
	if invalid.Raw == "" {
		t.Error("raw reply should be preserved for diagnostics")
	}
}

func TestExtractFencedJSONAccepted(t *testing.T) {
	provider := &fakeProvider{reply: "```json\n{\"facts\":[{\"key\":\"k\",\"value\":1}],\"prefs\":[],\"entities\":[],\"open_loops\":[]}\n```"}
	update, err := New(provider).Extract(context.Background(), testInteraction(), "s", 0)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(update.Facts) != 1 {
		t.Errorf("facts = %+v", update.Facts)
	}
}

func TestExtractProviderErrorPropagates(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	_, err := New(provider).Extract(context.Background(), testInteraction(), "s", 0)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("got %v", err)
	}
}

func TestCoerceConfidence(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{nil, passport.DefaultConfidence, true},
		{0.5, 0.5, true},
		{1, 1, true},
		{"0.8", 0.8, true},
		{"high", 0, false},
		{1.2, 0, false},
		{-0.1, 0, false},
	}
	for _, c := range cases {
		got, ok := coerceConfidence(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("coerceConfidence(%v) = %v, %v", c.in, got, ok)
		}
	}
}
