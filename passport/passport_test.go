package passport

import (
	"strings"
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad time %q: %v", s, err)
	}
	return ts.UTC()
}

func TestNewPassportDefaults(t *testing.T) {
	p := New()
	if p.Version != "1.0" {
		t.Errorf("version = %q", p.Version)
	}
	if p.Facts == nil || p.Prefs == nil || p.Entities == nil ||
		p.OpenLoops == nil || p.Contradictions == nil || p.Sources == nil {
		t.Error("lists must be non-nil so JSON renders [] not null")
	}
}

func TestMarshalParseRoundTrip(t *testing.T) {
	p := New()
	p.UserKey = "roelf"
	p.Facts = append(p.Facts, Fact{
		Key: "location", Value: "Harare",
		TS: mustTime(t, "2026-02-01T10:00:00Z"), Confidence: 0.9, Source: "t1",
	})
	p.Entities = append(p.Entities, Entity{Name: "SozoGraph", Type: EntityProject})

	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.UserKey != "roelf" || len(got.Facts) != 1 || got.Facts[0].Value != "Harare" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	data := []byte(`{"version":"1.0","updated_at":"2026-02-01T10:00:00Z","facts":[],"prefs":[],"entities":[],"open_loops":[],"contradictions":[],"sources":[],"bogus":1}`)
	if _, err := Parse(data); err == nil {
		t.Fatal("unknown field should be rejected")
	}
}

func TestParseFillsNilLists(t *testing.T) {
	data := []byte(`{"version":"1.0","updated_at":"2026-02-01T10:00:00Z"}`)
	p, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Facts == nil || p.Sources == nil {
		t.Error("absent lists should come back empty, not nil")
	}
}

func TestUpsertSourceReplacesByID(t *testing.T) {
	p := New()
	p.UpsertSource(SourceRef{ID: "t1", Kind: KindTranscript, Hash: "aaa"})
	p.UpsertSource(SourceRef{ID: "t1", Kind: KindTranscript, Hash: "bbb"})
	p.UpsertSource(SourceRef{ID: "t2", Kind: KindTranscript})

	if len(p.Sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(p.Sources))
	}
	got, ok := p.SourceByID("t1")
	if !ok || got.Hash != "bbb" {
		t.Errorf("upsert should replace: %+v", got)
	}
}

func TestCleanAliases(t *testing.T) {
	got := CleanAliases([]string{" Sozo Graph ", "sozo graph", "", "SG", "sg"})
	want := []string{"Sozo Graph", "SG"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("alias %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSortOrdering(t *testing.T) {
	t1 := mustTime(t, "2026-02-01T10:00:00Z")
	t2 := mustTime(t, "2026-02-03T10:00:00Z")

	p := New()
	p.Facts = []Fact{
		{Key: "zeta", TS: t1},
		{Key: "alpha", TS: t1},
		{Key: "alpha", TS: t2},
	}
	p.OpenLoops = []OpenLoop{
		{Item: "b task", TS: t1},
		{Item: "a task", TS: t2},
	}
	p.Contradictions = []Contradiction{
		{Key: "k", TSNew: t1},
		{Key: "k", TSNew: t2},
	}
	p.Entities = []Entity{
		{Name: "zeta", Type: EntityTool},
		{Name: "Alpha", Type: EntityPerson},
	}

	p.Sort()

	if p.Facts[0].Key != "alpha" || !p.Facts[0].TS.Equal(t2) {
		t.Errorf("facts should sort key asc, ts desc: %+v", p.Facts)
	}
	if p.OpenLoops[0].Item != "a task" {
		t.Errorf("open loops should sort ts desc: %+v", p.OpenLoops)
	}
	if !p.Contradictions[0].TSNew.Equal(t2) {
		t.Errorf("contradictions should sort ts_new desc: %+v", p.Contradictions)
	}
	if p.Entities[0].Name != "Alpha" {
		t.Errorf("entities should sort by case-insensitive name: %+v", p.Entities)
	}
}

func TestLoopKey(t *testing.T) {
	if LoopKey("  Send   the REPORT ") != "send the report" {
		t.Error("loop key should collapse whitespace and lowercase")
	}
}

func TestShortText(t *testing.T) {
	it := Interaction{Text: strings.Repeat("a", 5000)}
	got := it.ShortText(0)
	if len([]rune(got)) != 4000 {
		t.Errorf("default cap should be 4000, got %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("expected trailing ellipsis")
	}

	short := Interaction{Text: "hi"}
	if short.ShortText(100) != "hi" {
		t.Error("short text should pass through")
	}
}
