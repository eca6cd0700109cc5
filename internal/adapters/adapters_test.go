package adapters

import (
	"strings"
	"testing"
	"time"

	"github.com/sozolabs/sozograph/internal/canonical"
)

func pinClock(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad time: %v", err)
	}
	ts = ts.UTC()
	prev := canonical.Now
	canonical.Now = func() time.Time { return ts }
	t.Cleanup(func() { canonical.Now = prev })
	return ts
}

func TestDocStoreTextAndTSInference(t *testing.T) {
	doc := map[string]any{
		"id":        "app_1",
		"notes":     "Applied for the backend role",
		"updatedAt": "2026-02-01T10:00:00Z",
		"status":    "pending",
	}
	it := DocStore(doc, "document-store:applications", "")

	if it.ID != "app_1" {
		t.Errorf("id = %q", it.ID)
	}
	// "notes" outranks "status" in the probe order.
	if it.Text != "Applied for the backend role" {
		t.Errorf("text = %q", it.Text)
	}
	if it.TS.Format(time.RFC3339) != "2026-02-01T10:00:00Z" {
		t.Errorf("ts = %v", it.TS)
	}
	if it.Type != "document-store" {
		t.Errorf("type = %q", it.Type)
	}
}

func TestDocStoreFallbacks(t *testing.T) {
	now := pinClock(t, "2026-03-01T00:00:00Z")

	doc := map[string]any{"weird": 1, "fields": 2}
	it := DocStore(doc, "", "")

	if !it.TS.Equal(now) {
		t.Errorf("missing ts should fall back to now, got %v", it.TS)
	}
	if len(it.ID) != 16 {
		t.Errorf("missing id should be a hash prefix, got %q", it.ID)
	}
	if !strings.Contains(it.Text, "weird") {
		t.Errorf("text should stringify the doc, got %q", it.Text)
	}
}

func TestDocStoreBatchMapSortedAndScoped(t *testing.T) {
	docs := map[string]map[string]any{
		"b": {"text": "second"},
		"a": {"text": "first"},
	}
	out := DocStoreBatchMap(docs, "applications")

	if len(out) != 2 {
		t.Fatalf("got %d interactions", len(out))
	}
	if out[0].ID != "a" || out[1].ID != "b" {
		t.Errorf("batch should emit in sorted id order: %q, %q", out[0].ID, out[1].ID)
	}
	if out[0].Source != "document-store:applications/a" {
		t.Errorf("source = %q", out[0].Source)
	}
}

func TestKVTreeScalar(t *testing.T) {
	pinClock(t, "2026-03-01T00:00:00Z")

	it := KVTree("dark", "/users/u1/theme", "")
	if it.ID != "_users_u1_theme" {
		t.Errorf("id = %q", it.ID)
	}
	if it.Source != "kv-tree:/users/u1/theme" {
		t.Errorf("source = %q", it.Source)
	}
	if it.Data["value"] != "dark" {
		t.Errorf("scalar value should be wrapped: %v", it.Data)
	}
	if it.Text != "dark" {
		t.Errorf("text = %q", it.Text)
	}
}

func TestKVTreeMappingTS(t *testing.T) {
	it := KVTree(map[string]any{
		"updated_at": "2026-02-05T08:00:00Z",
		"status":     "active",
	}, "/state", "")

	if it.TS.Format(time.RFC3339) != "2026-02-05T08:00:00Z" {
		t.Errorf("mapping node should use its own ts, got %v", it.TS)
	}
}

func TestKVTreeBatch(t *testing.T) {
	out := KVTreeBatch(map[string]any{
		"b": "two",
		"a": "one",
	}, "root")
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("expected sorted key expansion: %+v", out)
	}
	if out[0].Source != "kv-tree:root/a" {
		t.Errorf("source = %q", out[0].Source)
	}

	listOut := KVTreeBatch([]any{"x", "y"}, "items")
	if len(listOut) != 2 || listOut[1].Source != "kv-tree:items/1" {
		t.Errorf("list expansion by index: %+v", listOut)
	}
}

func TestRelationalRow(t *testing.T) {
	row := map[string]any{
		"id":         7,
		"action":     "approved loan",
		"updated_at": "2026-02-02T12:00:00Z",
		"created_at": "2026-01-01T12:00:00Z",
	}
	it := Relational(row, "audit_log", "", "")

	if it.ID != "7" {
		t.Errorf("numeric id should stringify, got %q", it.ID)
	}
	if it.Text != "approved loan" {
		t.Errorf("text = %q", it.Text)
	}
	// updated_at outranks created_at.
	if it.TS.Format(time.RFC3339) != "2026-02-02T12:00:00Z" {
		t.Errorf("ts = %v", it.TS)
	}
	if it.Source != "relational:audit_log" {
		t.Errorf("source = %q", it.Source)
	}
	if it.Meta["table"] != "audit_log" {
		t.Errorf("meta = %v", it.Meta)
	}
}

func TestTranscriptDefaults(t *testing.T) {
	now := pinClock(t, "2026-03-01T00:00:00Z")

	it := Transcript("hello there", time.Time{}, "", "chat:42", nil)
	if !it.TS.Equal(now) {
		t.Errorf("zero ts should become now, got %v", it.TS)
	}
	if it.Type != "transcript" || it.Text != "hello there" {
		t.Errorf("got %+v", it)
	}
}

func TestGenericUsesEmbeddedTS(t *testing.T) {
	obj := map[string]any{"ts": 1760000000, "note": "x"}
	it := Generic(obj, "", "", nil)
	if it.TS.Year() != 2025 {
		t.Errorf("embedded unix ts should be used, got %v", it.TS)
	}
	if it.Type != "unknown" {
		t.Errorf("type = %q", it.Type)
	}
}

func TestScalarStableID(t *testing.T) {
	pinClock(t, "2026-03-01T00:00:00Z")

	a := Scalar(42, time.Time{}, "", "", nil)
	b := Scalar(42, time.Time{}, "", "", nil)
	if a.ID != b.ID {
		t.Error("same scalar should yield the same id")
	}
	if a.Text != "42" {
		t.Errorf("text = %q", a.Text)
	}
}
