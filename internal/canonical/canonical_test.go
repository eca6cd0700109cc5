package canonical

import (
	"strings"
	"testing"
	"time"
)

func TestParseTSUnixSeconds(t *testing.T) {
	ts, ok := ParseTS(1760000000)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if ts.Year() != 2025 {
		t.Errorf("expected year 2025, got %d", ts.Year())
	}
	if ts.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", ts.Location())
	}
}

func TestParseTSUnixMilliseconds(t *testing.T) {
	sec, _ := ParseTS(int64(1760000000))
	ms, ok := ParseTS(int64(1760000000000))
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if !ms.Equal(sec) {
		t.Errorf("ms and sec forms should agree: %v vs %v", ms, sec)
	}
}

func TestParseTSISO(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2026-02-01T10:00:00Z", "2026-02-01T10:00:00Z"},
		{"2026-02-01T10:00:00+02:00", "2026-02-01T08:00:00Z"},
		{"2026-02-01T10:00:00", "2026-02-01T10:00:00Z"}, // naive -> UTC
		{"2026-02-01", "2026-02-01T00:00:00Z"},
	}
	for _, c := range cases {
		ts, ok := ParseTS(c.in)
		if !ok {
			t.Fatalf("ParseTS(%q) failed", c.in)
		}
		if got := ts.Format(time.RFC3339); got != c.want {
			t.Errorf("ParseTS(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestParseTSInvalid(t *testing.T) {
	for _, v := range []any{nil, "", "not a date", []any{1}, map[string]any{}} {
		if _, ok := ParseTS(v); ok {
			t.Errorf("ParseTS(%v) should fail", v)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"Tone":            "tone",
		"  Favorite Food ": "favorite_food",
		"a--b__c":         "a_b_c",
		"___":             "",
		"Role/Title":      "role_title",
		"déjà vu":         "d_j_vu",
	}
	for in, want := range cases {
		if got := NormalizeKey(in); got != want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSHA256JSONKeyOrderIndependent(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1, "nested": map[string]any{"y": 2, "x": 1}}
	b := map[string]any{"nested": map[string]any{"x": 1, "y": 2}, "a": 1, "b": 2}
	if SHA256JSON(a) != SHA256JSON(b) {
		t.Error("hash should not depend on key order")
	}
}

func TestSHA256JSONDistinguishesValues(t *testing.T) {
	if SHA256JSON(map[string]any{"a": 1}) == SHA256JSON(map[string]any{"a": 2}) {
		t.Error("different values should hash differently")
	}
}

func TestSHA256JSONNonJSONLeaf(t *testing.T) {
	type odd struct{ X int }
	h1 := SHA256JSON(map[string]any{"v": odd{1}})
	h2 := SHA256JSON(map[string]any{"v": odd{1}})
	if h1 != h2 {
		t.Error("non-JSON leaves should stringify deterministically")
	}
}

func TestSafeStringifyScalars(t *testing.T) {
	if got := SafeStringify("hello"); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := SafeStringify(42.0); got != "42" {
		t.Errorf("integral float should render without decimals, got %q", got)
	}
	if got := SafeStringify(true); got != "true" {
		t.Errorf("got %q", got)
	}
	if got := SafeStringify(nil); got != "" {
		t.Errorf("nil should be empty, got %q", got)
	}
}

func TestSafeStringifyListOverflow(t *testing.T) {
	list := make([]any, 25)
	for i := range list {
		list[i] = i
	}
	got := SafeStringify(list)
	if !strings.HasSuffix(got, " …") {
		t.Errorf("expected overflow marker, got %q", got)
	}
	if strings.Contains(got, "24") {
		t.Errorf("items past the cap should be dropped: %q", got)
	}
}

func TestSafeStringifyMapOverflowAndOrder(t *testing.T) {
	m := map[string]any{}
	for _, k := range []string{"a", "b", "c"} {
		m[k] = k
	}
	got := SafeStringifyWith(m, StringifyLimits{MaxKeys: 2, MaxList: 20, MaxStr: 500})
	if got != "a: a; b: b; …" {
		t.Errorf("got %q", got)
	}
}

func TestSafeStringifyLongString(t *testing.T) {
	long := strings.Repeat("x", 600)
	got := SafeStringify(long)
	if len([]rune(got)) != 500 {
		t.Errorf("expected 500 runes, got %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("expected trailing ellipsis")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("under-limit string should pass through, got %q", got)
	}
	if got := Truncate("hello world", 5); got != "hell…" {
		t.Errorf("got %q", got)
	}
	// Rune safety.
	if got := Truncate("héllo wörld", 5); got != "héll…" {
		t.Errorf("got %q", got)
	}
}

func TestPickFirst(t *testing.T) {
	obj := map[string]any{
		"text":    "",
		"message": nil,
		"content": []any{},
		"notes":   "found it",
	}
	v, ok := PickFirst(obj, []string{"text", "message", "content", "notes"})
	if !ok || v != "found it" {
		t.Errorf("got %v, %v", v, ok)
	}

	if _, ok := PickFirst(obj, []string{"missing"}); ok {
		t.Error("missing key should not match")
	}
}

func TestEqual(t *testing.T) {
	cases := []struct {
		a, b any
		want bool
	}{
		{" x ", "x", true},
		{"x", "y", false},
		{1, 1.0, true},
		{int64(2), 2, true},
		{1, 2, false},
		{true, true, true},
		{true, false, false},
		{[]any{1, "a"}, []any{1.0, "a"}, true},
		{[]any{1}, []any{1, 2}, false},
		{map[string]any{"k": 1}, map[string]any{"k": 1.0}, true},
		{map[string]any{"k": 1}, map[string]any{"k": 2}, false},
		{nil, nil, true},
		{nil, "x", false},
		{"1", 1, false}, // no cross string/number coercion
	}
	for _, c := range cases {
		if got := Equal(c.a, c.b); got != c.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
