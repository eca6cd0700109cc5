// Package canonical holds the deterministic primitives the rest of the
// pipeline is built on: timestamp parsing, key normalization, stable JSON
// hashing, compact stringification and JSON-ish value equality.
//
// Everything here is pure. The only clock access goes through Now so tests
// can pin it.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Now returns the current UTC time. Override in tests for deterministic
// adapter output.
var Now = func() time.Time { return time.Now().UTC() }

// msThreshold: numeric timestamps above this are treated as unix milliseconds.
const msThreshold = 1_000_000_000_000

// ParseTS best-effort parses a timestamp from a JSON-ish value.
// Supports time.Time, unix seconds/milliseconds and ISO-8601 strings.
// Returns the zero time and false when the value cannot be parsed.
func ParseTS(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	case int:
		return fromUnix(float64(t)), true
	case int32:
		return fromUnix(float64(t)), true
	case int64:
		return fromUnix(float64(t)), true
	case float32:
		return fromUnix(float64(t)), true
	case float64:
		return fromUnix(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromUnix(f), true
	case string:
		return parseISO(t)
	default:
		return time.Time{}, false
	}
}

func fromUnix(v float64) time.Time {
	if v > msThreshold {
		v = v / 1000
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// isoLayouts covers ISO-8601 with and without timezone. Naive timestamps are
// interpreted as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	// "Z" is already valid RFC3339; "+00:00" likewise.
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

var keyRe = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeKey lowercases a key, collapses runs of non-alphanumerics to a
// single underscore and strips surrounding underscores.
func NormalizeKey(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = keyRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// SHA256JSON produces a stable hex SHA-256 for JSON-serializable values.
// Mapping keys are sorted at every nesting level so the hash is independent
// of insertion order; non-JSON leaves are stringified.
func SHA256JSON(v any) string {
	var buf bytes.Buffer
	writeCanonical(&buf, v)
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

func writeCanonical(buf *bytes.Buffer, v any) {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case string:
		buf.Write(encodeJSONString(t))
	case int:
		buf.WriteString(strconv.Itoa(t))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case float32:
		buf.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 64))
	case float64:
		buf.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case json.Number:
		buf.WriteString(t.String())
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, e)
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(encodeJSONString(k))
			buf.WriteByte(':')
			writeCanonical(buf, t[k])
		}
		buf.WriteByte('}')
	case time.Time:
		buf.Write(encodeJSONString(t.UTC().Format(time.RFC3339Nano)))
	default:
		// Non-JSON leaf: stringify.
		buf.Write(encodeJSONString(fmt.Sprint(t)))
	}
}

// encodeJSONString encodes s as a JSON string with non-ASCII preserved.
func encodeJSONString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return []byte(strconv.Quote(s))
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

// StringifyLimits bound SafeStringify output.
type StringifyLimits struct {
	MaxKeys int
	MaxList int
	MaxStr  int
}

// DefaultStringifyLimits matches the ingest defaults.
var DefaultStringifyLimits = StringifyLimits{MaxKeys: 20, MaxList: 20, MaxStr: 500}

// SafeStringify deterministically converts an arbitrary value to a compact
// human-readable string using the default limits.
func SafeStringify(v any) string {
	return SafeStringifyWith(v, DefaultStringifyLimits)
}

// SafeStringifyWith is SafeStringify with explicit limits. Limits re-apply at
// every nesting level. Mapping entries are emitted in sorted key order since
// Go maps carry no insertion order.
func SafeStringifyWith(v any, lim StringifyLimits) string {
	if lim.MaxKeys <= 0 {
		lim.MaxKeys = DefaultStringifyLimits.MaxKeys
	}
	if lim.MaxList <= 0 {
		lim.MaxList = DefaultStringifyLimits.MaxList
	}
	if lim.MaxStr <= 0 {
		lim.MaxStr = DefaultStringifyLimits.MaxStr
	}

	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return Truncate(t, lim.MaxStr)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float32:
		return formatFloat(float64(t))
	case float64:
		return formatFloat(t)
	case json.Number:
		return t.String()
	case []any:
		n := len(t)
		if n > lim.MaxList {
			n = lim.MaxList
		}
		parts := make([]string, 0, n)
		for _, e := range t[:n] {
			parts = append(parts, SafeStringifyWith(e, lim))
		}
		suffix := ""
		if len(t) > lim.MaxList {
			suffix = " …"
		}
		return "[" + strings.Join(parts, ", ") + "]" + suffix
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for i, k := range keys {
			if i >= lim.MaxKeys {
				parts = append(parts, "…")
				break
			}
			parts = append(parts, k+": "+SafeStringifyWith(t[k], lim))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(t)
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Truncate caps s at max characters, replacing the tail with an ellipsis.
// Counts runes, not bytes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// PickFirst returns the first value under the given keys that is not nil,
// an empty string, an empty list or an empty mapping.
func PickFirst(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		v, present := obj[k]
		if !present {
			continue
		}
		if isEmptyValue(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// Equal reports JSON-ish equality: strings compare whitespace-trimmed,
// numbers compare across integer/float representations, containers compare
// structurally.
func Equal(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.TrimSpace(as) == strings.TrimSpace(bs)
		}
		return false
	}
	if af, ok := toFloat(a); ok {
		bf, ok2 := toFloat(b)
		return ok2 && af == bf
	}
	if ab, ok := a.(bool); ok {
		bb, ok2 := b.(bool)
		return ok2 && ab == bb
	}
	if al, ok := a.([]any); ok {
		bl, ok2 := b.([]any)
		if !ok2 || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !Equal(al[i], bl[i]) {
				return false
			}
		}
		return true
	}
	if am, ok := a.(map[string]any); ok {
		bm, ok2 := b.(map[string]any)
		if !ok2 || len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, present := bm[k]
			if !present || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
