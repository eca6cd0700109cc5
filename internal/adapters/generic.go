package adapters

import (
	"time"

	"github.com/sozolabs/sozograph/internal/canonical"
	"github.com/sozolabs/sozograph/passport"
)

// Transcript wraps a free-form transcript string. ts zero means "now".
func Transcript(text string, ts time.Time, id, source string, meta map[string]any) passport.Interaction {
	if ts.IsZero() {
		ts = canonical.Now()
	}
	return passport.Interaction{
		ID:     id,
		TS:     ts,
		Type:   "transcript",
		Text:   text,
		Source: source,
		Meta:   meta,
	}
}

// Generic handles any mapping that matched no other shape.
func Generic(obj map[string]any, id, source string, meta map[string]any) passport.Interaction {
	ts, hasTS := canonical.ParseTS(obj["ts"])
	if !hasTS {
		ts = canonical.Now()
	}
	if id == "" {
		id = stringField(obj, "id")
	}
	if id == "" {
		id = canonical.SHA256JSON(obj)[:16]
	}
	return passport.Interaction{
		ID:     id,
		TS:     ts,
		Type:   "unknown",
		Text:   canonical.SafeStringify(obj),
		Source: source,
		Data:   obj,
		Meta:   meta,
	}
}

// Scalar handles non-string, non-list, non-mapping inputs.
func Scalar(v any, ts time.Time, id, source string, meta map[string]any) passport.Interaction {
	if ts.IsZero() {
		ts = canonical.Now()
	}
	text := canonical.SafeStringify(v)
	if id == "" {
		id = canonical.SHA256JSON(map[string]any{"v": text})[:16]
	}
	return passport.Interaction{
		ID:     id,
		TS:     ts,
		Type:   "unknown",
		Text:   text,
		Source: source,
		Data:   map[string]any{"value": text},
		Meta:   meta,
	}
}
