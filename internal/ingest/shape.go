package ingest

import "strings"

// Shape tags the detected form of one raw input item. The classifier runs
// once per item; adapters dispatch by tag.
type Shape int

const (
	ShapeTranscript Shape = iota
	ShapeList
	ShapeKVTreeEnvelope
	ShapeRelationalEnvelope
	ShapeDocStoreBatch
	ShapeDocStoreSingle
	ShapeGeneric
	ShapeScalar
)

// Hint values accepted from the caller or a _hint field.
const (
	HintKVTree     = "kv-tree"
	HintRelational = "relational"
	HintDocStore   = "document-store"
)

func (s Shape) String() string {
	switch s {
	case ShapeTranscript:
		return "transcript"
	case ShapeList:
		return "list"
	case ShapeKVTreeEnvelope:
		return "kv-tree"
	case ShapeRelationalEnvelope:
		return "relational"
	case ShapeDocStoreBatch:
		return "document-store-batch"
	case ShapeDocStoreSingle:
		return "document-store"
	case ShapeGeneric:
		return "generic"
	default:
		return "scalar"
	}
}

func looksLikeKVTreeEnvelope(obj map[string]any) bool {
	_, hasPath := obj["path"]
	_, hasValue := obj["value"]
	_, hasData := obj["data"]
	return hasPath && (hasValue || hasData)
}

func looksLikeRelationalEnvelope(obj map[string]any) bool {
	_, hasTable := obj["table"]
	_, hasRow := obj["row"]
	_, hasData := obj["data"]
	return hasTable && (hasRow || hasData)
}

// everyValueIsMapping is the document-store batch heuristic. It can
// misclassify a single doc whose fields are all nested objects; callers can
// force single-doc treatment with an explicit hint.
func everyValueIsMapping(obj map[string]any) bool {
	if len(obj) == 0 {
		return false
	}
	for _, v := range obj {
		if _, ok := v.(map[string]any); !ok {
			return false
		}
	}
	return true
}

func normalizeHint(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Classify detects the shape of item. hint (explicit parameter or the
// mapping's _hint field) takes priority over heuristics.
func Classify(item any, hint string) Shape {
	switch t := item.(type) {
	case string:
		return ShapeTranscript
	case []any:
		return ShapeList
	case map[string]any:
		used := normalizeHint(hint)
		if used == "" {
			used = normalizeHint(stringValue(t["_hint"]))
		}

		if looksLikeKVTreeEnvelope(t) || used == HintKVTree {
			return ShapeKVTreeEnvelope
		}
		if looksLikeRelationalEnvelope(t) || used == HintRelational {
			return ShapeRelationalEnvelope
		}
		if used == HintDocStore {
			// Explicit hint forces single-doc treatment, overriding the
			// every-value-is-a-mapping batch heuristic.
			return ShapeDocStoreSingle
		}
		if used != "" {
			// Unrecognized hint: treat as a generic event.
			return ShapeGeneric
		}
		if everyValueIsMapping(t) {
			return ShapeDocStoreBatch
		}
		return ShapeDocStoreSingle
	default:
		return ShapeScalar
	}
}
