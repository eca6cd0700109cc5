package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sozolabs/sozograph/internal/canonical"
	"github.com/sozolabs/sozograph/passport"
)

// KVTree converts a key/value-tree node value into an Interaction.
// value may be any JSON value; path is the node path, e.g. "/users/u1/profile".
func KVTree(value any, path, nodeID string) passport.Interaction {
	var ts any
	if m, ok := value.(map[string]any); ok {
		ts = firstOrNil(m, docTSFields)
	}
	parsed, hasTS := canonical.ParseTS(ts)
	if !hasTS {
		parsed = canonical.Now()
	}

	id := nodeID
	if id == "" && path != "" {
		id = strings.ReplaceAll(path, "/", "_")
	}
	if id == "" {
		id = canonical.SHA256JSON(map[string]any{"path": path, "value": value})[:16]
	}

	source := ""
	if path != "" {
		source = "kv-tree:" + path
	}

	data, ok := value.(map[string]any)
	if !ok {
		data = map[string]any{"value": value}
	}

	return passport.Interaction{
		ID:     id,
		TS:     parsed,
		Type:   "kv-tree",
		Text:   canonical.SafeStringify(value),
		Source: source,
		Data:   data,
	}
}

// KVTreeBatch expands a tree snapshot one level deep: lists enumerate by
// index, mappings by key (sorted for determinism), scalars yield a single
// node at the base path.
func KVTreeBatch(snapshot any, basePath string) []passport.Interaction {
	switch t := snapshot.(type) {
	case []any:
		out := make([]passport.Interaction, 0, len(t))
		for idx, value := range t {
			path := fmt.Sprintf("%d", idx)
			if basePath != "" {
				path = fmt.Sprintf("%s/%d", basePath, idx)
			}
			out = append(out, KVTree(value, path, ""))
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]passport.Interaction, 0, len(keys))
		for _, key := range keys {
			path := key
			if basePath != "" {
				path = basePath + "/" + key
			}
			out = append(out, KVTree(t[key], path, key))
		}
		return out
	default:
		return []passport.Interaction{KVTree(snapshot, basePath, "")}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
