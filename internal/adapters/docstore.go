// Package adapters converts raw records into Interactions. Adapters are
// pure: output depends only on input (plus the injectable clock for records
// that carry no timestamp) and no external services are ever called.
package adapters

import (
	"fmt"

	"github.com/sozolabs/sozograph/internal/canonical"
	"github.com/sozolabs/sozograph/passport"
)

// Field names probed for text and timestamps in document-store docs.
var (
	docTextFields = []string{
		"text", "message", "content", "description", "notes",
		"summary", "title", "name", "status",
	}
	docTSFields = []string{
		"updatedAt", "updated_at", "createdAt", "created_at", "timestamp", "date",
	}
)

// DocStore converts a document-store document into an Interaction.
// Text is picked from well-known fields, falling back to a compact
// stringification. Fallback summarization happens upstream, never here.
func DocStore(doc map[string]any, source, docID string) passport.Interaction {
	ts, hasTS := canonical.ParseTS(firstOrNil(doc, docTSFields))
	if !hasTS {
		ts = canonical.Now()
	}

	text := pickText(doc, docTextFields)

	id := docID
	if id == "" {
		id = stringField(doc, "id")
	}
	if id == "" {
		id = stringField(doc, "_id")
	}
	if id == "" {
		id = canonical.SHA256JSON(doc)[:16]
	}

	return passport.Interaction{
		ID:     id,
		TS:     ts,
		Type:   "document-store",
		Text:   text,
		Source: source,
		Data:   doc,
	}
}

// DocStoreBatchList converts an ordered list of docs; each gets a source
// pointer scoped to the collection path.
func DocStoreBatchList(docs []map[string]any, collectionPath string) []passport.Interaction {
	out := make([]passport.Interaction, 0, len(docs))
	for _, doc := range docs {
		source := ""
		if collectionPath != "" {
			source = "document-store:" + collectionPath
		}
		out = append(out, DocStore(doc, source, ""))
	}
	return out
}

// DocStoreBatchMap converts a {doc_id -> doc} mapping; the id becomes the
// Interaction id and the source pointer includes it. Docs are emitted in
// sorted id order for determinism.
func DocStoreBatchMap(docs map[string]map[string]any, collectionPath string) []passport.Interaction {
	out := make([]passport.Interaction, 0, len(docs))
	for _, docID := range sortedKeys(docs) {
		source := ""
		if collectionPath != "" {
			source = fmt.Sprintf("document-store:%s/%s", collectionPath, docID)
		}
		out = append(out, DocStore(docs[docID], source, docID))
	}
	return out
}

func pickText(obj map[string]any, fields []string) string {
	if v, ok := canonical.PickFirst(obj, fields); ok {
		if s, isStr := v.(string); isStr {
			return s
		}
		return canonical.SafeStringify(v)
	}
	return canonical.SafeStringify(obj)
}

func firstOrNil(obj map[string]any, fields []string) any {
	if v, ok := canonical.PickFirst(obj, fields); ok {
		return v
	}
	return nil
}

func stringField(obj map[string]any, key string) string {
	if v, ok := obj[key]; ok {
		switch t := v.(type) {
		case string:
			return t
		case nil:
			return ""
		default:
			return fmt.Sprint(t)
		}
	}
	return ""
}
