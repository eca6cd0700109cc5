package ingest

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/sozolabs/sozograph/internal/adapters"
	"github.com/sozolabs/sozograph/internal/canonical"
	"github.com/sozolabs/sozograph/internal/logging"
	"github.com/sozolabs/sozograph/passport"
)

// Meta keys recognized by the coalescer. Unrecognized keys ride along in
// Interaction.Meta untouched.
const (
	metaSourceID       = "source_id"
	metaSource         = "source"
	metaSourcePointer  = "source_pointer"
	metaKind           = "kind"
	metaType           = "type"
	metaID             = "id"
	metaTS             = "ts"
	metaTable          = "table"
	metaCollectionPath = "collection_path"
)

// Coalesce converts arbitrary input into Interactions plus matching
// SourceRefs (one per interaction, same order). It is single-pass, pure and
// deterministic; the extractor and the fallback summarizer are never called
// here.
func Coalesce(item any, hint string, meta map[string]any) ([]passport.Interaction, []passport.SourceRef) {
	c := &coalescer{used: make(map[string]string)}
	c.coalesce(item, hint, meta)
	return c.interactions, c.sources
}

type coalescer struct {
	interactions []passport.Interaction
	sources      []passport.SourceRef

	// used maps assigned source ids to payload hashes so distinct payloads
	// never share an id within one batch.
	used map[string]string
}

func (c *coalescer) coalesce(item any, hint string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}

	switch Classify(item, hint) {
	case ShapeTranscript:
		c.addTranscript(item.(string), meta)

	case ShapeList:
		list := item.([]any)
		base := metaString(meta, metaSourceID)
		if base == "" {
			base = "h"
		}
		for idx, sub := range list {
			subMeta := cloneMeta(meta)
			subMeta[metaSourceID] = fmt.Sprintf("%s_%d", base, idx)
			c.coalesce(sub, hint, subMeta)
		}

	case ShapeKVTreeEnvelope:
		c.addKVTree(item.(map[string]any), meta)

	case ShapeRelationalEnvelope:
		c.addRelational(item.(map[string]any), meta)

	case ShapeDocStoreBatch:
		c.addDocBatch(item.(map[string]any), meta)

	case ShapeDocStoreSingle:
		c.addDocSingle(item.(map[string]any), meta)

	case ShapeGeneric:
		c.addGeneric(item.(map[string]any), meta)

	default: // ShapeScalar
		c.addScalar(item, meta)
	}
}

func (c *coalescer) addTranscript(text string, meta map[string]any) {
	ts, ok := canonical.ParseTS(meta[metaTS])
	if !ok {
		ts = canonical.Now()
	}
	pointer := metaPointer(meta)

	itype := metaString(meta, metaType)
	if itype == "" {
		itype = "transcript"
	}

	it := adapters.Transcript(text, ts, metaString(meta, metaID), pointer, meta)
	it.Type = itype

	c.emit(it, 't', passport.KindTranscript, map[string]any{"text": text}, meta)
}

func (c *coalescer) addKVTree(envelope map[string]any, meta map[string]any) {
	path := stringValue(envelope["path"])
	if path == "" {
		path = metaPointer(meta)
	}
	value, ok := envelope["value"]
	if !ok {
		value = envelope["data"]
	}

	it := adapters.KVTree(value, path, "")
	c.emit(it, 'r', passport.KindKVTree, envelope, meta)
}

func (c *coalescer) addRelational(envelope map[string]any, meta map[string]any) {
	table := stringValue(envelope["table"])
	if table == "" {
		table = metaString(meta, metaTable)
	}
	row, ok := envelope["row"]
	if !ok {
		if row, ok = envelope["data"]; !ok {
			row = envelope
		}
	}
	rowMap, isMap := row.(map[string]any)
	if !isMap {
		rowMap = map[string]any{"value": row}
	}

	it := adapters.Relational(rowMap, table, "", "")
	c.emit(it, 's', passport.KindRelational, envelope, meta)
}

func (c *coalescer) addDocBatch(batch map[string]any, meta map[string]any) {
	colPath := metaString(meta, metaSource)
	if colPath == "" {
		colPath = metaString(meta, metaCollectionPath)
	}

	docs := make(map[string]map[string]any, len(batch))
	for id, v := range batch {
		docs[id] = v.(map[string]any)
	}

	its := adapters.DocStoreBatchMap(docs, colPath)
	for _, it := range its {
		c.emit(it, 'f', passport.KindDocStore, it.Data, meta)
	}
}

func (c *coalescer) addDocSingle(doc map[string]any, meta map[string]any) {
	docID := stringValue(doc["id"])
	if docID == "" {
		docID = metaString(meta, metaID)
	}

	it := adapters.DocStore(doc, metaPointer(meta), docID)
	c.emit(it, 'f', passport.KindDocStore, doc, meta)
}

func (c *coalescer) addGeneric(obj map[string]any, meta map[string]any) {
	it := adapters.Generic(obj, metaString(meta, metaID), metaPointer(meta), meta)
	if t := metaString(meta, metaType); t != "" {
		it.Type = t
	}
	c.emit(it, 'u', metaKindOr(meta, passport.KindUnknown), obj, meta)
}

func (c *coalescer) addScalar(v any, meta map[string]any) {
	ts, _ := canonical.ParseTS(meta[metaTS])
	it := adapters.Scalar(v, ts, metaString(meta, metaID), metaPointer(meta), meta)
	if t := metaString(meta, metaType); t != "" {
		it.Type = t
	}
	c.emit(it, 'x', metaKindOr(meta, passport.KindUnknown), it.Data, meta)
}

// emit appends the interaction and its provenance record. The SourceRef id
// comes from meta.source_id when given, else a short token derived from the
// payload; the hash is always the full canonical SHA-256 of the payload.
func (c *coalescer) emit(it passport.Interaction, letter byte, kind passport.SourceKind, payload any, meta map[string]any) {
	if k := metaString(meta, metaKind); k != "" && passport.ValidSourceKind(passport.SourceKind(k)) {
		kind = passport.SourceKind(k)
	}

	hash := canonical.SHA256JSON(payload)

	id := metaString(meta, metaSourceID)
	if id == "" {
		id = shortID(letter, hash)
	}
	id = c.disambiguate(id, hash)

	ts := it.TS
	if ts.IsZero() {
		ts = canonical.Now()
	}

	c.interactions = append(c.interactions, it)
	c.sources = append(c.sources, passport.SourceRef{
		ID:     id,
		Kind:   kind,
		TS:     ts,
		Hash:   hash,
		Source: it.Source,
	})
}

// disambiguate appends a numeric suffix when id is already taken by a
// different payload within this batch.
func (c *coalescer) disambiguate(id, hash string) string {
	if prev, taken := c.used[id]; !taken || prev == hash {
		c.used[id] = hash
		return id
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", id, n)
		prev, taken := c.used[candidate]
		if !taken || prev == hash {
			c.used[candidate] = hash
			return candidate
		}
	}
}

// shortID derives a kind-prefixed short token from the payload hash.
// Not collision-free at scale; disambiguate handles clashes.
func shortID(letter byte, payloadHash string) string {
	h := fnv.New32a()
	h.Write([]byte(payloadHash))
	return fmt.Sprintf("%c%d", letter, h.Sum32()%10_000_000)
}

// EnsureUniqueSourceIDs renames refs that collide with sources already on
// the passport under a different hash, so provenance ids stay unique per
// passport.
func EnsureUniqueSourceIDs(p *passport.Passport, refs []passport.SourceRef) []passport.SourceRef {
	out := make([]passport.SourceRef, len(refs))
	copy(out, refs)
	for i := range out {
		existing, found := p.SourceByID(out[i].ID)
		if !found || existing.Hash == out[i].Hash {
			continue
		}
		base := out[i].ID
		for n := 2; ; n++ {
			candidate := fmt.Sprintf("%s_%d", base, n)
			ex, found := p.SourceByID(candidate)
			if !found || ex.Hash == out[i].Hash {
				logging.L_debug("ingest: source id collision", "id", base, "renamed", candidate)
				out[i].ID = candidate
				break
			}
		}
	}
	return out
}

func cloneMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func metaString(meta map[string]any, key string) string {
	return stringValue(meta[key])
}

// metaPointer returns the caller-supplied source pointer, accepting both
// "source" and "source_pointer".
func metaPointer(meta map[string]any) string {
	if s := metaString(meta, metaSource); s != "" {
		return s
	}
	return metaString(meta, metaSourcePointer)
}

func metaKindOr(meta map[string]any, def passport.SourceKind) passport.SourceKind {
	if k := metaString(meta, metaKind); k != "" && passport.ValidSourceKind(passport.SourceKind(k)) {
		return passport.SourceKind(k)
	}
	return def
}

// MetaTS parses a caller-supplied timestamp from meta, if any.
func MetaTS(meta map[string]any) (time.Time, bool) {
	if meta == nil {
		return time.Time{}, false
	}
	return canonical.ParseTS(meta[metaTS])
}
