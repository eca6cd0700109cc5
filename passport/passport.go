// Package passport defines the portable cognitive snapshot produced by the
// SozoGraph pipeline, plus the canonical input unit (Interaction) consumed by
// the extractor.
//
// The Passport JSON shape is the stable external contract: unknown fields are
// rejected on parse, timestamps serialize as ISO-8601 UTC.
package passport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sozolabs/sozograph/internal/canonical"
)

// Version is the opaque passport schema tag.
const Version = "1.0"

// Fact is a current belief about the user, keyed by a normalized key.
type Fact struct {
	Key        string    `json:"key"`
	Value      any       `json:"value"`
	TS         time.Time `json:"ts"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
}

// Preference is identical in shape to Fact; semantically it records what the
// user likes or wants rather than what is true.
type Preference = Fact

// DefaultConfidence is applied when the extractor emits no confidence.
const DefaultConfidence = 0.7

// EntityType categorizes a named entity.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityProject      EntityType = "project"
	EntityProduct      EntityType = "product"
	EntityPlace        EntityType = "place"
	EntityTool         EntityType = "tool"
	EntitySkill        EntityType = "skill"
	EntityConcept      EntityType = "concept"
	EntityOther        EntityType = "other"
)

// ValidEntityType reports whether t is one of the known entity types.
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityPerson, EntityOrganization, EntityProject, EntityProduct,
		EntityPlace, EntityTool, EntitySkill, EntityConcept, EntityOther:
		return true
	}
	return false
}

// Entity is a named entity with case-insensitively unique aliases.
type Entity struct {
	Name    string     `json:"name"`
	Type    EntityType `json:"type"`
	Aliases []string   `json:"aliases,omitempty"`
}

// CleanAliases trims whitespace and drops case-insensitive duplicates while
// preserving first-seen order.
func CleanAliases(aliases []string) []string {
	seen := make(map[string]bool, len(aliases))
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		k := strings.ToLower(a)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a)
	}
	return out
}

// OpenLoop is an unresolved item: a question, TODO or missing detail.
type OpenLoop struct {
	Item   string    `json:"item"`
	TS     time.Time `json:"ts"`
	Source string    `json:"source"`
}

// Contradiction is an immutable record of a value transition under one key.
// The invariant ts_old <= ts_new always holds.
type Contradiction struct {
	Key       string    `json:"key"`
	Old       any       `json:"old"`
	New       any       `json:"new"`
	TSOld     time.Time `json:"ts_old"`
	TSNew     time.Time `json:"ts_new"`
	SourceOld string    `json:"source_old"`
	SourceNew string    `json:"source_new"`
}

// SourceKind classifies the origin of a SourceRef.
type SourceKind string

const (
	KindTranscript SourceKind = "transcript"
	KindDocStore   SourceKind = "document-store"
	KindKVTree     SourceKind = "kv-tree"
	KindRelational SourceKind = "relational"
	KindChat       SourceKind = "chat"
	KindForm       SourceKind = "form"
	KindUnknown    SourceKind = "unknown"
)

// ValidSourceKind reports whether k is one of the known source kinds.
func ValidSourceKind(k SourceKind) bool {
	switch k {
	case KindTranscript, KindDocStore, KindKVTree, KindRelational,
		KindChat, KindForm, KindUnknown:
		return true
	}
	return false
}

// SourceRef is a provenance record. The short id is the identity facts link
// back to; the hash is the integrity anchor over the raw payload.
type SourceRef struct {
	ID     string     `json:"id"`
	Kind   SourceKind `json:"kind"`
	TS     time.Time  `json:"ts"`
	Hash   string     `json:"hash,omitempty"`
	Source string     `json:"source,omitempty"`
}

// Passport is the portable cognitive snapshot: everything currently believed
// about a user, with provenance and a ledger of resolved contradictions.
type Passport struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	UserKey   string    `json:"user_key,omitempty"`

	Facts          []Fact          `json:"facts"`
	Prefs          []Preference    `json:"prefs"`
	Entities       []Entity        `json:"entities"`
	OpenLoops      []OpenLoop      `json:"open_loops"`
	Contradictions []Contradiction `json:"contradictions"`
	Sources        []SourceRef     `json:"sources"`

	Meta map[string]any `json:"meta,omitempty"`
}

// New creates an empty passport with deterministic defaults.
func New() *Passport {
	return &Passport{
		Version:        Version,
		UpdatedAt:      canonical.Now(),
		Facts:          []Fact{},
		Prefs:          []Preference{},
		Entities:       []Entity{},
		OpenLoops:      []OpenLoop{},
		Contradictions: []Contradiction{},
		Sources:        []SourceRef{},
	}
}

// Touch refreshes updated_at.
func (p *Passport) Touch() {
	p.UpdatedAt = canonical.Now()
}

// UpsertSource inserts or replaces the SourceRef with the same id.
func (p *Passport) UpsertSource(src SourceRef) {
	for i, existing := range p.Sources {
		if existing.ID == src.ID {
			p.Sources[i] = src
			return
		}
	}
	p.Sources = append(p.Sources, src)
}

// SourceByID returns the SourceRef with the given id, if present.
func (p *Passport) SourceByID(id string) (SourceRef, bool) {
	for _, s := range p.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return SourceRef{}, false
}

// EntityKey is the case-insensitive trimmed identity of an entity name or
// alias.
func EntityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// LoopKey is the whitespace-collapsed lowercase identity of an open loop.
func LoopKey(item string) string {
	return strings.Join(strings.Fields(strings.ToLower(item)), " ")
}

// Sort applies the canonical post-merge ordering: facts and prefs by
// (key asc, ts desc); entities by (name-key asc, type asc); open loops by
// (ts desc, item-lower asc); contradictions by (key asc, ts_new desc).
func (p *Passport) Sort() {
	sortKV(p.Facts)
	sortKV(p.Prefs)
	sort.SliceStable(p.Entities, func(i, j int) bool {
		ki, kj := EntityKey(p.Entities[i].Name), EntityKey(p.Entities[j].Name)
		if ki != kj {
			return ki < kj
		}
		return p.Entities[i].Type < p.Entities[j].Type
	})
	sort.SliceStable(p.OpenLoops, func(i, j int) bool {
		if !p.OpenLoops[i].TS.Equal(p.OpenLoops[j].TS) {
			return p.OpenLoops[i].TS.After(p.OpenLoops[j].TS)
		}
		return strings.ToLower(p.OpenLoops[i].Item) < strings.ToLower(p.OpenLoops[j].Item)
	})
	sort.SliceStable(p.Contradictions, func(i, j int) bool {
		ki := sortKey(p.Contradictions[i].Key)
		kj := sortKey(p.Contradictions[j].Key)
		if ki != kj {
			return ki < kj
		}
		return p.Contradictions[i].TSNew.After(p.Contradictions[j].TSNew)
	})
}

// sortKey is the ordering identity for fact, pref and contradiction keys.
// Merged keys are already normalized; this only guards hand-built passports.
func sortKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func sortKV(items []Fact) {
	sort.SliceStable(items, func(i, j int) bool {
		ki, kj := sortKey(items[i].Key), sortKey(items[j].Key)
		if ki != kj {
			return ki < kj
		}
		return items[i].TS.After(items[j].TS)
	})
}

// Marshal renders the passport as indented JSON.
func (p *Passport) Marshal() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Parse decodes passport JSON strictly: unknown fields are rejected.
func Parse(data []byte) (*Passport, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var p Passport
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse passport: %w", err)
	}
	if p.Version == "" {
		p.Version = Version
	}
	ensureLists(&p)
	return &p, nil
}

func ensureLists(p *Passport) {
	if p.Facts == nil {
		p.Facts = []Fact{}
	}
	if p.Prefs == nil {
		p.Prefs = []Preference{}
	}
	if p.Entities == nil {
		p.Entities = []Entity{}
	}
	if p.OpenLoops == nil {
		p.OpenLoops = []OpenLoop{}
	}
	if p.Contradictions == nil {
		p.Contradictions = []Contradiction{}
	}
	if p.Sources == nil {
		p.Sources = []SourceRef{}
	}
}

// Update is one extractor result: the candidate items to merge into a
// passport for a single interaction.
type Update struct {
	Facts     []Fact       `json:"facts"`
	Prefs     []Preference `json:"prefs"`
	Entities  []Entity     `json:"entities"`
	OpenLoops []OpenLoop   `json:"open_loops"`
}

// Empty reports whether the update carries no items.
func (u Update) Empty() bool {
	return len(u.Facts) == 0 && len(u.Prefs) == 0 && len(u.Entities) == 0 && len(u.OpenLoops) == 0
}

// ResolveStats counts what one merge changed.
type ResolveStats struct {
	FactsUpserted       int `json:"facts_upserted"`
	PrefsUpserted       int `json:"prefs_upserted"`
	EntitiesMerged      int `json:"entities_merged"`
	OpenLoopsAdded      int `json:"open_loops_added"`
	ContradictionsAdded int `json:"contradictions_added"`
}

// Interaction is the canonical internal representation of any ingested
// input. The extractor only ever sees Interaction text plus minimal
// metadata; raw payloads never go to the model.
type Interaction struct {
	// ID is an optional stable identifier (doc id, hash prefix, path).
	ID string `json:"id,omitempty"`
	// TS is the best-effort event timestamp, UTC.
	TS time.Time `json:"ts"`
	// Type is the origin tag: transcript, document-store, kv-tree,
	// relational, unknown.
	Type string `json:"type"`
	// Text is the human-readable payload used for extraction. Non-empty
	// after coalescence.
	Text string `json:"text"`
	// Source is an optional human-readable pointer, e.g.
	// "document-store:/applications/abc".
	Source string `json:"source,omitempty"`
	// Data retains the raw payload for hashing and evidence.
	Data map[string]any `json:"data,omitempty"`
	// Meta carries free-form caller metadata.
	Meta map[string]any `json:"meta,omitempty"`
}

// ShortText returns text truncated for prompt inclusion. maxChars <= 0 uses
// the 4000-character default.
func (it Interaction) ShortText(maxChars int) string {
	if maxChars <= 0 {
		maxChars = 4000
	}
	return canonical.Truncate(it.Text, maxChars)
}
