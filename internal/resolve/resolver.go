// Package resolve merges extractor output into a Passport. The merge is
// deterministic and does no I/O: temporal upsert for facts and prefs,
// alias-aware coalescence for entities, text dedupe for open loops, and
// contradiction recording when a key's value changes.
package resolve

import (
	"strings"

	"github.com/sozolabs/sozograph/internal/canonical"
	"github.com/sozolabs/sozograph/passport"
)

// Merge applies one update to p in place and returns the merge stats.
// Ordering is canonicalized and updated_at refreshed before returning.
func Merge(p *passport.Passport, u passport.Update) passport.ResolveStats {
	var stats passport.ResolveStats

	for _, f := range u.Facts {
		updated, contradicted := upsertKV(&p.Facts, f, &p.Contradictions)
		if updated {
			stats.FactsUpserted++
		}
		if contradicted {
			stats.ContradictionsAdded++
		}
	}

	for _, pref := range u.Prefs {
		updated, contradicted := upsertKV(&p.Prefs, pref, &p.Contradictions)
		if updated {
			stats.PrefsUpserted++
		}
		if contradicted {
			stats.ContradictionsAdded++
		}
	}

	mergeEntities(p, u.Entities, &stats)

	for _, loop := range u.OpenLoops {
		if dedupeOpenLoop(&p.OpenLoops, loop) {
			stats.OpenLoopsAdded++
		}
	}

	p.Sort()
	p.Touch()
	return stats
}

func normKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// upsertKV upserts incoming by normalized key with temporal priority: on a
// value change the later ts wins and a contradiction is recorded either way.
// Returns (updated, contradicted); an equal-value refresh counts as neither.
func upsertKV(items *[]passport.Fact, incoming passport.Fact, contradictions *[]passport.Contradiction) (bool, bool) {
	key := normKey(incoming.Key)
	incoming.Key = key

	idx := -1
	for i := range *items {
		if normKey((*items)[i].Key) == key {
			idx = i
			break
		}
	}

	if idx < 0 {
		*items = append(*items, incoming)
		return true, false
	}

	current := &(*items)[idx]
	// Canonicalize the stored key once matched, so a pre-normalization
	// spelling never lingers.
	current.Key = key

	if canonical.Equal(current.Value, incoming.Value) {
		if incoming.TS.After(current.TS) {
			current.TS = incoming.TS
			current.Source = incoming.Source
		}
		if incoming.Confidence > current.Confidence {
			current.Confidence = incoming.Confidence
		}
		return false, false
	}

	if !incoming.TS.Before(current.TS) {
		*contradictions = append(*contradictions, passport.Contradiction{
			Key:       key,
			Old:       current.Value,
			New:       incoming.Value,
			TSOld:     current.TS,
			TSNew:     incoming.TS,
			SourceOld: current.Source,
			SourceNew: incoming.Source,
		})
		(*items)[idx] = incoming
		return true, true
	}

	// Incoming is older: record the contradiction but keep the current value.
	*contradictions = append(*contradictions, passport.Contradiction{
		Key:       key,
		Old:       incoming.Value,
		New:       current.Value,
		TSOld:     incoming.TS,
		TSNew:     current.TS,
		SourceOld: incoming.Source,
		SourceNew: current.Source,
	})
	return false, true
}

// mergeEntities coalesces incoming entities into p.Entities through name and
// alias indices keyed by the case-insensitive trimmed form.
func mergeEntities(p *passport.Passport, incoming []passport.Entity, stats *passport.ResolveStats) {
	entityIdx := make(map[string]int, len(p.Entities))
	aliasIdx := make(map[string]string)
	for i := range p.Entities {
		k := passport.EntityKey(p.Entities[i].Name)
		entityIdx[k] = i
		for _, a := range p.Entities[i].Aliases {
			aliasIdx[passport.EntityKey(a)] = k
		}
	}

	for _, inc := range incoming {
		incKey := passport.EntityKey(inc.Name)

		targetKey := ""
		if _, ok := entityIdx[incKey]; ok {
			targetKey = incKey
		} else if owner, ok := aliasIdx[incKey]; ok {
			targetKey = owner
		} else {
			for _, a := range inc.Aliases {
				ak := passport.EntityKey(a)
				if _, ok := entityIdx[ak]; ok {
					targetKey = ak
					break
				}
				if owner, ok := aliasIdx[ak]; ok {
					targetKey = owner
					break
				}
			}
		}

		if targetKey == "" {
			p.Entities = append(p.Entities, inc)
			entityIdx[incKey] = len(p.Entities) - 1
			for _, a := range inc.Aliases {
				aliasIdx[passport.EntityKey(a)] = incKey
			}
			stats.EntitiesMerged++
			continue
		}

		i := entityIdx[targetKey]
		merged := mergeEntity(p.Entities[i], inc)
		p.Entities[i] = merged
		for _, a := range merged.Aliases {
			aliasIdx[passport.EntityKey(a)] = targetKey
		}
		stats.EntitiesMerged++
	}
}

// mergeEntity keeps the existing canonical name, unions aliases preserving
// first-seen order, and upgrades the type only from "other".
func mergeEntity(existing, incoming passport.Entity) passport.Entity {
	aliases := append([]string(nil), existing.Aliases...)
	seen := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		seen[strings.ToLower(a)] = true
	}

	addAlias := func(a string) {
		a = strings.TrimSpace(a)
		if a == "" {
			return
		}
		k := strings.ToLower(a)
		if seen[k] {
			return
		}
		seen[k] = true
		aliases = append(aliases, a)
	}

	if passport.EntityKey(existing.Name) != passport.EntityKey(incoming.Name) {
		addAlias(incoming.Name)
	}
	for _, a := range incoming.Aliases {
		addAlias(a)
	}

	typ := existing.Type
	if typ == passport.EntityOther && incoming.Type != passport.EntityOther {
		typ = incoming.Type
	}

	return passport.Entity{Name: existing.Name, Type: typ, Aliases: aliases}
}

// dedupeOpenLoop appends incoming unless an existing loop has the same
// whitespace-collapsed lowercase text, in which case the newest ts is kept.
// Returns true if the list changed.
func dedupeOpenLoop(loops *[]passport.OpenLoop, incoming passport.OpenLoop) bool {
	norm := passport.LoopKey(incoming.Item)
	if norm == "" {
		return false
	}

	for i := range *loops {
		if passport.LoopKey((*loops)[i].Item) == norm {
			if incoming.TS.After((*loops)[i].TS) {
				(*loops)[i] = incoming
				return true
			}
			return false
		}
	}

	*loops = append(*loops, incoming)
	return true
}
