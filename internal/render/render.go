// Package render produces the bounded context string handed to downstream
// prompts. Selection prefers newer, higher-confidence entries; the budget is
// enforced by trimming the least important sections first.
package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sozolabs/sozograph/internal/canonical"
	"github.com/sozolabs/sozograph/passport"
)

// DefaultHeader is the stable first line of every rendered context.
const DefaultHeader = "SOZOGRAPH PASSPORT v1"

// DefaultBudgetChars is the default context budget.
const DefaultBudgetChars = 3000

// minBudgetChars is the floor any caller-supplied budget is clamped to.
const minBudgetChars = 400

// Section caps before trimming: facts, prefs, entities, open loops,
// contradictions.
const (
	capFacts          = 25
	capPrefs          = 15
	capEntities       = 12
	capOpenLoops      = 10
	capContradictions = 8

	floorFacts = 5

	maxTrimSteps = 80
)

// Options control one render.
type Options struct {
	BudgetChars int
	Header      string
}

// ExportContext renders a compact, stable context string for p.
func ExportContext(p *passport.Passport, opts Options) string {
	budget := opts.BudgetChars
	if budget == 0 {
		budget = DefaultBudgetChars
	}
	if budget < minBudgetChars {
		budget = minBudgetChars
	}
	header := opts.Header
	if header == "" {
		header = DefaultHeader
	}

	caps := [5]int{capFacts, capPrefs, capEntities, capOpenLoops, capContradictions}
	lines := build(p, header, caps)

	if joinLen(lines) <= budget {
		return strings.Join(lines, "\n")
	}

	// Trim least important first: contradictions, open loops, entities,
	// prefs, then facts down to the floor. Hard truncate as a last resort.
	for i := 0; i < maxTrimSteps; i++ {
		if joinLen(lines) <= budget {
			break
		}

		switch {
		case caps[4] > 0:
			caps[4]--
		case caps[3] > 0:
			caps[3]--
		case caps[2] > 0:
			caps[2]--
		case caps[1] > 0:
			caps[1]--
		case caps[0] > floorFacts:
			caps[0]--
		default:
			return canonical.Truncate(strings.Join(lines, "\n"), budget)
		}

		lines = build(p, header, caps)
	}

	return strings.Join(lines, "\n")
}

func build(p *passport.Passport, header string, caps [5]int) []string {
	facts := pickTopKV(p.Facts, caps[0])
	prefs := pickTopKV(p.Prefs, caps[1])
	entities := entityLines(p.Entities, caps[2])
	loops := pickTopOpenLoops(p.OpenLoops, caps[3])
	contradictions := pickTopContradictions(p.Contradictions, caps[4])

	var lines []string
	lines = append(lines, header)
	if p.UserKey != "" {
		lines = append(lines, "User: "+p.UserKey)
	}
	lines = append(lines, "Updated: "+p.UpdatedAt.Format(time.RFC3339))

	if len(facts) > 0 {
		lines = append(lines, "", "Facts (current beliefs):")
		for _, f := range facts {
			lines = append(lines, fmt.Sprintf("- %s: %s", canonical.NormalizeKey(f.Key), valToStr(f.Value, 220)))
		}
	}

	if len(prefs) > 0 {
		lines = append(lines, "", "Preferences:")
		for _, pr := range prefs {
			lines = append(lines, fmt.Sprintf("- %s: %s", canonical.NormalizeKey(pr.Key), valToStr(pr.Value, 220)))
		}
	}

	if len(entities) > 0 {
		lines = append(lines, "", "Key entities:")
		for _, e := range entities {
			lines = append(lines, "- "+e)
		}
	}

	if len(loops) > 0 {
		lines = append(lines, "", "Open loops:")
		for _, o := range loops {
			lines = append(lines, "- "+valToStr(o.Item, 240))
		}
	}

	if len(contradictions) > 0 {
		lines = append(lines, "", "Recent updates (contradictions resolved by time):")
		for _, c := range contradictions {
			lines = append(lines, fmt.Sprintf("- %s changed: %s -> %s",
				canonical.NormalizeKey(c.Key), valToStr(c.Old, 220), valToStr(c.New, 220)))
		}
	}

	return lines
}

// score prefers newer entries; confidence is a weak tiebreaker only, by
// design of the v1 format.
func score(ts time.Time, confidence float64) float64 {
	return float64(ts.Unix())/1e9 + confidence*0.5
}

func pickTopKV(items []passport.Fact, n int) []passport.Fact {
	ranked := append([]passport.Fact(nil), items...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return score(ranked[i].TS, ranked[i].Confidence) > score(ranked[j].TS, ranked[j].Confidence)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func pickTopOpenLoops(loops []passport.OpenLoop, n int) []passport.OpenLoop {
	ranked := append([]passport.OpenLoop(nil), loops...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TS.After(ranked[j].TS)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func pickTopContradictions(cs []passport.Contradiction, n int) []passport.Contradiction {
	ranked := append([]passport.Contradiction(nil), cs...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TSNew.After(ranked[j].TSNew)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// entityLines renders "Name (type)" when the type is specific, else "Name".
func entityLines(entities []passport.Entity, max int) []string {
	var out []string
	for _, e := range entities {
		if len(out) >= max {
			break
		}
		if e.Type != "" && e.Type != passport.EntityOther {
			out = append(out, fmt.Sprintf("%s (%s)", e.Name, e.Type))
		} else {
			out = append(out, e.Name)
		}
	}
	return out
}

// valToStr renders a JSON value for a context line, truncated to maxLen.
func valToStr(v any, maxLen int) string {
	var s string
	switch t := v.(type) {
	case nil:
		s = "null"
	case bool:
		if t {
			s = "true"
		} else {
			s = "false"
		}
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'g', -1, 32)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case json.Number:
		s = t.String()
	default:
		if b, err := json.Marshal(v); err == nil {
			s = string(b)
		} else {
			s = fmt.Sprintf("%v", v)
		}
	}

	return canonical.Truncate(s, maxLen)
}

// joinLen counts characters, not bytes; the budget is a character budget.
func joinLen(lines []string) int {
	n := 0
	for i, l := range lines {
		if i > 0 {
			n++
		}
		n += utf8.RuneCountInString(l)
	}
	return n
}
