package sentence

import (
	"regexp"
	"sort"
	"strings"
)

// Expander rewrites abbreviations into the words a voice should say. The
// result is only ever sent to a speech engine; highlighting keeps using the
// original sentence.
type Expander struct {
	pattern    *regexp.Regexp
	expansions map[string]string
}

// NewExpander builds an expander for table. A nil table selects
// DefaultAbbreviations.
func NewExpander(table *AbbreviationTable) *Expander {
	if table == nil {
		table = DefaultAbbreviations()
	}

	entries := table.Entries()
	e := &Expander{expansions: make(map[string]string, len(entries))}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		key := strings.ToLower(entry.Short)
		if _, dup := e.expansions[key]; dup {
			continue
		}
		e.expansions[key] = entry.Expansion
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return e
	}

	// Longest first so "sept." wins over "sep." at the same position.
	sort.SliceStable(keys, func(i, j int) bool {
		return len(keys[i]) > len(keys[j])
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	e.pattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)`)
	return e
}

// Expand returns the spoken form of s. Every abbreviation is replaced in a
// single left-to-right pass over s, so an expansion is never expanded again.
func (e *Expander) Expand(s string) string {
	if e.pattern == nil || s == "" {
		return s
	}
	return e.pattern.ReplaceAllStringFunc(s, func(match string) string {
		if exp, ok := e.expansions[strings.ToLower(match)]; ok {
			return exp
		}
		return match
	})
}

var defaultExpander = NewExpander(nil)

// Expand rewrites s with the default abbreviation table.
func Expand(s string) string {
	return defaultExpander.Expand(s)
}
