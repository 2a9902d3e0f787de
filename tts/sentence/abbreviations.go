package sentence

import "strings"

// Abbreviation maps a written short form to the words spoken in its place.
type Abbreviation struct {
	Short     string // Written form including the trailing period, e.g. "Dr."
	Expansion string // Spoken form, e.g. "Doctor"
}

// Stem returns the short form without its trailing period. The segmenter
// uses stems to decide whether a period closes a sentence.
func (a Abbreviation) Stem() string {
	return strings.TrimSuffix(a.Short, ".")
}

// AbbreviationTable is an ordered, read-only set of abbreviations.
type AbbreviationTable struct {
	entries []Abbreviation
	stems   map[string]struct{}
}

// NewAbbreviationTable builds a table from the given entries. Entries with an
// empty short form are ignored. Lookups are case-insensitive.
func NewAbbreviationTable(entries []Abbreviation) *AbbreviationTable {
	t := &AbbreviationTable{
		entries: make([]Abbreviation, 0, len(entries)),
		stems:   make(map[string]struct{}, len(entries)),
	}
	for _, e := range entries {
		stem := e.Stem()
		if strings.TrimSpace(stem) == "" {
			continue
		}
		t.entries = append(t.entries, e)
		t.stems[strings.ToLower(stem)] = struct{}{}
	}
	return t
}

// DefaultAbbreviations returns the table used when none is configured.
func DefaultAbbreviations() *AbbreviationTable {
	return NewAbbreviationTable(defaultEntries)
}

// Entries returns a copy of the table entries in order.
func (t *AbbreviationTable) Entries() []Abbreviation {
	out := make([]Abbreviation, len(t.entries))
	copy(out, t.entries)
	return out
}

// Stems returns the stem of every entry, in table order.
func (t *AbbreviationTable) Stems() []string {
	stems := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		stems = append(stems, e.Stem())
	}
	return stems
}

// IsStem reports whether word is the stem of a known abbreviation.
func (t *AbbreviationTable) IsStem(word string) bool {
	_, ok := t.stems[strings.ToLower(word)]
	return ok
}

// Len returns the number of entries.
func (t *AbbreviationTable) Len() int {
	return len(t.entries)
}

// Short forms that are also common English words ("no.", "in.", "am.") are
// left out so they cannot hide a real sentence end.
var defaultEntries = []Abbreviation{
	// Titles
	{"Mr.", "Mister"},
	{"Mrs.", "Missus"},
	{"Ms.", "Miz"},
	{"Dr.", "Doctor"},
	{"Prof.", "Professor"},
	{"Sr.", "Senior"},
	{"Jr.", "Junior"},
	{"St.", "Saint"},
	{"Mt.", "Mount"},
	{"Rev.", "Reverend"},
	{"Hon.", "Honorable"},
	{"Gen.", "General"},
	{"Col.", "Colonel"},
	{"Capt.", "Captain"},
	{"Lt.", "Lieutenant"},
	{"Sgt.", "Sergeant"},
	{"Gov.", "Governor"},
	{"Sen.", "Senator"},
	{"Rep.", "Representative"},

	// Latin and reference
	{"e.g.", "for example"},
	{"i.e.", "that is"},
	{"etc.", "et cetera"},
	{"vs.", "versus"},
	{"cf.", "compare"},
	{"approx.", "approximately"},
	{"Fig.", "Figure"},
	{"Vol.", "Volume"},
	{"Ch.", "Chapter"},
	{"Dept.", "Department"},

	// Organisations
	{"Inc.", "Incorporated"},
	{"Ltd.", "Limited"},
	{"Corp.", "Corporation"},
	{"Co.", "Company"},
	{"Bros.", "Brothers"},

	// Places
	{"Ave.", "Avenue"},
	{"Blvd.", "Boulevard"},
	{"Rd.", "Road"},

	// Months
	{"Jan.", "January"},
	{"Feb.", "February"},
	{"Mar.", "March"},
	{"Apr.", "April"},
	{"Jun.", "June"},
	{"Jul.", "July"},
	{"Aug.", "August"},
	{"Sept.", "September"},
	{"Sep.", "September"},
	{"Oct.", "October"},
	{"Nov.", "November"},
	{"Dec.", "December"},
}
