// Package sync maps spoken sentences back to their position in the displayed
// text so highlighting follows narration.
package sync

import (
	"unicode"
	"unicode/utf8"
)

// Range is where a sentence sits in the raw text. Offsets are byte offsets.
type Range struct {
	Start  int
	Length int
	// Next is the cursor to search from for the following sentence.
	Next int
	// Found is false when the range is a best-effort guess.
	Found bool
}

// End returns the offset just past the range.
func (r Range) End() int {
	return r.Start + r.Length
}

// Locate finds sentence in raw, case-insensitively, starting at from. When
// the sentence is not ahead of the cursor the whole text is searched again;
// when it is nowhere to be found a range of the sentence's length at from is
// returned and the cursor advances by one. The returned cursor is never
// behind from.
func Locate(raw, sentence string, from int) Range {
	if from < 0 {
		from = 0
	}

	if sentence != "" {
		if start, n := indexFold(raw, sentence, from); start >= 0 {
			return Range{Start: start, Length: n, Next: start + n, Found: true}
		}
		if start, n := indexFold(raw, sentence, 0); start >= 0 {
			return Range{Start: start, Length: n, Next: max(start+n, from), Found: true}
		}
	}

	start := min(from, len(raw))
	return Range{
		Start:  start,
		Length: min(len(sentence), len(raw)-start),
		Next:   from + 1,
	}
}

// Tracker locates the sentences of one session in order.
type Tracker struct {
	raw    string
	cursor int
}

// NewTracker returns a tracker positioned at the start of raw.
func NewTracker(raw string) *Tracker {
	return &Tracker{raw: raw}
}

// Next locates sentence at or after the cursor and advances the cursor.
func (t *Tracker) Next(sentence string) Range {
	r := Locate(t.raw, sentence, t.cursor)
	t.cursor = r.Next
	return r
}

// Skip advances the cursor past each sentence without reporting ranges. It
// is used to line the cursor up when a session resumes part way through.
func (t *Tracker) Skip(sentences []string) {
	for _, s := range sentences {
		t.Next(s)
	}
}

// Cursor returns the current search cursor.
func (t *Tracker) Cursor() int {
	return t.cursor
}

// indexFold returns the byte offset and matched length of the first
// case-insensitive occurrence of sub in s at or after from, or -1.
func indexFold(s, sub string, from int) (int, int) {
	for from < len(s) && !utf8.RuneStart(s[from]) {
		from++
	}
	for i := from; i < len(s); {
		if n, ok := hasPrefixFold(s[i:], sub); ok {
			return i, n
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, 0
}

// hasPrefixFold reports whether s starts with prefix under simple case
// folding, and how many bytes of s the prefix covered.
func hasPrefixFold(s, prefix string) (int, bool) {
	i := 0
	for _, want := range prefix {
		if i >= len(s) {
			return 0, false
		}
		got, size := utf8.DecodeRuneInString(s[i:])
		if !equalFoldRune(got, want) {
			return 0, false
		}
		i += size
	}
	return i, true
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for f := unicode.SimpleFold(a); f != a; f = unicode.SimpleFold(f) {
		if f == b {
			return true
		}
	}
	return false
}
