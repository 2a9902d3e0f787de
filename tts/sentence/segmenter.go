// Package sentence splits raw text into narratable sentences and produces
// their spoken form.
package sentence

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/dlclark/regexp2"
)

const (
	// DefaultTitleThreshold is the length, in characters, below which an
	// unpunctuated paragraph is treated as a title.
	DefaultTitleThreshold = 100

	// DefaultMatchTimeout bounds a single boundary scan.
	DefaultMatchTimeout = 500 * time.Millisecond

	// closers may trail sentence punctuation and stay with the sentence.
	closers = `"'”’)]`
)

// lineBreak matches \r\n, a lone \r or \n.
const lineBreak = `(?:\r\n|\r(?!\n)|\n)`

var headingMarker = regexp.MustCompile(`^#{1,6}(\s|$)`)

// Sentence is one narratable unit and its ordinal within a session.
type Sentence struct {
	Index int
	Text  string
}

// Segmenter turns raw text into an ordered list of sentences. It is safe for
// concurrent use and holds no per-call state.
type Segmenter struct {
	table     *AbbreviationTable
	paragraph *regexp2.Regexp
	boundary  *regexp2.Regexp
	titleMax  int
	logger    *log.Logger
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLogger sets the logger used to report recovered failures.
func WithLogger(l *log.Logger) Option {
	return func(s *Segmenter) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTitleThreshold overrides DefaultTitleThreshold.
func WithTitleThreshold(n int) Option {
	return func(s *Segmenter) {
		if n > 0 {
			s.titleMax = n
		}
	}
}

// WithMatchTimeout overrides DefaultMatchTimeout.
func WithMatchTimeout(d time.Duration) Option {
	return func(s *Segmenter) {
		if d > 0 {
			s.paragraph.MatchTimeout = d
			s.boundary.MatchTimeout = d
		}
	}
}

// NewSegmenter creates a segmenter that suppresses boundaries after the
// stems in table. A nil table selects DefaultAbbreviations.
func NewSegmenter(table *AbbreviationTable, opts ...Option) *Segmenter {
	if table == nil {
		table = DefaultAbbreviations()
	}

	s := &Segmenter{
		table:     table,
		paragraph: regexp2.MustCompile(lineBreak+`(?:[ \t]*`+lineBreak+`)+`, regexp2.None),
		boundary:  regexp2.MustCompile(boundaryPattern(table.Stems()), regexp2.IgnoreCase),
		titleMax:  DefaultTitleThreshold,
		logger:    log.Default(),
	}
	s.paragraph.MatchTimeout = DefaultMatchTimeout
	s.boundary.MatchTimeout = DefaultMatchTimeout

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// boundaryPattern builds the sentence boundary expression. A match covers the
// terminating punctuation (and any closing quotes) so the text up to the end
// of the match is one sentence.
func boundaryPattern(stems []string) string {
	sorted := append([]string(nil), stems...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})

	escaped := make([]string, 0, len(sorted))
	for _, stem := range sorted {
		escaped = append(escaped, regexp2.Escape(stem))
	}

	closing := `["'”’)\]]*`
	end := `(?=\s|$)`

	alts := []string{
		// Ellipsis always ends a sentence, even with no space after it.
		`(?:\.{3,}|…)` + closing,
		`[!?]+` + closing + end,
	}
	if len(escaped) > 0 {
		alts = append(alts, `(?<!\b(?:`+strings.Join(escaped, "|")+`))\.`+closing+end)
	} else {
		alts = append(alts, `\.`+closing+end)
	}
	// Clause break on a spaced hyphen or em dash.
	alts = append(alts, `(?<=[ \t])[-—](?=[ \t])`)

	return strings.Join(alts, "|")
}

var (
	defaultOnce      sync.Once
	defaultSegmenter *Segmenter
)

// Default returns a shared segmenter built from DefaultAbbreviations.
func Default() *Segmenter {
	defaultOnce.Do(func() {
		defaultSegmenter = NewSegmenter(nil)
	})
	return defaultSegmenter
}

// Segment splits text with the default segmenter.
func Segment(text string) []string {
	return Default().Segment(text)
}

// Segment returns the sentences of text in order. It never returns an empty
// slice for non-blank input: any internal failure yields the whole trimmed
// text as a single sentence.
func (s *Segmenter) Segment(text string) (sentences []string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("segmentation failed", "panic", r)
			sentences = []string{trimmed}
		}
	}()

	out, err := s.segment(text)
	if err != nil {
		s.logger.Debug("segmentation failed", "err", err)
		return []string{trimmed}
	}
	if len(out) == 0 {
		return []string{trimmed}
	}
	return out
}

// Sentences is Segment with each sentence paired with its index.
func (s *Segmenter) Sentences(text string) []Sentence {
	parts := s.Segment(text)
	out := make([]Sentence, len(parts))
	for i, p := range parts {
		out[i] = Sentence{Index: i, Text: p}
	}
	return out
}

func (s *Segmenter) segment(text string) ([]string, error) {
	paragraphs, err := s.paragraphs([]rune(text))
	if err != nil {
		return nil, err
	}

	var out []string
	for _, p := range paragraphs {
		para := string(p)
		if s.isTitle(para) {
			if !isArtifact(para) {
				out = append(out, para)
			}
			continue
		}

		parts, err := s.split(p)
		if err != nil {
			return nil, err
		}
		if countNonBlank(parts) <= 1 {
			parts = s.fallbackSplit(p)
		}

		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" || isArtifact(part) {
				continue
			}
			out = append(out, part)
		}
	}
	return out, nil
}

// paragraphs splits on blank lines and returns the non-blank paragraphs,
// trimmed.
func (s *Segmenter) paragraphs(runes []rune) ([][]rune, error) {
	var out [][]rune
	start := 0

	m, err := s.paragraph.FindRunesMatch(runes)
	for err == nil && m != nil {
		if p := trimRunes(runes[start:m.Index]); len(p) > 0 {
			out = append(out, p)
		}
		start = m.Index + m.Length
		m, err = s.paragraph.FindNextMatch(m)
	}
	if err != nil {
		return nil, err
	}

	if p := trimRunes(runes[start:]); len(p) > 0 {
		out = append(out, p)
	}
	return out, nil
}

// split cuts a paragraph after every boundary match.
func (s *Segmenter) split(p []rune) ([]string, error) {
	var parts []string
	start := 0

	m, err := s.boundary.FindRunesMatch(p)
	for err == nil && m != nil {
		end := m.Index + m.Length
		parts = append(parts, string(p[start:end]))
		start = end
		m, err = s.boundary.FindNextMatch(m)
	}
	if err != nil {
		return nil, err
	}

	if start < len(p) {
		parts = append(parts, string(p[start:]))
	}
	return parts, nil
}

// fallbackSplit cuts after every run of terminal punctuation, then glues
// back any piece that ends in a known abbreviation. A period followed
// directly by a digit or lowercase letter ("3.14", "example.com") is not a
// cut point.
func (s *Segmenter) fallbackSplit(p []rune) []string {
	var parts []string
	start := 0

	for i := 0; i < len(p); i++ {
		if !isTerminal(p[i]) {
			continue
		}
		j := i
		for j+1 < len(p) && isTerminal(p[j+1]) {
			j++
		}
		if i == j && p[i] == '.' && j+1 < len(p) && (unicode.IsDigit(p[j+1]) || unicode.IsLower(p[j+1])) {
			continue
		}
		parts = append(parts, string(p[start:j+1]))
		start = j + 1
		i = j
	}
	if start < len(p) {
		parts = append(parts, string(p[start:]))
	}

	merged := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		part := parts[i]
		for i+1 < len(parts) && s.endsWithAbbreviation(part) {
			i++
			part += parts[i]
		}
		merged = append(merged, part)
	}
	return merged
}

// endsWithAbbreviation reports whether part ends with a single period that
// follows a known stem.
func (s *Segmenter) endsWithAbbreviation(part string) bool {
	part = strings.TrimRightFunc(part, unicode.IsSpace)
	if !strings.HasSuffix(part, ".") || strings.HasSuffix(part, "..") {
		return false
	}
	part = strings.TrimSuffix(part, ".")

	word := part
	if i := strings.LastIndexFunc(part, unicode.IsSpace); i >= 0 {
		word = part[i+1:]
	}
	word = strings.TrimLeft(word, `"'“‘([`)
	return word != "" && s.table.IsStem(word)
}

func (s *Segmenter) isTitle(para string) bool {
	if headingMarker.MatchString(para) {
		return true
	}
	if utf8.RuneCountInString(para) >= s.titleMax {
		return false
	}
	body := strings.TrimRight(para, closers)
	return !strings.HasSuffix(body, ".") &&
		!strings.HasSuffix(body, "!") &&
		!strings.HasSuffix(body, "?")
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

// isArtifact reports whether s is nothing but boundary punctuation and
// whitespace.
func isArtifact(s string) bool {
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
		case r == '-', r == '—', r == '.', r == '!', r == '?', r == '…':
		default:
			return false
		}
	}
	return true
}

func countNonBlank(parts []string) int {
	n := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func trimRunes(r []rune) []rune {
	start, end := 0, len(r)
	for start < end && unicode.IsSpace(r[start]) {
		start++
	}
	for end > start && unicode.IsSpace(r[end-1]) {
		end--
	}
	return r[start:end]
}
