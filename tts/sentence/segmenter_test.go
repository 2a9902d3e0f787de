package sentence

import (
	"reflect"
	"strings"
	"testing"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "abbreviation inside prose",
			input:    "Hello world. Dr. Lee arrived. Great!",
			expected: []string{"Hello world.", "Dr. Lee arrived.", "Great!"},
		},
		{
			name:     "abbreviation does not split",
			input:    "Dr. Smith is here.",
			expected: []string{"Dr. Smith is here."},
		},
		{
			name:     "word that starts like an abbreviation",
			input:    "He drove. She walked.",
			expected: []string{"He drove.", "She walked."},
		},
		{
			name:     "ellipsis then question",
			input:    "Wait... really?",
			expected: []string{"Wait...", "really?"},
		},
		{
			name:     "unicode ellipsis",
			input:    "Well… maybe not.",
			expected: []string{"Well…", "maybe not."},
		},
		{
			name:     "ellipsis without a following space",
			input:    "Wait…really? Yes.",
			expected: []string{"Wait…", "really?", "Yes."},
		},
		{
			name:     "dotted ellipsis without a following space",
			input:    "Hmm...fine.",
			expected: []string{"Hmm...", "fine."},
		},
		{
			name:     "exclamation and question runs",
			input:    "What?! No way! Yes.",
			expected: []string{"What?!", "No way!", "Yes."},
		},
		{
			name:     "saint before place names",
			input:    "St. Louis is great. St. Paul is too.",
			expected: []string{"St. Louis is great.", "St. Paul is too."},
		},
		{
			name:     "case insensitive abbreviation",
			input:    "We met DR. Jones today. It went well.",
			expected: []string{"We met DR. Jones today.", "It went well."},
		},
		{
			name:     "spaced hyphen is a clause break",
			input:    "He paused - then he spoke.",
			expected: []string{"He paused -", "then he spoke."},
		},
		{
			name:     "spaced em dash is a clause break",
			input:    "It was over — or was it?",
			expected: []string{"It was over —", "or was it?"},
		},
		{
			name:     "hyphenated word is not a break",
			input:    "A well-known fact. Another one.",
			expected: []string{"A well-known fact.", "Another one."},
		},
		{
			name:     "closing quote stays with sentence",
			input:    `She said "Stop." Then she left.`,
			expected: []string{`She said "Stop."`, "Then she left."},
		},
		{
			name:     "dash artifact is dropped",
			input:    "Ready. - Go now.",
			expected: []string{"Ready.", "Go now."},
		},
		{
			name:     "decimal number",
			input:    "The value is 3.14 today.",
			expected: []string{"The value is 3.14 today."},
		},
		{
			name:     "missing space falls back to raw punctuation",
			input:    "Hello world.Goodbye.",
			expected: []string{"Hello world.", "Goodbye."},
		},
		{
			name:     "markdown heading is a title",
			input:    "# Chapter One. The start\n\nIt was late. We left.",
			expected: []string{"# Chapter One. The start", "It was late.", "We left."},
		},
		{
			name:     "short unpunctuated paragraph is a title",
			input:    "A Quiet Evening\n\nIt was late. We left.",
			expected: []string{"A Quiet Evening", "It was late.", "We left."},
		},
		{
			name:     "crlf paragraphs",
			input:    "First paragraph.\r\n\r\nSecond paragraph.",
			expected: []string{"First paragraph.", "Second paragraph."},
		},
		{
			name:     "cr paragraphs",
			input:    "One here.\r\rTwo here.",
			expected: []string{"One here.", "Two here."},
		},
		{
			name:     "blank lines with spaces",
			input:    "One here.\n   \n\n\tTwo here.",
			expected: []string{"One here.", "Two here."},
		},
		{
			name:     "single line break stays inside paragraph",
			input:    "This line wraps\nonto the next. Done.",
			expected: []string{"This line wraps\nonto the next.", "Done."},
		},
		{
			name:     "latin abbreviation",
			input:    "Bring fruit, e.g. apples or pears. Thanks.",
			expected: []string{"Bring fruit, e.g. apples or pears.", "Thanks."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Segment(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Segment(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSegmentBlank(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n\n", "\r\n\t \r\n"} {
		if got := Segment(input); len(got) != 0 {
			t.Errorf("Segment(%q) = %q, want empty", input, got)
		}
	}
}

func TestSegmentNeverEmpty(t *testing.T) {
	inputs := []string{
		"x",
		"...",
		"-",
		"!!!",
		"— — —",
		"Dr.",
		"no punctuation at all but a very long paragraph that keeps going and going well past the title threshold of one hundred characters",
		"??\n\n..\n\n!",
		strings.Repeat("Mr. ", 50),
	}

	for _, input := range inputs {
		got := Segment(input)
		if len(got) == 0 {
			t.Errorf("Segment(%q) returned no sentences", input)
		}
		for _, s := range got {
			if strings.TrimSpace(s) == "" {
				t.Errorf("Segment(%q) returned a blank sentence", input)
			}
		}
	}
}

func TestSegmentFiltersArtifacts(t *testing.T) {
	artifacts := map[string]bool{"-": true, "—": true, ".": true, "!": true, "?": true, "...": true, "…": true}
	inputs := []string{
		"Ready. - Go now.",
		"First. . Second.",
		"Stop! ! Start.",
		"One... ... Two.",
		"A thing — — another thing.",
		"Hello.\n\n-\n\nWorld.",
		"- . ! Then we left.",
	}

	for _, input := range inputs {
		for _, s := range Segment(input) {
			if artifacts[strings.TrimSpace(s)] {
				t.Errorf("Segment(%q) returned artifact %q", input, s)
			}
		}
	}
}

func TestSegmentDropsSpacedPunctuation(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"- . ! Then we left.", []string{"Then we left."}},
		{"Go. ... ! Stop.", []string{"Go.", "Stop."}},
		{"- . !", []string{"- . !"}},
	}

	for _, tt := range tests {
		if got := Segment(tt.input); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("Segment(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestSegmentIdempotent(t *testing.T) {
	inputs := []string{
		"Hello world. Dr. Lee arrived. Great!",
		"Wait... really? Yes.",
		"Wait…really? Yes.",
		"He paused - then he spoke. It was over — or was it?",
		"St. Louis is great. St. Paul is too.",
		"It was late.\n\nWe left early. The car would not start!",
		`She said "Stop." Then she left.`,
	}

	for _, input := range inputs {
		first := Segment(input)
		second := Segment(strings.Join(first, " "))
		if !reflect.DeepEqual(first, second) {
			t.Errorf("re-segmenting %q = %q, want %q", input, second, first)
		}
	}
}

func TestSegmentSubstringsOfInput(t *testing.T) {
	input := "Intro\n\nHello world.  Dr. Lee arrived.\nGreat! He paused - then left."
	for _, s := range Segment(input) {
		if !strings.Contains(input, s) {
			t.Errorf("sentence %q is not a substring of the input", s)
		}
	}
}

func TestSegmenterCustomTable(t *testing.T) {
	table := NewAbbreviationTable([]Abbreviation{{"Approx.", "approximately"}})
	seg := NewSegmenter(table)

	got := seg.Segment("It weighs approx. ten grams. Dr. Lee agrees.")
	expected := []string{"It weighs approx. ten grams.", "Dr.", "Lee agrees."}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Segment = %q, want %q", got, expected)
	}
}

func TestSegmenterTitleThreshold(t *testing.T) {
	seg := NewSegmenter(nil, WithTitleThreshold(5))

	got := seg.Segment("Not a title any more")
	if len(got) != 1 || got[0] != "Not a title any more" {
		t.Errorf("Segment = %q", got)
	}

	got = seg.Segment("Tiny")
	if len(got) != 1 || got[0] != "Tiny" {
		t.Errorf("Segment = %q", got)
	}
}

func TestSentences(t *testing.T) {
	got := Default().Sentences("One. Two. Three.")
	if len(got) != 3 {
		t.Fatalf("len(Sentences) = %d, want 3", len(got))
	}
	for i, s := range got {
		if s.Index != i {
			t.Errorf("Sentences[%d].Index = %d", i, s.Index)
		}
	}
	if got[2].Text != "Three." {
		t.Errorf("Sentences[2].Text = %q, want %q", got[2].Text, "Three.")
	}
}

func TestBoundaryPatternCompiles(t *testing.T) {
	for _, stems := range [][]string{nil, {"dr"}, {"e.g", "i.e", "a|b", "(x)"}} {
		pattern := boundaryPattern(stems)
		if pattern == "" {
			t.Fatalf("boundaryPattern(%q) is empty", stems)
		}
		table := make([]Abbreviation, 0, len(stems))
		for _, s := range stems {
			table = append(table, Abbreviation{Short: s + ".", Expansion: s})
		}
		seg := NewSegmenter(NewAbbreviationTable(table))
		if got := seg.Segment("One. Two."); len(got) != 2 {
			t.Errorf("stems %q: Segment = %q, want two sentences", stems, got)
		}
	}
}
