package ui

import (
	"strings"
	"testing"

	"github.com/muesli/reflow/ansi"
	"github.com/muesli/termenv"

	ttssync "github.com/dgnsrekt/narrate/tts/sync"
)

// bracket highlights with plain reverse video.
var bracket = highlighter{profile: termenv.Ascii}

func TestApplyHighlight(t *testing.T) {
	reverse := func(s string) string { return termenv.ANSI.String(s).Reverse().String() }

	tests := []struct {
		name string
		text string
		r    ttssync.Range
		want string
	}{
		{
			name: "middle",
			text: "One. Two. Three.",
			r:    ttssync.Range{Start: 5, Length: 4},
			want: "One. " + reverse("Two.") + " Three.",
		},
		{
			name: "across lines",
			text: "One\nTwo.",
			r:    ttssync.Range{Start: 0, Length: 8},
			want: reverse("One") + "\n" + reverse("Two."),
		},
		{
			name: "clamped",
			text: "Short.",
			r:    ttssync.Range{Start: 2, Length: 100},
			want: "Sh" + reverse("ort."),
		},
		{
			name: "outside",
			text: "Short.",
			r:    ttssync.Range{Start: 40, Length: 3},
			want: "Short.",
		},
		{
			name: "rune boundary",
			text: "Café au lait.",
			r:    ttssync.Range{Start: 4, Length: 1},
			want: "Caf" + reverse("é") + " au lait.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := applyHighlight(tt.text, tt.r, bracket); got != tt.want {
				t.Errorf("applyHighlight() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLayout(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"one two three", 0, "one two three"},
		{"one two three", 7, "one two\nthree"},
		{"a\r\nb", 10, "a\nb"},
		{"\tx", 10, "    x"},
		{"abcdefghij", 4, "abcd\nefgh\nij"},
	}

	for _, tt := range tests {
		if got := layout(tt.text, tt.width); got != tt.want {
			t.Errorf("layout(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestRenderKeepsWidth(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 5)
	out := render(text, ttssync.Range{Start: 10, Length: 60}, true, 20, bracket)

	for _, line := range strings.Split(out, "\n") {
		if w := ansi.PrintableRuneWidth(line); w > 20 {
			t.Errorf("line %q is %d cells wide, want at most 20", line, w)
		}
	}
}

func TestLineOf(t *testing.T) {
	text := "one two three four\nfive six"

	tests := []struct {
		offset int
		width  int
		want   int
	}{
		{0, 80, 0},
		{19, 80, 1},
		{8, 7, 1},
		{14, 7, 2},
		{-5, 80, 0},
		{1000, 80, 1},
	}

	for _, tt := range tests {
		if got := lineOf(text, tt.offset, tt.width); got != tt.want {
			t.Errorf("lineOf(%d, %d) = %d, want %d", tt.offset, tt.width, got, tt.want)
		}
	}
}

func TestNewHighlighter(t *testing.T) {
	h := newHighlighter("blue", termenv.ANSI256)
	if h.bg != termenv.ANSI256.Convert(termenv.ANSIBlue) {
		t.Errorf("bg = %v, want blue", h.bg)
	}
	if h.fg != termenv.ANSI256.Convert(termenv.ANSIBrightWhite) {
		t.Errorf("fg = %v, want bright white", h.fg)
	}

	if h := newHighlighter("chartreuse", termenv.ANSI); h.bg != termenv.ANSI.Convert(termenv.ANSIYellow) {
		t.Errorf("unknown colour bg = %v, want yellow", h.bg)
	}
}
