package ui

import (
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	ttssync "github.com/dgnsrekt/narrate/tts/sync"
)

// render lays text out for a viewport of the given width, highlighting r.
// Offsets in r are byte offsets into text.
func render(text string, r ttssync.Range, highlighted bool, width int, h highlighter) string {
	if highlighted {
		text = applyHighlight(text, r, h)
	}
	return layout(text, width)
}

// layout wraps text at word boundaries, breaking words longer than width.
func layout(text string, width int) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\t", "    ")
	if width <= 0 {
		return text
	}
	return wrap.String(wordwrap.String(text, width), width)
}

// applyHighlight styles the bytes covered by r. Ranges are clamped to the
// text and widened to rune boundaries.
func applyHighlight(text string, r ttssync.Range, h highlighter) string {
	start := max(0, min(r.Start, len(text)))
	end := max(start, min(r.End(), len(text)))
	for start > 0 && !isRuneStart(text[start]) {
		start--
	}
	for end < len(text) && !isRuneStart(text[end]) {
		end++
	}
	if start == end {
		return text
	}

	var b strings.Builder
	b.WriteString(text[:start])
	for i, line := range strings.Split(text[start:end], "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		if line != "" {
			b.WriteString(h.Render(line))
		}
	}
	b.WriteString(text[end:])
	return b.String()
}

// lineOf returns the wrapped line that offset falls on.
func lineOf(text string, offset, width int) int {
	offset = max(0, min(offset, len(text)))
	// The word at offset has to be laid out too, or it never wraps.
	if i := strings.IndexAny(text[offset:], " \t\r\n"); i >= 0 {
		offset += i
	} else {
		offset = len(text)
	}
	return strings.Count(layout(text[:offset], width), "\n")
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
