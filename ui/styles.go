package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const ellipsis = "…"

var (
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(lipgloss.Color("#5A56E0")).
			Bold(true)

	statusBarScrollPosStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg)

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg)

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen)

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(red)

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"})
)

// highlightColors maps configured colour names to ANSI colours.
var highlightColors = map[string]termenv.ANSIColor{
	"black":   termenv.ANSIBlack,
	"red":     termenv.ANSIRed,
	"green":   termenv.ANSIGreen,
	"yellow":  termenv.ANSIYellow,
	"blue":    termenv.ANSIBlue,
	"magenta": termenv.ANSIMagenta,
	"cyan":    termenv.ANSICyan,
	"white":   termenv.ANSIWhite,
}

// highlighter styles the sentence being spoken.
type highlighter struct {
	profile termenv.Profile
	bg      termenv.Color
	fg      termenv.Color
}

// newHighlighter returns a highlighter for the named colour. Terminals
// without colour get reverse video.
func newHighlighter(name string, profile termenv.Profile) highlighter {
	c, ok := highlightColors[name]
	if !ok {
		c = termenv.ANSIYellow
	}

	fg := termenv.ANSIBlack
	if c == termenv.ANSIBlack || c == termenv.ANSIBlue || c == termenv.ANSIRed || c == termenv.ANSIMagenta {
		fg = termenv.ANSIBrightWhite
	}
	return highlighter{
		profile: profile,
		bg:      profile.Convert(c),
		fg:      profile.Convert(fg),
	}
}

// Render styles s. Each line is styled separately so wrapping never
// carries the style into the margin.
func (h highlighter) Render(s string) string {
	if h.profile == termenv.Ascii {
		// Ascii styles are dropped entirely; reverse video is not colour.
		return termenv.ANSI.String(s).Reverse().String()
	}
	return h.profile.String(s).Background(h.bg).Foreground(h.fg).String()
}
