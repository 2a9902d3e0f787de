// Package tts drives sentence-by-sentence narration of text with a speech
// engine while keeping a visual highlight on the sentence being spoken.
package tts

import "context"

// SpeechEngine speaks one sentence at a time.
//
// Speak blocks until the utterance finishes or ctx is cancelled. It returns
// nil when the utterance completed, an error for which IsCancellation is true
// when it was interrupted, and any other error when synthesis failed.
type SpeechEngine interface {
	// SelectVoice switches to the named voice for subsequent utterances.
	SelectVoice(name string) error

	// Speak synthesizes and plays text.
	Speak(ctx context.Context, text string) error

	// StopImmediate halts any utterance in progress. Best effort.
	StopImmediate() error

	// IsSpeaking reports whether an utterance is in progress.
	IsSpeaking() bool
}

// VoiceLister is implemented by engines that can enumerate their voices.
type VoiceLister interface {
	Voices(ctx context.Context) ([]Voice, error)
}

// Closer is implemented by engines holding resources that must be released.
type Closer interface {
	Close() error
}

// HighlightSink shows which part of the raw text is being spoken. Offsets are
// byte offsets into the text passed to Controller.Play. Implementations must
// accept calls from any goroutine.
type HighlightSink interface {
	Highlight(start, length int)
	Clear()
}

// StatusSink receives short progress messages such as "Sentence 2 of 9".
// Implementations must accept calls from any goroutine.
type StatusSink interface {
	SetStatus(text string)
}

// Voice describes a voice offered by an engine.
type Voice struct {
	ID       string // Engine-specific identifier passed to SelectVoice
	Name     string // Display name
	Language string // BCP 47 language tag, e.g. "en-US"
	Gender   string // "male", "female" or "neutral" when known
}

// FilterValue returns the text used when fuzzy-matching voices.
func (v Voice) FilterValue() string {
	if v.Name == v.ID || v.Name == "" {
		return v.ID + " " + v.Language
	}
	return v.ID + " " + v.Name + " " + v.Language
}

// HighlightFunc adapts a function pair to HighlightSink.
type HighlightFunc struct {
	OnHighlight func(start, length int)
	OnClear     func()
}

// Highlight implements HighlightSink.
func (h HighlightFunc) Highlight(start, length int) {
	if h.OnHighlight != nil {
		h.OnHighlight(start, length)
	}
}

// Clear implements HighlightSink.
func (h HighlightFunc) Clear() {
	if h.OnClear != nil {
		h.OnClear()
	}
}

// StatusFunc adapts a function to StatusSink.
type StatusFunc func(text string)

// SetStatus implements StatusSink.
func (f StatusFunc) SetStatus(text string) {
	if f != nil {
		f(text)
	}
}

// nopSink discards highlights and status messages.
type nopSink struct{}

func (nopSink) Highlight(int, int) {}
func (nopSink) Clear()             {}
func (nopSink) SetStatus(string)   {}
