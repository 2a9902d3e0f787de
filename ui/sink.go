package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/narrate/tts"
	ttssync "github.com/dgnsrekt/narrate/tts/sync"
)

// Sink collects highlights and status messages from a tts.Controller and
// wakes the program when they change. Its methods never block.
type Sink struct {
	mu          sync.Mutex
	highlight   ttssync.Range
	highlighted bool
	status      string

	notify chan struct{}
}

// sinkMsg tells the model the sink has changed.
type sinkMsg struct{}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{notify: make(chan struct{}, 1)}
}

// Highlight implements tts.HighlightSink.
func (s *Sink) Highlight(start, length int) {
	s.mu.Lock()
	s.highlight = ttssync.Range{Start: start, Length: length}
	s.highlighted = true
	s.mu.Unlock()
	s.wake()
}

// Clear implements tts.HighlightSink.
func (s *Sink) Clear() {
	s.mu.Lock()
	s.highlight = ttssync.Range{}
	s.highlighted = false
	s.mu.Unlock()
	s.wake()
}

// SetStatus implements tts.StatusSink.
func (s *Sink) SetStatus(text string) {
	s.mu.Lock()
	s.status = text
	s.mu.Unlock()
	s.wake()
}

// Snapshot returns the current highlight, whether one is shown, and the
// latest status message.
func (s *Sink) Snapshot() (ttssync.Range, bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlight, s.highlighted, s.status
}

// Wait returns a command that delivers a sinkMsg on the next change.
func (s *Sink) Wait() tea.Cmd {
	return func() tea.Msg {
		<-s.notify
		return sinkMsg{}
	}
}

func (s *Sink) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

var (
	_ tts.HighlightSink = (*Sink)(nil)
	_ tts.StatusSink    = (*Sink)(nil)
)
