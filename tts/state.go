package tts

import (
	"fmt"

	ttssync "github.com/dgnsrekt/narrate/tts/sync"
)

// StateType represents the playback state.
type StateType int

const (
	// StateStopped is the initial state. Nothing is being narrated.
	StateStopped StateType = iota
	// StatePlaying indicates sentences are being spoken.
	StatePlaying
	// StatePaused indicates narration is suspended at a known sentence.
	StatePaused
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// PlaybackState is the narration state machine plus the bookkeeping needed
// to resume. Paused always carries a resume index >= 0 and Stopped always
// has index 0 with no cached sentence.
//
// PlaybackState is not safe for concurrent use; the Controller guards it.
type PlaybackState struct {
	current     StateType
	index       int
	pausedIndex int
	sentence    string
	highlight   ttssync.Range
	transitions map[StateType][]StateType
}

// NewPlaybackState returns a state machine in StateStopped.
func NewPlaybackState() *PlaybackState {
	return &PlaybackState{
		current:     StateStopped,
		pausedIndex: -1,
		transitions: map[StateType][]StateType{
			StateStopped: {StatePlaying},
			StatePlaying: {StatePaused, StateStopped},
			StatePaused:  {StatePlaying, StateStopped},
		},
	}
}

// transition moves to the given state if the table allows it.
func (p *PlaybackState) transition(to StateType) bool {
	for _, state := range p.transitions[p.current] {
		if state == to {
			p.current = to
			return true
		}
	}
	return false
}

// Play starts a fresh session at sentence 0. Only a stopped machine can play;
// a paused one must Resume or Stop first.
func (p *PlaybackState) Play() error {
	if p.current != StateStopped || !p.transition(StatePlaying) {
		return fmt.Errorf("%w: play from %s", ErrStateTransition, p.current)
	}
	p.index = 0
	p.pausedIndex = -1
	p.sentence = ""
	p.highlight = ttssync.Range{}
	return nil
}

// Pause suspends playback and records at as the sentence to resume from.
func (p *PlaybackState) Pause(at int) error {
	if at < 0 {
		return fmt.Errorf("%w: pause at %d", ErrInvalidResumeIndex, at)
	}
	if !p.transition(StatePaused) {
		return fmt.Errorf("%w: pause from %s", ErrStateTransition, p.current)
	}
	p.pausedIndex = at
	return nil
}

// Resume continues from the recorded pause index. It reports false, and stays
// where it is, when not paused or when no valid index was recorded.
func (p *PlaybackState) Resume() bool {
	if p.current != StatePaused || p.pausedIndex < 0 {
		return false
	}
	if !p.transition(StatePlaying) {
		return false
	}
	p.index = p.pausedIndex
	p.pausedIndex = -1
	return true
}

// Stop returns to StateStopped from any state and clears the session
// bookkeeping unconditionally.
func (p *PlaybackState) Stop() {
	if p.current != StateStopped {
		p.transition(StateStopped)
	}
	p.index = 0
	p.pausedIndex = -1
	p.sentence = ""
	p.highlight = ttssync.Range{}
}

// SetCurrent records the sentence being spoken. It is ignored unless playing.
func (p *PlaybackState) SetCurrent(index int, sentence string, highlight ttssync.Range) bool {
	if p.current != StatePlaying {
		return false
	}
	p.index = index
	p.sentence = sentence
	p.highlight = highlight
	return true
}

// Rewind moves the index back to the first sentence without leaving
// StatePlaying. It is used when narration reaches the end of the text.
func (p *PlaybackState) Rewind() {
	p.index = 0
	p.sentence = ""
	p.highlight = ttssync.Range{}
}

// Current returns the current state.
func (p *PlaybackState) Current() StateType {
	return p.current
}

// Index returns the current sentence index.
func (p *PlaybackState) Index() int {
	return p.index
}

// PausedIndex returns the resume index, or -1 when not paused.
func (p *PlaybackState) PausedIndex() int {
	return p.pausedIndex
}

// Sentence returns the sentence being spoken, if any.
func (p *PlaybackState) Sentence() string {
	return p.sentence
}

// Highlight returns the range of the sentence being spoken.
func (p *PlaybackState) Highlight() ttssync.Range {
	return p.highlight
}
