// Package mock provides an in-process speech engine for tests and demos.
package mock

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/narrate/tts"
)

// MockEngine implements tts.SpeechEngine without producing sound. Each
// utterance takes a fixed delay, or a duration derived from its word count.
type MockEngine struct {
	mu sync.Mutex

	// Configuration
	delay          time.Duration // Fixed time per utterance; 0 uses wordsPerMinute
	wordsPerMinute int
	failureRate    float64
	activeVoice    tts.Voice

	// Control for testing
	shouldFail   bool
	failureError error
	failOn       map[string]error
	panicOn      string

	// State
	speaking  bool
	interrupt chan struct{}
	spoken    []string
	callCount int
	stopCount int
}

var voices = []tts.Voice{
	{ID: "mock-voice-1", Name: "Mock Voice 1", Language: "en-US", Gender: "neutral"},
	{ID: "mock-voice-2", Name: "Mock Voice 2", Language: "en-GB", Gender: "female"},
	{ID: "mock-voice-3", Name: "Mock Voice 3", Language: "en-US", Gender: "male"},
}

// New creates a new mock engine with a 100ms delay per utterance.
func New() *MockEngine {
	return &MockEngine{
		delay:          100 * time.Millisecond,
		wordsPerMinute: 150,
		activeVoice:    voices[0],
		failOn:         make(map[string]error),
	}
}

// NewFromConfig creates a mock engine from configuration.
func NewFromConfig(cfg tts.MockConfig) *MockEngine {
	e := New()
	e.delay = cfg.Delay
	if cfg.WordsPerMinute > 0 {
		e.wordsPerMinute = cfg.WordsPerMinute
	}
	e.failureRate = cfg.FailureRate
	return e
}

// SelectVoice implements tts.SpeechEngine.
func (e *MockEngine) SelectVoice(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, v := range voices {
		if strings.EqualFold(v.ID, name) || strings.EqualFold(v.Name, name) {
			e.activeVoice = v
			return nil
		}
	}
	return fmt.Errorf("%w: %s", tts.ErrVoiceNotFound, name)
}

// Voices implements tts.VoiceLister.
func (e *MockEngine) Voices(context.Context) ([]tts.Voice, error) {
	out := make([]tts.Voice, len(voices))
	copy(out, voices)
	return out, nil
}

// Speak implements tts.SpeechEngine.
func (e *MockEngine) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	e.callCount++
	e.spoken = append(e.spoken, text)

	if text == e.panicOn && text != "" {
		e.mu.Unlock()
		panic("mock engine asked to panic")
	}
	if err, ok := e.failOn[text]; ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err)
	}
	if e.shouldFail {
		err := e.failureError
		e.mu.Unlock()
		return fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err)
	}
	if e.failureRate > 0 && rand.Float64() < e.failureRate {
		e.mu.Unlock()
		return fmt.Errorf("%w: simulated failure", tts.ErrSynthesisFailed)
	}

	interrupt := make(chan struct{})
	e.interrupt = interrupt
	e.speaking = true
	duration := e.duration(text)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.speaking = false
		if e.interrupt == interrupt {
			e.interrupt = nil
		}
		e.mu.Unlock()
	}()

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err())
	case <-interrupt:
		return tts.ErrCanceled
	}
}

// StopImmediate implements tts.SpeechEngine.
func (e *MockEngine) StopImmediate() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopCount++
	if e.interrupt != nil {
		close(e.interrupt)
		e.interrupt = nil
	}
	return nil
}

// IsSpeaking implements tts.SpeechEngine.
func (e *MockEngine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

// duration estimates how long text takes to say. Callers hold mu.
func (e *MockEngine) duration(text string) time.Duration {
	if e.delay > 0 || e.wordsPerMinute <= 0 {
		return e.delay
	}
	words := len(strings.Fields(text))
	return time.Duration(words) * time.Minute / time.Duration(e.wordsPerMinute)
}

// Test control methods

// SetDelay sets the time each utterance takes.
func (e *MockEngine) SetDelay(delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = delay
}

// SetFailure configures the engine to fail every utterance with err.
func (e *MockEngine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shouldFail = true
	e.failureError = err
}

// FailOn makes the engine fail only when asked to speak text.
func (e *MockEngine) FailOn(text string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failOn[text] = err
}

// PanicOn makes the engine panic when asked to speak text.
func (e *MockEngine) PanicOn(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.panicOn = text
}

// ClearFailure resets the engine to normal operation.
func (e *MockEngine) ClearFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shouldFail = false
	e.failureError = nil
	e.failOn = make(map[string]error)
	e.panicOn = ""
}

// GetCallCount returns the number of Speak calls.
func (e *MockEngine) GetCallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

// GetStopCount returns the number of StopImmediate calls.
func (e *MockEngine) GetStopCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopCount
}

// Spoken returns every text passed to Speak, in order.
func (e *MockEngine) Spoken() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.spoken))
	copy(out, e.spoken)
	return out
}

// Voice returns the active voice.
func (e *MockEngine) Voice() tts.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeVoice
}

var (
	_ tts.SpeechEngine = (*MockEngine)(nil)
	_ tts.VoiceLister  = (*MockEngine)(nil)
)
