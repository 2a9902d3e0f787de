package engines

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/engines/mock"
)

func newFallbackPair(maxFailures int) (*FallbackEngine, *mock.MockEngine, *mock.MockEngine) {
	primary := mock.New()
	primary.SetDelay(time.Millisecond)
	fallback := mock.New()
	fallback.SetDelay(time.Millisecond)
	return NewFallbackEngine(primary, fallback, maxFailures, log.New(nil)), primary, fallback
}

// TestFallbackEngine tests the fallback mechanism.
func TestFallbackEngine(t *testing.T) {
	engine, primary, fallback := newFallbackPair(2)
	primary.SetFailure(errors.New("primary engine failure"))
	ctx := context.Background()

	// First attempt fails with the primary's error.
	if err := engine.Speak(ctx, "test 1"); !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Errorf("first Speak() error = %v, want %v", err, tts.ErrSynthesisFailed)
	}

	// Second failure switches engines and retries on the fallback.
	if err := engine.Speak(ctx, "test 2"); err != nil {
		t.Errorf("second Speak() error = %v, want fallback success", err)
	}
	if got := fallback.Spoken(); len(got) != 1 || got[0] != "test 2" {
		t.Errorf("fallback spoke %v, want [test 2]", got)
	}

	if want := "Using fallback engine (primary failed 2 times)"; engine.Status() != want {
		t.Errorf("Status() = %q, want %q", engine.Status(), want)
	}

	if err := engine.Speak(ctx, "test 3"); err != nil {
		t.Errorf("Speak() after switch error = %v", err)
	}
	if primary.GetCallCount() != 2 {
		t.Errorf("primary called %d times, want 2", primary.GetCallCount())
	}
	if engine.Active() != tts.SpeechEngine(fallback) {
		t.Error("Active() is not the fallback")
	}
}

// TestFallbackRecovery tests that a success resets the failure count.
func TestFallbackRecovery(t *testing.T) {
	engine, primary, _ := newFallbackPair(2)
	ctx := context.Background()

	primary.SetFailure(errors.New("flaky"))
	_ = engine.Speak(ctx, "one")
	primary.ClearFailure()
	if err := engine.Speak(ctx, "two"); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	primary.SetFailure(errors.New("flaky"))
	_ = engine.Speak(ctx, "three")
	if want := "Using primary engine (failures: 1/2)"; engine.Status() != want {
		t.Errorf("Status() = %q, want %q", engine.Status(), want)
	}
}

// TestFallbackIgnoresCancellation tests that pauses do not count as failures.
func TestFallbackIgnoresCancellation(t *testing.T) {
	engine, primary, _ := newFallbackPair(1)
	primary.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := engine.Speak(ctx, "hello"); !tts.IsCancellation(err) {
		t.Fatalf("Speak() error = %v, want cancellation", err)
	}
	if engine.Active() != tts.SpeechEngine(primary) {
		t.Error("cancellation switched to the fallback")
	}
}

// TestFallbackBothFail tests the error when both engines fail.
func TestFallbackBothFail(t *testing.T) {
	engine, primary, fallback := newFallbackPair(1)
	primaryErr := errors.New("primary down")
	fallbackErr := errors.New("fallback down")
	primary.SetFailure(primaryErr)
	fallback.SetFailure(fallbackErr)

	err := engine.Speak(context.Background(), "hello")
	if !errors.Is(err, primaryErr) || !errors.Is(err, fallbackErr) {
		t.Errorf("Speak() error = %v, want both causes", err)
	}
}

// TestFallbackReset tests switching back to the primary engine.
func TestFallbackReset(t *testing.T) {
	engine, primary, _ := newFallbackPair(1)
	primary.SetFailure(errors.New("down"))
	_ = engine.Speak(context.Background(), "hello")

	engine.Reset()
	if engine.Active() != tts.SpeechEngine(primary) {
		t.Error("Reset did not restore the primary")
	}
	if want := "Using primary engine (failures: 0/1)"; engine.Status() != want {
		t.Errorf("Status() = %q, want %q", engine.Status(), want)
	}
}

// TestFallbackStopAndVoices tests the pass-through methods.
func TestFallbackStopAndVoices(t *testing.T) {
	engine, primary, fallback := newFallbackPair(1)

	if err := engine.StopImmediate(); err != nil {
		t.Fatalf("StopImmediate failed: %v", err)
	}
	if primary.GetStopCount() != 1 || fallback.GetStopCount() != 1 {
		t.Error("StopImmediate did not reach both engines")
	}

	if err := engine.SelectVoice("mock-voice-2"); err != nil {
		t.Fatalf("SelectVoice failed: %v", err)
	}
	if primary.Voice().ID != "mock-voice-2" || fallback.Voice().ID != "mock-voice-2" {
		t.Error("SelectVoice did not reach both engines")
	}

	voices, err := engine.Voices(context.Background())
	if err != nil || len(voices) != 3 {
		t.Errorf("Voices() = %d voices, %v; want 3", len(voices), err)
	}
	if err := engine.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
