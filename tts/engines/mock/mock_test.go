package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/narrate/tts"
)

// TestNewMockEngine tests mock engine creation.
func TestNewMockEngine(t *testing.T) {
	engine := New()
	if engine == nil {
		t.Fatal("Expected non-nil engine")
	}
	if engine.IsSpeaking() {
		t.Error("New engine should not be speaking")
	}
	if engine.Voice().ID != "mock-voice-1" {
		t.Errorf("default voice = %q, want mock-voice-1", engine.Voice().ID)
	}
}

// TestNewFromConfig tests configuration.
func TestNewFromConfig(t *testing.T) {
	engine := NewFromConfig(tts.MockConfig{WordsPerMinute: 600})

	// 10 words at 600 wpm take one second.
	if got := engine.duration("one two three four five six seven eight nine ten"); got != time.Second {
		t.Errorf("duration = %v, want 1s", got)
	}
}

// TestSpeak tests a complete utterance.
func TestSpeak(t *testing.T) {
	engine := New()
	engine.SetDelay(20 * time.Millisecond)

	start := time.Now()
	if err := engine.Speak(context.Background(), "Hello world."); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Speak returned after %v, want at least 20ms", elapsed)
	}

	if got := engine.Spoken(); len(got) != 1 || got[0] != "Hello world." {
		t.Errorf("Spoken() = %v, want [Hello world.]", got)
	}
	if engine.GetCallCount() != 1 {
		t.Errorf("GetCallCount() = %d, want 1", engine.GetCallCount())
	}
}

// TestSpeakIsSpeaking tests the speaking flag.
func TestSpeakIsSpeaking(t *testing.T) {
	engine := New()
	engine.SetDelay(200 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- engine.Speak(context.Background(), "text") }()

	deadline := time.Now().Add(time.Second)
	for !engine.IsSpeaking() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !engine.IsSpeaking() {
		t.Fatal("IsSpeaking() = false during Speak")
	}

	if err := engine.StopImmediate(); err != nil {
		t.Fatalf("StopImmediate failed: %v", err)
	}
	if err := <-done; !tts.IsCancellation(err) {
		t.Errorf("Speak() error = %v, want cancellation", err)
	}
	if engine.IsSpeaking() {
		t.Error("IsSpeaking() = true after stop")
	}
	if engine.GetStopCount() != 1 {
		t.Errorf("GetStopCount() = %d, want 1", engine.GetStopCount())
	}
}

// TestSpeakContextCancel tests cancellation through the context.
func TestSpeakContextCancel(t *testing.T) {
	engine := New()
	engine.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := engine.Speak(ctx, "text")
	if !tts.IsCancellation(err) {
		t.Errorf("Speak() error = %v, want cancellation", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Speak() error = %v, want it to wrap the context error", err)
	}
}

// TestSpeakWithFailure tests error injection.
func TestSpeakWithFailure(t *testing.T) {
	engine := New()
	engine.SetDelay(0)

	testError := errors.New("test error")
	engine.SetFailure(testError)

	err := engine.Speak(context.Background(), "test")
	if !errors.Is(err, testError) || !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Errorf("Speak() error = %v, want %v wrapping %v", err, tts.ErrSynthesisFailed, testError)
	}

	engine.ClearFailure()
	if err := engine.Speak(context.Background(), "test"); err != nil {
		t.Errorf("Speak after ClearFailure: %v", err)
	}
}

// TestFailOnAndPanicOn tests per-text failures.
func TestFailOnAndPanicOn(t *testing.T) {
	engine := New()
	engine.SetDelay(0)
	engine.FailOn("bad", errors.New("bad sentence"))
	engine.PanicOn("worse")

	if err := engine.Speak(context.Background(), "good"); err != nil {
		t.Errorf("Speak(good) = %v", err)
	}
	if err := engine.Speak(context.Background(), "bad"); !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Errorf("Speak(bad) = %v, want %v", err, tts.ErrSynthesisFailed)
	}

	defer func() {
		if recover() == nil {
			t.Error("Speak(worse) did not panic")
		}
	}()
	_ = engine.Speak(context.Background(), "worse")
}

// TestVoices tests voice listing and selection.
func TestVoices(t *testing.T) {
	engine := New()

	voices, err := engine.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) != 3 {
		t.Errorf("got %d voices, want 3", len(voices))
	}

	if err := engine.SelectVoice("Mock Voice 2"); err != nil {
		t.Errorf("SelectVoice by name: %v", err)
	}
	if engine.Voice().Language != "en-GB" {
		t.Errorf("voice language = %q, want en-GB", engine.Voice().Language)
	}
	if err := engine.SelectVoice("nobody"); !errors.Is(err, tts.ErrVoiceNotFound) {
		t.Errorf("SelectVoice() error = %v, want %v", err, tts.ErrVoiceNotFound)
	}
}

// TestConcurrentSpeak tests thread safety.
func TestConcurrentSpeak(t *testing.T) {
	engine := New()
	engine.SetDelay(5 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := engine.Speak(context.Background(), "test text"); err != nil {
				t.Errorf("Speak failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if engine.GetCallCount() != 10 {
		t.Errorf("GetCallCount() = %d, want 10", engine.GetCallCount())
	}
}
