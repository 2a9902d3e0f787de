package engines

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/tts"
)

// FallbackEngine wraps a primary engine with automatic fallback to a
// secondary engine when the primary fails consistently.
type FallbackEngine struct {
	primary     tts.SpeechEngine
	fallback    tts.SpeechEngine
	maxFailures int
	logger      *log.Logger

	mu            sync.RWMutex
	failures      int
	usingFallback bool
}

// NewFallbackEngine creates an engine that switches to fallback after
// maxFailures consecutive synthesis failures of primary.
func NewFallbackEngine(primary, fallback tts.SpeechEngine, maxFailures int, logger *log.Logger) *FallbackEngine {
	if maxFailures < 1 {
		maxFailures = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FallbackEngine{
		primary:     primary,
		fallback:    fallback,
		maxFailures: maxFailures,
		logger:      logger,
	}
}

// SelectVoice implements tts.SpeechEngine. The voice is applied to both
// engines; only the active engine's error is returned.
func (f *FallbackEngine) SelectVoice(name string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	primaryErr := f.primary.SelectVoice(name)
	fallbackErr := f.fallback.SelectVoice(name)

	if f.usingFallback {
		return fallbackErr
	}
	return primaryErr
}

// Speak implements tts.SpeechEngine, retrying on the fallback engine once
// the primary has failed maxFailures times in a row. Cancellations are not
// failures.
func (f *FallbackEngine) Speak(ctx context.Context, text string) error {
	f.mu.RLock()
	usingFallback := f.usingFallback
	f.mu.RUnlock()

	if usingFallback {
		return f.fallback.Speak(ctx, text)
	}

	err := f.primary.Speak(ctx, text)
	if err == nil {
		f.mu.Lock()
		if f.failures > 0 {
			f.logger.Info("primary engine recovered", "failures", f.failures)
			f.failures = 0
		}
		f.mu.Unlock()
		return nil
	}
	if tts.IsCancellation(err) || ctx.Err() != nil {
		return err
	}

	f.mu.Lock()
	f.failures++
	failures := f.failures
	switched := failures >= f.maxFailures
	if switched {
		f.usingFallback = true
	}
	f.mu.Unlock()

	f.logger.Warn("primary engine failed", "attempt", failures, "max", f.maxFailures, "err", err)
	if !switched {
		return err
	}

	f.logger.Warn("switching to fallback engine", "failures", failures)
	if ferr := f.fallback.Speak(ctx, text); ferr != nil {
		if tts.IsCancellation(ferr) {
			return ferr
		}
		return fmt.Errorf("both engines failed: %w", errors.Join(err, ferr))
	}
	return nil
}

// StopImmediate implements tts.SpeechEngine by stopping both engines.
func (f *FallbackEngine) StopImmediate() error {
	return errors.Join(f.primary.StopImmediate(), f.fallback.StopImmediate())
}

// IsSpeaking implements tts.SpeechEngine.
func (f *FallbackEngine) IsSpeaking() bool {
	return f.primary.IsSpeaking() || f.fallback.IsSpeaking()
}

// Voices implements tts.VoiceLister for the active engine.
func (f *FallbackEngine) Voices(ctx context.Context) ([]tts.Voice, error) {
	lister, ok := f.Active().(tts.VoiceLister)
	if !ok {
		return nil, nil
	}
	return lister.Voices(ctx)
}

// Active returns the engine currently speaking sentences.
func (f *FallbackEngine) Active() tts.SpeechEngine {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.usingFallback {
		return f.fallback
	}
	return f.primary
}

// Close implements tts.Closer for both engines.
func (f *FallbackEngine) Close() error {
	var errs []error
	for _, e := range []tts.SpeechEngine{f.primary, f.fallback} {
		if c, ok := e.(tts.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Reset switches back to the primary engine.
func (f *FallbackEngine) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures = 0
	f.usingFallback = false
	f.logger.Info("reset to primary engine")
}

// Status returns a short description of which engine is in use.
func (f *FallbackEngine) Status() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.usingFallback {
		return fmt.Sprintf("Using fallback engine (primary failed %d times)", f.failures)
	}
	return fmt.Sprintf("Using primary engine (failures: %d/%d)", f.failures, f.maxFailures)
}

var (
	_ tts.SpeechEngine = (*FallbackEngine)(nil)
	_ tts.VoiceLister  = (*FallbackEngine)(nil)
	_ tts.Closer       = (*FallbackEngine)(nil)
)
