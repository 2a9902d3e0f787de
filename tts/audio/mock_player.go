package audio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/narrate/tts"
)

// MockPlayer implements Player without producing sound. Each clip takes its
// real duration multiplied by DelayFactor.
type MockPlayer struct {
	format Format
	volume float64

	// Test configuration
	delayFactor float64
	playErr     error

	mu    sync.Mutex
	clips [][]byte
	stop  chan struct{}

	playCount atomic.Int64
	stopCount atomic.Int64
}

// NewMockPlayer creates a mock player for format that plays instantly.
func NewMockPlayer(format Format) *MockPlayer {
	return &MockPlayer{
		format: format,
		volume: 1.0,
	}
}

// SetDelayFactor scales how long each clip blocks; 1 is real time.
func (mp *MockPlayer) SetDelayFactor(f float64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.delayFactor = f
}

// SetError makes every Play fail with err.
func (mp *MockPlayer) SetError(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.playErr = err
}

// Play implements Player.
func (mp *MockPlayer) Play(ctx context.Context, pcm []byte) error {
	mp.playCount.Add(1)

	mp.mu.Lock()
	if mp.playErr != nil {
		err := mp.playErr
		mp.mu.Unlock()
		return fmt.Errorf("playback failed: %w", err)
	}
	clip := make([]byte, len(pcm))
	copy(clip, pcm)
	mp.clips = append(mp.clips, clip)

	stop := make(chan struct{})
	mp.stop = stop
	d := time.Duration(float64(mp.format.Duration(len(pcm))) * mp.delayFactor)
	mp.mu.Unlock()

	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err())
	case <-stop:
		return tts.ErrCanceled
	}
}

// Stop implements Player.
func (mp *MockPlayer) Stop() error {
	mp.stopCount.Add(1)

	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.stop != nil {
		close(mp.stop)
		mp.stop = nil
	}
	return nil
}

// Format implements Player.
func (mp *MockPlayer) Format() Format {
	return mp.format
}

// Volume implements Player.
func (mp *MockPlayer) Volume() float64 {
	return mp.volume
}

// Clips returns every clip played so far.
func (mp *MockPlayer) Clips() [][]byte {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	out := make([][]byte, len(mp.clips))
	copy(out, mp.clips)
	return out
}

// PlayCount returns the number of Play calls.
func (mp *MockPlayer) PlayCount() int64 {
	return mp.playCount.Load()
}

// StopCount returns the number of Stop calls.
func (mp *MockPlayer) StopCount() int64 {
	return mp.stopCount.Load()
}

var _ Player = (*MockPlayer)(nil)
