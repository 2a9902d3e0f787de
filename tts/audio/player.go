package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/narrate/tts"
)

// Player states.
const (
	StateStopped int32 = iota
	StatePlaying
	StateClosed
)

// ErrPlayerClosed is returned by a Player after Close.
var ErrPlayerClosed = errors.New("audio player is closed")

// Player plays PCM audio one clip at a time.
type Player interface {
	// Play blocks until pcm has been played, ctx is done or Stop is called.
	// Interrupted playback returns an error for which tts.IsCancellation is true.
	Play(ctx context.Context, pcm []byte) error

	// Stop interrupts the clip being played, if any.
	Stop() error

	// Format returns the PCM format Play expects.
	Format() Format

	// Volume returns the linear gain applied to playback.
	Volume() float64
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	Format     Format
	Volume     float64       // 0.0 to 1.0
	BufferSize time.Duration // Device buffer; zero uses the oto default
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		Format:     DefaultFormat,
		Volume:     1.0,
		BufferSize: 100 * time.Millisecond,
	}
}

// oto allows a single context per process.
var (
	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat Format
	otoErr    error
)

func otoContext(f Format, buffer time.Duration) (*oto.Context, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   buffer,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
		otoFormat = f
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoFormat != f {
		return nil, fmt.Errorf("%w: audio device already opened at %d Hz, %d channels",
			ErrInvalidFormat, otoFormat.SampleRate, otoFormat.Channels)
	}
	return otoCtx, nil
}

// OtoPlayer plays audio through the system's output device.
type OtoPlayer struct {
	context *oto.Context
	format  Format
	volume  float64

	state atomic.Int32

	mu      sync.Mutex
	current *oto.Player
	stop    chan struct{}
}

// NewPlayer opens the output device.
func NewPlayer(cfg PlayerConfig) (*OtoPlayer, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Volume < 0.0 || cfg.Volume > 1.0 {
		return nil, fmt.Errorf("volume must be between 0.0 and 1.0, got %f", cfg.Volume)
	}

	ctx, err := otoContext(cfg.Format, cfg.BufferSize)
	if err != nil {
		return nil, err
	}

	p := &OtoPlayer{
		context: ctx,
		format:  cfg.Format,
		volume:  cfg.Volume,
	}
	p.state.Store(StateStopped)
	return p, nil
}

// Play implements Player.
func (p *OtoPlayer) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	p.mu.Lock()
	if p.state.Load() == StateClosed {
		p.mu.Unlock()
		return ErrPlayerClosed
	}
	p.stopLocked()

	// The reader keeps pcm alive until the player is closed.
	player := p.context.NewPlayer(bytes.NewReader(pcm))
	player.SetVolume(p.volume)
	stop := make(chan struct{})
	p.current = player
	p.stop = stop
	p.state.Store(StatePlaying)
	player.Play()
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.current == player {
			p.current = nil
			p.stop = nil
			if p.state.Load() == StatePlaying {
				p.state.Store(StateStopped)
			}
		}
		p.mu.Unlock()
		_ = player.Close()
	}()

	// oto reports completion only by polling.
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err())
		case <-stop:
			return tts.ErrCanceled
		case <-ticker.C:
		}
	}
	if err := player.Err(); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}

// Stop implements Player.
func (p *OtoPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *OtoPlayer) stopLocked() {
	if p.current != nil {
		p.current.Pause()
		p.current = nil
	}
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	if p.state.Load() == StatePlaying {
		p.state.Store(StateStopped)
	}
}

// IsPlaying reports whether a clip is being played.
func (p *OtoPlayer) IsPlaying() bool {
	return p.state.Load() == StatePlaying
}

// Format implements Player.
func (p *OtoPlayer) Format() Format {
	return p.format
}

// Volume implements Player.
func (p *OtoPlayer) Volume() float64 {
	return p.volume
}

// Close stops playback. The device itself stays open for the process.
func (p *OtoPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.state.Store(StateClosed)
	return nil
}

var _ Player = (*OtoPlayer)(nil)
