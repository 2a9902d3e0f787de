// Package engines builds the speech engine described by configuration.
package engines

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/audio"
	"github.com/dgnsrekt/narrate/tts/engines/google"
	"github.com/dgnsrekt/narrate/tts/engines/mock"
	"github.com/dgnsrekt/narrate/tts/engines/piper"
	"github.com/dgnsrekt/narrate/tts/engines/system"
)

// autoOrder is the order engines are tried in for tts.EngineAuto.
var autoOrder = []string{tts.EnginePiper, tts.EngineSystem, tts.EngineGoogle, tts.EngineMock}

// Options supplies shared resources to New. Nil fields are created on
// demand.
type Options struct {
	Player       audio.Player
	Cache        *cache.Store
	Logger       *log.Logger
	GoogleClient google.Synthesizer
}

// Selection is the engine built from configuration.
type Selection struct {
	tts.SpeechEngine

	// Name is the primary engine's name.
	Name string
	// Fallback is the fallback engine's name, or "" without one.
	Fallback string

	player *audio.OtoPlayer // Owned when New created it
}

// Voices lists the active engine's voices.
func (s *Selection) Voices(ctx context.Context) ([]tts.Voice, error) {
	lister, ok := s.SpeechEngine.(tts.VoiceLister)
	if !ok {
		return nil, fmt.Errorf("%s engine cannot list voices", s.Name)
	}
	return lister.Voices(ctx)
}

// Close releases the engine and any audio device it opened.
func (s *Selection) Close() error {
	var errs []error
	if c, ok := s.SpeechEngine.(tts.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.player != nil {
		errs = append(errs, s.player.Close())
	}
	return errors.Join(errs...)
}

// New builds the configured engine, wrapped with its fallback when one is
// configured. For tts.EngineAuto the first engine that can be created wins.
func New(ctx context.Context, cfg tts.Config, opts Options) (*Selection, error) {
	b := &builder{cfg: cfg, opts: opts}
	if b.opts.Logger == nil {
		b.opts.Logger = log.Default()
	}
	logger := b.opts.Logger

	names := []string{cfg.Engine}
	if cfg.Engine == tts.EngineAuto || cfg.Engine == "" {
		names = autoOrder
	}

	var (
		primary tts.SpeechEngine
		name    string
		errs    []error
	)
	for _, n := range names {
		e, err := b.build(ctx, n)
		if err != nil {
			logger.Debug("engine unavailable", "engine", n, "err", err)
			errs = append(errs, err)
			continue
		}
		primary, name = e, n
		break
	}
	if primary == nil && cfg.Fallback != "" {
		e, err := b.build(ctx, cfg.Fallback)
		if err == nil {
			logger.Warn("using fallback engine", "engine", cfg.Fallback, "err", errors.Join(errs...))
			primary, name = e, cfg.Fallback
		} else {
			errs = append(errs, err)
		}
	}
	if primary == nil {
		b.close()
		return nil, errors.Join(errs...)
	}

	if cfg.Voice != "" {
		if err := primary.SelectVoice(cfg.Voice); err != nil {
			logger.Warn("voice not available", "engine", name, "voice", cfg.Voice, "err", err)
		}
	}

	sel := &Selection{SpeechEngine: primary, Name: name, player: b.player}
	if cfg.Fallback == "" || cfg.Fallback == name {
		logger.Debug("engine selected", "engine", name)
		return sel, nil
	}

	fallback, err := b.build(ctx, cfg.Fallback)
	if err != nil {
		logger.Warn("fallback engine unavailable", "engine", cfg.Fallback, "err", err)
		return sel, nil
	}
	if cfg.Voice != "" {
		_ = fallback.SelectVoice(cfg.Voice)
	}

	sel.SpeechEngine = NewFallbackEngine(primary, fallback, cfg.MaxFailures, logger)
	sel.Fallback = cfg.Fallback
	sel.player = b.player
	logger.Debug("engine selected", "engine", name, "fallback", cfg.Fallback)
	return sel, nil
}

// OpenCache opens the audio cache described by cfg, or returns nil when
// caching is disabled.
func OpenCache(cfg tts.CacheConfig, logger *log.Logger) (*cache.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	c := cache.DefaultConfig()
	c.MemoryCapacity = int64(cfg.MemoryMB) << 20
	c.DiskCapacity = int64(cfg.DiskMB) << 20
	c.Dir = cfg.Dir
	c.CompressionLevel = cfg.CompressionLevel
	return cache.NewStore(c, logger)
}

// builder creates engines sharing one player.
type builder struct {
	cfg  tts.Config
	opts Options

	once   sync.Once
	player *audio.OtoPlayer
	err    error
}

func (b *builder) build(ctx context.Context, name string) (tts.SpeechEngine, error) {
	cfg := b.cfg
	logger := b.opts.Logger

	switch name {
	case tts.EngineMock:
		return mock.NewFromConfig(cfg.Mock), nil

	case tts.EnginePiper:
		player, err := b.audioPlayer()
		if err != nil {
			return nil, err
		}
		return piper.New(cfg.Piper, cfg.Rate, player, b.opts.Cache, logger)

	case tts.EngineSystem:
		return system.New(cfg.System, cfg.Rate, logger)

	case tts.EngineGoogle:
		client := b.opts.GoogleClient
		if client == nil {
			if cfg.Engine == tts.EngineAuto && !hasGoogleCredentials(cfg.Google) {
				return nil, fmt.Errorf("%w: google: no credentials configured", tts.ErrEngineNotAvailable)
			}
			c, err := google.NewClient(ctx, cfg.Google)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", tts.ErrEngineNotAvailable, err)
			}
			client = c
		}
		player, err := b.audioPlayer()
		if err != nil {
			client.Close()
			return nil, err
		}
		return google.New(client, cfg.Google, cfg.Rate, player, b.opts.Cache, logger)
	}

	return nil, fmt.Errorf("%w: %q", tts.ErrUnknownEngine, name)
}

// audioPlayer returns the shared player, opening the audio device on first
// use.
func (b *builder) audioPlayer() (audio.Player, error) {
	if b.opts.Player != nil {
		return b.opts.Player, nil
	}

	b.once.Do(func() {
		pc := audio.DefaultPlayerConfig()
		pc.Format = audio.Format{SampleRate: b.cfg.SampleRate, Channels: 1}
		pc.Volume = b.cfg.Volume
		b.player, b.err = audio.NewPlayer(pc)
	})
	if b.err != nil {
		return nil, fmt.Errorf("%w: %w", tts.ErrEngineNotAvailable, b.err)
	}
	return b.player, nil
}

func (b *builder) close() {
	if b.player != nil {
		_ = b.player.Close()
	}
}

func hasGoogleCredentials(cfg tts.GoogleConfig) bool {
	return cfg.CredentialsFile != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
}
