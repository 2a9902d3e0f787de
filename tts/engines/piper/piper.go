// Package piper speaks through the Piper neural text-to-speech program.
//
// Each sentence runs a fresh piper process that writes raw 16-bit mono PCM
// to stdout; the audio is resampled to the player's format and cached.
package piper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"

	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/audio"
	"github.com/dgnsrekt/narrate/tts/engines/internal/proc"
)

// Name identifies the engine in configuration and cache keys.
const Name = "piper"

const modelExt = ".onnx"

// Engine implements tts.SpeechEngine using Piper.
type Engine struct {
	// Configuration
	binary      string
	modelDirs   []string
	speakerID   int
	lengthScale float64
	sampleRate  int
	cfg         tts.PiperConfig

	// Dependencies
	player audio.Player
	cache  *cache.Store
	logger *log.Logger

	mu       sync.Mutex
	model    string // Resolved path of the active model
	cmd      *exec.Cmd
	killed   *exec.Cmd // Set by StopImmediate so Speak reports cancellation
	speaking bool
}

// New creates a Piper engine. rate scales speaking speed; 1 is normal.
func New(cfg tts.PiperConfig, rate float64, player audio.Player, store *cache.Store, logger *log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", tts.ErrInvalidConfig, err)
	}
	if player == nil {
		return nil, fmt.Errorf("%w: piper needs an audio player", tts.ErrEngineNotAvailable)
	}
	if logger == nil {
		logger = log.Default()
	}

	binary, err := findBinary(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: piper: %w", tts.ErrEngineNotAvailable, err)
	}

	e := &Engine{
		binary:      binary,
		modelDirs:   modelDirs(cfg.ModelDir),
		speakerID:   cfg.SpeakerID,
		lengthScale: lengthScale(cfg.LengthScale, rate),
		sampleRate:  cfg.SampleRate,
		cfg:         cfg,
		player:      player,
		cache:       store,
		logger:      logger.WithPrefix(Name),
	}

	model, err := e.resolveModel(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: piper: %w", tts.ErrEngineNotAvailable, err)
	}
	e.model = model

	e.logger.Debug("engine ready", "binary", binary, "model", model)
	return e, nil
}

// SelectVoice implements tts.SpeechEngine. Voices are Piper model names or
// paths to .onnx files.
func (e *Engine) SelectVoice(name string) error {
	model, err := e.resolveModel(name)
	if err != nil {
		return fmt.Errorf("%w: %s", tts.ErrVoiceNotFound, name)
	}

	e.mu.Lock()
	e.model = model
	e.mu.Unlock()
	return nil
}

// Voices implements tts.VoiceLister by listing models in the model
// directories.
func (e *Engine) Voices(context.Context) ([]tts.Voice, error) {
	seen := make(map[string]bool)
	var voices []tts.Voice

	for _, dir := range e.modelDirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+modelExt))
		if err != nil {
			continue
		}
		for _, m := range matches {
			v := voiceFromModel(m)
			if !seen[v.ID] {
				seen[v.ID] = true
				voices = append(voices, v)
			}
		}
	}
	return voices, nil
}

// Speak implements tts.SpeechEngine.
func (e *Engine) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	model := e.model
	e.mu.Unlock()

	format := e.player.Format()
	key := cache.Key{
		Engine: Name,
		Voice:  model + "#" + strconv.Itoa(e.speakerID),
		Rate:   e.lengthScale,
		Format: fmt.Sprintf("%dx%d", format.SampleRate, format.Channels),
		Text:   text,
	}

	pcm, ok := e.cached(key)
	if !ok {
		raw, err := e.synthesize(ctx, model, text)
		if err != nil {
			if tts.IsCancellation(err) {
				return err
			}
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err())
			}
			return fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err)
		}
		if len(raw) == 0 {
			return fmt.Errorf("%w: piper produced no audio", tts.ErrSynthesisFailed)
		}

		pcm, err = audio.Convert(trimFrame(raw), audio.Format{SampleRate: e.sampleRate, Channels: 1}, format)
		if err != nil {
			return fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err)
		}
		if e.cache != nil {
			if err := e.cache.Put(key, pcm); err != nil {
				e.logger.Debug("cache write failed", "err", err)
			}
		}
	}

	e.setSpeaking(true)
	defer e.setSpeaking(false)
	return e.player.Play(ctx, pcm)
}

// StopImmediate implements tts.SpeechEngine.
func (e *Engine) StopImmediate() error {
	e.mu.Lock()
	cmd := e.cmd
	e.killed = cmd
	e.mu.Unlock()

	if err := proc.Kill(cmd); err != nil {
		e.logger.Debug("failed to kill piper", "err", err)
	}
	return e.player.Stop()
}

// IsSpeaking implements tts.SpeechEngine.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

// Model returns the path of the active model.
func (e *Engine) Model() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// Args returns the piper command line for model.
func (e *Engine) Args(model string) []string {
	args := []string{"--model", model, "--output-raw"}
	if e.speakerID > 0 {
		args = append(args, "--speaker", strconv.Itoa(e.speakerID))
	}
	if e.lengthScale != 1.0 {
		args = append(args, "--length_scale", strconv.FormatFloat(e.lengthScale, 'f', 3, 64))
	}
	return args
}

func (e *Engine) synthesize(ctx context.Context, model, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	cmd := proc.Command(ctx, e.binary, e.Args(model)...)

	// Piper reads one utterance per line.
	wait, err := proc.Start(cmd, strings.Join(strings.Fields(text), " ")+"\n")
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cmd = cmd
	e.mu.Unlock()

	out, err := wait()

	e.mu.Lock()
	if e.cmd == cmd {
		e.cmd = nil
	}
	killed := e.killed == cmd
	e.mu.Unlock()

	if err != nil && killed {
		return nil, fmt.Errorf("%w: piper was stopped", tts.ErrCanceled)
	}
	return out, err
}

func (e *Engine) cached(key cache.Key) ([]byte, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(key)
}

func (e *Engine) setSpeaking(v bool) {
	e.mu.Lock()
	e.speaking = v
	e.mu.Unlock()
}

// resolveModel finds name as a file path or as a model in a model directory.
func (e *Engine) resolveModel(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("no model configured")
	}

	if path, err := homedir.Expand(name); err == nil && strings.HasSuffix(path, modelExt) {
		if fileExists(path) {
			return path, nil
		}
	}

	base := strings.TrimSuffix(filepath.Base(name), modelExt)
	for _, dir := range e.modelDirs {
		candidate := filepath.Join(dir, base+modelExt)
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("model %q not found in %v", name, e.modelDirs)
}

// findBinary locates the piper executable.
func findBinary(configured string) (string, error) {
	candidates := []string{configured, "piper"}
	if home, err := homedir.Dir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".local", "bin", "piper"),
			filepath.Join(home, "bin", "piper"),
		)
	}
	candidates = append(candidates, "/usr/local/bin/piper", "/usr/bin/piper")

	if configured != "" {
		if path, err := homedir.Expand(configured); err == nil {
			candidates[0] = path
		}
	}
	return proc.Find(candidates...)
}

// modelDirs returns the directories searched for models, most specific first.
func modelDirs(configured string) []string {
	var dirs []string
	if configured != "" {
		if path, err := homedir.Expand(configured); err == nil {
			dirs = append(dirs, path)
		}
	}
	if home, err := homedir.Dir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".local", "share", "piper-voices"),
			filepath.Join(home, ".local", "share", "piper"),
		)
	}
	return append(dirs, "/usr/share/piper-voices", "/usr/local/share/piper-voices")
}

// lengthScale converts a speaking rate into Piper's phoneme length scale,
// which grows as speech slows down.
func lengthScale(base, rate float64) float64 {
	if rate <= 0 {
		rate = 1
	}
	return base / rate
}

// voiceFromModel describes a model file such as en_US-lessac-medium.onnx.
func voiceFromModel(path string) tts.Voice {
	id := strings.TrimSuffix(filepath.Base(path), modelExt)
	v := tts.Voice{ID: id, Name: id}

	parts := strings.Split(id, "-")
	if len(parts) >= 2 {
		v.Language = strings.ReplaceAll(parts[0], "_", "-")
		v.Name = strings.Join(parts[1:], " ")
	}
	return v
}

// trimFrame drops a trailing odd byte left by a killed process.
func trimFrame(pcm []byte) []byte {
	return pcm[:len(pcm)&^1]
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var (
	_ tts.SpeechEngine = (*Engine)(nil)
	_ tts.VoiceLister  = (*Engine)(nil)
)
