// Package system speaks through the voice that ships with the operating
// system: espeak-ng or espeak on Linux, say on macOS and System.Speech on
// Windows. These programs play audio themselves.
package system

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"

	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/engines/internal/proc"
)

// Name identifies the engine in configuration.
const Name = "system"

// voiceListTimeout bounds how long listing voices may take.
const voiceListTimeout = 5 * time.Second

// Engine implements tts.SpeechEngine using a system speech program.
type Engine struct {
	binary  string
	program program
	wpm     int
	timeout time.Duration
	logger  *log.Logger

	mu       sync.Mutex
	voice    string
	cmd      *exec.Cmd
	killed   *exec.Cmd
	speaking bool
}

// New finds a system speech program and creates an engine for it. rate
// scales the configured words per minute.
func New(cfg tts.SystemConfig, rate float64, logger *log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", tts.ErrInvalidConfig, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	if rate <= 0 {
		rate = 1
	}

	binary, prog, err := detect(cfg.Binary, runtime.GOOS)
	if err != nil {
		return nil, fmt.Errorf("%w: system: %w", tts.ErrEngineNotAvailable, err)
	}

	e := &Engine{
		binary:  binary,
		program: prog,
		wpm:     int(math.Round(float64(cfg.WPM) * rate)),
		timeout: cfg.Timeout,
		logger:  logger.WithPrefix(Name),
	}
	e.logger.Debug("engine ready", "program", prog.name, "binary", binary, "wpm", e.wpm)
	return e, nil
}

// Program returns the name of the speech program in use.
func (e *Engine) Program() string {
	return e.program.name
}

// SelectVoice implements tts.SpeechEngine. When the program can list its
// voices, name must match one of them by ID or display name.
func (e *Engine) SelectVoice(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), voiceListTimeout)
	defer cancel()

	id := name
	voices, err := e.Voices(ctx)
	if err == nil && len(voices) > 0 {
		v, ok := findVoice(voices, name)
		if !ok {
			return fmt.Errorf("%w: %s", tts.ErrVoiceNotFound, name)
		}
		id = v.ID
	} else if err != nil {
		e.logger.Debug("could not list voices", "err", err)
	}

	e.mu.Lock()
	e.voice = id
	e.mu.Unlock()
	return nil
}

// Voices implements tts.VoiceLister.
func (e *Engine) Voices(ctx context.Context) ([]tts.Voice, error) {
	out, err := proc.Run(proc.Command(ctx, e.binary, e.program.voicesArgs...), "")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s voices: %w", e.program.name, err)
	}
	return e.program.parseVoices(string(out)), nil
}

// Speak implements tts.SpeechEngine.
func (e *Engine) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	voice := e.voice
	e.mu.Unlock()

	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := proc.Command(tctx, e.binary, e.program.args(voice, e.wpm)...)
	wait, err := proc.Start(cmd, text)
	if err != nil {
		return fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err)
	}

	e.mu.Lock()
	e.cmd = cmd
	e.speaking = true
	e.mu.Unlock()

	_, err = wait()

	e.mu.Lock()
	if e.cmd == cmd {
		e.cmd = nil
	}
	e.speaking = false
	killed := e.killed == cmd
	e.mu.Unlock()

	switch {
	case err == nil:
		return nil
	case killed:
		return fmt.Errorf("%w: %s was stopped", tts.ErrCanceled, e.program.name)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err())
	default:
		return fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err)
	}
}

// StopImmediate implements tts.SpeechEngine.
func (e *Engine) StopImmediate() error {
	e.mu.Lock()
	cmd := e.cmd
	e.killed = cmd
	e.mu.Unlock()

	return proc.Kill(cmd)
}

// IsSpeaking implements tts.SpeechEngine.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

// detect resolves the program to run. A configured binary is identified by
// its file name; otherwise the usual program for goos is searched for.
func detect(configured, goos string) (string, program, error) {
	if configured != "" {
		path, err := homedir.Expand(configured)
		if err != nil {
			return "", program{}, err
		}
		prog, ok := programFor(path)
		if !ok {
			return "", program{}, fmt.Errorf("unsupported speech program %q", configured)
		}
		binary, err := proc.Find(path)
		if err != nil {
			return "", program{}, err
		}
		return binary, prog, nil
	}

	var candidates []string
	switch goos {
	case "darwin":
		candidates = []string{"say"}
	case "windows":
		candidates = []string{"powershell", "pwsh"}
	default:
		candidates = []string{"espeak-ng", "espeak"}
	}

	for _, c := range candidates {
		if binary, err := proc.Find(c); err == nil {
			prog, _ := programFor(c)
			return binary, prog, nil
		}
	}
	return "", program{}, fmt.Errorf("none of %v found", candidates)
}

func findVoice(voices []tts.Voice, name string) (tts.Voice, bool) {
	for _, v := range voices {
		if strings.EqualFold(v.ID, name) || strings.EqualFold(v.Name, name) {
			return v, true
		}
	}
	return tts.Voice{}, false
}

// programFor identifies a speech program by its file name.
func programFor(path string) (program, bool) {
	name := strings.TrimSuffix(strings.ToLower(filepath.Base(path)), ".exe")
	switch name {
	case "espeak-ng", "espeak":
		return espeak(name), true
	case "say":
		return say, true
	case "powershell", "pwsh":
		return powershell(name), true
	}
	return program{}, false
}

var (
	_ tts.SpeechEngine = (*Engine)(nil)
	_ tts.VoiceLister  = (*Engine)(nil)
)
