//go:build unix

package piper

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/audio"
)

// fakePiper writes a script that records its arguments and stdin, then
// prints script output in place of audio.
func fakePiper(t *testing.T, script string) (binary, dir string) {
	t.Helper()
	dir = t.TempDir()

	binary = filepath.Join(dir, "piper")
	body := "#!/bin/sh\n" +
		"echo \"$@\" > \"" + filepath.Join(dir, "args") + "\"\n" +
		"cat > \"" + filepath.Join(dir, "stdin") + "\"\n" +
		script + "\n"
	if err := os.WriteFile(binary, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	for _, model := range []string{"en_US-lessac-medium", "de_DE-thorsten-low"} {
		if err := os.WriteFile(filepath.Join(dir, model+".onnx"), []byte("model"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return binary, dir
}

func testConfig(binary, dir string) tts.PiperConfig {
	cfg := tts.DefaultPiperConfig()
	cfg.Binary = binary
	cfg.ModelDir = dir
	cfg.Timeout = 5 * time.Second
	return cfg
}

func newTestEngine(t *testing.T, script string, store *cache.Store) (*Engine, *audio.MockPlayer, string) {
	t.Helper()
	binary, dir := fakePiper(t, script)
	player := audio.NewMockPlayer(audio.DefaultFormat)

	e, err := New(testConfig(binary, dir), 1.0, player, store, log.New(nil))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e, player, dir
}

func TestNewMissingBinary(t *testing.T) {
	cfg := tts.DefaultPiperConfig()
	cfg.Binary = filepath.Join(t.TempDir(), "nope")

	if _, err := exec.LookPath("piper"); err == nil {
		t.Skip("piper is installed")
	}

	_, err := New(cfg, 1.0, audio.NewMockPlayer(audio.DefaultFormat), nil, nil)
	if !errors.Is(err, tts.ErrEngineNotAvailable) {
		t.Errorf("New() error = %v, want %v", err, tts.ErrEngineNotAvailable)
	}
}

func TestNewMissingModel(t *testing.T) {
	binary, dir := fakePiper(t, "")
	cfg := testConfig(binary, dir)
	cfg.Model = "fr_FR-missing-medium"

	_, err := New(cfg, 1.0, audio.NewMockPlayer(audio.DefaultFormat), nil, nil)
	if !errors.Is(err, tts.ErrEngineNotAvailable) {
		t.Errorf("New() error = %v, want %v", err, tts.ErrEngineNotAvailable)
	}
}

func TestSpeak(t *testing.T) {
	// 0.1s of silence at 22050 Hz.
	e, player, dir := newTestEngine(t, "head -c 4410 /dev/zero", nil)

	if err := e.Speak(context.Background(), "Hello\nworld."); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	clips := player.Clips()
	if len(clips) != 1 || len(clips[0]) != 4410 {
		t.Fatalf("played %d clips, want one of 4410 bytes", len(clips))
	}

	stdin, _ := os.ReadFile(filepath.Join(dir, "stdin"))
	if got := string(stdin); got != "Hello world.\n" {
		t.Errorf("stdin = %q, want %q", got, "Hello world.\n")
	}

	args, _ := os.ReadFile(filepath.Join(dir, "args"))
	want := "--model " + filepath.Join(dir, "en_US-lessac-medium.onnx") + " --output-raw\n"
	if string(args) != want {
		t.Errorf("args = %q, want %q", args, want)
	}
}

func TestSpeakResamples(t *testing.T) {
	binary, dir := fakePiper(t, "head -c 4410 /dev/zero")
	stereo := audio.Format{SampleRate: 44100, Channels: 2}
	player := audio.NewMockPlayer(stereo)

	e, err := New(testConfig(binary, dir), 1.0, player, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := e.Speak(context.Background(), "Hello."); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	got := stereo.Duration(len(player.Clips()[0]))
	if got < 90*time.Millisecond || got > 110*time.Millisecond {
		t.Errorf("played %v of audio, want about 100ms", got)
	}
}

func TestSpeakFailure(t *testing.T) {
	e, player, _ := newTestEngine(t, "echo 'model load failed' >&2; exit 1", nil)

	err := e.Speak(context.Background(), "Hello.")
	if !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Fatalf("Speak() error = %v, want %v", err, tts.ErrSynthesisFailed)
	}
	if !strings.Contains(err.Error(), "model load failed") {
		t.Errorf("error %q does not include stderr", err)
	}
	if player.PlayCount() != 0 {
		t.Error("failed synthesis reached the player")
	}
}

func TestSpeakNoAudio(t *testing.T) {
	e, _, _ := newTestEngine(t, "", nil)

	if err := e.Speak(context.Background(), "Hello."); !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Errorf("Speak() error = %v, want %v", err, tts.ErrSynthesisFailed)
	}
}

func TestSpeakCanceled(t *testing.T) {
	e, _, _ := newTestEngine(t, "sleep 10", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := e.Speak(ctx, "Hello.")
	if !tts.IsCancellation(err) {
		t.Errorf("Speak() error = %v, want cancellation", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Speak took %v after cancel", elapsed)
	}
}

func TestStopImmediateKillsSynthesis(t *testing.T) {
	e, player, _ := newTestEngine(t, "sleep 10", nil)

	errc := make(chan error, 1)
	go func() { errc <- e.Speak(context.Background(), "Hello.") }()

	// Wait for the process to start.
	deadline := time.Now().Add(2 * time.Second)
	for {
		e.mu.Lock()
		started := e.cmd != nil
		e.mu.Unlock()
		if started || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := e.StopImmediate(); err != nil {
		t.Fatalf("StopImmediate failed: %v", err)
	}

	select {
	case err := <-errc:
		if !tts.IsCancellation(err) {
			t.Errorf("Speak() error = %v, want cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Speak did not return after StopImmediate")
	}
	if player.StopCount() != 1 {
		t.Errorf("player stopped %d times, want 1", player.StopCount())
	}
}

func TestSpeakUsesCache(t *testing.T) {
	cfg := cache.DefaultConfig()
	cfg.DiskCapacity = 0
	store, err := cache.NewStore(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	e, player, dir := newTestEngine(t, "head -c 4410 /dev/zero", store)

	if err := e.Speak(context.Background(), "Hello."); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	// Synthesis is broken now, so a second success must come from the cache.
	if err := os.WriteFile(filepath.Join(dir, "piper"), []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := e.Speak(context.Background(), "Hello."); err != nil {
		t.Fatalf("cached Speak failed: %v", err)
	}
	if player.PlayCount() != 2 {
		t.Errorf("PlayCount = %d, want 2", player.PlayCount())
	}
	if err := e.Speak(context.Background(), "Goodbye."); err == nil {
		t.Error("uncached Speak succeeded with a broken binary")
	}
}

func TestSelectVoice(t *testing.T) {
	e, _, dir := newTestEngine(t, "", nil)

	if err := e.SelectVoice("de_DE-thorsten-low"); err != nil {
		t.Fatalf("SelectVoice failed: %v", err)
	}
	if want := filepath.Join(dir, "de_DE-thorsten-low.onnx"); e.Model() != want {
		t.Errorf("Model() = %q, want %q", e.Model(), want)
	}

	if err := e.SelectVoice(filepath.Join(dir, "en_US-lessac-medium.onnx")); err != nil {
		t.Errorf("SelectVoice(path) failed: %v", err)
	}

	if err := e.SelectVoice("xx_XX-nobody"); !errors.Is(err, tts.ErrVoiceNotFound) {
		t.Errorf("SelectVoice() error = %v, want %v", err, tts.ErrVoiceNotFound)
	}
}

func TestVoices(t *testing.T) {
	e, _, _ := newTestEngine(t, "", nil)

	voices, err := e.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}

	found := make(map[string]tts.Voice)
	for _, v := range voices {
		found[v.ID] = v
	}
	want := tts.Voice{ID: "de_DE-thorsten-low", Name: "thorsten low", Language: "de-DE"}
	if got := found["de_DE-thorsten-low"]; got != want {
		t.Errorf("voice = %+v, want %+v", got, want)
	}
	if _, ok := found["en_US-lessac-medium"]; !ok {
		t.Error("en_US-lessac-medium not listed")
	}
}

func TestArgs(t *testing.T) {
	tests := []struct {
		name    string
		speaker int
		scale   float64
		rate    float64
		want    []string
	}{
		{"defaults", 0, 1.0, 1.0, []string{"--model", "m.onnx", "--output-raw"}},
		{"speaker", 3, 1.0, 1.0, []string{"--model", "m.onnx", "--output-raw", "--speaker", "3"}},
		{"faster", 0, 1.0, 2.0, []string{"--model", "m.onnx", "--output-raw", "--length_scale", "0.500"}},
		{"slower model", 0, 1.2, 1.0, []string{"--model", "m.onnx", "--output-raw", "--length_scale", "1.200"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Engine{speakerID: tt.speaker, lengthScale: lengthScale(tt.scale, tt.rate)}
			if got := e.Args("m.onnx"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Args() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVoiceFromModel(t *testing.T) {
	tests := []struct {
		path string
		want tts.Voice
	}{
		{"/v/en_GB-alba-medium.onnx", tts.Voice{ID: "en_GB-alba-medium", Name: "alba medium", Language: "en-GB"}},
		{"custom.onnx", tts.Voice{ID: "custom", Name: "custom"}},
	}

	for _, tt := range tests {
		if got := voiceFromModel(tt.path); got != tt.want {
			t.Errorf("voiceFromModel(%q) = %+v, want %+v", tt.path, got, tt.want)
		}
	}
}
