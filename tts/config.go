package tts

import (
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"
)

// Engine names accepted in configuration.
const (
	EngineAuto   = "auto"
	EngineMock   = "mock"
	EnginePiper  = "piper"
	EngineSystem = "system"
	EngineGoogle = "google"
)

// Engines lists every configurable engine name.
var Engines = []string{EngineAuto, EngineMock, EnginePiper, EngineSystem, EngineGoogle}

// Config contains all narration configuration options. Environment variables
// override values loaded from the config file.
type Config struct {
	// Engine selection
	Engine      string `yaml:"engine" env:"NARRATE_ENGINE"`
	Fallback    string `yaml:"fallback" env:"NARRATE_FALLBACK"`
	MaxFailures int    `yaml:"max_failures" env:"NARRATE_MAX_FAILURES"`
	Voice       string `yaml:"voice" env:"NARRATE_VOICE"`

	// Audio settings
	Rate       float64 `yaml:"rate" env:"NARRATE_RATE"`
	Volume     float64 `yaml:"volume" env:"NARRATE_VOLUME"`
	SampleRate int     `yaml:"sample_rate" env:"NARRATE_SAMPLE_RATE"`

	// Playback settings
	SentenceGap  time.Duration `yaml:"sentence_gap" env:"NARRATE_SENTENCE_GAP"`
	PollInterval time.Duration `yaml:"poll_interval" env:"NARRATE_POLL_INTERVAL"`

	// Text settings
	Markdown       bool `yaml:"markdown" env:"NARRATE_MARKDOWN"`
	TitleThreshold int  `yaml:"title_threshold" env:"NARRATE_TITLE_THRESHOLD"`

	// Visual settings
	HighlightColor string `yaml:"highlight_color" env:"NARRATE_HIGHLIGHT_COLOR"`

	// Engine-specific configurations
	Piper  PiperConfig  `yaml:"piper"`
	System SystemConfig `yaml:"system"`
	Google GoogleConfig `yaml:"google"`
	Mock   MockConfig   `yaml:"mock"`
	Cache  CacheConfig  `yaml:"cache"`
}

// PiperConfig contains Piper engine specific settings.
type PiperConfig struct {
	Binary      string        `yaml:"binary" env:"NARRATE_PIPER_BINARY"`
	Model       string        `yaml:"model" env:"NARRATE_PIPER_MODEL"`
	ModelDir    string        `yaml:"model_dir" env:"NARRATE_PIPER_MODEL_DIR"`
	SpeakerID   int           `yaml:"speaker_id" env:"NARRATE_PIPER_SPEAKER_ID"`
	LengthScale float64       `yaml:"length_scale" env:"NARRATE_PIPER_LENGTH_SCALE"`
	SampleRate  int           `yaml:"sample_rate" env:"NARRATE_PIPER_SAMPLE_RATE"`
	Timeout     time.Duration `yaml:"timeout" env:"NARRATE_PIPER_TIMEOUT"`
}

// SystemConfig contains settings for the operating system's voice.
type SystemConfig struct {
	// Binary overrides the detected program (espeak-ng, espeak, say, powershell).
	Binary  string        `yaml:"binary" env:"NARRATE_SYSTEM_BINARY"`
	WPM     int           `yaml:"wpm" env:"NARRATE_SYSTEM_WPM"`
	Timeout time.Duration `yaml:"timeout" env:"NARRATE_SYSTEM_TIMEOUT"`
}

// GoogleConfig contains Google Cloud Text-to-Speech settings.
type GoogleConfig struct {
	CredentialsFile   string        `yaml:"credentials_file" env:"NARRATE_GOOGLE_CREDENTIALS_FILE"`
	LanguageCode      string        `yaml:"language_code" env:"NARRATE_GOOGLE_LANGUAGE_CODE"`
	VoiceName         string        `yaml:"voice_name" env:"NARRATE_GOOGLE_VOICE_NAME"`
	SpeakingRate      float64       `yaml:"speaking_rate" env:"NARRATE_GOOGLE_SPEAKING_RATE"`
	Pitch             float64       `yaml:"pitch" env:"NARRATE_GOOGLE_PITCH"`
	VolumeGain        float64       `yaml:"volume_gain" env:"NARRATE_GOOGLE_VOLUME_GAIN"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"NARRATE_GOOGLE_REQUESTS_PER_MINUTE"`
	Timeout           time.Duration `yaml:"timeout" env:"NARRATE_GOOGLE_TIMEOUT"`
}

// MockConfig contains settings for the silent mock engine.
type MockConfig struct {
	Delay          time.Duration `yaml:"delay" env:"NARRATE_MOCK_DELAY"`
	WordsPerMinute int           `yaml:"words_per_minute" env:"NARRATE_MOCK_WORDS_PER_MINUTE"`
	FailureRate    float64       `yaml:"failure_rate" env:"NARRATE_MOCK_FAILURE_RATE"`
}

// CacheConfig contains settings for the synthesized audio cache.
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled" env:"NARRATE_CACHE_ENABLED"`
	Dir              string `yaml:"dir" env:"NARRATE_CACHE_DIR"`
	MemoryMB         int    `yaml:"memory_mb" env:"NARRATE_CACHE_MEMORY_MB"`
	DiskMB           int    `yaml:"disk_mb" env:"NARRATE_CACHE_DISK_MB"`
	CompressionLevel int    `yaml:"compression_level" env:"NARRATE_CACHE_COMPRESSION_LEVEL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:      EngineAuto,
		Fallback:    EngineMock,
		MaxFailures: 3,

		Rate:       1.0,
		Volume:     1.0,
		SampleRate: 22050,

		SentenceGap:  150 * time.Millisecond,
		PollInterval: 25 * time.Millisecond,

		TitleThreshold: 100,
		HighlightColor: "yellow",

		Piper:  DefaultPiperConfig(),
		System: DefaultSystemConfig(),
		Google: DefaultGoogleConfig(),
		Mock:   DefaultMockConfig(),
		Cache:  DefaultCacheConfig(),
	}
}

// DefaultPiperConfig returns default Piper configuration.
func DefaultPiperConfig() PiperConfig {
	cfg := PiperConfig{
		Binary:      "piper",
		Model:       "en_US-lessac-medium",
		LengthScale: 1.0,
		SampleRate:  22050,
		Timeout:     30 * time.Second,
	}

	switch runtime.GOOS {
	case "linux":
		cfg.ModelDir = "/usr/share/piper-voices"
	case "darwin":
		cfg.ModelDir = "/usr/local/share/piper-voices"
	}
	return cfg
}

// DefaultSystemConfig returns default system voice configuration.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		WPM:     175,
		Timeout: time.Minute,
	}
}

// DefaultGoogleConfig returns default Google configuration.
func DefaultGoogleConfig() GoogleConfig {
	return GoogleConfig{
		LanguageCode:      "en-US",
		VoiceName:         "en-US-Standard-C",
		SpeakingRate:      1.0,
		RequestsPerMinute: 100,
		Timeout:           10 * time.Second,
	}
}

// DefaultMockConfig returns default mock configuration.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		WordsPerMinute: 180,
	}
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:          true,
		MemoryMB:         64,
		DiskMB:           512,
		CompressionLevel: 3,
	}
}

// Validate checks if the configuration is valid, normalising engine names.
func (c *Config) Validate() error {
	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	if !slices.Contains(Engines, c.Engine) {
		return fmt.Errorf("%w: engine %q must be one of %v", ErrInvalidConfig, c.Engine, Engines)
	}

	c.Fallback = strings.ToLower(strings.TrimSpace(c.Fallback))
	if c.Fallback != "" && (c.Fallback == EngineAuto || !slices.Contains(Engines, c.Fallback)) {
		return fmt.Errorf("%w: fallback %q must be empty or one of %v", ErrInvalidConfig, c.Fallback, Engines[1:])
	}
	if c.MaxFailures < 1 {
		return fmt.Errorf("%w: max_failures must be at least 1, got %d", ErrInvalidConfig, c.MaxFailures)
	}

	if c.Rate < 0.25 || c.Rate > 4.0 {
		return fmt.Errorf("%w: rate must be between 0.25 and 4.0, got %g", ErrInvalidConfig, c.Rate)
	}
	if c.Volume < 0.0 || c.Volume > 1.0 {
		return fmt.Errorf("%w: volume must be between 0.0 and 1.0, got %g", ErrInvalidConfig, c.Volume)
	}

	validSampleRates := []int{8000, 16000, 22050, 24000, 44100, 48000}
	if !slices.Contains(validSampleRates, c.SampleRate) {
		return fmt.Errorf("%w: sample rate %d must be one of %v", ErrInvalidConfig, c.SampleRate, validSampleRates)
	}

	if c.SentenceGap < 0 || c.SentenceGap > 10*time.Second {
		return fmt.Errorf("%w: sentence_gap must be between 0 and 10s, got %v", ErrInvalidConfig, c.SentenceGap)
	}
	if c.PollInterval < time.Millisecond || c.PollInterval > time.Second {
		return fmt.Errorf("%w: poll_interval must be between 1ms and 1s, got %v", ErrInvalidConfig, c.PollInterval)
	}
	if c.TitleThreshold < 1 {
		return fmt.Errorf("%w: title_threshold must be positive, got %d", ErrInvalidConfig, c.TitleThreshold)
	}

	validColors := []string{"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white"}
	c.HighlightColor = strings.ToLower(c.HighlightColor)
	if !slices.Contains(validColors, c.HighlightColor) {
		return fmt.Errorf("%w: highlight color %q must be one of %v", ErrInvalidConfig, c.HighlightColor, validColors)
	}

	// Validate engine-specific config
	for _, name := range []string{c.Engine, c.Fallback} {
		var err error
		switch name {
		case EnginePiper:
			err = c.Piper.Validate()
		case EngineSystem:
			err = c.System.Validate()
		case EngineGoogle:
			err = c.Google.Validate()
		case EngineMock:
			err = c.Mock.Validate()
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
		}
	}

	return c.Cache.Validate()
}

// Validate checks if the Piper configuration is valid.
func (c *PiperConfig) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("piper binary path cannot be empty")
	}
	if c.Model == "" {
		return fmt.Errorf("piper model cannot be empty")
	}
	if c.LengthScale < 0.1 || c.LengthScale > 3.0 {
		return fmt.Errorf("length_scale must be between 0.1 and 3.0, got %g", c.LengthScale)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}
	return nil
}

// Validate checks if the system voice configuration is valid.
func (c *SystemConfig) Validate() error {
	if c.WPM < 80 || c.WPM > 500 {
		return fmt.Errorf("wpm must be between 80 and 500, got %d", c.WPM)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}
	return nil
}

// Validate checks if the Google configuration is valid.
func (c *GoogleConfig) Validate() error {
	if c.LanguageCode == "" {
		return fmt.Errorf("language_code cannot be empty")
	}
	if c.SpeakingRate < 0.25 || c.SpeakingRate > 4.0 {
		return fmt.Errorf("speaking_rate must be between 0.25 and 4.0, got %g", c.SpeakingRate)
	}
	if c.Pitch < -20.0 || c.Pitch > 20.0 {
		return fmt.Errorf("pitch must be between -20.0 and 20.0, got %g", c.Pitch)
	}
	if c.VolumeGain < -96.0 || c.VolumeGain > 16.0 {
		return fmt.Errorf("volume_gain must be between -96.0 and 16.0, got %g", c.VolumeGain)
	}
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be positive, got %d", c.RequestsPerMinute)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}
	return nil
}

// Validate checks if the mock configuration is valid.
func (c *MockConfig) Validate() error {
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative, got %v", c.Delay)
	}
	if c.WordsPerMinute < 50 || c.WordsPerMinute > 1000 {
		return fmt.Errorf("words_per_minute must be between 50 and 1000, got %d", c.WordsPerMinute)
	}
	if c.FailureRate < 0.0 || c.FailureRate > 1.0 {
		return fmt.Errorf("failure_rate must be between 0.0 and 1.0, got %g", c.FailureRate)
	}
	return nil
}

// Validate checks if the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MemoryMB < 0 || c.DiskMB < 0 {
		return fmt.Errorf("%w: cache sizes cannot be negative", ErrInvalidConfig)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 22 {
		return fmt.Errorf("%w: compression_level must be between 0 and 22, got %d", ErrInvalidConfig, c.CompressionLevel)
	}
	return nil
}

// ToControllerConfig converts the configuration to controller settings.
func (c *Config) ToControllerConfig() ControllerConfig {
	cfg := DefaultControllerConfig()
	cfg.SentenceGap = c.SentenceGap
	cfg.PollInterval = c.PollInterval
	return cfg
}
