package tts

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// LoadConfigFromViper loads configuration from the global Viper instance.
func LoadConfigFromViper() (Config, error) {
	return LoadConfig(viper.GetViper())
}

// LoadConfig builds a Config from defaults, then keys under "tts." in v, then
// NARRATE_* environment variables, and validates the result.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	// Engine selection
	setString(v, "tts.engine", &cfg.Engine)
	setString(v, "tts.fallback", &cfg.Fallback)
	setInt(v, "tts.max_failures", &cfg.MaxFailures)
	setString(v, "tts.voice", &cfg.Voice)

	// Audio settings
	setFloat(v, "tts.rate", &cfg.Rate)
	setFloat(v, "tts.volume", &cfg.Volume)
	setInt(v, "tts.sample_rate", &cfg.SampleRate)

	// Playback settings
	setDuration(v, "tts.sentence_gap", &cfg.SentenceGap)
	setDuration(v, "tts.poll_interval", &cfg.PollInterval)

	// Text and visual settings
	setBool(v, "tts.markdown", &cfg.Markdown)
	setInt(v, "tts.title_threshold", &cfg.TitleThreshold)
	setString(v, "tts.highlight_color", &cfg.HighlightColor)

	loadPiperConfig(v, &cfg.Piper)
	loadSystemConfig(v, &cfg.System)
	loadGoogleConfig(v, &cfg.Google)
	loadMockConfig(v, &cfg.Mock)
	loadCacheConfig(v, &cfg.Cache)

	// Environment wins over the config file.
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: environment: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid narration configuration: %w", err)
	}
	return cfg, nil
}

func loadPiperConfig(v *viper.Viper, cfg *PiperConfig) {
	setString(v, "tts.piper.binary", &cfg.Binary)
	setString(v, "tts.piper.model", &cfg.Model)
	setString(v, "tts.piper.model_dir", &cfg.ModelDir)
	setInt(v, "tts.piper.speaker_id", &cfg.SpeakerID)
	setFloat(v, "tts.piper.length_scale", &cfg.LengthScale)
	setInt(v, "tts.piper.sample_rate", &cfg.SampleRate)
	setDuration(v, "tts.piper.timeout", &cfg.Timeout)
}

func loadSystemConfig(v *viper.Viper, cfg *SystemConfig) {
	setString(v, "tts.system.binary", &cfg.Binary)
	setInt(v, "tts.system.wpm", &cfg.WPM)
	setDuration(v, "tts.system.timeout", &cfg.Timeout)
}

func loadGoogleConfig(v *viper.Viper, cfg *GoogleConfig) {
	setString(v, "tts.google.credentials_file", &cfg.CredentialsFile)
	setString(v, "tts.google.language_code", &cfg.LanguageCode)
	setString(v, "tts.google.voice_name", &cfg.VoiceName)
	setFloat(v, "tts.google.speaking_rate", &cfg.SpeakingRate)
	setFloat(v, "tts.google.pitch", &cfg.Pitch)
	setFloat(v, "tts.google.volume_gain", &cfg.VolumeGain)
	setInt(v, "tts.google.requests_per_minute", &cfg.RequestsPerMinute)
	setDuration(v, "tts.google.timeout", &cfg.Timeout)
}

func loadMockConfig(v *viper.Viper, cfg *MockConfig) {
	setDuration(v, "tts.mock.delay", &cfg.Delay)
	setInt(v, "tts.mock.words_per_minute", &cfg.WordsPerMinute)
	setFloat(v, "tts.mock.failure_rate", &cfg.FailureRate)
}

func loadCacheConfig(v *viper.Viper, cfg *CacheConfig) {
	setBool(v, "tts.cache.enabled", &cfg.Enabled)
	setString(v, "tts.cache.dir", &cfg.Dir)
	setInt(v, "tts.cache.memory_mb", &cfg.MemoryMB)
	setInt(v, "tts.cache.disk_mb", &cfg.DiskMB)
	setInt(v, "tts.cache.compression_level", &cfg.CompressionLevel)
}

// SetDefaults registers default values with Viper so they show up in
// viper.AllSettings and config dumps.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("tts.engine", d.Engine)
	v.SetDefault("tts.fallback", d.Fallback)
	v.SetDefault("tts.max_failures", d.MaxFailures)
	v.SetDefault("tts.rate", d.Rate)
	v.SetDefault("tts.volume", d.Volume)
	v.SetDefault("tts.sample_rate", d.SampleRate)
	v.SetDefault("tts.sentence_gap", d.SentenceGap.String())
	v.SetDefault("tts.poll_interval", d.PollInterval.String())
	v.SetDefault("tts.title_threshold", d.TitleThreshold)
	v.SetDefault("tts.highlight_color", d.HighlightColor)

	v.SetDefault("tts.piper.binary", d.Piper.Binary)
	v.SetDefault("tts.piper.model", d.Piper.Model)
	v.SetDefault("tts.piper.length_scale", d.Piper.LengthScale)
	v.SetDefault("tts.piper.sample_rate", d.Piper.SampleRate)
	v.SetDefault("tts.piper.timeout", d.Piper.Timeout.String())

	v.SetDefault("tts.system.wpm", d.System.WPM)
	v.SetDefault("tts.system.timeout", d.System.Timeout.String())

	v.SetDefault("tts.google.language_code", d.Google.LanguageCode)
	v.SetDefault("tts.google.voice_name", d.Google.VoiceName)
	v.SetDefault("tts.google.speaking_rate", d.Google.SpeakingRate)
	v.SetDefault("tts.google.requests_per_minute", d.Google.RequestsPerMinute)
	v.SetDefault("tts.google.timeout", d.Google.Timeout.String())

	v.SetDefault("tts.mock.words_per_minute", d.Mock.WordsPerMinute)

	v.SetDefault("tts.cache.enabled", d.Cache.Enabled)
	v.SetDefault("tts.cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("tts.cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("tts.cache.compression_level", d.Cache.CompressionLevel)
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setFloat(v *viper.Viper, key string, dst *float64) {
	if v.IsSet(key) {
		*dst = v.GetFloat64(key)
	}
}

func setBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}
