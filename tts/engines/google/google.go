// Package google speaks through Google Cloud Text-to-Speech. Responses are
// MP3, decoded to PCM for the local player and cached.
package google

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/charmbracelet/log"
	"github.com/googleapis/gax-go/v2"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/audio"
)

// Name identifies the engine in configuration and cache keys.
const Name = "google"

// maxInputBytes is the service limit on input text.
const maxInputBytes = 5000

// Synthesizer is the subset of the Text-to-Speech client the engine uses.
type Synthesizer interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	ListVoices(ctx context.Context, req *texttospeechpb.ListVoicesRequest, opts ...gax.CallOption) (*texttospeechpb.ListVoicesResponse, error)
	Close() error
}

// Engine implements tts.SpeechEngine using Google Cloud.
type Engine struct {
	client  Synthesizer
	cfg     tts.GoogleConfig
	speed   float64
	limiter *rate.Limiter
	player  audio.Player
	cache   *cache.Store
	logger  *log.Logger

	mu       sync.Mutex
	language string
	voice    string
	speaking bool
}

// NewClient connects to the Text-to-Speech API. Without a credentials file
// the application default credentials are used.
func NewClient(ctx context.Context, cfg tts.GoogleConfig) (*texttospeech.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		path, err := homedir.Expand(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsFile(path))
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}
	return client, nil
}

// New creates a Google engine around client. speed scales the configured
// speaking rate.
func New(client Synthesizer, cfg tts.GoogleConfig, speed float64, player audio.Player, store *cache.Store, logger *log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", tts.ErrInvalidConfig, err)
	}
	if client == nil || player == nil {
		return nil, fmt.Errorf("%w: google needs a client and an audio player", tts.ErrEngineNotAvailable)
	}
	if logger == nil {
		logger = log.Default()
	}
	if speed <= 0 {
		speed = 1
	}

	return &Engine{
		client:   client,
		cfg:      cfg,
		speed:    speed,
		limiter:  newLimiter(cfg.RequestsPerMinute),
		player:   player,
		cache:    store,
		logger:   logger.WithPrefix(Name),
		language: cfg.LanguageCode,
		voice:    cfg.VoiceName,
	}, nil
}

func newLimiter(perMinute int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// SelectVoice implements tts.SpeechEngine. Voice names start with their
// language code, as in "en-GB-Neural2-A".
func (e *Engine) SelectVoice(name string) error {
	lang := languageOf(name)
	if lang == "" {
		return fmt.Errorf("%w: %s", tts.ErrVoiceNotFound, name)
	}

	e.mu.Lock()
	e.voice = name
	e.language = lang
	e.mu.Unlock()
	return nil
}

// Voices implements tts.VoiceLister.
func (e *Engine) Voices(ctx context.Context) ([]tts.Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}

	voices := make([]tts.Voice, 0, len(resp.GetVoices()))
	for _, v := range resp.GetVoices() {
		voice := tts.Voice{
			ID:     v.GetName(),
			Name:   v.GetName(),
			Gender: gender(v.GetSsmlGender()),
		}
		if codes := v.GetLanguageCodes(); len(codes) > 0 {
			voice.Language = codes[0]
		}
		voices = append(voices, voice)
	}
	return voices, nil
}

// Speak implements tts.SpeechEngine.
func (e *Engine) Speak(ctx context.Context, text string) error {
	if len(text) > maxInputBytes {
		return fmt.Errorf("%w: sentence is %d bytes, the limit is %d", tts.ErrSynthesisFailed, len(text), maxInputBytes)
	}

	req := e.request(text)
	format := e.player.Format()
	key := cache.Key{
		Engine: Name,
		Voice:  req.GetVoice().GetName(),
		Rate:   req.GetAudioConfig().GetSpeakingRate(),
		Format: fmt.Sprintf("%dx%d", format.SampleRate, format.Channels),
		Text:   text,
	}

	pcm, ok := e.cached(key)
	if !ok {
		var err error
		pcm, err = e.synthesize(ctx, req, format)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err())
			}
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

// StopImmediate implements tts.SpeechEngine. Requests in flight are
// abandoned through the context passed to Speak.
func (e *Engine) StopImmediate() error {
	return e.player.Stop()
}

// IsSpeaking implements tts.SpeechEngine.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

// Close implements tts.Closer.
func (e *Engine) Close() error {
	return e.client.Close()
}

func (e *Engine) synthesize(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, format audio.Format) ([]byte, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	resp, err := e.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.GetAudioContent()) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}
	return audio.DecodeMP3(resp.GetAudioContent(), format)
}

// request builds the synthesis request for text with the active voice.
func (e *Engine) request(text string) *texttospeechpb.SynthesizeSpeechRequest {
	e.mu.Lock()
	voice, lang := e.voice, e.language
	e.mu.Unlock()

	audioCfg := &texttospeechpb.AudioConfig{
		AudioEncoding: texttospeechpb.AudioEncoding_MP3,
	}
	// Chirp voices reject rate and pitch adjustments.
	if !strings.Contains(strings.ToLower(voice), "chirp") {
		audioCfg.SpeakingRate = min(4.0, max(0.25, e.cfg.SpeakingRate*e.speed))
		audioCfg.Pitch = e.cfg.Pitch
		audioCfg.VolumeGainDb = e.cfg.VolumeGain
	}

	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: lang,
			Name:         voice,
		},
		AudioConfig: audioCfg,
	}
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

// languageOf returns the language code prefix of a voice name, or "".
func languageOf(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) < 3 || len(parts[0]) < 2 || len(parts[0]) > 3 || parts[1] == "" || parts[2] == "" {
		return ""
	}
	return parts[0] + "-" + parts[1]
}

func gender(g texttospeechpb.SsmlVoiceGender) string {
	switch g {
	case texttospeechpb.SsmlVoiceGender_MALE:
		return "male"
	case texttospeechpb.SsmlVoiceGender_FEMALE:
		return "female"
	case texttospeechpb.SsmlVoiceGender_NEUTRAL:
		return "neutral"
	}
	return ""
}

var (
	_ tts.SpeechEngine = (*Engine)(nil)
	_ tts.VoiceLister  = (*Engine)(nil)
	_ tts.Closer       = (*Engine)(nil)
	_ Synthesizer      = (*texttospeech.Client)(nil)
)
