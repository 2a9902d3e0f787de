package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/narrate/tts"
)

// tone returns n frames of a constant sample in format f.
func tone(f Format, n int, v int16) []byte {
	out := make([]byte, n*f.FrameSize())
	for i := 0; i < len(out); i += 2 {
		binary.LittleEndian.PutUint16(out[i:], uint16(v))
	}
	return out
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		format Format
		bytes  int
		want   time.Duration
	}{
		{Format{SampleRate: 22050, Channels: 1}, 44100, time.Second},
		{Format{SampleRate: 44100, Channels: 2}, 44100 * 4 / 2, 500 * time.Millisecond},
		{Format{SampleRate: 16000, Channels: 1}, 3, 0},
		{Format{}, 1000, 0},
	}

	for _, tt := range tests {
		if got := tt.format.Duration(tt.bytes); got != tt.want {
			t.Errorf("%+v.Duration(%d) = %v, want %v", tt.format, tt.bytes, got, tt.want)
		}
	}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		format  Format
		wantErr bool
	}{
		{Format{SampleRate: 22050, Channels: 1}, false},
		{Format{SampleRate: 48000, Channels: 2}, false},
		{Format{SampleRate: 0, Channels: 1}, true},
		{Format{SampleRate: 22050, Channels: 3}, true},
	}

	for _, tt := range tests {
		err := tt.format.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%+v.Validate() error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("error %v does not wrap ErrInvalidFormat", err)
		}
	}
}

func TestConvertSameFormatIsNoop(t *testing.T) {
	pcm := tone(DefaultFormat, 100, 1000)
	out, err := Convert(pcm, DefaultFormat, DefaultFormat)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if &out[0] != &pcm[0] {
		t.Error("Convert copied data that needed no conversion")
	}
}

func TestConvertMonoToStereo(t *testing.T) {
	mono := Format{SampleRate: 22050, Channels: 1}
	stereo := Format{SampleRate: 22050, Channels: 2}

	out, err := Convert(tone(mono, 10, 8000), mono, stereo)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(out) != 10*stereo.FrameSize() {
		t.Fatalf("len = %d, want %d", len(out), 10*stereo.FrameSize())
	}
	for i := 0; i < len(out); i += 2 {
		if got := int16(binary.LittleEndian.Uint16(out[i:])); got < 7999 || got > 8001 {
			t.Fatalf("sample %d = %d, want about 8000", i/2, got)
		}
	}
}

func TestConvertResamplesDuration(t *testing.T) {
	from := Format{SampleRate: 22050, Channels: 1}
	to := Format{SampleRate: 44100, Channels: 1}

	out, err := Convert(tone(from, 22050, 4000), from, to)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	got := to.Duration(len(out))
	if got < 950*time.Millisecond || got > 1050*time.Millisecond {
		t.Errorf("resampled duration = %v, want about 1s", got)
	}
}

func TestConvertRejectsPartialFrames(t *testing.T) {
	stereo := Format{SampleRate: 22050, Channels: 2}
	if _, err := Convert(make([]byte, 6), stereo, DefaultFormat); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Convert() error = %v, want %v", err, ErrInvalidFormat)
	}
}

func TestDecodeMP3Garbage(t *testing.T) {
	if _, err := DecodeMP3([]byte("not an mp3"), DefaultFormat); err == nil {
		t.Error("DecodeMP3 accepted garbage")
	}
}

func TestMockPlayer(t *testing.T) {
	p := NewMockPlayer(DefaultFormat)
	pcm := tone(DefaultFormat, 100, 1)

	if err := p.Play(context.Background(), pcm); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(p.Clips()) != 1 || p.PlayCount() != 1 {
		t.Errorf("recorded %d clips, %d plays; want 1 and 1", len(p.Clips()), p.PlayCount())
	}

	// One second of audio in real time, interrupted by Stop.
	p.SetDelayFactor(1.0)
	errc := make(chan error, 1)
	go func() { errc <- p.Play(context.Background(), tone(DefaultFormat, DefaultFormat.SampleRate, 1)) }()

	time.Sleep(20 * time.Millisecond)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case err := <-errc:
		if !tts.IsCancellation(err) {
			t.Errorf("Play() error = %v, want cancellation", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Play did not return after Stop")
	}
}

func TestMockPlayerContextCancel(t *testing.T) {
	p := NewMockPlayer(DefaultFormat)
	p.SetDelayFactor(1.0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := p.Play(ctx, tone(DefaultFormat, DefaultFormat.SampleRate, 1))
	if !tts.IsCancellation(err) {
		t.Errorf("Play() error = %v, want cancellation", err)
	}
}

func TestMockPlayerError(t *testing.T) {
	p := NewMockPlayer(DefaultFormat)
	boom := errors.New("device gone")
	p.SetError(boom)

	if err := p.Play(context.Background(), []byte{0, 0}); !errors.Is(err, boom) {
		t.Errorf("Play() error = %v, want %v", err, boom)
	}
}
