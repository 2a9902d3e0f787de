// Package audio plays synthesized speech and converts it between the formats
// engines produce and the format the output device expects.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
)

// resampleQuality is passed to beep.Resample. 4 is plenty for speech.
const resampleQuality = 4

// ErrInvalidFormat is returned for PCM data that does not match its format.
var ErrInvalidFormat = errors.New("invalid audio format")

// Format describes signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is the output format used when none is configured.
var DefaultFormat = Format{SampleRate: 22050, Channels: 1}

// FrameSize returns the number of bytes in one sample frame.
func (f Format) FrameSize() int {
	return f.Channels * 2
}

// Duration returns how long n bytes of PCM take to play.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := n / f.FrameSize()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Validate checks the format is playable.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("%w: channels must be 1 or 2, got %d", ErrInvalidFormat, f.Channels)
	}
	return nil
}

// Convert resamples and remixes pcm from one format to another. Data already
// in the target format is returned unchanged.
func Convert(pcm []byte, from, to Format) ([]byte, error) {
	if err := from.Validate(); err != nil {
		return nil, err
	}
	if err := to.Validate(); err != nil {
		return nil, err
	}
	if len(pcm)%from.FrameSize() != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of frames", ErrInvalidFormat, len(pcm))
	}
	if from == to {
		return pcm, nil
	}

	return encode(resample(&pcmStreamer{data: pcm, format: from}, from.SampleRate, to.SampleRate), to)
}

// DecodeMP3 decodes MP3 data into PCM in the target format.
func DecodeMP3(data []byte, to Format) ([]byte, error) {
	if err := to.Validate(); err != nil {
		return nil, err
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode mp3: %w", err)
	}
	defer streamer.Close()

	return encode(resample(streamer, int(format.SampleRate), to.SampleRate), to)
}

func resample(s beep.Streamer, from, to int) beep.Streamer {
	if from == to {
		return s
	}
	return beep.Resample(resampleQuality, beep.SampleRate(from), beep.SampleRate(to), s)
}

// encode drains s into PCM in format f.
func encode(s beep.Streamer, f Format) ([]byte, error) {
	var buf bytes.Buffer
	samples := make([][2]float64, 512)
	frame := make([]byte, f.FrameSize())

	for {
		n, ok := s.Stream(samples)
		for _, sample := range samples[:n] {
			if f.Channels == 1 {
				binary.LittleEndian.PutUint16(frame, uint16(toInt16((sample[0]+sample[1])/2)))
			} else {
				binary.LittleEndian.PutUint16(frame, uint16(toInt16(sample[0])))
				binary.LittleEndian.PutUint16(frame[2:], uint16(toInt16(sample[1])))
			}
			buf.Write(frame)
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to stream audio: %w", err)
	}
	return buf.Bytes(), nil
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * math.MaxInt16))
}

// pcmStreamer reads 16-bit PCM as a beep.Streamer.
type pcmStreamer struct {
	data   []byte
	format Format
	pos    int
}

func (p *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	size := p.format.FrameSize()
	n := 0
	for n < len(samples) && p.pos+size <= len(p.data) {
		left := float64(int16(binary.LittleEndian.Uint16(p.data[p.pos:]))) / math.MaxInt16
		right := left
		if p.format.Channels == 2 {
			right = float64(int16(binary.LittleEndian.Uint16(p.data[p.pos+2:]))) / math.MaxInt16
		}
		samples[n] = [2]float64{left, right}
		p.pos += size
		n++
	}
	return n, n > 0
}

func (p *pcmStreamer) Err() error { return nil }
