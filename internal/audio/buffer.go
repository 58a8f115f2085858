// Package audio decodes uploaded tracks and finds beat onsets in them.
package audio

import "karolbroda.com/lyricmotion/internal/apperr"

// Buffer is decoded PCM downmixed to mono. It is immutable once built.
type Buffer struct {
	sampleRate int
	channels   int
	samples    []float32
	duration   float64
}

func newBuffer(samples []float32, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, apperr.New(apperr.KindDecode, "audio.decode", "invalid sample rate")
	}
	if len(samples) == 0 {
		return nil, apperr.New(apperr.KindEmptyAudio, "audio.decode", "audio has zero duration")
	}
	return &Buffer{
		sampleRate: sampleRate,
		channels:   channels,
		samples:    samples,
		duration:   float64(len(samples)) / float64(sampleRate),
	}, nil
}

func (b *Buffer) SampleRate() int { return b.sampleRate }

// Channels is the channel count of the source before downmixing.
func (b *Buffer) Channels() int { return b.channels }

// Duration in seconds, always > 0.
func (b *Buffer) Duration() float64 { return b.duration }

func (b *Buffer) Len() int { return len(b.samples) }

// Samples returns a copy of the mono samples.
func (b *Buffer) Samples() []float32 {
	out := make([]float32, len(b.samples))
	copy(out, b.samples)
	return out
}

// FromSamples builds a Buffer from mono samples, copying them.
func FromSamples(samples []float32, sampleRate, channels int) (*Buffer, error) {
	return newBuffer(append([]float32(nil), samples...), sampleRate, channels)
}
