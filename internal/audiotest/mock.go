// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"io"
	"math"
)

// Source generates interleaved test audio on demand. It satisfies
// audio.Source without importing it.
type Source struct {
	sampleRate int
	channels   int
	frames     int // total frames, < 0 for unbounded
	pos        int
	waveform   func(frame, channel int) float32

	// StarveEvery makes every n-th read return (0, nil).
	StarveEvery int
	reads       int
	closed      bool
}

func NewSource(sampleRate, channels, frames int, waveform func(frame, channel int) float32) *Source {
	return &Source{
		sampleRate: sampleRate,
		channels:   channels,
		frames:     frames,
		waveform:   waveform,
	}
}

func Silence(sampleRate, channels, frames int) *Source {
	return NewSource(sampleRate, channels, frames, func(int, int) float32 { return 0 })
}

func Constant(sampleRate, channels, frames int, v float32) *Source {
	return NewSource(sampleRate, channels, frames, func(int, int) float32 { return v })
}

func Sine(sampleRate, channels, frames int, freq float64) *Source {
	return NewSource(sampleRate, channels, frames, func(f, _ int) float32 {
		return float32(math.Sin(2 * math.Pi * freq * float64(f) / float64(sampleRate)))
	})
}

// Ramp emits frame/scale on every channel, handy for tracking positions.
func Ramp(sampleRate, channels, frames int, scale float32) *Source {
	return NewSource(sampleRate, channels, frames, func(f, _ int) float32 { return float32(f) / scale })
}

func (s *Source) SampleRate() int { return s.sampleRate }
func (s *Source) Channels() int   { return s.channels }
func (s *Source) BufSize() int    { return 4096 }
func (s *Source) Position() int   { return s.pos }
func (s *Source) Closed() bool    { return s.closed }

func (s *Source) Close() error {
	s.closed = true
	return nil
}

func (s *Source) ReadSamples(dst []float32) (int, error) {
	s.reads++
	if s.StarveEvery > 0 && s.reads%s.StarveEvery == 0 {
		return 0, nil
	}
	if s.frames >= 0 && s.pos >= s.frames {
		return 0, io.EOF
	}

	n := len(dst) / s.channels
	if s.frames >= 0 {
		n = min(n, s.frames-s.pos)
	}
	for f := range n {
		for c := range s.channels {
			dst[f*s.channels+c] = s.waveform(s.pos+f, c)
		}
	}
	s.pos += n
	return n * s.channels, nil
}
