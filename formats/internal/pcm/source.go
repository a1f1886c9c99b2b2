// SPDX-License-Identifier: EPL-2.0

// Package pcm adapts go-audio integer decoders to audio.Source.
package pcm

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
)

var ErrBitDepth = errors.New("unsupported bit depth")

// Reader is the decoding half of the go-audio wav and aiff decoders.
type Reader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// Encoding describes how integers coming out of a Reader map to floats.
type Encoding struct {
	BitDepth int
	// Float marks 32-bit IEEE float samples carried as raw bits.
	Float bool
	// Unsigned8 marks 8-bit samples centered on 128 (WAV).
	Unsigned8 bool
}

// Scale returns the divisor for integer samples, or an error for depths
// that cannot be decoded.
func (e Encoding) Scale() (float32, error) {
	if e.Float {
		if e.BitDepth != 32 {
			return 0, fmt.Errorf("%w: float %d", ErrBitDepth, e.BitDepth)
		}
		return 1, nil
	}
	switch e.BitDepth {
	case 8, 16, 24, 32:
		return float32(math.Ldexp(1, e.BitDepth-1)), nil
	}
	return 0, fmt.Errorf("%w: %d", ErrBitDepth, e.BitDepth)
}

// Source streams a Reader as interleaved float32.
type Source struct {
	r        Reader
	rate     int
	channels int
	enc      Encoding
	scale    float32
	buf      *goaudio.IntBuffer
}

func NewSource(r Reader, rate, channels int, enc Encoding) (*Source, error) {
	scale, err := enc.Scale()
	if err != nil {
		return nil, err
	}
	return &Source{
		r:        r,
		rate:     rate,
		channels: channels,
		enc:      enc,
		scale:    scale,
		buf: &goaudio.IntBuffer{
			Data:   make([]int, 4096),
			Format: &goaudio.Format{NumChannels: channels, SampleRate: rate},
		},
	}, nil
}

func (s *Source) SampleRate() int { return s.rate }
func (s *Source) Channels() int   { return s.channels }
func (s *Source) BufSize() int    { return cap(s.buf.Data) }
func (s *Source) Close() error    { return nil }

func (s *Source) ReadSamples(dst []float32) (int, error) {
	want := len(dst) - len(dst)%s.channels
	if want == 0 {
		return 0, nil
	}
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.r.PCMBuffer(s.buf)
	if n == 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w", err)
		}
		return 0, io.EOF
	}
	n -= n % s.channels

	for i, v := range s.buf.Data[:n] {
		switch {
		case s.enc.Float:
			dst[i] = math.Float32frombits(uint32(int32(v)))
		case s.enc.Unsigned8:
			dst[i] = float32(v-128) / s.scale
		default:
			dst[i] = float32(v) / s.scale
		}
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w", err)
	}
	return n, nil
}
