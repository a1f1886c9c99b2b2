// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"encoding/binary"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/ik5/audrender/audio"
)

// go-mp3 always produces 16-bit little-endian stereo.
const (
	channels   = 2
	frameBytes = 2 * channels
)

type mp3Reader interface {
	Read([]byte) (int, error)
	SampleRate() int
}

type source struct {
	dec  mp3Reader
	rate int
	buf  []byte
	// carry holds a trailing partial frame from the previous read.
	carry int
}

func (s *source) SampleRate() int { return s.rate }
func (s *source) Channels() int   { return channels }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return cap(s.buf) / 2 }

func (s *source) ReadSamples(dst []float32) (int, error) {
	frames := len(dst) / channels
	if frames == 0 {
		return 0, nil
	}
	need := frames * frameBytes
	if cap(s.buf) < need {
		grown := make([]byte, need)
		copy(grown, s.buf[:s.carry])
		s.buf = grown
	}
	s.buf = s.buf[:need]

	n, err := s.dec.Read(s.buf[s.carry:])
	total := s.carry + n
	whole := total - total%frameBytes

	for i := 0; i < whole; i += 2 {
		dst[i/2] = float32(int16(binary.LittleEndian.Uint16(s.buf[i:]))) / 32768
	}
	s.carry = copy(s.buf, s.buf[whole:total])

	if err != nil {
		if whole > 0 && err == io.EOF {
			return whole / 2, nil
		}
		if err == io.EOF {
			return 0, io.EOF
		}
		return whole / 2, fmt.Errorf("%w", err)
	}
	return whole / 2, nil
}

type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	return &source{dec: dec, rate: dec.SampleRate(), buf: make([]byte, 8192)}, nil
}
