// SPDX-License-Identifier: EPL-2.0

package audio

import "io"

// SliceSource serves interleaved samples from memory.
type SliceSource struct {
	rate     int
	channels int
	data     []float32
	pos      int
}

func NewSliceSource(rate, channels int, interleaved []float32) *SliceSource {
	return &SliceSource{rate: rate, channels: channels, data: interleaved}
}

// NewPlanarSource interleaves one slice per channel. All channels must
// have the same length.
func NewPlanarSource(rate int, planar [][]float32) (*SliceSource, error) {
	if len(planar) == 0 {
		return NewSliceSource(rate, 1, nil), nil
	}
	frames := len(planar[0])
	for _, ch := range planar[1:] {
		if len(ch) != frames {
			return nil, ErrChannelLayout
		}
	}

	channels := len(planar)
	data := make([]float32, frames*channels)
	for c, ch := range planar {
		for f, v := range ch {
			data[f*channels+c] = v
		}
	}
	return NewSliceSource(rate, channels, data), nil
}

func (s *SliceSource) SampleRate() int { return s.rate }
func (s *SliceSource) Channels() int   { return s.channels }
func (s *SliceSource) BufSize() int    { return 4096 }
func (s *SliceSource) Close() error    { return nil }

// Remaining is the number of unread samples.
func (s *SliceSource) Remaining() int { return len(s.data) - s.pos }

func (s *SliceSource) ReadSamples(dst []float32) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := len(dst) - len(dst)%s.channels
	n = copy(dst[:n], s.data[s.pos:])
	s.pos += n
	return n, nil
}
