// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ik5/audrender/utils"
)

// Resampler streams from src to a target sample rate using cubic
// interpolation. Works on interleaved samples and preserves channel count.
//
// The step between output frames can be steered at runtime with SetRatio,
// which lets a feedback loop track a producer running at a slightly different
// clock. A source that momentarily has no data (ReadSamples returning 0, nil)
// is not treated as the end of the stream: the resampler returns what it has
// and resumes where it stopped on the next call.
type Resampler struct {
	src      Source
	srcRate  float64
	dstRate  float64
	nominal  float64 // srcRate / dstRate
	ratio    float64 // source frames consumed per output frame
	channels int

	// Window of 4 frames for cubic interpolation:
	// frames[0] = t-1, frames[1] = t0, frames[2] = t+1, frames[3] = t+2
	frames   [4][]float32
	hasFrame [4]bool
	primed   bool

	// Fractional position between frames[1] and frames[2]
	pos float64

	srcBuf []float32
	eof    bool

	// One-pole low-pass state, used when downsampling
	filterState []float32
	useFilter   bool
	filterAlpha float32
	filterInit  bool
}

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()
	ratio := float64(src.SampleRate()) / float64(dstRate)

	useFilter := ratio > 1.0
	var filterAlpha float32
	if useFilter {
		filterAlpha = 0.5
	}

	r := &Resampler{
		src:         src,
		srcRate:     float64(src.SampleRate()),
		dstRate:     float64(dstRate),
		nominal:     ratio,
		ratio:       ratio,
		channels:    channels,
		srcBuf:      make([]float32, channels),
		useFilter:   useFilter,
		filterAlpha: filterAlpha,
		filterState: make([]float32, channels),
	}

	for i := range r.frames {
		r.frames[i] = make([]float32, channels)
	}

	return r
}

func (r *Resampler) SampleRate() int { return int(r.dstRate) }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) BufSize() int    { return r.src.BufSize() }

// NominalRatio is srcRate / dstRate.
func (r *Resampler) NominalRatio() float64 { return r.nominal }

// Ratio is the step currently in use.
func (r *Resampler) Ratio() float64 { return r.ratio }

// SetRatio changes the number of source frames consumed per output frame.
func (r *Resampler) SetRatio(ratio float64) error {
	if !(ratio > 0) || math.IsInf(ratio, 0) {
		return ErrInvalidRatio
	}
	r.ratio = ratio
	return nil
}

// Reset drops the interpolation window so the next read starts fresh from
// the source's current position. The steered ratio is kept.
func (r *Resampler) Reset() {
	for i := range r.frames {
		clear(r.frames[i])
		r.hasFrame[i] = false
	}
	clear(r.filterState)
	r.filterInit = false
	r.primed = false
	r.pos = 0
	r.eof = false
}

func (r *Resampler) Close() error {
	err := r.src.Close()
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// fetchNextFrame shifts the window by one frame. Once the source is
// exhausted the new slot is marked empty. errStarved leaves the window
// untouched.
func (r *Resampler) fetchNextFrame() error {
	var n int
	var err error
	if !r.eof {
		n, err = r.src.ReadSamples(r.srcBuf)
		switch {
		case errors.Is(err, io.EOF):
			r.eof = true
		case err != nil:
			return fmt.Errorf("%w", err)
		case n == 0:
			return errStarved
		}
	}

	copy(r.frames[0], r.frames[1])
	copy(r.frames[1], r.frames[2])
	copy(r.frames[2], r.frames[3])
	r.hasFrame[0] = r.hasFrame[1]
	r.hasFrame[1] = r.hasFrame[2]
	r.hasFrame[2] = r.hasFrame[3]

	if n < r.channels {
		r.hasFrame[3] = false
		return nil
	}

	copy(r.frames[3], r.srcBuf)
	r.hasFrame[3] = true

	if r.useFilter {
		if !r.filterInit {
			// Start from the first sample to avoid a warm-up transient
			copy(r.filterState, r.frames[3])
			r.filterInit = true
		}
		for c := range r.channels {
			r.frames[3][c] = r.filterAlpha*r.frames[3][c] + (1-r.filterAlpha)*r.filterState[c]
			r.filterState[c] = r.frames[3][c]
		}
	}

	return nil
}

// ReadSamples produces dst samples at the target rate.
// dst length should be a multiple of r.channels.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if !r.primed {
		// Load frames until frames[1] holds the first source frame
		for !r.hasFrame[1] {
			if r.eof && !r.hasFrame[2] && !r.hasFrame[3] {
				return 0, io.EOF
			}
			if err := r.fetchNextFrame(); err != nil {
				if errors.Is(err, errStarved) {
					return 0, nil
				}
				return 0, err
			}
		}
		r.primed = true
	}

	written := 0
	framesNeeded := len(dst) / r.channels

	for written < framesNeeded {
		for r.pos >= 1.0 {
			if err := r.fetchNextFrame(); err != nil {
				if errors.Is(err, errStarved) {
					return written * r.channels, nil
				}
				return written * r.channels, err
			}
			r.pos -= 1.0
		}

		if !r.hasFrame[1] {
			return written * r.channels, io.EOF
		}

		alpha := float32(r.pos)
		for c := range r.channels {
			y1 := r.frames[1][c]
			y0 := y1
			if r.hasFrame[0] {
				y0 = r.frames[0][c]
			}
			y2 := y1
			if r.hasFrame[2] {
				y2 = r.frames[2][c]
			}
			y3 := y2
			if r.hasFrame[3] {
				y3 = r.frames[3][c]
			}

			dst[written*r.channels+c] = utils.CubicInterpolate(y0, y1, y2, y3, alpha)
		}

		written++
		r.pos += r.ratio
	}

	return written * r.channels, nil
}
