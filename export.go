// SPDX-License-Identifier: EPL-2.0

package audrender

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/audrender/audio"
	"github.com/ik5/audrender/formats/wav"
	"github.com/ik5/audrender/offline"
	"github.com/ik5/audrender/utils"
)

var (
	ErrTargetRate = errors.New("target sample rate must be positive")
	ErrNoResult   = errors.New("no render result")
)

const exportBufSize = 4096

// ExportMono16 converts an offline render to 16-bit mono PCM at targetRate.
//
// The pipeline is resample -> mono mix -> int16: the resampler low-passes
// when downsampling and interpolates with a cubic spline, the mixer averages
// channels, and samples are clamped to [-1, 1] before scaling.
func ExportMono16(res *offline.Result, targetRate int) ([]int16, error) {
	if res == nil {
		return nil, ErrNoResult
	}
	if res.Frames == 0 {
		return []int16{}, nil
	}
	src := audio.NewSliceSource(res.SampleRate, res.Channels, res.Samples)
	return Mono16(src, targetRate)
}

// Mono16 drains any source through the same pipeline as ExportMono16.
func Mono16(src audio.Source, targetRate int) ([]int16, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrTargetRate, targetRate)
	}

	mono := audio.NewMonoMixer(audio.NewResampler(src, targetRate))
	samples, err := audio.Drain(mono, exportBufSize)
	if err != nil {
		return nil, fmt.Errorf("exporting: %w", err)
	}

	pcm := make([]int16, len(samples))
	utils.Float32sToInt16(pcm, samples)
	return pcm, nil
}

// WriteMonoWAV exports res with ExportMono16 and writes it as a 16-bit
// mono WAV file.
func WriteMonoWAV(w io.Writer, res *offline.Result, targetRate int) error {
	pcm, err := ExportMono16(res, targetRate)
	if err != nil {
		return err
	}
	return wav.WriteWAV16(w, targetRate, 1, pcm)
}
