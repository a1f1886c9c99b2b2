// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"

	"github.com/ik5/audrender/audio"
	"github.com/ik5/audrender/formats/internal/pcm"
)

const (
	formatPCM   = 1
	formatFloat = 3
)

// Decoder reads integer PCM (8, 16, 24 or 32 bit) and 32-bit IEEE float
// WAV files.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	rs, err := pcm.Seekable(r)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotWavFile, err)
		}
		return nil, ErrNotWavFile
	}

	enc := pcm.Encoding{BitDepth: int(dec.BitDepth)}
	switch dec.WavAudioFormat {
	case formatPCM:
		enc.Unsigned8 = enc.BitDepth == 8
	case formatFloat:
		enc.Float = true
	default:
		return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedWavLayout, dec.WavAudioFormat)
	}

	src, err := pcm.NewSource(dec, int(dec.SampleRate), int(dec.NumChans), enc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedWavLayout, err)
	}
	return src, nil
}
