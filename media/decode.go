// SPDX-License-Identifier: EPL-2.0

package media

import (
	"fmt"
	"io"

	"github.com/ik5/audrender/audio"
	"github.com/ik5/audrender/graph"
)

// DecodeBuffer decodes r with the decoder registered for format and returns
// the samples as a planar buffer at the file's own rate.
func DecodeBuffer(reg *audio.Registry, format string, r io.Reader) (*graph.SharedBuffer, error) {
	dec, ok := reg.Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	src, err := dec.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}
	defer src.Close()

	data, err := audio.Drain(src, 0)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}

	channels := src.Channels()
	frames := len(data) / channels
	if frames == 0 {
		return nil, ErrEmptyMedia
	}

	buf := graph.NewSharedBuffer(float32(src.SampleRate()), channels, frames)
	for f := range frames {
		for c, ch := range buf.Data {
			ch[f] = data[f*channels+c]
		}
	}
	log.Debugf("Decoded %s buffer: %d frames, %d channels at %d Hz", format, frames, channels, src.SampleRate())
	return buf, nil
}
