// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"
)

// maxIdleReads bounds how many consecutive empty reads Drain tolerates.
const maxIdleReads = 64

// Drain reads src to the end and returns every interleaved sample. The
// source is not closed.
func Drain(src Source, bufSize int) ([]float32, error) {
	if bufSize <= 0 {
		bufSize = src.BufSize()
	}
	bufSize -= bufSize % src.Channels()
	if bufSize <= 0 {
		bufSize = src.Channels()
	}

	buf := make([]float32, bufSize)
	var out []float32
	idle := 0
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		switch {
		case errors.Is(err, io.EOF):
			return out, nil
		case err != nil:
			return out, fmt.Errorf("%w", err)
		case n == 0:
			idle++
			if idle >= maxIdleReads {
				return out, io.ErrNoProgress
			}
		default:
			idle = 0
		}
	}
}
