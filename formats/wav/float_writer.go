// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// FloatWriter streams interleaved float32 into a 32-bit IEEE float WAV.
// The header sizes are patched on Close, so the target must seek.
type FloatWriter struct {
	mu     sync.Mutex
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	file   *os.File
	frames int
	closed bool
}

func NewFloatWriter(ws io.WriteSeeker, sampleRate, channels int) (*FloatWriter, error) {
	if sampleRate <= 0 || channels < 1 {
		return nil, fmt.Errorf("%w: %d Hz, %d channels", ErrUnsupportedWavLayout, sampleRate, channels)
	}
	return &FloatWriter{
		enc: wav.NewEncoder(ws, sampleRate, 32, channels, formatFloat),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: 32,
		},
	}, nil
}

// Create opens path for writing and owns the file; Close closes it.
func Create(path string, sampleRate, channels int) (*FloatWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	w, err := NewFloatWriter(f, sampleRate, channels)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// WriteSamples appends whole frames of interleaved samples.
func (w *FloatWriter) WriteSamples(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	channels := w.buf.Format.NumChannels
	if len(samples)%channels != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", ErrUnsupportedWavLayout, len(samples), channels)
	}
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		w.buf.Data[i] = int(int32(math.Float32bits(s)))
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("%w", err)
	}
	w.frames += len(samples) / channels
	return nil
}

// Frames reports how many frames were written so far.
func (w *FloatWriter) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

func (w *FloatWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var err error
	if w.frames == 0 {
		// The encoder only emits headers alongside the first buffer.
		w.buf.Data = w.buf.Data[:0]
		err = w.enc.Write(w.buf)
	}
	if err == nil {
		err = w.enc.Close()
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}
