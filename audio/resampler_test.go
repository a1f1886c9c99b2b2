// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ik5/audrender/internal/audiotest"
)

// readAll pulls from r until io.EOF, tolerating empty reads.
func readAll(t *testing.T, r Source, chunk int) []float32 {
	t.Helper()

	buf := make([]float32, chunk)
	var out []float32
	for range 100000 {
		n, err := r.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}
	t.Fatal("ReadSamples() never reached io.EOF")
	return nil
}

func TestResampler_Metadata(t *testing.T) {
	t.Parallel()

	rs := NewResampler(audiotest.Silence(44100, 2, 1000), 8000)

	if rs.SampleRate() != 8000 {
		t.Errorf("SampleRate() = %d, want 8000", rs.SampleRate())
	}
	if rs.Channels() != 2 {
		t.Errorf("Channels() = %d, want 2", rs.Channels())
	}
	if got, want := rs.NominalRatio(), 44100.0/8000.0; got != want {
		t.Errorf("NominalRatio() = %v, want %v", got, want)
	}
}

func TestResampler_SameRateIsExact(t *testing.T) {
	t.Parallel()

	src := audiotest.Ramp(8000, 1, 100, 100)
	got := readAll(t, NewResampler(src, 8000), 32)

	if len(got) != 100 {
		t.Fatalf("len = %d, want 100", len(got))
	}
	for i, v := range got {
		if want := float32(i) / 100; v != want {
			t.Fatalf("got[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestResampler_OutputLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		srcRate  int
		dstRate  int
		frames   int
		channels int
		want     int
	}{
		{"downsample 44.1k to 8k", 44100, 8000, 44100, 1, 8000},
		{"upsample 8k to 16k", 8000, 16000, 8000, 2, 16000},
		{"single frame", 48000, 48000, 1, 1, 1},
		{"empty", 48000, 44100, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := audiotest.Sine(tt.srcRate, tt.channels, tt.frames, 440)
			got := readAll(t, NewResampler(src, tt.dstRate), 512*tt.channels)
			frames := len(got) / tt.channels

			if math.Abs(float64(frames-tt.want)) > 2 {
				t.Errorf("frames = %d, want %d±2", frames, tt.want)
			}
			audiotest.RequireFinite(t, got)
		})
	}
}

func TestResampler_StarvationResumes(t *testing.T) {
	t.Parallel()

	src := audiotest.Ramp(8000, 1, 50, 50)
	src.StarveEvery = 3

	got := readAll(t, NewResampler(src, 8000), 8)

	want := make([]float32, 50)
	for i := range want {
		want[i] = float32(i) / 50
	}
	audiotest.RequireNear(t, got, want, 0)
}

func TestResampler_StarvedReadReturnsNil(t *testing.T) {
	t.Parallel()

	src := audiotest.Constant(8000, 1, 10, 0.5)
	src.StarveEvery = 1

	n, err := NewResampler(src, 8000).ReadSamples(make([]float32, 4))
	if n != 0 || err != nil {
		t.Errorf("ReadSamples() = (%d, %v), want (0, <nil>)", n, err)
	}
}

func TestResampler_SetRatio(t *testing.T) {
	t.Parallel()

	rs := NewResampler(audiotest.Ramp(8000, 1, 100, 100), 8000)
	if err := rs.SetRatio(2); err != nil {
		t.Fatalf("SetRatio() error = %v", err)
	}
	if rs.Ratio() != 2 {
		t.Errorf("Ratio() = %v, want 2", rs.Ratio())
	}

	got := readAll(t, rs, 16)
	if len(got) != 50 {
		t.Fatalf("len = %d, want 50", len(got))
	}
	for i, v := range got {
		if want := float32(2*i) / 100; v != want {
			t.Fatalf("got[%d] = %v, want %v", i, v, want)
		}
	}

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := rs.SetRatio(bad); !errors.Is(err, ErrInvalidRatio) {
			t.Errorf("SetRatio(%v) error = %v, want %v", bad, err, ErrInvalidRatio)
		}
	}
}

func TestResampler_Reset(t *testing.T) {
	t.Parallel()

	rs := NewResampler(audiotest.Ramp(8000, 1, 100, 100), 8000)
	buf := make([]float32, 10)
	if n, err := rs.ReadSamples(buf); n != 10 || err != nil {
		t.Fatalf("ReadSamples() = (%d, %v), want (10, <nil>)", n, err)
	}

	// Three frames of look-ahead were consumed past the last output.
	rs.Reset()
	if n, err := rs.ReadSamples(buf[:1]); n != 1 || err != nil {
		t.Fatalf("ReadSamples() = (%d, %v), want (1, <nil>)", n, err)
	}
	if want := float32(12) / 100; buf[0] != want {
		t.Errorf("first sample after Reset() = %v, want %v", buf[0], want)
	}
}

func TestResampler_InvalidDstSize(t *testing.T) {
	t.Parallel()

	rs := NewResampler(audiotest.Silence(8000, 2, 10), 8000)
	if _, err := rs.ReadSamples(make([]float32, 3)); !errors.Is(err, ErrInvalidDstSize) {
		t.Errorf("ReadSamples() error = %v, want %v", err, ErrInvalidDstSize)
	}
}

func TestResampler_Close(t *testing.T) {
	t.Parallel()

	src := audiotest.Silence(8000, 1, 10)
	if err := NewResampler(src, 16000).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !src.Closed() {
		t.Error("Close() did not close the source")
	}
}
