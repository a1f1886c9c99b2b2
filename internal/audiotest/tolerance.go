// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"math"
	"testing"
)

// RequireNear fails t if any element pair differs by more than eps.
func RequireNear(t testing.TB, got, want []float32, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		if d := math.Abs(float64(got[i] - want[i])); d > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], d, eps)
		}
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t testing.TB, data []float32) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// Peak returns the largest absolute sample.
func Peak(data []float32) float32 {
	var p float32
	for _, v := range data {
		p = max(p, float32(math.Abs(float64(v))))
	}
	return p
}

// RMS of data, 0 for an empty slice.
func RMS(data []float32) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum float64
	for _, v := range data {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(data)))
}

// Channel extracts channel c from interleaved data.
func Channel(data []float32, channels, c int) []float32 {
	out := make([]float32, 0, len(data)/channels)
	for i := c; i < len(data); i += channels {
		out = append(out, data[i])
	}
	return out
}
