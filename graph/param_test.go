// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentValueAt(t *testing.T) {
	t.Parallel()

	const sr = 1000.0

	tests := []struct {
		name  string
		seg   Segment
		frame uint64
		want  float32
	}{
		{
			name:  "constant",
			seg:   Segment{Type: SegmentConstant, StartFrame: 0, EndFrame: 10, StartValue: 3},
			frame: 5,
			want:  3,
		},
		{
			name:  "linear midpoint",
			seg:   Segment{Type: SegmentLinearRamp, StartFrame: 0, EndFrame: 100, StartValue: 0, EndValue: 1},
			frame: 50,
			want:  0.5,
		},
		{
			name:  "linear after end holds",
			seg:   Segment{Type: SegmentLinearRamp, StartFrame: 0, EndFrame: 100, StartValue: 0, EndValue: 1},
			frame: 500,
			want:  1,
		},
		{
			name:  "exponential midpoint",
			seg:   Segment{Type: SegmentExponentialRamp, StartFrame: 0, EndFrame: 100, StartValue: 1, EndValue: 4},
			frame: 50,
			want:  2,
		},
		{
			name:  "exponential with sign change holds start",
			seg:   Segment{Type: SegmentExponentialRamp, StartFrame: 0, EndFrame: 100, StartValue: -1, EndValue: 4},
			frame: 50,
			want:  -1,
		},
		{
			name:  "target after one time constant",
			seg:   Segment{Type: SegmentTarget, StartFrame: 0, EndFrame: math.MaxUint64, StartValue: 1, Target: 0, TimeConstant: 0.1},
			frame: 100,
			want:  float32(math.Exp(-1)),
		},
		{
			name:  "value curve interpolates",
			seg:   Segment{Type: SegmentValueCurve, StartFrame: 0, EndFrame: 100, Curve: []float32{0, 1, 0}},
			frame: 25,
			want:  0.5,
		},
		{
			name:  "value curve end",
			seg:   Segment{Type: SegmentValueCurve, StartFrame: 0, EndFrame: 100, Curve: []float32{0, 1, 0.25}},
			frame: 100,
			want:  0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, tt.seg.ValueAt(tt.frame, sr), 1e-5)
		})
	}
}

func TestCursorWalksSegments(t *testing.T) {
	t.Parallel()

	a := &ParamAutomation{
		Initial: 7,
		Segments: []Segment{
			{Type: SegmentConstant, StartFrame: 10, EndFrame: 20, StartValue: 1},
			{Type: SegmentLinearRamp, StartFrame: 20, EndFrame: 30, StartValue: 0, EndValue: 10},
		},
	}

	var c Cursor
	assert.InDelta(t, 7, c.Value(a, 0, 48000), 0)
	assert.InDelta(t, 1, c.Value(a, 15, 48000), 0)
	assert.InDelta(t, 5, c.Value(a, 25, 48000), 1e-6)
	assert.InDelta(t, 10, c.Value(a, 40, 48000), 0)
	// Going back restarts the scan.
	assert.InDelta(t, 1, c.Value(a, 12, 48000), 0)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	nan := float32(math.NaN())
	assert.InDelta(t, 0.25, Resolve(nan, 0.25, 0, 1), 0)
	assert.InDelta(t, 1, Resolve(3, 0, 0, 1), 0)
	assert.InDelta(t, -1, Resolve(-3, 0, -1, 1), 0)
	assert.InDelta(t, 0.5, Resolve(0.5, 0, 0, 1), 0)
}
