// SPDX-License-Identifier: EPL-2.0

package graph

import "math"

// AutomationRate selects per-sample (a-rate) or per-quantum (k-rate)
// evaluation.
type AutomationRate uint8

const (
	ARate AutomationRate = 0
	KRate AutomationRate = 1
)

// ParamSpec describes one automatable parameter of a node.
type ParamSpec struct {
	Name    string
	Value   float32
	Default float32
	Min     float32
	Max     float32
	Rate    AutomationRate
}

type SegmentType uint8

const (
	SegmentConstant SegmentType = iota
	SegmentLinearRamp
	SegmentExponentialRamp
	SegmentTarget
	SegmentValueCurve
)

func (t SegmentType) Valid() bool { return t <= SegmentValueCurve }

// Segment is one automation event resolved to frame boundaries. Times are kept
// alongside frames because Target curves are evaluated in seconds.
type Segment struct {
	Type         SegmentType
	StartTime    float64
	EndTime      float64
	StartFrame   uint64
	EndFrame     uint64
	StartValue   float32
	EndValue     float32
	TimeConstant float32
	Target       float32
	Curve        []float32
}

// ParamAutomation is the automation timeline of one node parameter. Segments
// are ordered by StartFrame.
type ParamAutomation struct {
	Destination NodeID
	ParamIndex  uint32
	Initial     float32
	Default     float32
	Min         float32
	Max         float32
	Rate        AutomationRate
	Segments    []Segment
}

// ValueAt returns the intrinsic value at frame. sampleRate is used only for
// Target segments.
func (s *Segment) ValueAt(frame uint64, sampleRate float64) float32 {
	if frame >= s.EndFrame {
		return s.endValue(sampleRate)
	}

	span := float64(s.EndFrame - s.StartFrame)
	var t float64
	if frame > s.StartFrame && span > 0 {
		t = float64(frame-s.StartFrame) / span
	}

	switch s.Type {
	case SegmentLinearRamp:
		return s.StartValue + float32(t)*(s.EndValue-s.StartValue)
	case SegmentExponentialRamp:
		if s.StartValue == 0 || s.EndValue == 0 || (s.StartValue < 0) != (s.EndValue < 0) {
			return s.StartValue
		}
		ratio := float64(s.EndValue) / float64(s.StartValue)
		return float32(float64(s.StartValue) * math.Pow(ratio, t))
	case SegmentTarget:
		return s.targetAt(float64(frame)/sampleRate)
	case SegmentValueCurve:
		return curveAt(s.Curve, t, s.StartValue)
	}
	return s.StartValue
}

func (s *Segment) endValue(sampleRate float64) float32 {
	switch s.Type {
	case SegmentLinearRamp, SegmentExponentialRamp:
		return s.EndValue
	case SegmentTarget:
		return s.targetAt(float64(s.EndFrame) / sampleRate)
	case SegmentValueCurve:
		if len(s.Curve) > 0 {
			return s.Curve[len(s.Curve)-1]
		}
	}
	return s.StartValue
}

func (s *Segment) targetAt(seconds float64) float32 {
	if s.TimeConstant <= 0 {
		return s.Target
	}
	elapsed := max(seconds-s.StartTime, 0)
	decay := math.Exp(-elapsed / float64(s.TimeConstant))
	return s.Target + float32(float64(s.StartValue-s.Target)*decay)
}

func curveAt(curve []float32, t float64, fallback float32) float32 {
	switch len(curve) {
	case 0:
		return fallback
	case 1:
		return curve[0]
	}

	pos := t * float64(len(curve)-1)
	i := int(pos)
	if i >= len(curve)-1 {
		return curve[len(curve)-1]
	}
	frac := float32(pos - float64(i))
	return curve[i] + frac*(curve[i+1]-curve[i])
}

// Cursor walks an automation timeline with monotonically increasing frames.
// Moving backwards restarts the scan.
type Cursor struct {
	idx  int
	last uint64
}

// Value evaluates a at frame.
func (c *Cursor) Value(a *ParamAutomation, frame uint64, sampleRate float64) float32 {
	if frame < c.last {
		c.idx = 0
	}
	c.last = frame

	segs := a.Segments
	if len(segs) == 0 || frame < segs[0].StartFrame {
		return a.Initial
	}
	for c.idx+1 < len(segs) && segs[c.idx+1].StartFrame <= frame {
		c.idx++
	}
	return segs[c.idx].ValueAt(frame, sampleRate)
}

// Resolve applies the NaN-to-default and clamping rules to a computed value.
func Resolve(v, def, lo, hi float32) float32 {
	if v != v {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
