// SPDX-License-Identifier: EPL-2.0

package render

import (
	"math"

	"github.com/ik5/audrender/graph"
)

// BufferSource plays a shared buffer with playback rate, detune, an
// optional loop region and a start/stop/duration schedule.
type BufferSource struct {
	out  *Bus
	buf  *graph.SharedBuffer
	desc graph.AudioBufferSource

	started bool
	done    bool
	pos     float64 // read position in buffer frames
	played  uint64  // context frames since start
}

func newBufferSource(b graph.AudioBufferSource, buf *graph.SharedBuffer, capacity int) *BufferSource {
	return &BufferSource{out: NewBus(max(capacity, buf.ChannelCount())), buf: buf, desc: b}
}

// loopRegion returns the loop bounds in buffer frames.
func (s *BufferSource) loopRegion(length float64) (float64, float64) {
	sr := float64(s.buf.SampleRate)
	start, end := s.desc.LoopStart*sr, s.desc.LoopEnd*sr
	if !(end > 0 && end <= length) {
		end = length
	}
	if !(start >= 0 && start < end) {
		start = 0
	}
	return start, end
}

// wrap folds pos into [start, end). Playing forward, a position before
// start is kept so an offset ahead of the loop plays into it.
func wrap(pos, start, end float64, forward bool) float64 {
	if pos >= start && pos < end {
		return pos
	}
	if pos < start && forward {
		if pos >= 0 {
			return pos
		}
		return start
	}
	span := end - start
	pos = start + math.Mod(pos-start, span)
	if pos < start {
		pos += span
	}
	if !(pos >= start && pos < end) {
		// Inf, NaN or rounding onto end.
		pos = start
	}
	return pos
}

func (s *BufferSource) Process(ctx *Context, _ []*Bus, params []ParamBlock) {
	sched := schedule{s.desc.Start, s.desc.Stop}
	length := float64(s.buf.Length())
	if s.done || sched.idle(ctx.Frame) || length == 0 {
		s.out.SetChannels(0)
		return
	}

	// k-rate: one step for the whole quantum
	step := float64(params[0].At(0)) * math.Exp2(float64(params[1].At(0))/1200) *
		float64(s.buf.SampleRate) / ctx.SampleRate
	if math.IsNaN(step) || math.IsInf(step, 0) {
		step = 0
	}
	loopStart, loopEnd := s.loopRegion(length)
	channels := s.buf.ChannelCount()

	s.out.SetChannels(channels)
	s.out.Zero()

	for i := range Quantum {
		frame := ctx.Frame + uint64(i)
		if !sched.playing(frame) {
			if s.started {
				s.done = true
				return
			}
			continue
		}
		if !s.started {
			s.started = true
			s.pos = s.desc.Offset * float64(s.buf.SampleRate)
		}
		if s.desc.Duration.Valid && s.played >= s.desc.Duration.Frame {
			s.done = true
			return
		}

		if s.desc.Loop {
			s.pos = wrap(s.pos, loopStart, loopEnd, step >= 0)
		} else if !(s.pos >= 0 && s.pos < length) {
			s.done = true
			return
		}

		i0 := int(s.pos)
		frac := float32(s.pos - float64(i0))
		i1 := i0 + 1
		if s.desc.Loop && float64(i1) >= loopEnd {
			i1 = int(loopStart)
		}
		for c := range channels {
			data := s.buf.Data[c]
			v := data[i0]
			if i1 < len(data) {
				v += frac * (data[i1] - v)
			}
			s.out.Channel(c)[i] = v
		}

		s.pos += step
		s.played++
	}
}

func (s *BufferSource) Output(int) *Bus { return s.out }

func (s *BufferSource) Apply(desc graph.NodeDescription) bool {
	x, ok := desc.(graph.AudioBufferSource)
	if ok && x.BufferID == s.desc.BufferID {
		s.desc = x
		return true
	}
	return false
}
