// SPDX-License-Identifier: EPL-2.0

package render

import (
	"fmt"
	"math"

	"github.com/ik5/audrender/graph"
)

// Delay is a per-channel circular delay line read with linear
// interpolation. On a cycle its minimum delay is one quantum so the whole
// quantum can be emitted before its input is known.
type Delay struct {
	out       *Bus
	lines     [][]float32
	size      int
	write     int    // next write index
	written   uint64 // frames written so far
	channels  int    // last non-zero input channel count
	minFrames float64
	maxFrames float64
}

func newDelay(id graph.NodeID, d graph.Delay, sampleRate float64, capacity int, inCycle bool) (*Delay, error) {
	maxFrames := float64(d.MaxDelayTime) * sampleRate
	if !(maxFrames >= 0 && maxFrames <= graph.MaxBufferSamples) {
		return nil, &graph.ResourceError{ID: uint64(id), Reason: fmt.Sprintf("max delay %v s", d.MaxDelayTime)}
	}
	var minFrames float64
	if inCycle {
		minFrames = Quantum
		maxFrames = max(maxFrames, Quantum)
	}

	capacity = max(capacity, int(d.ChannelCount))
	if n := graph.DelayLineSamples(maxFrames, 1, capacity); n > graph.MaxBufferSamples {
		return nil, &graph.ResourceError{ID: uint64(id), Reason: fmt.Sprintf("delay line of %d samples too large", n)}
	}
	size := int(math.Ceil(maxFrames)) + 2

	backing := make([]float32, capacity*size)
	lines := make([][]float32, capacity)
	for c := range lines {
		lines[c] = backing[c*size : (c+1)*size : (c+1)*size]
	}

	return &Delay{
		out:       NewBus(capacity),
		lines:     lines,
		size:      size,
		channels:  1,
		minFrames: minFrames,
		maxFrames: maxFrames,
	}, nil
}

// frames converts a delay time in seconds to a clamped frame count.
func (d *Delay) frames(seconds float32, sampleRate float64) float64 {
	return min(max(float64(seconds)*sampleRate, d.minFrames), d.maxFrames)
}

// unwritten reports whether even the shortest delay requested this quantum
// reads only from before the first written frame.
func (d *Delay) unwritten(ctx *Context, delay *ParamBlock) bool {
	minDelay := d.frames(delay.Values[0], ctx.SampleRate)
	if !delay.Constant {
		for _, v := range delay.Values {
			minDelay = min(minDelay, d.frames(v, ctx.SampleRate))
		}
	}
	return float64(d.written+Quantum) <= minDelay
}

func (d *Delay) track(in *Bus) {
	if n := in.Channels(); n > 0 {
		d.channels = min(n, len(d.lines))
	}
}

func (d *Delay) store(in *Bus, i int) {
	for c := range d.channels {
		var v float32
		if c < in.Channels() {
			v = in.Channel(c)[i]
		}
		d.lines[c][d.write] = v
	}
}

func (d *Delay) advance() {
	d.write++
	if d.write == d.size {
		d.write = 0
	}
}

// read interpolates every active channel at delay frames behind base.
func (d *Delay) read(base int, delay float64, i int) {
	pos := float64(base) - delay
	if pos < 0 {
		pos += float64(d.size)
	}
	i0 := int(pos)
	frac := float32(pos - float64(i0))
	i1 := i0 + 1
	if i1 == d.size {
		i1 = 0
	}
	for c := range d.channels {
		l := d.lines[c]
		d.out.Channel(c)[i] = l[i0] + frac*(l[i1]-l[i0])
	}
}

func (d *Delay) silence() {
	d.out.SetChannels(1)
	d.out.Zero()
}

func (d *Delay) Process(ctx *Context, inputs []*Bus, params []ParamBlock) {
	in := inputs[0]
	d.track(in)

	if d.unwritten(ctx, &params[0]) {
		for i := range Quantum {
			d.store(in, i)
			d.advance()
		}
		d.written += Quantum
		d.silence()
		return
	}

	d.out.SetChannels(d.channels)
	for i := range Quantum {
		d.store(in, i)
		d.read(d.write, d.frames(params[0].At(i), ctx.SampleRate), i)
		d.advance()
	}
	d.written += Quantum
}

// Emit renders the quantum from history alone. Only valid with a minimum
// delay of one quantum.
func (d *Delay) Emit(ctx *Context, params []ParamBlock) {
	if d.unwritten(ctx, &params[0]) {
		d.silence()
		return
	}

	d.out.SetChannels(d.channels)
	for i := range Quantum {
		base := d.write + i
		if base >= d.size {
			base -= d.size
		}
		d.read(base, d.frames(params[0].At(i), ctx.SampleRate), i)
	}
}

func (d *Delay) Absorb(_ *Context, inputs []*Bus) {
	in := inputs[0]
	d.track(in)
	for i := range Quantum {
		d.store(in, i)
		d.advance()
	}
	d.written += Quantum
}

func (d *Delay) Output(int) *Bus { return d.out }

func (d *Delay) Apply(desc graph.NodeDescription) bool {
	_, ok := desc.(graph.Delay)
	return ok
}
