// SPDX-License-Identifier: EPL-2.0

package render

import "github.com/ik5/audrender/graph"

// schedule is a start/stop window in context frames. An unset start never
// plays.
type schedule struct {
	start graph.OptionalFrame
	stop  graph.OptionalFrame
}

func (s schedule) playing(f uint64) bool {
	return s.start.Valid && f >= s.start.Frame && !(s.stop.Valid && f >= s.stop.Frame)
}

// idle reports whether no frame of the quantum starting at f plays.
func (s schedule) idle(f uint64) bool {
	return !s.start.Valid || f+Quantum <= s.start.Frame || (s.stop.Valid && f >= s.stop.Frame)
}

// Destination mixes its input to the context channel count.
type Destination struct {
	out      *Bus
	channels int
}

func newDestination(d graph.Destination, capacity int) *Destination {
	return &Destination{out: NewBus(capacity), channels: int(d.ChannelCount)}
}

func (d *Destination) Process(_ *Context, inputs []*Bus, _ []ParamBlock) {
	d.out.SetChannels(d.channels)
	d.out.Zero()
	d.out.SumFrom(inputs[0])
}

func (d *Destination) Output(int) *Bus { return d.out }

func (d *Destination) Apply(desc graph.NodeDescription) bool {
	x, ok := desc.(graph.Destination)
	return ok && int(x.ChannelCount) == d.channels
}

type Gain struct {
	out *Bus
}

func newGain(capacity int) *Gain { return &Gain{out: NewBus(capacity)} }

func (g *Gain) Process(_ *Context, inputs []*Bus, params []ParamBlock) {
	in := inputs[0]
	g.out.SetChannels(in.Channels())
	gain := &params[0]
	for c := range in.Channels() {
		src, dst := in.Channel(c), g.out.Channel(c)
		if gain.Constant {
			k := gain.Values[0]
			for i, v := range src {
				dst[i] = v * k
			}
			continue
		}
		for i, v := range src {
			dst[i] = v * gain.Values[i]
		}
	}
}

func (g *Gain) Output(int) *Bus { return g.out }

func (g *Gain) Apply(desc graph.NodeDescription) bool {
	_, ok := desc.(graph.Gain)
	return ok
}

// ConstantSource emits its offset parameter while scheduled.
type ConstantSource struct {
	out   *Bus
	sched schedule
}

func newConstantSource(c graph.ConstantSource) *ConstantSource {
	return &ConstantSource{out: NewBus(1), sched: schedule{c.Start, c.Stop}}
}

func (s *ConstantSource) Process(ctx *Context, _ []*Bus, params []ParamBlock) {
	if s.sched.idle(ctx.Frame) {
		s.out.SetChannels(0)
		return
	}
	s.out.SetChannels(1)
	dst := s.out.Channel(0)
	for i := range dst {
		if s.sched.playing(ctx.Frame + uint64(i)) {
			dst[i] = params[0].At(i)
		} else {
			dst[i] = 0
		}
	}
}

func (s *ConstantSource) Output(int) *Bus { return s.out }

func (s *ConstantSource) Apply(desc graph.NodeDescription) bool {
	x, ok := desc.(graph.ConstantSource)
	if ok {
		s.sched = schedule{x.Start, x.Stop}
	}
	return ok
}
