// SPDX-License-Identifier: EPL-2.0

package render

import (
	"math"

	"github.com/ik5/audrender/graph"
)

const twoPi = 2 * math.Pi

// Oscillator keeps a continuous phase across quanta. Samples whose
// instantaneous frequency reaches Nyquist are silent.
type Oscillator struct {
	out   *Bus
	wave  graph.Waveform
	sched schedule
	phase float64 // radians in [0, 2π)
}

func newOscillator(o graph.Oscillator) *Oscillator {
	return &Oscillator{out: NewBus(1), wave: o.Waveform, sched: schedule{o.Start, o.Stop}}
}

func (o *Oscillator) Process(ctx *Context, _ []*Bus, params []ParamBlock) {
	if o.sched.idle(ctx.Frame) {
		o.out.SetChannels(0)
		return
	}
	o.out.SetChannels(1)
	dst := o.out.Channel(0)
	nyquist := ctx.SampleRate / 2
	freq, detune := &params[0], &params[1]

	for i := range dst {
		if !o.sched.playing(ctx.Frame + uint64(i)) {
			dst[i] = 0
			continue
		}

		f := float64(freq.At(i))
		if d := detune.At(i); d != 0 {
			f *= math.Exp2(float64(d) / 1200)
		}
		if math.Abs(f) >= nyquist || math.IsNaN(f) {
			dst[i] = 0
		} else {
			dst[i] = waveAt(o.wave, o.phase)
			o.phase += twoPi * f / ctx.SampleRate
		}

		if o.phase >= twoPi || o.phase < 0 {
			o.phase = math.Mod(o.phase, twoPi)
			if o.phase < 0 {
				o.phase += twoPi
			}
		}
	}
}

func waveAt(w graph.Waveform, phase float64) float32 {
	switch w {
	case graph.WaveformSquare:
		if phase < math.Pi {
			return 1
		}
		return -1
	case graph.WaveformSawtooth:
		if phase < math.Pi {
			return float32(phase / math.Pi)
		}
		return float32(phase/math.Pi - 2)
	case graph.WaveformTriangle:
		x := phase / twoPi
		switch {
		case x < 0.25:
			return float32(4 * x)
		case x < 0.75:
			return float32(2 - 4*x)
		}
		return float32(4*x - 4)
	}
	return float32(math.Sin(phase))
}

func (o *Oscillator) Output(int) *Bus { return o.out }

func (o *Oscillator) Apply(desc graph.NodeDescription) bool {
	x, ok := desc.(graph.Oscillator)
	if ok {
		o.wave = x.Waveform
		o.sched = schedule{x.Start, x.Stop}
	}
	return ok
}
