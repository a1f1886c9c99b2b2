// SPDX-License-Identifier: EPL-2.0

package render

import (
	"math"
	"sync/atomic"

	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/utils"
)

// compressorLookahead is the fixed look-ahead delay in seconds.
const compressorLookahead = 0.006

// CompressorReading is the metering gain a compressor applied at the end of
// its most recent quantum.
type CompressorReading struct {
	NodeID graph.NodeID
	// Frame is the context frame following the metered quantum.
	Frame       uint64
	ReductionDB float32
}

// Compressor is a look-ahead dynamics compressor with a soft knee and
// makeup gain.
type Compressor struct {
	id  graph.NodeID
	out *Bus

	lines   [][]float32
	size    int
	write   int
	written int
	delay   float64 // look-ahead in frames

	detector float32
	gain     float32

	reduction atomic.Uint32 // float32 bits
	frame     atomic.Uint64
}

func newCompressor(id graph.NodeID, c graph.DynamicsCompressor, sampleRate float64, capacity int) *Compressor {
	delay := compressorLookahead * sampleRate
	size := int(math.Ceil(delay)) + 2
	capacity = max(capacity, int(c.ChannelCount))

	lines := make([][]float32, capacity)
	for ch := range lines {
		lines[ch] = make([]float32, size)
	}
	return &Compressor{
		id:    id,
		out:   NewBus(capacity),
		lines: lines,
		size:  size,
		delay: delay,
		gain:  1,
	}
}

func (c *Compressor) ID() graph.NodeID { return c.id }

// Reading returns the metering of the last rendered quantum. It is safe to
// call from any goroutine.
func (c *Compressor) Reading() CompressorReading {
	return CompressorReading{
		NodeID:      c.id,
		Frame:       c.frame.Load(),
		ReductionDB: math.Float32frombits(c.reduction.Load()),
	}
}

func clamp32(v, lo, hi float32) float32 { return min(max(v, lo), hi) }

// curve is identity below threshold, a quadratic knee in dB up to
// threshold+knee, and slope 1/ratio above.
func curve(x, threshold, knee, ratio float32) float32 {
	if x <= 0 {
		return 0
	}
	xdb := float32(utils.LinearToDecibels(float64(x)))
	if xdb < threshold {
		return x
	}
	if knee <= 0 || xdb > threshold+knee {
		return float32(utils.DecibelsToLinear(float64(threshold + (xdb-threshold)/ratio)))
	}
	d := xdb - threshold + knee/2
	return float32(utils.DecibelsToLinear(float64(xdb + (1/ratio-1)*d*d/(2*knee))))
}

// makeup is the 0.6 power of the gain that brings a full-scale input back
// to unity.
func makeup(threshold, knee, ratio float32) float32 {
	full := curve(1, threshold, knee, ratio)
	if full <= 0 {
		return 1
	}
	return float32(math.Pow(float64(1/full), 0.6))
}

func (c *Compressor) Process(ctx *Context, inputs []*Bus, params []ParamBlock) {
	in := inputs[0]
	channels := min(max(in.Channels(), 1), len(c.lines))

	threshold := clamp32(params[0].At(0), -100, 0)
	knee := clamp32(params[1].At(0), 0, 40)
	ratio := clamp32(params[2].At(0), 1, 20)
	attack := max(clamp32(params[3].At(0), 0, 1)*float32(ctx.SampleRate), 1)
	release := max(clamp32(params[4].At(0), 0, 1)*float32(ctx.SampleRate), 1)

	gainUp := makeup(threshold, knee, ratio)
	attackCoeff := 1 - math.Exp(-1/float64(attack))
	releaseCoeff := float32(1 - math.Exp(-1/float64(release)))

	// Until the look-ahead history fills, the output is mono silence.
	if float64(c.written) < c.delay {
		c.out.SetChannels(1)
	} else {
		c.out.SetChannels(channels)
	}

	detector, gain := c.detector, c.gain
	var metering float32
	for i := range Quantum {
		var peak float32
		for ch := range min(channels, in.Channels()) {
			peak = max(peak, float32(math.Abs(float64(in.Channel(ch)[i]))))
		}

		attenuation := float32(1)
		if peak >= 0.0001 {
			attenuation = curve(peak, threshold, knee, ratio) / peak
		}
		releasing := attenuation > gain

		detector += (attenuation - detector) * clamp32(attenuation, 0, 1)
		detector = min(detector, 1)

		r := detector / max(gain, 0.000001)
		var rate float32
		if r <= 1 {
			rate = float32(math.Pow(float64(max(r, 0)), attackCoeff))
		} else {
			rate = 1 + releaseCoeff/r
		}
		if releasing {
			gain = min(gain*rate, 1)
		} else {
			gain += (detector - gain) * rate
		}

		reduced := gain * gainUp
		metering = float32(utils.LinearToDecibels(float64(reduced)))

		pos := float64(c.write) - c.delay
		if pos < 0 {
			pos += float64(c.size)
		}
		i0 := int(pos)
		i1 := (i0 + 1) % c.size
		frac := float32(pos - float64(i0))

		for ch := range channels {
			var v float32
			if ch < in.Channels() {
				v = in.Channel(ch)[i]
			}
			c.lines[ch][c.write] = v
		}
		for ch := range c.out.Channels() {
			l := c.lines[ch]
			c.out.Channel(ch)[i] = (l[i0] + frac*(l[i1]-l[i0])) * reduced
		}

		c.write = (c.write + 1) % c.size
		if c.written < c.size {
			c.written++
		}
	}
	c.detector, c.gain = detector, gain

	if math.IsInf(float64(metering), -1) || math.IsNaN(float64(metering)) {
		metering = -1000
	}
	c.reduction.Store(math.Float32bits(metering))
	c.frame.Store(ctx.Frame + Quantum)
}

func (c *Compressor) Output(int) *Bus { return c.out }

func (c *Compressor) Apply(desc graph.NodeDescription) bool {
	x, ok := desc.(graph.DynamicsCompressor)
	return ok && int(x.ChannelCount) <= len(c.lines)
}
