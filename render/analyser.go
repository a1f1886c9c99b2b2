// SPDX-License-Identifier: EPL-2.0

package render

import (
	"math"
	"sync"
	"sync/atomic"

	algofft "github.com/cwbudde/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/utils"
)

// AnalyserSnapshot is a copy of an analyser's state.
type AnalyserSnapshot struct {
	NodeID graph.NodeID
	// Frame is the context frame following the last captured sample.
	Frame   uint64
	FFTSize int
	// Time holds the last FFTSize down-mixed samples, oldest first.
	Time []float32
	// Frequency holds FFTSize/2 smoothed magnitudes in dB.
	Frequency []float32
}

// Analyser passes its input through and keeps the most recent FFTSize
// samples for snapshots. The render side never waits: a quantum that
// arrives while a snapshot is being taken is not captured.
type Analyser struct {
	id  graph.NodeID
	out *Bus

	mtx    sync.Mutex
	size   int
	ring   []float64
	write  int
	frame  uint64

	// float64 bits, updated by Apply on the render side
	minDB  atomic.Uint64
	maxDB  atomic.Uint64
	smooth atomic.Uint64

	plan     *algofft.Plan[complex128]
	window   []float64
	windowed []float64
	in       []complex128
	spectrum []complex128
	re, im   []float64
	mag      []float64
	smoothed []float64
}

func newAnalyser(id graph.NodeID, a graph.Analyser, capacity int) (*Analyser, error) {
	n := int(a.FFTSize)
	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, err
	}

	bins := n / 2
	an := &Analyser{
		id:       id,
		out:      NewBus(capacity),
		size:     n,
		ring:     make([]float64, n),
		plan:     plan,
		window:   blackman(n),
		windowed: make([]float64, n),
		in:       make([]complex128, n),
		spectrum: make([]complex128, n),
		re:       make([]float64, bins),
		im:       make([]float64, bins),
		mag:      make([]float64, bins),
		smoothed: make([]float64, bins),
	}
	an.configure(a)
	return an, nil
}

// blackman returns the classic Blackman window used by Web Audio analysers.
func blackman(n int) []float64 {
	const a0, a1, a2 = 0.42, 0.5, 0.08
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x)
	}
	return w
}

func (a *Analyser) configure(d graph.Analyser) {
	a.minDB.Store(math.Float64bits(float64(d.MinDecibels)))
	a.maxDB.Store(math.Float64bits(float64(d.MaxDecibels)))
	a.smooth.Store(math.Float64bits(min(max(float64(d.Smoothing), 0), 1)))
}

func (a *Analyser) ID() graph.NodeID { return a.id }

func (a *Analyser) Process(ctx *Context, inputs []*Bus, _ []ParamBlock) {
	in := inputs[0]
	a.out.CopyFrom(in)

	if !a.mtx.TryLock() {
		return
	}
	for i := range Quantum {
		a.ring[a.write] = float64(in.MonoAt(i))
		a.write++
		if a.write == a.size {
			a.write = 0
		}
	}
	a.frame = ctx.Frame + Quantum
	a.mtx.Unlock()
}

// Snapshot copies the time-domain window and computes smoothed frequency
// data from it.
func (a *Analyser) Snapshot() AnalyserSnapshot {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	snap := AnalyserSnapshot{
		NodeID:    a.id,
		Frame:     a.frame,
		FFTSize:   a.size,
		Time:      make([]float32, a.size),
		Frequency: make([]float32, a.size/2),
	}
	for i := range a.size {
		v := a.ring[(a.write+i)%a.size]
		snap.Time[i] = float32(v)
		a.windowed[i] = v
	}

	vecmath.MulBlockInPlace(a.windowed, a.window)
	for i, v := range a.windowed {
		a.in[i] = complex(v, 0)
	}
	if err := a.plan.Forward(a.spectrum, a.in); err != nil {
		log.Errorf("analyser %d: fft: %v", a.id, err)
		return snap
	}
	for k := range a.re {
		a.re[k] = real(a.spectrum[k])
		a.im[k] = imag(a.spectrum[k])
	}
	vecmath.Magnitude(a.mag, a.re, a.im)
	vecmath.ScaleBlockInPlace(a.mag, 1/float64(a.size))

	smooth := math.Float64frombits(a.smooth.Load())
	for k, m := range a.mag {
		a.smoothed[k] = smooth*a.smoothed[k] + (1-smooth)*m
		snap.Frequency[k] = float32(utils.LinearToDecibels(a.smoothed[k]))
	}
	return snap
}

// ByteFrequency maps a snapshot's dB values onto 0..255 using the
// analyser's decibel range.
func (a *Analyser) ByteFrequency(s AnalyserSnapshot) []byte {
	out := make([]byte, len(s.Frequency))
	lo := math.Float64frombits(a.minDB.Load())
	span := math.Float64frombits(a.maxDB.Load()) - lo
	if span <= 0 {
		return out
	}
	for k, db := range s.Frequency {
		v := 255 * (float64(db) - lo) / span
		out[k] = byte(min(max(v, 0), 255))
	}
	return out
}

func (a *Analyser) Output(int) *Bus { return a.out }

func (a *Analyser) Apply(desc graph.NodeDescription) bool {
	x, ok := desc.(graph.Analyser)
	if !ok || int(x.FFTSize) != a.size {
		return false
	}
	a.configure(x)
	return true
}
