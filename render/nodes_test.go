// SPDX-License-Identifier: EPL-2.0

package render

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/internal/metrics"
)

type fakeProvider struct {
	mu       sync.Mutex
	rate     int
	channels int
	data     []float32
	gen      uint64
}

func (p *fakeProvider) SampleRate() int { return p.rate }
func (p *fakeProvider) Channels() int   { return p.channels }

func (p *fakeProvider) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

func (p *fakeProvider) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.data) / p.channels
}

func (p *fakeProvider) Read(dst []float32) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(dst, p.data)
	p.data = p.data[n:]
	return n
}

// jump replaces the queue contents as a producer seek would.
func (p *fakeProvider) jump(v float32, frames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = make([]float32, frames*p.channels)
	for i := range p.data {
		p.data[i] = v
	}
	p.gen++
}

func mediaGraph(t *testing.T, p *fakeProvider, m *metrics.Metrics) *Graph {
	t.Helper()

	reg := graph.NewRegistry()
	reg.AddMediaProvider(7, p)
	d := graph.NewDescription(1, 2)
	d.Nodes[2] = graph.MediaElementSource{ProviderID: 7, ChannelCount: uint32(p.channels)}
	d.Connections = []graph.Connection{{Source: 2, Destination: 1}}
	return build(t, d, reg, Options{Metrics: m})
}

func TestSteer(t *testing.T) {
	t.Parallel()

	o := MediaOptions{ControllerGain: 0.05, MaxRatioDeviation: 0.02, TargetFillFrames: 1000}

	assert.Equal(t, 1.0, steer(1, 1000, o))
	assert.Greater(t, steer(1, 1200, o), 1.0)
	assert.Less(t, steer(1, 800, o), 1.0)
	assert.InDelta(t, 1.02, steer(1, 1_000_000, o), 1e-12)
	assert.InDelta(t, 0.98, steer(1, 0, o), 1e-12)
	assert.InDelta(t, 0.5*1.02, steer(0.5, 1_000_000, o), 1e-12)

	// Closer to target never steers further from nominal.
	prev := math.Inf(1)
	for fill := 2000; fill >= 1000; fill -= 100 {
		dev := math.Abs(steer(1, fill, o) - 1)
		require.LessOrEqual(t, dev, prev)
		prev = dev
	}
}

func TestMediaSource(t *testing.T) {
	t.Parallel()

	t.Run("plays queued audio", func(t *testing.T) {
		t.Parallel()

		p := &fakeProvider{rate: testRate, channels: 2}
		p.jump(0.5, 4096)
		g := mediaGraph(t, p, nil)

		out := g.Render(0)
		each(t, out.Channel(0), 0.5)
		each(t, out.Channel(1), 0.5)
	})

	t.Run("underrun is silent and counted", func(t *testing.T) {
		t.Parallel()

		m := metrics.New(prometheus.NewRegistry(), "test")
		p := &fakeProvider{rate: testRate, channels: 1}
		g := mediaGraph(t, p, m)

		for q := range uint64(3) {
			assert.True(t, g.Render(q*Quantum).IsSilent())
		}
		assert.Equal(t, 3.0, testutil.ToFloat64(m.Underruns.WithLabelValues(metrics.UnderrunMedia)))
	})

	t.Run("generation bump drops stale frames", func(t *testing.T) {
		t.Parallel()

		p := &fakeProvider{rate: testRate, channels: 1}
		p.jump(0.5, 2*Quantum)
		g := mediaGraph(t, p, nil)
		each(t, left(g, 0), 0.5)

		p.jump(-0.5, 4*Quantum)
		got := left(g, Quantum)
		assert.InDelta(t, -0.5, got[0], 1e-6)
	})

	t.Run("provider without channels is refused", func(t *testing.T) {
		t.Parallel()

		reg := graph.NewRegistry()
		reg.AddMediaProvider(7, &fakeProvider{rate: testRate})
		d := graph.NewDescription(1, 2)
		d.Nodes[2] = graph.MediaStreamSource{ProviderID: 7}
		d.Connections = []graph.Connection{{Source: 2, Destination: 1}}
		res, err := graph.NewBuildResult(d, testRate, reg)
		require.NoError(t, err)

		_, err = Build(res, Options{})
		require.ErrorIs(t, err, graph.ErrResource)
	})

	t.Run("ratio stays bounded", func(t *testing.T) {
		t.Parallel()

		p := &fakeProvider{rate: 44100, channels: 1}
		p.jump(0, 100*Quantum)
		g := mediaGraph(t, p, nil)
		src := g.byID[2].node.(*MediaSource)

		nominal := 44100.0 / testRate
		for q := range uint64(20) {
			g.Render(q * Quantum)
			r := src.Ratio()
			require.GreaterOrEqual(t, r, nominal*0.98-1e-12)
			require.LessOrEqual(t, r, nominal*1.02+1e-12)
		}
	})
}

func TestAnalyser(t *testing.T) {
	t.Parallel()

	d := graph.NewDescription(1, 1)
	d.Nodes[2] = graph.Oscillator{Frequency: 3000, Start: graph.At(0)}
	d.Nodes[3] = graph.Analyser{FFTSize: 1024, MinDecibels: -100, MaxDecibels: -30}
	d.Connections = []graph.Connection{{Source: 2, Destination: 3}, {Source: 3, Destination: 1}}

	g := build(t, d, nil, Options{})
	a, ok := g.Analyser(3)
	require.True(t, ok)

	for q := range uint64(8) {
		g.Render(q * Quantum)
		require.Equal(t, g.byID[2].node.Output(0).Channel(0), a.Output(0).Channel(0))
	}

	snap := a.Snapshot()
	assert.EqualValues(t, 3, snap.NodeID)
	assert.EqualValues(t, 8*Quantum, snap.Frame)
	require.Len(t, snap.Time, 1024)
	require.Len(t, snap.Frequency, 512)

	peak := 0
	for k, v := range snap.Frequency {
		if v > snap.Frequency[peak] {
			peak = k
		}
	}
	// 3000 Hz at 48 kHz over 1024 points sits on bin 64.
	assert.InDelta(t, 64, peak, 1)

	bytes := a.ByteFrequency(snap)
	assert.Len(t, bytes, 512)
	assert.Equal(t, byte(255), bytes[peak])
}

type recordingSink struct {
	mu      sync.Mutex
	samples []float32
	fail    error
	closed  bool
}

func (s *recordingSink) WriteSamples(p []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.samples = append(s.samples, p...)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func sinkGraph(t *testing.T, sink *recordingSink) (*Graph, *DebugSink) {
	t.Helper()

	d := graph.NewDescription(1, 2)
	d.Nodes[2] = constant(0.25)
	d.Nodes[3] = graph.DebugSink{ChannelCount: 2, Mirror: true, Label: "tap"}
	d.Connections = []graph.Connection{{Source: 2, Destination: 3}, {Source: 3, Destination: 1}}

	factory := func(id graph.NodeID, label string, rate, channels int) (MirrorSink, error) {
		assert.EqualValues(t, 3, id)
		assert.Equal(t, "tap", label)
		assert.Equal(t, testRate, rate)
		assert.Equal(t, 2, channels)
		return sink, nil
	}
	g := build(t, d, nil, Options{Mirrors: factory})
	return g, g.byID[3].node.(*DebugSink)
}

func TestDebugSink(t *testing.T) {
	t.Parallel()

	t.Run("mirrors interleaved pcm", func(t *testing.T) {
		t.Parallel()

		sink := &recordingSink{}
		g, s := sinkGraph(t, sink)
		for q := range uint64(4) {
			each(t, left(g, q*Quantum), 0.25)
		}
		require.NoError(t, s.Close())

		assert.True(t, sink.closed)
		require.Len(t, sink.samples, 4*Quantum*2)
		for i := 0; i < len(sink.samples); i += 2 {
			require.Equal(t, float32(0.25), sink.samples[i])
			require.Zero(t, sink.samples[i+1])
		}
	})

	t.Run("write failure only disables the mirror", func(t *testing.T) {
		t.Parallel()

		errDisk := errors.New("disk full")
		sink := &recordingSink{fail: errDisk}
		g, s := sinkGraph(t, sink)

		assert.True(t, s.Mirroring())
		each(t, left(g, 0), 0.25)
		assert.Eventually(t, func() bool { return !s.Mirroring() }, time.Second, time.Millisecond)

		for q := uint64(1); q < 4; q++ {
			each(t, left(g, q*Quantum), 0.25)
		}
		require.ErrorIs(t, s.Close(), errDisk)
	})

	t.Run("factory failure leaves a plain passthrough", func(t *testing.T) {
		t.Parallel()

		d := graph.NewDescription(1, 1)
		d.Nodes[2] = constant(0.5)
		d.Nodes[3] = graph.DebugSink{ChannelCount: 1, Mirror: true}
		d.Connections = []graph.Connection{{Source: 2, Destination: 3}, {Source: 3, Destination: 1}}

		g := build(t, d, nil, Options{Mirrors: func(graph.NodeID, string, int, int) (MirrorSink, error) {
			return nil, errors.New("no space")
		}})
		each(t, left(g, 0), 0.5)
		assert.False(t, g.byID[3].node.(*DebugSink).Mirroring())
	})
}

type doublingHost struct{}

func (doublingHost) Process(name string, _ graph.NodeID, _ *Context, inputs, outputs []*Bus, _ []ParamBlock) bool {
	if name != "double" {
		return false
	}
	in, out := inputs[0], outputs[0]
	out.SetChannels(in.Channels())
	for c := range in.Channels() {
		for i, v := range in.Channel(c) {
			out.Channel(c)[i] = 2 * v
		}
	}
	return true
}

func TestWorklet(t *testing.T) {
	t.Parallel()

	desc := func(name string) *graph.Description {
		d := graph.NewDescription(1, 1)
		d.Nodes[2] = constant(0.25)
		d.Nodes[3] = graph.AudioWorklet{ProcessorName: name, Inputs: 1, Outputs: 1, ChannelCount: 1}
		d.Connections = []graph.Connection{{Source: 2, Destination: 3}, {Source: 3, Destination: 1}}
		return d
	}

	each(t, left(build(t, desc("double"), nil, Options{Worklets: doublingHost{}}), 0), 0.5)
	assert.True(t, build(t, desc("unknown"), nil, Options{Worklets: doublingHost{}}).Render(0).IsSilent())
	assert.True(t, build(t, desc("double"), nil, Options{}).Render(0).IsSilent())
}
