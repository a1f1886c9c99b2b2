// SPDX-License-Identifier: EPL-2.0

package render

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ik5/audrender/audio"
	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/internal/logging"
	"github.com/ik5/audrender/internal/metrics"
)

// providerSource adapts a media provider to audio.Source. It never ends:
// an empty queue reads as (0, nil).
type providerSource struct {
	p graph.MediaProvider
}

func (s providerSource) SampleRate() int { return s.p.SampleRate() }
func (s providerSource) Channels() int   { return s.p.Channels() }
func (s providerSource) BufSize() int    { return Quantum * s.p.Channels() }
func (s providerSource) Close() error    { return nil }

func (s providerSource) ReadSamples(dst []float32) (int, error) {
	return s.p.Read(dst), nil
}

// steer returns the resampling ratio for the given queue fill: nominal at
// the target fill, faster when the queue runs full, slower when it runs
// dry, never further than MaxRatioDeviation from nominal.
func steer(nominal float64, fill int, o MediaOptions) float64 {
	target := float64(max(o.TargetFillFrames, 1))
	r := nominal * (1 + o.ControllerGain*(float64(fill)-target)/target)
	return min(max(r, nominal*(1-o.MaxRatioDeviation)), nominal*(1+o.MaxRatioDeviation))
}

// MediaSource pulls from a media element or stream queue and converts the
// producer rate to the context rate.
type MediaSource struct {
	id       graph.NodeID
	out      *Bus
	provider graph.MediaProvider
	rs       *audio.Resampler
	gen      uint64
	channels int
	scratch  []float32
	opts     MediaOptions

	throttle  *logging.Throttle
	underruns prometheus.Counter
}

func newMediaSource(id graph.NodeID, p graph.MediaProvider, sampleRate float64, capacity int, opts MediaOptions, m *metrics.Metrics) *MediaSource {
	// graph.Registry refuses providers without channels.
	channels := p.Channels()
	return &MediaSource{
		id:        id,
		out:       NewBus(max(capacity, channels)),
		provider:  p,
		rs:        audio.NewResampler(providerSource{p}, int(sampleRate)),
		gen:       p.Generation(),
		channels:  channels,
		scratch:   make([]float32, Quantum*channels),
		opts:      opts,
		throttle:  logging.NewThrottle(opts.UnderrunLogInterval),
		underruns: m.Underruns.WithLabelValues(metrics.UnderrunMedia),
	}
}

// Ratio is the resampling step currently applied.
func (m *MediaSource) Ratio() float64 { return m.rs.Ratio() }

func (m *MediaSource) Process(_ *Context, _ []*Bus, _ []ParamBlock) {
	if gen := m.provider.Generation(); gen != m.gen {
		m.gen = gen
		m.rs.Reset()
	}
	_ = m.rs.SetRatio(steer(m.rs.NominalRatio(), m.provider.Buffered(), m.opts))

	n, _ := m.rs.ReadSamples(m.scratch)
	frames := n / m.channels

	m.out.SetChannels(m.channels)
	for c := range m.channels {
		dst := m.out.Channel(c)
		for i := range frames {
			dst[i] = m.scratch[i*m.channels+c]
		}
		clear(dst[frames:])
	}

	if frames < Quantum {
		m.underruns.Inc()
		if m.throttle.Allow() {
			log.Warnf("media source %d underrun: %d of %d frames (%d reports suppressed)",
				m.id, frames, Quantum, m.throttle.Suppressed())
		}
	}
}

func (m *MediaSource) Output(int) *Bus { return m.out }

func (m *MediaSource) Apply(desc graph.NodeDescription) bool {
	switch desc.(type) {
	case graph.MediaElementSource, graph.MediaStreamSource:
		return true
	}
	return false
}
