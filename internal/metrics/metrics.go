// SPDX-License-Identifier: EPL-2.0

// Package metrics holds the Prometheus collectors exported by the render
// threads.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Underrun sources.
const (
	UnderrunMedia  = "media"
	UnderrunDevice = "device"
)

// Metrics groups every collector. All collectors are safe to update from the
// render thread: they are lock-free atomics after creation.
type Metrics struct {
	RenderSeconds prometheus.Histogram
	Quanta        prometheus.Counter
	Underruns     *prometheus.CounterVec
	RingRetries   prometheus.Counter
	RingDrops     prometheus.Counter
	GraphSwaps    prometheus.Counter
	RetiredGraphs prometheus.Gauge
	Sessions      prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which keeps tests independent of the global registry.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		RenderSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_quantum_seconds",
			Help:      "Wall time spent rendering one quantum across all sessions.",
			Buckets:   prometheus.ExponentialBuckets(25e-6, 2, 10),
		}),
		Quanta: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quanta_rendered_total",
			Help:      "Quanta mixed into the device ring.",
		}),
		Underruns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "underruns_total",
			Help:      "Underrun conditions by source.",
		}, []string{"source"}),
		RingRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ring_write_retries_total",
			Help:      "Ring writes that had to be retried because the ring was full.",
		}),
		RingDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ring_write_drops_total",
			Help:      "Quanta dropped after exhausting ring write retries.",
		}),
		GraphSwaps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graph_swaps_total",
			Help:      "Pending graphs adopted at a quantum boundary.",
		}),
		RetiredGraphs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retired_graphs",
			Help:      "Retired graphs awaiting control-thread reclamation.",
		}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Sessions registered with the realtime thread.",
		}),
	}
}

// Discard returns unregistered collectors.
func Discard() *Metrics {
	return New(nil, "")
}
