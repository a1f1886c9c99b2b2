// SPDX-License-Identifier: EPL-2.0

package render

import (
	"time"

	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/internal/metrics"
)

// Context is what a node sees of the quantum being rendered.
type Context struct {
	SampleRate float64
	// Frame is the context frame of the first sample in the quantum.
	Frame     uint64
	Resources *graph.Registry
}

// ParamBlock carries one quantum of computed parameter values.
type ParamBlock struct {
	Values []float32
	// Constant is set when every value equals Values[0].
	Constant bool
}

// At returns the value for frame i of the quantum.
func (p *ParamBlock) At(i int) float32 {
	if p.Constant {
		return p.Values[0]
	}
	return p.Values[i]
}

// Node is the executable counterpart of a graph node.
type Node interface {
	// Process renders one quantum. inputs has one pre-mixed bus per input
	// port, params one block per parameter in ParamSpec order.
	Process(ctx *Context, inputs []*Bus, params []ParamBlock)
	// Output returns the bus of an output port.
	Output(slot int) *Bus
	// Apply takes the mutable fields of desc. It returns false when desc
	// cannot be applied without rebuilding the node.
	Apply(desc graph.NodeDescription) bool
}

// cycleBreaker is implemented by nodes that can sit on a cycle: Emit
// produces the quantum from internal history, Absorb consumes the input
// once the rest of the graph has run.
type cycleBreaker interface {
	Node
	Emit(ctx *Context, params []ParamBlock)
	Absorb(ctx *Context, inputs []*Bus)
}

// MediaOptions tune media source rate steering.
type MediaOptions struct {
	// ControllerGain scales the relative fill error into a ratio change.
	ControllerGain float64
	// MaxRatioDeviation bounds the steered ratio around nominal, as a
	// fraction.
	MaxRatioDeviation float64
	// TargetFillFrames is the queue fill the controller aims for.
	TargetFillFrames int
	// UnderrunLogInterval is the minimum spacing of underrun log lines.
	UnderrunLogInterval time.Duration
}

// DefaultMediaOptions returns the tuning used when none is configured.
func DefaultMediaOptions() MediaOptions {
	return MediaOptions{
		ControllerGain:      0.01,
		MaxRatioDeviation:   0.02,
		TargetFillFrames:    4 * Quantum,
		UnderrunLogInterval: 5 * time.Second,
	}
}

// Options configure Build.
type Options struct {
	Media    MediaOptions
	Worklets WorkletHost
	Scripts  ScriptHost
	Mirrors  MirrorFactory
	Metrics  *metrics.Metrics
}
