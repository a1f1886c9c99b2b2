// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"fmt"
	"math"
	"slices"
)

// Connection routes an output port of Source into an input port of
// Destination.
type Connection struct {
	Source           NodeID
	Destination      NodeID
	SourceOutput     uint32
	DestinationInput uint32
}

// ParamConnection routes an output port into an automatable parameter.
type ParamConnection struct {
	Source       NodeID
	SourceOutput uint32
	Destination  NodeID
	ParamIndex   uint32
}

// Description is a complete graph. It is never mutated after publication.
type Description struct {
	Nodes            map[NodeID]NodeDescription
	Connections      []Connection
	ParamConnections []ParamConnection
	ParamAutomations []ParamAutomation
	DestinationID    NodeID
}

// NewDescription returns a description containing only a destination node.
func NewDescription(destination NodeID, channels uint32) *Description {
	return &Description{
		Nodes:         map[NodeID]NodeDescription{destination: Destination{ChannelCount: channels}},
		DestinationID: destination,
	}
}

// SortedIDs returns the node ids in ascending order.
func (d *Description) SortedIDs() []NodeID {
	ids := make([]NodeID, 0, len(d.Nodes))
	for id := range d.Nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// AutomationEventCount is the total number of automation segments.
func (d *Description) AutomationEventCount() int {
	n := 0
	for i := range d.ParamAutomations {
		n += len(d.ParamAutomations[i].Segments)
	}
	return n
}

// Validate checks the structural invariants of the graph. Returned errors
// wrap ErrInvalidGraph and a more specific sentinel.
func (d *Description) Validate() error {
	dest, ok := d.Nodes[d.DestinationID]
	if !ok {
		return fmt.Errorf("%w: %w: id %d", ErrInvalidGraph, ErrMissingDestination, d.DestinationID)
	}
	if dest == nil || dest.Kind() != KindDestination {
		return fmt.Errorf("%w: %w: id %d", ErrInvalidGraph, ErrDestinationKind, d.DestinationID)
	}

	for id, n := range d.Nodes {
		if n == nil {
			return fmt.Errorf("%w: %w: id %d", ErrInvalidGraph, ErrNilNode, id)
		}
		if !n.Kind().Known() {
			return fmt.Errorf("%w: %w: id %d %v", ErrInvalidGraph, ErrUnknownKind, id, n.Kind())
		}
		if err := checkNode(n); err != nil {
			return fmt.Errorf("%w: id %d: %w", ErrInvalidGraph, id, err)
		}
	}

	for i, c := range d.Connections {
		src, ok := d.Nodes[c.Source]
		if !ok {
			return fmt.Errorf("%w: %w: connection %d source %d", ErrInvalidGraph, ErrDanglingConnection, i, c.Source)
		}
		dst, ok := d.Nodes[c.Destination]
		if !ok {
			return fmt.Errorf("%w: %w: connection %d destination %d", ErrInvalidGraph, ErrDanglingConnection, i, c.Destination)
		}
		if int(c.SourceOutput) >= src.OutputCount() {
			return fmt.Errorf("%w: %w: connection %d output %d of %v", ErrInvalidGraph, ErrPortOutOfRange, i, c.SourceOutput, src.Kind())
		}
		if int(c.DestinationInput) >= dst.InputCount() {
			return fmt.Errorf("%w: %w: connection %d input %d of %v", ErrInvalidGraph, ErrPortOutOfRange, i, c.DestinationInput, dst.Kind())
		}
	}

	for i, c := range d.ParamConnections {
		src, ok := d.Nodes[c.Source]
		if !ok {
			return fmt.Errorf("%w: %w: param connection %d source %d", ErrInvalidGraph, ErrDanglingConnection, i, c.Source)
		}
		dst, ok := d.Nodes[c.Destination]
		if !ok {
			return fmt.Errorf("%w: %w: param connection %d destination %d", ErrInvalidGraph, ErrDanglingConnection, i, c.Destination)
		}
		if int(c.SourceOutput) >= src.OutputCount() {
			return fmt.Errorf("%w: %w: param connection %d output %d", ErrInvalidGraph, ErrPortOutOfRange, i, c.SourceOutput)
		}
		if int(c.ParamIndex) >= len(dst.Params()) {
			return fmt.Errorf("%w: %w: param connection %d param %d of %v", ErrInvalidGraph, ErrParamOutOfRange, i, c.ParamIndex, dst.Kind())
		}
	}

	for i := range d.ParamAutomations {
		a := &d.ParamAutomations[i]
		dst, ok := d.Nodes[a.Destination]
		if !ok {
			return fmt.Errorf("%w: %w: automation %d target %d", ErrInvalidGraph, ErrDanglingConnection, i, a.Destination)
		}
		if int(a.ParamIndex) >= len(dst.Params()) {
			return fmt.Errorf("%w: %w: automation %d param %d of %v", ErrInvalidGraph, ErrParamOutOfRange, i, a.ParamIndex, dst.Kind())
		}
	}

	if _, err := d.Topology(); err != nil {
		return err
	}
	return nil
}

// checkNode bounds the construction-time fields of n.
func checkNode(n NodeDescription) error {
	if c := ChannelHint(n); c > MaxChannels {
		return fmt.Errorf("%w: %v wants %d", ErrChannelCount, n.Kind(), c)
	}

	switch x := n.(type) {
	case Delay:
		if !within(float64(x.MaxDelayTime), 0, MaxDelaySeconds) {
			return fmt.Errorf("%w: max delay %v s outside [0, %d]", ErrNodeField, x.MaxDelayTime, MaxDelaySeconds)
		}
		if !within(float64(x.DelayTime), 0, float64(x.MaxDelayTime)) {
			return fmt.Errorf("%w: delay %v s outside [0, %v]", ErrNodeField, x.DelayTime, x.MaxDelayTime)
		}
	case AudioBufferSource:
		if !within(x.Offset, 0, math.MaxFloat64) {
			return fmt.Errorf("%w: offset %v", ErrNodeField, x.Offset)
		}
		if !within(x.LoopStart, -math.MaxFloat64, math.MaxFloat64) || !within(x.LoopEnd, -math.MaxFloat64, math.MaxFloat64) {
			return fmt.Errorf("%w: loop %v..%v", ErrNodeField, x.LoopStart, x.LoopEnd)
		}
	case Analyser:
		if !ValidFFTSize(x.FFTSize) {
			return fmt.Errorf("%w: size %d", ErrFFTSize, x.FFTSize)
		}
	case AudioWorklet:
		if x.Inputs > MaxWorkletPorts || x.Outputs > MaxWorkletPorts {
			return fmt.Errorf("%w: %d inputs, %d outputs, at most %d", ErrNodeField, x.Inputs, x.Outputs, MaxWorkletPorts)
		}
		if x.ParamCount > MaxWorkletParams {
			return fmt.Errorf("%w: %d params, at most %d", ErrNodeField, x.ParamCount, MaxWorkletParams)
		}
	case ScriptProcessor:
		if !ValidScriptBufferSize(x.BufferSize) {
			return fmt.Errorf("%w: size %d", ErrBufferSize, x.BufferSize)
		}
		if x.InputChannels == 0 && x.OutputChannels == 0 {
			return fmt.Errorf("%w: script processor without channels", ErrChannelCount)
		}
	}
	return nil
}

// within is false for NaN and for values outside [lo, hi].
func within(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// DelayLineSamples is the size of a delay line holding maxDelay seconds at
// sampleRate for channels channels, interpolation guard included.
func DelayLineSamples(maxDelay, sampleRate float64, channels int) uint64 {
	frames := uint64(math.Ceil(maxDelay*sampleRate)) + 2
	return frames * uint64(max(channels, 1))
}

// CheckStateSize reports a *ResourceError for the first node, in id order,
// whose render-time history would exceed MaxBufferSamples at sampleRate.
// desc must have passed Validate.
func (d *Description) CheckStateSize(sampleRate float32) error {
	for _, id := range d.SortedIDs() {
		x, ok := d.Nodes[id].(Delay)
		if !ok {
			continue
		}
		if n := DelayLineSamples(float64(x.MaxDelayTime), float64(sampleRate), int(x.ChannelCount)); n > MaxBufferSamples {
			return &ResourceError{ID: uint64(id), Reason: fmt.Sprintf("delay line of %d samples too large", n)}
		}
	}
	return nil
}

// ReferencedBuffers returns the distinct buffer ids referenced by nodes, in
// ascending order.
func (d *Description) ReferencedBuffers() []uint64 {
	var ids []uint64
	for _, n := range d.Nodes {
		if b, ok := n.(AudioBufferSource); ok {
			ids = append(ids, b.BufferID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// UsesExternalResources reports whether any node refers to a buffer or media
// provider outside the description.
func (d *Description) UsesExternalResources() bool {
	for _, n := range d.Nodes {
		switch n.Kind() {
		case KindAudioBufferSource, KindMediaElementSource, KindMediaStreamSource:
			return true
		}
	}
	return false
}

// SameTopology reports whether o has the same nodes, kinds, construction
// fields and connections as d, so that o's parameters can be applied to a
// graph rendered from d.
func (d *Description) SameTopology(o *Description) bool {
	if d == nil || o == nil || d.DestinationID != o.DestinationID || len(d.Nodes) != len(o.Nodes) {
		return false
	}
	for id, n := range d.Nodes {
		if !SameShape(n, o.Nodes[id]) {
			return false
		}
	}
	return slices.Equal(d.Connections, o.Connections) && slices.Equal(d.ParamConnections, o.ParamConnections)
}
