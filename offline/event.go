// SPDX-License-Identifier: EPL-2.0

package offline

import (
	"github.com/ik5/audrender/render"
	"github.com/ik5/audrender/wire"
)

type EventKind uint8

const (
	EventSuspended EventKind = iota + 1
	EventComplete
)

func (k EventKind) String() string {
	switch k {
	case EventSuspended:
		return "suspended"
	case EventComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Event is emitted by the render goroutine. Frame is the number of frames
// rendered when it was raised.
type Event struct {
	Kind        EventKind
	Frame       uint64
	Aborted     bool
	Snapshots   []render.AnalyserSnapshot
	Compressors []render.CompressorReading
	Scripts     []render.ScriptBlock
}

// Taps encodes the event's node state for tap listeners: analyser
// time-domain windows, then compressor reductions as one-sample payloads,
// then script processor input blocks. Script processors that have not
// completed a block are skipped.
func (e Event) Taps() [][]byte {
	out := make([][]byte, 0, len(e.Snapshots)+len(e.Compressors)+len(e.Scripts))
	for _, s := range e.Snapshots {
		out = append(out, wire.EncodeSnapshot(wire.Snapshot{
			NodeID:  s.NodeID,
			Size:    uint32(s.FFTSize),
			Samples: s.Time,
		}))
	}
	for _, c := range e.Compressors {
		out = append(out, wire.EncodeSnapshot(wire.Snapshot{
			NodeID:  c.NodeID,
			Size:    1,
			Samples: []float32{c.ReductionDB},
		}))
	}
	for _, b := range e.Scripts {
		if b.Samples == nil {
			continue
		}
		out = append(out, wire.EncodeSnapshot(wire.Snapshot{
			NodeID:  b.NodeID,
			Size:    uint32(b.BufferSize),
			Samples: b.Samples,
		}))
	}
	return out
}
