// SPDX-License-Identifier: EPL-2.0

package wire

import "github.com/ik5/audrender/graph"

// Snapshot is the tap payload pushed to analyser, compressor and
// script-processor listeners: Size is the FFT size, 1 for a compressor
// reduction in dB, or the script block frame count.
type Snapshot struct {
	NodeID  graph.NodeID
	Size    uint32
	Samples []float32
}

// EncodeSnapshot writes u64 node_id | u32 size | u32 count | f32 × count.
func EncodeSnapshot(s Snapshot) []byte {
	e := &encoder{buf: make([]byte, 0, 16+4*len(s.Samples))}
	e.u64(uint64(s.NodeID))
	e.u32(s.Size)
	e.u32(uint32(len(s.Samples)))
	e.floats(s.Samples)
	return e.buf
}

func DecodeSnapshot(data []byte) (Snapshot, error) {
	d := &decoder{data: data, section: "snapshot"}
	s := Snapshot{NodeID: graph.NodeID(d.u64()), Size: d.u32()}
	s.Samples = d.floats(d.count(4))
	if err := d.finish(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
