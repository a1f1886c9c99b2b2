// SPDX-License-Identifier: EPL-2.0

package render

import (
	"sync"

	"github.com/ik5/audrender/graph"
)

// ScriptHost handles script processor blocks outside the renderer. Process
// runs on the render thread when an input block fills and must not block.
// frame is the context frame of the block's first sample. It fills output
// and reports whether it produced audio.
type ScriptHost interface {
	Process(id graph.NodeID, frame uint64, input, output [][]float32) bool
}

// ScriptBlock is a copy of the last complete input block of a script
// processor.
type ScriptBlock struct {
	NodeID graph.NodeID
	// Frame is the context frame following the block's last sample, 0
	// before the first block completes.
	Frame      uint64
	BufferSize int
	Channels   int
	// Samples are interleaved, BufferSize frames of Channels samples.
	Samples []float32
}

// ScriptProcessor collects its input into blocks of BufferSize frames and
// plays what the host returned for the previous block. Without a host, or
// when the host declines, the output is silent.
type ScriptProcessor struct {
	id   graph.NodeID
	desc graph.ScriptProcessor
	host ScriptHost
	out  *Bus

	size    int
	pos     int
	start   uint64
	input   [][]float32
	playing [][]float32
	next    [][]float32
	audible bool

	mtx      sync.Mutex
	tap      []float32
	tapFrame uint64
}

func planes(channels, size int) [][]float32 {
	p := make([][]float32, channels)
	for ch := range p {
		p[ch] = make([]float32, size)
	}
	return p
}

func newScriptProcessor(id graph.NodeID, s graph.ScriptProcessor, host ScriptHost, capacity int) *ScriptProcessor {
	size := int(s.BufferSize)
	return &ScriptProcessor{
		id:      id,
		desc:    s,
		host:    host,
		out:     NewBus(max(capacity, int(s.OutputChannels))),
		size:    size,
		input:   planes(int(s.InputChannels), size),
		playing: planes(int(s.OutputChannels), size),
		next:    planes(int(s.OutputChannels), size),
		tap:     make([]float32, size*int(s.InputChannels)),
	}
}

func (s *ScriptProcessor) ID() graph.NodeID { return s.id }

func (s *ScriptProcessor) Process(ctx *Context, inputs []*Bus, _ []ParamBlock) {
	in := inputs[0]
	if s.pos == 0 {
		s.start = ctx.Frame
	}

	for ch, plane := range s.input {
		dst := plane[s.pos : s.pos+Quantum]
		if ch < in.Channels() {
			copy(dst, in.Channel(ch))
		} else {
			clear(dst)
		}
	}

	if s.audible {
		s.out.SetChannels(len(s.playing))
		for ch, plane := range s.playing {
			copy(s.out.Channel(ch), plane[s.pos:s.pos+Quantum])
		}
	} else {
		s.out.SetChannels(0)
	}

	s.pos += Quantum
	if s.pos < s.size {
		return
	}
	s.pos = 0
	s.publish(ctx.Frame + Quantum)

	for _, plane := range s.next {
		clear(plane)
	}
	s.audible = s.host != nil && s.host.Process(s.id, s.start, s.input, s.next)
	s.playing, s.next = s.next, s.playing
}

// publish copies the completed input block for Snapshot, skipping it when a
// reader holds the lock.
func (s *ScriptProcessor) publish(frame uint64) {
	if !s.mtx.TryLock() {
		return
	}
	channels := len(s.input)
	for ch, plane := range s.input {
		for i, v := range plane {
			s.tap[i*channels+ch] = v
		}
	}
	s.tapFrame = frame
	s.mtx.Unlock()
}

// Snapshot returns the last complete input block.
func (s *ScriptProcessor) Snapshot() ScriptBlock {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	b := ScriptBlock{
		NodeID:     s.id,
		Frame:      s.tapFrame,
		BufferSize: s.size,
		Channels:   len(s.input),
	}
	if s.tapFrame != 0 {
		b.Samples = append([]float32(nil), s.tap...)
	}
	return b
}

func (s *ScriptProcessor) Output(int) *Bus { return s.out }

func (s *ScriptProcessor) Apply(desc graph.NodeDescription) bool {
	x, ok := desc.(graph.ScriptProcessor)
	return ok && x == s.desc
}
