// SPDX-License-Identifier: EPL-2.0

package wire

import (
	"fmt"

	"github.com/ik5/audrender/graph"
)

// Section tags.
const (
	TagNodeTable            uint32 = 1
	TagConnectionTable      uint32 = 2
	TagParamConnectionTable uint32 = 3
	TagParamAutomationTable uint32 = 4
	TagBufferTable          uint32 = 5
)

const headerSize = 4 + 4 + 8

var sectionNames = map[uint32]string{
	TagNodeTable:            "NodeTable",
	TagConnectionTable:      "ConnectionTable",
	TagParamConnectionTable: "ParamConnectionTable",
	TagParamAutomationTable: "ParamAutomationTable",
	TagBufferTable:          "BufferTable",
}

func sectionName(tag uint32) string {
	if s, ok := sectionNames[tag]; ok {
		return s
	}
	return fmt.Sprintf("section(%d)", tag)
}

// Encode serialises desc and every buffer it references that is present in
// resources. Buffers missing from resources are expected to be resolved out
// of band by the receiver.
func Encode(desc *graph.Description, sampleRate float32, resources *graph.Registry) ([]byte, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil description", ErrEncode)
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	var flags graph.Flags
	if desc.UsesExternalResources() {
		flags |= graph.FlagContainsExternalResources
	}

	e := &encoder{buf: make([]byte, 0, 256)}
	e.u32(uint32(flags))
	e.f32(sampleRate)
	e.u64(uint64(desc.DestinationID))

	ids := desc.SortedIDs()
	e.section(TagNodeTable, func() {
		e.u32(uint32(len(ids)))
		for _, id := range ids {
			n := desc.Nodes[id]
			e.u64(uint64(id))
			e.u8(uint8(n.Kind()))
			off := e.begin()
			encodeNode(e, n)
			e.end(off)
		}
	})

	var buffers []uint64
	for _, id := range desc.ReferencedBuffers() {
		if _, err := resources.ResolveAudioBuffer(id); err == nil {
			buffers = append(buffers, id)
		}
	}
	if len(buffers) > 0 {
		e.section(TagBufferTable, func() {
			e.u32(uint32(len(buffers)))
			for _, id := range buffers {
				b, _ := resources.ResolveAudioBuffer(id)
				e.u64(id)
				e.f32(b.SampleRate)
				e.u32(uint32(b.ChannelCount()))
				e.u64(uint64(b.Length()))
				for _, ch := range b.Data {
					e.floats(ch)
				}
			}
		})
	}

	e.section(TagConnectionTable, func() {
		e.u32(uint32(len(desc.Connections)))
		for _, c := range desc.Connections {
			e.u64(uint64(c.Source))
			e.u64(uint64(c.Destination))
			e.u32(c.SourceOutput)
			e.u32(c.DestinationInput)
		}
	})

	e.section(TagParamConnectionTable, func() {
		e.u32(uint32(len(desc.ParamConnections)))
		for _, c := range desc.ParamConnections {
			e.u64(uint64(c.Source))
			e.u32(c.SourceOutput)
			e.u64(uint64(c.Destination))
			e.u32(c.ParamIndex)
		}
	})

	e.section(TagParamAutomationTable, func() {
		e.u32(uint32(len(desc.ParamAutomations)))
		for i := range desc.ParamAutomations {
			encodeAutomation(e, &desc.ParamAutomations[i])
		}
	})

	return e.buf, nil
}

// EncodeResult encodes a build result, typically to forward a graph that was
// decoded or built in process.
func EncodeResult(res *graph.BuildResult) ([]byte, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil build result", ErrEncode)
	}
	return Encode(res.Description, res.SampleRate, res.Resources)
}

// Decode parses wire bytes. On failure it returns a *DecodeError and no
// partial graph.
func Decode(data []byte) (*graph.BuildResult, error) {
	return DecodeWithResources(data, nil)
}

// DecodeWithResources is Decode with a pre-populated registry whose buffers
// and media providers are available to the decoded graph in addition to the
// in-band BufferTable. base itself is not modified.
func DecodeWithResources(data []byte, base *graph.Registry) (*graph.BuildResult, error) {
	d := &decoder{data: data, section: "header"}
	flags := graph.Flags(d.u32())
	rate := d.f32()
	dest := graph.NodeID(d.u64())
	if d.err != nil {
		return nil, d.err
	}
	if !graph.ValidSampleRate(rate) {
		return nil, &DecodeError{Section: "header", Offset: 4, Reason: fmt.Sprintf("invalid sample rate %v", rate), Err: graph.ErrSampleRate}
	}

	desc := &graph.Description{Nodes: make(map[graph.NodeID]graph.NodeDescription), DestinationID: dest}
	resources := base.Clone()
	seen := make(map[uint32]bool)

	for d.remaining() > 0 {
		d.section = "section header"
		tag := d.u32()
		size := d.u32()
		sd := d.sub(sectionName(tag), int(size))
		if d.err != nil {
			return nil, d.err
		}

		if _, known := sectionNames[tag]; !known {
			continue
		}
		if seen[tag] {
			return nil, &DecodeError{Section: sectionName(tag), Offset: sd.base, Reason: "duplicate section"}
		}
		seen[tag] = true

		switch tag {
		case TagNodeTable:
			decodeNodes(sd, desc)
		case TagConnectionTable:
			decodeConnections(sd, desc)
		case TagParamConnectionTable:
			decodeParamConnections(sd, desc)
		case TagParamAutomationTable:
			decodeAutomations(sd, desc)
		case TagBufferTable:
			decodeBuffers(sd, resources)
		}

		if err := sd.finish(); err != nil {
			return nil, err
		}
	}

	if !seen[TagNodeTable] {
		return nil, &DecodeError{Section: "NodeTable", Offset: headerSize, Reason: "missing"}
	}
	if err := desc.Validate(); err != nil {
		return nil, &DecodeError{Section: "graph", Offset: len(data), Reason: "invalid graph", Err: err}
	}
	if err := desc.CheckStateSize(rate); err != nil {
		return nil, &DecodeError{Section: "graph", Offset: len(data), Reason: "node state too large", Err: err}
	}

	log.Tracef("Decoded graph: %d nodes, %d connections, %d automation events",
		len(desc.Nodes), len(desc.Connections), desc.AutomationEventCount())

	return &graph.BuildResult{
		Flags:                flags,
		SampleRate:           rate,
		Description:          desc,
		Resources:            resources,
		AutomationEventCount: desc.AutomationEventCount(),
	}, nil
}

func decodeNodes(d *decoder, desc *graph.Description) {
	// id + type + size
	n := d.count(8 + 1 + 4)
	for range n {
		start := d.off
		id := graph.NodeID(d.u64())
		kind := graph.Kind(d.u8())
		size := d.u32()
		pd := d.sub(d.section, int(size))
		if d.err != nil {
			return
		}

		if _, dup := desc.Nodes[id]; dup {
			d.off = start
			d.fail(fmt.Sprintf("node %d", id), graph.ErrDuplicateNode)
			return
		}

		node := decodeNode(pd, kind)
		if node == nil {
			d.off = start
			d.fail(fmt.Sprintf("node %d has type tag %d", id, uint8(kind)), graph.ErrUnknownKind)
			return
		}
		if err := pd.finish(); err != nil {
			d.err = err
			return
		}
		desc.Nodes[id] = node
	}
}

func decodeConnections(d *decoder, desc *graph.Description) {
	n := d.count(8 + 8 + 4 + 4)
	if n == 0 {
		return
	}
	desc.Connections = make([]graph.Connection, n)
	for i := range desc.Connections {
		desc.Connections[i] = graph.Connection{
			Source:           graph.NodeID(d.u64()),
			Destination:      graph.NodeID(d.u64()),
			SourceOutput:     d.u32(),
			DestinationInput: d.u32(),
		}
	}
}

func decodeParamConnections(d *decoder, desc *graph.Description) {
	n := d.count(8 + 4 + 8 + 4)
	if n == 0 {
		return
	}
	desc.ParamConnections = make([]graph.ParamConnection, n)
	for i := range desc.ParamConnections {
		desc.ParamConnections[i] = graph.ParamConnection{
			Source:       graph.NodeID(d.u64()),
			SourceOutput: d.u32(),
			Destination:  graph.NodeID(d.u64()),
			ParamIndex:   d.u32(),
		}
	}
}

func decodeBuffers(d *decoder, reg *graph.Registry) {
	n := d.count(8 + 4 + 4 + 8)
	local := make(map[uint64]bool, n)
	for range n {
		start := d.off
		id := d.u64()
		rate := d.f32()
		channels := d.u32()
		frames := d.u64()
		if d.err != nil {
			return
		}

		total := uint64(channels) * frames
		if frames > graph.MaxBufferSamples || total > graph.MaxBufferSamples {
			d.off = start
			d.fail("buffer table", &graph.ResourceError{ID: id, Reason: "buffer too large"})
			return
		}
		if total*4 > uint64(d.remaining()) {
			d.fail("buffer data", nil)
			return
		}
		if local[id] {
			d.off = start
			d.fail(fmt.Sprintf("buffer %d listed twice", id), nil)
			return
		}
		local[id] = true

		buf := &graph.SharedBuffer{SampleRate: rate, Data: make([][]float32, channels)}
		for c := range buf.Data {
			buf.Data[c] = d.floats(int(frames))
			if buf.Data[c] == nil {
				buf.Data[c] = []float32{}
			}
		}
		if err := reg.AddBuffer(id, buf); err != nil {
			d.off = start
			d.fail("buffer table", err)
			return
		}
	}
}
