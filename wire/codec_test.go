// SPDX-License-Identifier: EPL-2.0

package wire

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audrender/graph"
)

func everyKind() *graph.Description {
	d := graph.NewDescription(1, 2)
	d.Nodes[2] = graph.Gain{Gain: 0.75}
	d.Nodes[3] = graph.Delay{DelayTime: 0.25, MaxDelayTime: 1.5, ChannelCount: 2}
	d.Nodes[4] = graph.Oscillator{Waveform: graph.WaveformSawtooth, Frequency: 220, Detune: -12, Start: graph.At(128), Stop: graph.At(48000)}
	d.Nodes[5] = graph.AudioBufferSource{
		BufferID: 9, PlaybackRate: 1.25, Detune: 100, Loop: true,
		LoopStart: 0.1, LoopEnd: 0.2, Start: graph.At(0), Offset: 0.05, Duration: graph.At(4096),
	}
	d.Nodes[6] = graph.MediaElementSource{ProviderID: 77, ChannelCount: 2}
	d.Nodes[7] = graph.MediaStreamSource{ProviderID: 78, ChannelCount: 1}
	d.Nodes[8] = graph.ConstantSource{Offset: 0.5, Start: graph.At(256)}
	d.Nodes[9] = graph.Analyser{FFTSize: 2048, MinDecibels: -100, MaxDecibels: -30, Smoothing: 0.8}
	d.Nodes[10] = graph.AudioWorklet{ProcessorName: "bitcrusher", Inputs: 1, Outputs: 2, ChannelCount: 2, ParamCount: 3}
	d.Nodes[11] = graph.DebugSink{ChannelCount: 2, Mirror: true, Label: "pre-dest"}
	d.Nodes[12] = graph.DynamicsCompressor{Threshold: -24, Knee: 30, Ratio: 12, Attack: 0.003, Release: 0.25, ChannelCount: 2}
	d.Nodes[13] = graph.ScriptProcessor{BufferSize: 1024, InputChannels: 2, OutputChannels: 1}

	d.Connections = []graph.Connection{
		{Source: 4, Destination: 2},
		{Source: 2, Destination: 3},
		{Source: 3, Destination: 9},
		{Source: 9, Destination: 10},
		{Source: 10, Destination: 11, SourceOutput: 1},
		{Source: 11, Destination: 1},
		{Source: 5, Destination: 1},
		{Source: 6, Destination: 1},
		{Source: 7, Destination: 1},
		{Source: 2, Destination: 13},
		{Source: 13, Destination: 12},
		{Source: 12, Destination: 1},
	}
	d.ParamConnections = []graph.ParamConnection{
		{Source: 8, Destination: 2, ParamIndex: 0},
		{Source: 8, Destination: 10, ParamIndex: 2},
	}
	d.ParamAutomations = []graph.ParamAutomation{
		{
			Destination: 4, ParamIndex: 0, Initial: 220, Default: 440, Min: -24000, Max: 24000, Rate: graph.ARate,
			Segments: []graph.Segment{
				{Type: graph.SegmentLinearRamp, StartTime: 0, EndTime: 1, StartFrame: 0, EndFrame: 48000, StartValue: 220, EndValue: 440},
				{Type: graph.SegmentTarget, StartTime: 1, EndTime: 2, StartFrame: 48000, EndFrame: 96000, StartValue: 440, TimeConstant: 0.3, Target: 110},
				{Type: graph.SegmentValueCurve, StartTime: 2, EndTime: 3, StartFrame: 96000, EndFrame: 144000, Curve: []float32{1, 2, 3}},
			},
		},
		{Destination: 2, ParamIndex: 0, Initial: 1, Default: 1, Min: 0, Max: 2, Rate: graph.KRate},
	}
	return d
}

func rebuild(d *graph.Description, ids []graph.NodeID) *graph.Description {
	out := &graph.Description{
		Nodes:            make(map[graph.NodeID]graph.NodeDescription),
		Connections:      d.Connections,
		ParamConnections: d.ParamConnections,
		ParamAutomations: d.ParamAutomations,
		DestinationID:    d.DestinationID,
	}
	for _, id := range ids {
		out.Nodes[id] = d.Nodes[id]
	}
	return out
}

func TestEncodeIsDeterministic(t *testing.T) {
	t.Parallel()

	d := everyKind()
	ids := d.SortedIDs()

	reversed := make([]graph.NodeID, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}
	shuffled := []graph.NodeID{7, 1, 13, 11, 3, 5, 9, 12, 2, 10, 4, 8, 6}

	want, err := Encode(rebuild(d, ids), 48000, nil)
	require.NoError(t, err)

	for _, order := range [][]graph.NodeID{reversed, shuffled} {
		for range 5 {
			got, err := Encode(rebuild(d, order), 48000, nil)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	withOne := graph.NewDescription(1, 1)
	withOne.Nodes[2] = graph.Gain{Gain: 2}
	withOne.Connections = []graph.Connection{{Source: 2, Destination: 1}}

	tests := []struct {
		name string
		desc *graph.Description
		rate float32
	}{
		{name: "zero connections", desc: graph.NewDescription(1, 2), rate: 48000},
		{name: "one connection", desc: withOne, rate: 44100},
		{name: "every kind", desc: everyKind(), rate: 96000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := Encode(tt.desc, tt.rate, nil)
			require.NoError(t, err)

			res, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.desc, res.Description)
			assert.InDelta(t, tt.rate, res.SampleRate, 0)
			assert.Equal(t, tt.desc.AutomationEventCount(), res.AutomationEventCount)
		})
	}
}

func TestDestinationOnlyScenario(t *testing.T) {
	t.Parallel()

	data, err := Encode(graph.NewDescription(1, 2), 48000, nil)
	require.NoError(t, err)

	res, err := Decode(data)
	require.NoError(t, err)
	assert.Zero(t, res.Flags)
	assert.InDelta(t, 48000.0, res.SampleRate, 0)
	require.Len(t, res.Description.Nodes, 1)
	assert.Equal(t, graph.Destination{ChannelCount: 2}, res.Description.Nodes[1])
	assert.Empty(t, res.Description.Connections)
}

func TestBufferSourceScenario(t *testing.T) {
	t.Parallel()

	reg := graph.NewRegistry()
	require.NoError(t, reg.AddBuffer(1, graph.NewSharedBuffer(48000, 1, 16)))

	d := graph.NewDescription(1, 2)
	d.Nodes[2] = graph.AudioBufferSource{BufferID: 1, PlaybackRate: 1, Start: graph.At(0)}
	d.Connections = []graph.Connection{{Source: 2, Destination: 1}}

	data, err := Encode(d, 48000, reg)
	require.NoError(t, err)

	res, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, res.Flags.Has(graph.FlagContainsExternalResources))

	buf, err := res.Resources.ResolveAudioBuffer(1)
	require.NoError(t, err)
	assert.Equal(t, 1, buf.ChannelCount())
	assert.Equal(t, 16, buf.Length())
}

func TestBufferTableCarriesSamples(t *testing.T) {
	t.Parallel()

	reg := graph.NewRegistry()
	buf := &graph.SharedBuffer{SampleRate: 22050, Data: [][]float32{{0.1, 0.2, 0.3}, {-0.1, -0.2, -0.3}}}
	require.NoError(t, reg.AddBuffer(4, buf))
	require.NoError(t, reg.AddBuffer(5, graph.NewSharedBuffer(8000, 1, 2))) // unreferenced

	d := graph.NewDescription(1, 2)
	d.Nodes[2] = graph.AudioBufferSource{BufferID: 4, PlaybackRate: 1}
	d.Nodes[3] = graph.AudioBufferSource{BufferID: 4, PlaybackRate: 2}
	d.Connections = []graph.Connection{{Source: 2, Destination: 1}, {Source: 3, Destination: 1}}

	data, err := Encode(d, 48000, reg)
	require.NoError(t, err)

	res, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4}, res.Resources.BufferIDs())

	got, err := res.Resources.ResolveAudioBuffer(4)
	require.NoError(t, err)
	assert.Equal(t, buf, got)
}

func TestDecodeWithResourcesOutOfBand(t *testing.T) {
	t.Parallel()

	d := graph.NewDescription(1, 2)
	d.Nodes[2] = graph.AudioBufferSource{BufferID: 3, PlaybackRate: 1}
	d.Connections = []graph.Connection{{Source: 2, Destination: 1}}

	data, err := Encode(d, 48000, nil)
	require.NoError(t, err)

	base := graph.NewRegistry()
	require.NoError(t, base.AddBuffer(3, graph.NewSharedBuffer(48000, 2, 32)))

	res, err := DecodeWithResources(data, base)
	require.NoError(t, err)
	assert.True(t, res.Flags.Has(graph.FlagContainsExternalResources))

	buf, err := res.Resources.ResolveAudioBuffer(3)
	require.NoError(t, err)
	assert.Equal(t, 2, buf.ChannelCount())
}

func TestUnknownSectionIsSkipped(t *testing.T) {
	t.Parallel()

	data, err := Encode(everyKind(), 48000, nil)
	require.NoError(t, err)

	extra := &encoder{}
	extra.section(0xBEEF, func() {
		extra.u64(math.MaxUint64)
		extra.str("future")
	})

	injected := make([]byte, 0, len(data)+len(extra.buf))
	injected = append(injected, data[:headerSize]...)
	injected = append(injected, extra.buf...)
	injected = append(injected, data[headerSize:]...)

	want, err := Decode(data)
	require.NoError(t, err)
	got, err := Decode(injected)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// raw builds wire bytes by hand so tests can express graphs Encode refuses.
func raw(dest uint64, sections ...func(e *encoder)) []byte {
	e := &encoder{}
	e.u32(0)
	e.f32(48000)
	e.u64(dest)
	for _, s := range sections {
		s(e)
	}
	return e.buf
}

func nodeTable(nodes ...func(e *encoder)) func(e *encoder) {
	return func(e *encoder) {
		e.section(TagNodeTable, func() {
			e.u32(uint32(len(nodes)))
			for _, n := range nodes {
				n(e)
			}
		})
	}
}

func node(id uint64, kind uint8, payload func(e *encoder)) func(e *encoder) {
	return func(e *encoder) {
		e.u64(id)
		e.u8(kind)
		off := e.begin()
		payload(e)
		e.end(off)
	}
}

func destination(id uint64) func(e *encoder) {
	return node(id, uint8(graph.KindDestination), func(e *encoder) { e.u32(2) })
}

// described writes n with its regular payload, whatever its field values.
func described(id uint64, n graph.NodeDescription) func(e *encoder) {
	return node(id, uint8(n.Kind()), func(e *encoder) { encodeNode(e, n) })
}

func f32NaN() float32 { return float32(math.NaN()) }

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	good, err := Encode(everyKind(), 48000, nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		data  []byte
		cause error
	}{
		{name: "empty", data: nil},
		{name: "truncated header", data: good[:10]},
		{name: "truncated node table", data: good[:headerSize+20]},
		{name: "truncated tail", data: good[:len(good)-1]},
		{
			name:  "unknown node type",
			data:  raw(1, nodeTable(destination(1), node(2, 42, func(e *encoder) { e.u32(7) }))),
			cause: graph.ErrUnknownKind,
		},
		{
			name:  "duplicate node id",
			data:  raw(1, nodeTable(destination(1), destination(1))),
			cause: graph.ErrDuplicateNode,
		},
		{
			name: "dangling connection",
			data: raw(1, nodeTable(destination(1)), func(e *encoder) {
				e.section(TagConnectionTable, func() {
					e.u32(1)
					e.u64(5)
					e.u64(1)
					e.u32(0)
					e.u32(0)
				})
			}),
			cause: graph.ErrDanglingConnection,
		},
		{
			name: "section size mismatch",
			data: raw(1, func(e *encoder) {
				e.section(TagNodeTable, func() {
					e.u32(1)
					destination(1)(e)
					e.u32(0xDEAD)
				})
			}),
			cause: ErrTrailer,
		},
		{
			name: "node payload size mismatch",
			data: raw(1, nodeTable(node(1, uint8(graph.KindDestination), func(e *encoder) { e.u32(2); e.u8(0) }))),
			cause: ErrTrailer,
		},
		{
			name:  "missing node table",
			data:  raw(1),
		},
		{
			name:  "destination missing",
			data:  raw(3, nodeTable(destination(1))),
			cause: graph.ErrMissingDestination,
		},
		{
			name: "oversized buffer",
			data: raw(1, nodeTable(destination(1)), func(e *encoder) {
				e.section(TagBufferTable, func() {
					e.u32(1)
					e.u64(1)
					e.f32(48000)
					e.u32(2)
					e.u64(graph.MaxBufferSamples)
				})
			}),
			cause: graph.ErrResource,
		},
		{
			name: "duplicate section",
			data: raw(1, nodeTable(destination(1)), nodeTable(destination(2))),
		},
		{
			name: "absurd connection count",
			data: raw(1, nodeTable(destination(1)), func(e *encoder) {
				e.section(TagConnectionTable, func() { e.u32(math.MaxUint32) })
			}),
		},
		{
			name:  "negative max delay",
			data:  raw(1, nodeTable(destination(1), described(2, graph.Delay{MaxDelayTime: -1, ChannelCount: 1}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "nan max delay",
			data:  raw(1, nodeTable(destination(1), described(2, graph.Delay{MaxDelayTime: f32NaN(), ChannelCount: 1}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "infinite max delay",
			data:  raw(1, nodeTable(destination(1), described(2, graph.Delay{MaxDelayTime: float32(math.Inf(1)), ChannelCount: 1}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "max delay over limit",
			data:  raw(1, nodeTable(destination(1), described(2, graph.Delay{MaxDelayTime: 1e30, ChannelCount: 1}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "negative delay",
			data:  raw(1, nodeTable(destination(1), described(2, graph.Delay{DelayTime: -0.5, MaxDelayTime: 1, ChannelCount: 1}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "delay past max",
			data:  raw(1, nodeTable(destination(1), described(2, graph.Delay{DelayTime: 2, MaxDelayTime: 1, ChannelCount: 1}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "oversized delay line",
			data:  raw(1, nodeTable(destination(1), described(2, graph.Delay{MaxDelayTime: graph.MaxDelaySeconds, ChannelCount: graph.MaxChannels}))),
			cause: graph.ErrResource,
		},
		{
			name:  "delay channel count",
			data:  raw(1, nodeTable(destination(1), described(2, graph.Delay{MaxDelayTime: 1, ChannelCount: 1 << 20}))),
			cause: graph.ErrChannelCount,
		},
		{
			name:  "infinite buffer offset",
			data:  raw(1, nodeTable(destination(1), described(2, graph.AudioBufferSource{BufferID: 1, PlaybackRate: 1, Loop: true, Offset: math.Inf(1)}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "negative buffer offset",
			data:  raw(1, nodeTable(destination(1), described(2, graph.AudioBufferSource{BufferID: 1, PlaybackRate: 1, Offset: -1}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "nan loop start",
			data:  raw(1, nodeTable(destination(1), described(2, graph.AudioBufferSource{BufferID: 1, PlaybackRate: 1, Loop: true, LoopStart: math.NaN()}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "infinite loop end",
			data:  raw(1, nodeTable(destination(1), described(2, graph.AudioBufferSource{BufferID: 1, PlaybackRate: 1, Loop: true, LoopEnd: math.Inf(-1)}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "worklet outputs",
			data:  raw(1, nodeTable(destination(1), described(2, graph.AudioWorklet{ProcessorName: "p", Inputs: 1, Outputs: math.MaxUint32}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "worklet inputs",
			data:  raw(1, nodeTable(destination(1), described(2, graph.AudioWorklet{ProcessorName: "p", Inputs: 1 << 31, Outputs: 1}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "worklet params",
			data:  raw(1, nodeTable(destination(1), described(2, graph.AudioWorklet{ProcessorName: "p", Inputs: 1, Outputs: 1, ParamCount: 1 << 31}))),
			cause: graph.ErrNodeField,
		},
		{
			name:  "script buffer size",
			data:  raw(1, nodeTable(destination(1), described(2, graph.ScriptProcessor{BufferSize: 1 << 30, InputChannels: 1, OutputChannels: 1}))),
			cause: graph.ErrBufferSize,
		},
		{
			name:  "script channel count",
			data:  raw(1, nodeTable(destination(1), described(2, graph.ScriptProcessor{BufferSize: 256, InputChannels: math.MaxUint32}))),
			cause: graph.ErrChannelCount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := Decode(tt.data)
			require.Error(t, err)
			assert.Nil(t, res)
			require.ErrorIs(t, err, ErrDecode)

			var de *DecodeError
			require.ErrorAs(t, err, &de)
			if tt.cause != nil {
				require.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestDecodeRejectsBadSampleRate(t *testing.T) {
	t.Parallel()

	data, err := Encode(graph.NewDescription(1, 2), 48000, nil)
	require.NoError(t, err)

	for _, rate := range []float32{f32NaN(), float32(math.Inf(1)), 0, -48000, graph.MaxSampleRate * 2} {
		binary.LittleEndian.PutUint32(data[4:], math.Float32bits(rate))
		_, err = Decode(data)
		require.ErrorIs(t, err, ErrDecode, "%v", rate)
		require.ErrorIs(t, err, graph.ErrSampleRate, "%v", rate)
	}
}

func TestEncodeRejectsInvalidGraph(t *testing.T) {
	t.Parallel()

	d := graph.NewDescription(1, 2)
	d.Connections = []graph.Connection{{Source: 3, Destination: 1}}

	_, err := Encode(d, 48000, nil)
	require.ErrorIs(t, err, ErrEncode)
	require.ErrorIs(t, err, graph.ErrDanglingConnection)

	_, err = Encode(nil, 48000, nil)
	require.ErrorIs(t, err, ErrEncode)
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	s := Snapshot{NodeID: 9, Size: 4, Samples: []float32{0.5, -0.5, 0.25, 0}}
	got, err := DecodeSnapshot(EncodeSnapshot(s))
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = DecodeSnapshot(EncodeSnapshot(s)[:10])
	require.ErrorIs(t, err, ErrDecode)
}
