// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(ids ...NodeID) []Connection {
	out := make([]Connection, 0, len(ids))
	for i := 0; i+1 < len(ids); i++ {
		out = append(out, Connection{Source: ids[i], Destination: ids[i+1]})
	}
	return out
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		desc func() *Description
		want error
	}{
		{
			name: "destination only",
			desc: func() *Description { return NewDescription(1, 2) },
		},
		{
			name: "missing destination",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.DestinationID = 9
				return d
			},
			want: ErrMissingDestination,
		},
		{
			name: "destination of wrong kind",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = Gain{Gain: 1}
				d.DestinationID = 2
				return d
			},
			want: ErrDestinationKind,
		},
		{
			name: "dangling connection",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Connections = chain(5, 1)
				return d
			},
			want: ErrDanglingConnection,
		},
		{
			name: "output port out of range",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = Gain{Gain: 1}
				d.Connections = []Connection{{Source: 2, Destination: 1, SourceOutput: 1}}
				return d
			},
			want: ErrPortOutOfRange,
		},
		{
			name: "param out of range",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = Gain{Gain: 1}
				d.Nodes[3] = ConstantSource{Offset: 1}
				d.ParamConnections = []ParamConnection{{Source: 3, Destination: 2, ParamIndex: 4}}
				return d
			},
			want: ErrParamOutOfRange,
		},
		{
			name: "automation target missing",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.ParamAutomations = []ParamAutomation{{Destination: 7}}
				return d
			},
			want: ErrDanglingConnection,
		},
		{
			name: "cycle without delay",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = Gain{Gain: 0.5}
				d.Nodes[3] = Gain{Gain: 0.5}
				d.Connections = append(chain(2, 3, 2), chain(3, 1)...)
				return d
			},
			want: ErrCycle,
		},
		{
			name: "cycle broken by delay",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = Gain{Gain: 0.5}
				d.Nodes[3] = Delay{DelayTime: 0.01, MaxDelayTime: 1, ChannelCount: 1}
				d.Connections = append(chain(2, 3, 2), chain(2, 1)...)
				return d
			},
		},
		{
			name: "nil node",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[4] = nil
				return d
			},
			want: ErrNilNode,
		},
		{
			name: "analyser fft size not a power of two",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = Analyser{FFTSize: 1000}
				return d
			},
			want: ErrFFTSize,
		},
		{
			name: "negative max delay",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = Delay{MaxDelayTime: -1, ChannelCount: 1}
				return d
			},
			want: ErrNodeField,
		},
		{
			name: "nan max delay",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = Delay{MaxDelayTime: float32(math.NaN()), ChannelCount: 1}
				return d
			},
			want: ErrNodeField,
		},
		{
			name: "max delay over limit",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = Delay{MaxDelayTime: MaxDelaySeconds + 1, ChannelCount: 1}
				return d
			},
			want: ErrNodeField,
		},
		{
			name: "delay past max",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = Delay{DelayTime: 2, MaxDelayTime: 1, ChannelCount: 1}
				return d
			},
			want: ErrNodeField,
		},
		{
			name: "infinite buffer offset",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = AudioBufferSource{BufferID: 1, PlaybackRate: 1, Offset: math.Inf(1)}
				return d
			},
			want: ErrNodeField,
		},
		{
			name: "negative buffer offset",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = AudioBufferSource{BufferID: 1, PlaybackRate: 1, Offset: -1}
				return d
			},
			want: ErrNodeField,
		},
		{
			name: "nan loop end",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = AudioBufferSource{BufferID: 1, PlaybackRate: 1, Loop: true, LoopEnd: math.NaN()}
				return d
			},
			want: ErrNodeField,
		},
		{
			name: "worklet input count",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = AudioWorklet{ProcessorName: "p", Inputs: 1 << 31, Outputs: 1}
				return d
			},
			want: ErrNodeField,
		},
		{
			name: "worklet param count",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = AudioWorklet{ProcessorName: "p", Inputs: 1, Outputs: 1, ParamCount: 1 << 31}
				return d
			},
			want: ErrNodeField,
		},
		{
			name: "too many channels",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = Delay{ChannelCount: MaxChannels + 1}
				return d
			},
			want: ErrChannelCount,
		},
		{
			name: "script buffer size",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = ScriptProcessor{BufferSize: 1000, InputChannels: 1, OutputChannels: 1}
				return d
			},
			want: ErrBufferSize,
		},
		{
			name: "script without channels",
			desc: func() *Description {
				d := NewDescription(1, 2)
				d.Nodes[2] = ScriptProcessor{BufferSize: 256}
				return d
			},
			want: ErrChannelCount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.desc().Validate()
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, ErrInvalidGraph)
		})
	}
}

func TestTopologyOrder(t *testing.T) {
	t.Parallel()

	d := NewDescription(1, 2)
	d.Nodes[10] = Oscillator{Frequency: 440, Start: At(0)}
	d.Nodes[5] = Gain{Gain: 0.5}
	d.Nodes[7] = ConstantSource{Offset: 0.1, Start: At(0)}
	d.Connections = chain(10, 5, 1)
	d.ParamConnections = []ParamConnection{{Source: 7, Destination: 5}}

	topo, err := d.Topology()
	require.NoError(t, err)
	assert.Equal(t, []NodeID{7, 10, 5, 1}, topo.Order)
	assert.Empty(t, topo.CycleDelays)
}

func TestTopologyCycleDelays(t *testing.T) {
	t.Parallel()

	d := NewDescription(1, 2)
	d.Nodes[2] = Gain{Gain: 0.5}
	d.Nodes[3] = Delay{DelayTime: 0.1, MaxDelayTime: 1, ChannelCount: 2}
	d.Nodes[4] = Delay{MaxDelayTime: 1, ChannelCount: 2}
	d.Connections = append(chain(2, 3, 2), chain(2, 4, 1)...)

	topo, err := d.Topology()
	require.NoError(t, err)
	assert.Equal(t, []NodeID{3}, topo.CycleDelays)
	// The cycle delay has no incoming edge left, so it runs first.
	assert.Equal(t, []NodeID{3, 2, 4, 1}, topo.Order)
}

func TestSameTopology(t *testing.T) {
	t.Parallel()

	base := NewDescription(1, 2)
	base.Nodes[2] = Gain{Gain: 0.5}
	base.Connections = chain(2, 1)

	params := NewDescription(1, 2)
	params.Nodes[2] = Gain{Gain: 0.9}
	params.Connections = chain(2, 1)
	assert.True(t, base.SameTopology(params))

	rewired := NewDescription(1, 2)
	rewired.Nodes[2] = Gain{Gain: 0.5}
	assert.False(t, base.SameTopology(rewired))

	reshaped := NewDescription(1, 1)
	reshaped.Nodes[2] = Gain{Gain: 0.5}
	reshaped.Connections = chain(2, 1)
	assert.False(t, base.SameTopology(reshaped))
}

func TestNewBuildResult(t *testing.T) {
	t.Parallel()

	d := NewDescription(1, 2)
	res, err := NewBuildResult(d, 48000, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Flags)
	assert.NotNil(t, res.Resources)

	d.Nodes[2] = AudioBufferSource{BufferID: 1, PlaybackRate: 1}
	d.Connections = chain(2, 1)
	res, err = NewBuildResult(d, 48000, nil)
	require.NoError(t, err)
	assert.True(t, res.Flags.Has(FlagContainsExternalResources))

	_, err = NewBuildResult(d, 0, nil)
	require.ErrorIs(t, err, ErrInvalidGraph)
	for _, rate := range []float32{float32(math.Inf(1)), float32(math.NaN()), MaxSampleRate * 2} {
		_, err = NewBuildResult(d, rate, nil)
		require.ErrorIs(t, err, ErrSampleRate, "%v", rate)
	}
}

func TestCheckStateSize(t *testing.T) {
	t.Parallel()

	d := NewDescription(1, MaxChannels)
	d.Nodes[2] = Delay{MaxDelayTime: MaxDelaySeconds, ChannelCount: 1}
	d.Connections = chain(2, 1)
	require.NoError(t, d.CheckStateSize(48000))

	d.Nodes[3] = Delay{MaxDelayTime: MaxDelaySeconds, ChannelCount: MaxChannels}
	err := d.CheckStateSize(48000)
	require.ErrorIs(t, err, ErrResource)
	var re *ResourceError
	require.ErrorAs(t, err, &re)
	assert.EqualValues(t, 3, re.ID)

	_, err = NewBuildResult(d, 48000, nil)
	require.ErrorIs(t, err, ErrResource)
}
