// SPDX-License-Identifier: EPL-2.0

package offline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/render"
	"github.com/ik5/audrender/wire"
)

const testRate = 48000

func constantResult(t *testing.T, v float32) *graph.BuildResult {
	t.Helper()

	d := graph.NewDescription(1, 2)
	d.Nodes[2] = graph.ConstantSource{Offset: v, Start: graph.At(0)}
	d.Connections = []graph.Connection{{Source: 2, Destination: 1}}
	res, err := graph.NewBuildResult(d, testRate, nil)
	require.NoError(t, err)
	return res
}

// analyserResult is Oscillator -> Analyser(7) -> destination.
func analyserResult(t *testing.T) *graph.BuildResult {
	t.Helper()

	d := graph.NewDescription(1, 2)
	d.Nodes[2] = graph.Oscillator{Frequency: 440, Start: graph.At(0)}
	d.Nodes[7] = graph.Analyser{FFTSize: 1024, MinDecibels: -100, MaxDecibels: -30, Smoothing: 0.8}
	d.Connections = []graph.Connection{{Source: 2, Destination: 7}, {Source: 7, Destination: 1}}
	res, err := graph.NewBuildResult(d, testRate, nil)
	require.NoError(t, err)
	return res
}

func nextEvent(t *testing.T, r *Renderer) Event {
	t.Helper()

	select {
	case ev, ok := <-r.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func TestRenderWithoutSuspend(t *testing.T) {
	t.Parallel()

	r, err := New(constantResult(t, 0.5), Options{Length: 1000})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	ev := nextEvent(t, r)
	assert.Equal(t, EventComplete, ev.Kind)
	assert.Equal(t, uint64(1000), ev.Frame)
	assert.False(t, ev.Aborted)
	assert.Empty(t, ev.Snapshots)

	_, ok := <-r.Events()
	assert.False(t, ok, "exactly one completion")

	res, err := r.Wait()
	require.NoError(t, err)
	assert.Equal(t, testRate, res.SampleRate)
	assert.Equal(t, 2, res.Channels)
	assert.Equal(t, uint64(1000), res.Frames)
	require.Len(t, res.Samples, 2000)
	for i, v := range res.Samples {
		require.InDelta(t, 0.5, v, 1e-6, "sample %d", i)
	}
	assert.Equal(t, uint64(1000), r.Frame())
}

func TestSuspendYieldsTwoSnapshots(t *testing.T) {
	t.Parallel()

	r, err := New(analyserResult(t), Options{Length: 100000, SuspendAt: []uint64{50000}})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	var snaps []render.AnalyserSnapshot
	ev := nextEvent(t, r)
	require.Equal(t, EventSuspended, ev.Kind)
	assert.Equal(t, uint64(50000-50000%render.Quantum), ev.Frame)
	assert.Equal(t, ev.Frame, r.Frame(), "render goroutine holds at the suspend point")
	snaps = append(snaps, ev.Snapshots...)

	taps := ev.Taps()
	require.Len(t, taps, 1)
	tap, err := wire.DecodeSnapshot(taps[0])
	require.NoError(t, err)
	assert.Equal(t, graph.NodeID(7), tap.NodeID)
	assert.Equal(t, uint32(1024), tap.Size)
	assert.Len(t, tap.Samples, 1024)

	require.NoError(t, r.Resume(nil))
	ev = nextEvent(t, r)
	require.Equal(t, EventComplete, ev.Kind)
	snaps = append(snaps, ev.Snapshots...)

	require.Len(t, snaps, 2)
	assert.Equal(t, uint64(49920), snaps[0].Frame)
	assert.GreaterOrEqual(t, snaps[1].Frame, uint64(100000))
	assert.NotEqual(t, snaps[0].Time, snaps[1].Time)

	res, err := r.Wait()
	require.NoError(t, err)
	assert.Equal(t, uint64(100000), res.Frames)
	assert.Len(t, res.Samples, 200000)
}

func TestCompressorAndScriptTaps(t *testing.T) {
	t.Parallel()

	d := graph.NewDescription(1, 1)
	d.Nodes[2] = graph.ConstantSource{Offset: 1, Start: graph.At(0)}
	d.Nodes[3] = graph.DynamicsCompressor{Threshold: -24, Knee: 30, Ratio: 12, Attack: 0.003, Release: 0.25, ChannelCount: 1}
	d.Nodes[4] = graph.ScriptProcessor{BufferSize: 512, InputChannels: 1, OutputChannels: 1}
	d.Connections = []graph.Connection{{Source: 2, Destination: 3}, {Source: 3, Destination: 4}, {Source: 4, Destination: 1}}
	res, err := graph.NewBuildResult(d, testRate, nil)
	require.NoError(t, err)

	r, err := New(res, Options{Length: 4096})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	ev := nextEvent(t, r)
	require.Equal(t, EventComplete, ev.Kind)
	require.Len(t, ev.Compressors, 1)
	require.Len(t, ev.Scripts, 1)
	assert.Less(t, ev.Compressors[0].ReductionDB, float32(0))

	taps := ev.Taps()
	require.Len(t, taps, 2)

	reduction, err := wire.DecodeSnapshot(taps[0])
	require.NoError(t, err)
	assert.Equal(t, graph.NodeID(3), reduction.NodeID)
	assert.Equal(t, uint32(1), reduction.Size)
	assert.Equal(t, []float32{ev.Compressors[0].ReductionDB}, reduction.Samples)

	block, err := wire.DecodeSnapshot(taps[1])
	require.NoError(t, err)
	assert.Equal(t, graph.NodeID(4), block.NodeID)
	assert.Equal(t, uint32(512), block.Size)
	require.Len(t, block.Samples, 512)
	assert.Equal(t, ev.Scripts[0].Samples, block.Samples)

	_, err = r.Wait()
	require.NoError(t, err)
}

func TestTapsSkipIncompleteScriptBlocks(t *testing.T) {
	t.Parallel()

	ev := Event{Scripts: []render.ScriptBlock{{NodeID: 4, BufferSize: 256, Channels: 1}}}
	assert.Empty(t, ev.Taps())
}

func TestResumeWithNewGraph(t *testing.T) {
	t.Parallel()

	r, err := New(constantResult(t, 0.25), Options{Length: 512, SuspendAt: []uint64{300}})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	ev := nextEvent(t, r)
	require.Equal(t, EventSuspended, ev.Kind)
	require.Equal(t, uint64(256), ev.Frame)

	wrongRate, err := graph.NewBuildResult(graph.NewDescription(1, 2), 44100, nil)
	require.NoError(t, err)
	require.ErrorIs(t, r.Resume(wrongRate), ErrSampleRate)

	require.NoError(t, r.Resume(constantResult(t, 0.75)))
	require.ErrorIs(t, r.Resume(nil), ErrNotSuspended)

	res, err := r.Wait()
	require.NoError(t, err)
	for f := range 512 {
		want := float32(0.25)
		if f >= 256 {
			want = 0.75
		}
		require.InDelta(t, want, res.Samples[2*f], 1e-6, "frame %d", f)
		require.InDelta(t, want, res.Samples[2*f+1], 1e-6, "frame %d", f)
	}
}

func TestAbortWhileSuspended(t *testing.T) {
	t.Parallel()

	r, err := New(analyserResult(t), Options{Length: 4096, SuspendAt: []uint64{1024, 2048}})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	ev := nextEvent(t, r)
	require.Equal(t, EventSuspended, ev.Kind)
	r.Abort()

	ev = nextEvent(t, r)
	assert.Equal(t, EventComplete, ev.Kind)
	assert.True(t, ev.Aborted)
	assert.Equal(t, uint64(1024), ev.Frame)
	assert.Len(t, ev.Snapshots, 1, "final snapshot even on abort")

	res, err := r.Wait()
	require.ErrorIs(t, err, ErrAborted)
	assert.True(t, res.Aborted)
	assert.Equal(t, uint64(1024), res.Frames)
	assert.Len(t, res.Samples, 2048)
	require.ErrorIs(t, r.Resume(nil), ErrNotSuspended)
}

func TestCancelAborts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	r, err := New(constantResult(t, 1), Options{Length: 1024, SuspendAt: []uint64{128}})
	require.NoError(t, err)
	require.NoError(t, r.Start(ctx))

	require.Equal(t, EventSuspended, nextEvent(t, r).Kind)
	cancel()

	ev := nextEvent(t, r)
	assert.Equal(t, EventComplete, ev.Kind)
	assert.True(t, ev.Aborted)
	_, err = r.Wait()
	require.ErrorIs(t, err, ErrAborted)
}

func TestOptionsValidation(t *testing.T) {
	t.Parallel()

	res := constantResult(t, 1)
	tests := []struct {
		name string
		opts Options
		want error
	}{
		{name: "zero length", opts: Options{}, want: ErrLength},
		{name: "suspend at end", opts: Options{Length: 256, SuspendAt: []uint64{256}}, want: ErrSuspendFrame},
		{name: "same quantum", opts: Options{Length: 1024, SuspendAt: []uint64{130, 200}}, want: ErrSuspendFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(res, tt.opts)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := New(nil, Options{Length: 1})
	require.Error(t, err)
}

func TestLifecycleErrors(t *testing.T) {
	t.Parallel()

	r, err := New(constantResult(t, 1), Options{Length: 128})
	require.NoError(t, err)

	_, err = r.Wait()
	require.ErrorIs(t, err, ErrNotStarted)
	require.ErrorIs(t, r.Resume(nil), ErrNotSuspended)

	require.NoError(t, r.Start(context.Background()))
	require.ErrorIs(t, r.Start(context.Background()), ErrStarted)
	_, err = r.Wait()
	require.NoError(t, err)

	unused, err := New(constantResult(t, 1), Options{Length: 128})
	require.NoError(t, err)
	require.NoError(t, unused.Close())
}

func TestRenderResumesSuspensions(t *testing.T) {
	t.Parallel()

	res, err := Render(context.Background(), constantResult(t, 0.5),
		Options{Length: 640, SuspendAt: []uint64{0, 128, 512}})
	require.NoError(t, err)
	assert.Equal(t, uint64(640), res.Frames)
	assert.False(t, res.Aborted)
	assert.InDelta(t, 0.5, res.Samples[len(res.Samples)-1], 1e-6)
}
