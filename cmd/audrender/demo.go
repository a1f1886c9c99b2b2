// SPDX-License-Identifier: EPL-2.0

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/wire"
)

// Node ids of the demo graph.
const (
	nodeDestination graph.NodeID = iota + 1
	nodeTone
	nodeVibrato
	nodeVibratoDepth
	nodeAmp
	nodeAnalyser
	nodeSink
	nodeBuffer
	nodeMedia
	nodeExtras
	nodeEcho
	nodeEchoFeedback
	nodeLimiter
)

const (
	demoBufferID   = 1
	demoProviderID = 1
)

// demoSpec says which optional inputs the demo graph mixes in.
type demoSpec struct {
	channels      uint32
	rate          float32
	buffer        bool
	mediaChannels uint32
	mirror        bool
}

// demoGraph is a vibrato tone faded in over half a second, optional looped
// buffer and media inputs, a feedback echo, an analyser tap, a debug sink
// and a limiting compressor in front of the destination.
func demoGraph(s demoSpec) *graph.Description {
	d := graph.NewDescription(nodeDestination, s.channels)
	fadeFrames := uint64(s.rate / 2)

	d.Nodes[nodeTone] = graph.Oscillator{Waveform: graph.WaveformSine, Frequency: 220, Start: graph.At(0)}
	d.Nodes[nodeVibrato] = graph.Oscillator{Waveform: graph.WaveformSine, Frequency: 5, Start: graph.At(0)}
	d.Nodes[nodeVibratoDepth] = graph.Gain{Gain: 4}
	d.Nodes[nodeAmp] = graph.Gain{Gain: 0.2}
	d.Nodes[nodeAnalyser] = graph.Analyser{FFTSize: 2048, MinDecibels: -100, MaxDecibels: -30, Smoothing: 0.8}
	d.Nodes[nodeSink] = graph.DebugSink{ChannelCount: s.channels, Mirror: s.mirror, Label: "demo"}
	d.Nodes[nodeExtras] = graph.Gain{Gain: 0.5}
	d.Nodes[nodeEcho] = graph.Delay{DelayTime: 0.25, MaxDelayTime: 1, ChannelCount: s.channels}
	d.Nodes[nodeEchoFeedback] = graph.Gain{Gain: 0.3}
	d.Nodes[nodeLimiter] = graph.DynamicsCompressor{Threshold: -6, Knee: 0, Ratio: 20, Attack: 0.001, Release: 0.1, ChannelCount: s.channels}

	d.Connections = []graph.Connection{
		{Source: nodeVibrato, Destination: nodeVibratoDepth},
		{Source: nodeTone, Destination: nodeAmp},
		{Source: nodeAmp, Destination: nodeAnalyser},
		{Source: nodeExtras, Destination: nodeAnalyser},
		{Source: nodeAnalyser, Destination: nodeEcho},
		{Source: nodeEcho, Destination: nodeEchoFeedback},
		{Source: nodeEchoFeedback, Destination: nodeEcho},
		{Source: nodeAnalyser, Destination: nodeSink},
		{Source: nodeEchoFeedback, Destination: nodeSink},
		{Source: nodeSink, Destination: nodeLimiter},
		{Source: nodeLimiter, Destination: nodeDestination},
	}
	d.ParamConnections = []graph.ParamConnection{
		{Source: nodeVibratoDepth, Destination: nodeTone, ParamIndex: 0},
	}
	d.ParamAutomations = []graph.ParamAutomation{{
		Destination: nodeAmp,
		Initial:     0,
		Default:     1,
		Min:         0,
		Max:         1,
		Segments: []graph.Segment{{
			Type:       graph.SegmentLinearRamp,
			EndTime:    float64(fadeFrames) / float64(s.rate),
			EndFrame:   fadeFrames,
			StartValue: 0,
			EndValue:   0.2,
		}},
	}}

	if s.buffer {
		d.Nodes[nodeBuffer] = graph.AudioBufferSource{BufferID: demoBufferID, PlaybackRate: 1, Loop: true, Start: graph.At(0)}
		d.Connections = append(d.Connections, graph.Connection{Source: nodeBuffer, Destination: nodeExtras})
	}
	if s.mediaChannels > 0 {
		d.Nodes[nodeMedia] = graph.MediaElementSource{ProviderID: demoProviderID, ChannelCount: s.mediaChannels}
		d.Connections = append(d.Connections, graph.Connection{Source: nodeMedia, Destination: nodeExtras})
	}
	return d
}

func runDemo(e *env, args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	out := fs.String("o", "", "output file (required)")
	mirror := fs.Bool("mirror", false, "mirror the debug sink to the configured mirror_dir")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("demo: -o is required")
	}

	rate := float32(e.cfg.SampleRate)
	desc := demoGraph(demoSpec{channels: uint32(e.cfg.Channels), rate: rate, mirror: *mirror})
	data, err := wire.Encode(desc, rate, nil)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	e.log.Infof("Wrote %d byte demo graph to %s", len(data), *out)
	return nil
}
