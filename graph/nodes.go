// SPDX-License-Identifier: EPL-2.0

package graph

import "math"

// NodeDescription is implemented by one struct per node kind. Values are
// treated as immutable once placed in a Description.
type NodeDescription interface {
	Kind() Kind
	// InputCount and OutputCount are the number of audio ports.
	InputCount() int
	OutputCount() int
	// Params lists the automatable parameters in index order, with Value set
	// to the node's current intrinsic value.
	Params() []ParamSpec
}

// OptionalFrame is a frame index that may be unset.
type OptionalFrame struct {
	Valid bool
	Frame uint64
}

// At returns a set OptionalFrame.
func At(frame uint64) OptionalFrame {
	return OptionalFrame{Valid: true, Frame: frame}
}

const maxValue = math.MaxFloat32

// Bounds on construction-time fields. Render state is allocated from them,
// so a graph that exceeds one is rejected rather than clamped.
const (
	MaxChannels      = 32
	MaxSampleRate    = 768000
	MaxDelaySeconds  = 180
	MaxWorkletPorts  = 32
	MaxWorkletParams = 256
)

// ValidSampleRate reports whether rate is a finite rate in (0, MaxSampleRate].
func ValidSampleRate(rate float32) bool {
	return rate > 0 && rate <= MaxSampleRate
}

type Destination struct {
	ChannelCount uint32
}

func (Destination) Kind() Kind          { return KindDestination }
func (Destination) InputCount() int     { return 1 }
func (Destination) OutputCount() int    { return 1 }
func (Destination) Params() []ParamSpec { return nil }

type Gain struct {
	Gain float32
}

func (Gain) Kind() Kind        { return KindGain }
func (Gain) InputCount() int   { return 1 }
func (Gain) OutputCount() int  { return 1 }
func (g Gain) Params() []ParamSpec {
	return []ParamSpec{{Name: "gain", Value: g.Gain, Default: 1, Min: -maxValue, Max: maxValue}}
}

// Delay times are in seconds.
type Delay struct {
	DelayTime    float32
	MaxDelayTime float32
	ChannelCount uint32
}

func (Delay) Kind() Kind       { return KindDelay }
func (Delay) InputCount() int  { return 1 }
func (Delay) OutputCount() int { return 1 }
func (d Delay) Params() []ParamSpec {
	return []ParamSpec{{Name: "delayTime", Value: d.DelayTime, Default: 0, Min: 0, Max: d.MaxDelayTime}}
}

type Oscillator struct {
	Waveform  Waveform
	Frequency float32
	Detune    float32 // cents
	Start     OptionalFrame
	Stop      OptionalFrame
}

func (Oscillator) Kind() Kind       { return KindOscillator }
func (Oscillator) InputCount() int  { return 0 }
func (Oscillator) OutputCount() int { return 1 }
func (o Oscillator) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "frequency", Value: o.Frequency, Default: 440, Min: -maxValue, Max: maxValue},
		{Name: "detune", Value: o.Detune, Default: 0, Min: -maxValue, Max: maxValue},
	}
}

// AudioBufferSource plays a registry buffer. Loop points and Offset are in
// seconds of buffer time; Start, Stop and Duration are context frames.
type AudioBufferSource struct {
	BufferID     uint64
	PlaybackRate float32
	Detune       float32
	Loop         bool
	LoopStart    float64
	LoopEnd      float64
	Start        OptionalFrame
	Stop         OptionalFrame
	Offset       float64
	Duration     OptionalFrame
}

func (AudioBufferSource) Kind() Kind       { return KindAudioBufferSource }
func (AudioBufferSource) InputCount() int  { return 0 }
func (AudioBufferSource) OutputCount() int { return 1 }
func (b AudioBufferSource) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "playbackRate", Value: b.PlaybackRate, Default: 1, Min: -maxValue, Max: maxValue, Rate: KRate},
		{Name: "detune", Value: b.Detune, Default: 0, Min: -maxValue, Max: maxValue, Rate: KRate},
	}
}

type MediaElementSource struct {
	ProviderID   uint64
	ChannelCount uint32
}

func (MediaElementSource) Kind() Kind          { return KindMediaElementSource }
func (MediaElementSource) InputCount() int     { return 0 }
func (MediaElementSource) OutputCount() int    { return 1 }
func (MediaElementSource) Params() []ParamSpec { return nil }

type MediaStreamSource struct {
	ProviderID   uint64
	ChannelCount uint32
}

func (MediaStreamSource) Kind() Kind          { return KindMediaStreamSource }
func (MediaStreamSource) InputCount() int     { return 0 }
func (MediaStreamSource) OutputCount() int    { return 1 }
func (MediaStreamSource) Params() []ParamSpec { return nil }

type ConstantSource struct {
	Offset float32
	Start  OptionalFrame
	Stop   OptionalFrame
}

func (ConstantSource) Kind() Kind       { return KindConstantSource }
func (ConstantSource) InputCount() int  { return 0 }
func (ConstantSource) OutputCount() int { return 1 }
func (c ConstantSource) Params() []ParamSpec {
	return []ParamSpec{{Name: "offset", Value: c.Offset, Default: 1, Min: -maxValue, Max: maxValue}}
}

type Analyser struct {
	FFTSize     uint32
	MinDecibels float32
	MaxDecibels float32
	Smoothing   float32
}

// ValidFFTSize reports whether n is a power of two in [32, 32768].
func ValidFFTSize(n uint32) bool {
	return n >= 32 && n <= 32768 && n&(n-1) == 0
}

func (Analyser) Kind() Kind          { return KindAnalyser }
func (Analyser) InputCount() int     { return 1 }
func (Analyser) OutputCount() int    { return 1 }
func (Analyser) Params() []ParamSpec { return nil }

// AudioWorklet is processed by an external host; parameters are opaque
// indices defined by the processor.
type AudioWorklet struct {
	ProcessorName string
	Inputs        uint32
	Outputs       uint32
	ChannelCount  uint32
	ParamCount    uint32
}

func (AudioWorklet) Kind() Kind         { return KindAudioWorklet }
func (w AudioWorklet) InputCount() int  { return int(w.Inputs) }
func (w AudioWorklet) OutputCount() int { return int(w.Outputs) }
func (w AudioWorklet) Params() []ParamSpec {
	out := make([]ParamSpec, w.ParamCount)
	for i := range out {
		out[i] = ParamSpec{Min: -maxValue, Max: maxValue}
	}
	return out
}

// DebugSink passes its input through and optionally mirrors it to a
// diagnostics writer.
type DebugSink struct {
	ChannelCount uint32
	Mirror       bool
	Label        string
}

func (DebugSink) Kind() Kind          { return KindDebugSink }
func (DebugSink) InputCount() int     { return 1 }
func (DebugSink) OutputCount() int    { return 1 }
func (DebugSink) Params() []ParamSpec { return nil }

// DynamicsCompressor levels are in dB, attack and release in seconds.
type DynamicsCompressor struct {
	Threshold    float32
	Knee         float32
	Ratio        float32
	Attack       float32
	Release      float32
	ChannelCount uint32
}

func (DynamicsCompressor) Kind() Kind       { return KindDynamicsCompressor }
func (DynamicsCompressor) InputCount() int  { return 1 }
func (DynamicsCompressor) OutputCount() int { return 1 }
func (c DynamicsCompressor) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "threshold", Value: c.Threshold, Default: -24, Min: -100, Max: 0, Rate: KRate},
		{Name: "knee", Value: c.Knee, Default: 30, Min: 0, Max: 40, Rate: KRate},
		{Name: "ratio", Value: c.Ratio, Default: 12, Min: 1, Max: 20, Rate: KRate},
		{Name: "attack", Value: c.Attack, Default: 0.003, Min: 0, Max: 1, Rate: KRate},
		{Name: "release", Value: c.Release, Default: 0.25, Min: 0, Max: 1, Rate: KRate},
	}
}

// ScriptProcessor hands its input to a host in blocks of BufferSize frames
// and plays back what the host returns one block later.
type ScriptProcessor struct {
	BufferSize     uint32
	InputChannels  uint32
	OutputChannels uint32
}

// ValidScriptBufferSize reports whether n is a power of two in [256, 16384].
func ValidScriptBufferSize(n uint32) bool {
	return n >= 256 && n <= 16384 && n&(n-1) == 0
}

func (ScriptProcessor) Kind() Kind          { return KindScriptProcessor }
func (ScriptProcessor) InputCount() int     { return 1 }
func (ScriptProcessor) OutputCount() int    { return 1 }
func (ScriptProcessor) Params() []ParamSpec { return nil }

// SameShape reports whether b can replace a without rebuilding render state:
// same kind and the same construction-time fields.
func SameShape(a, b NodeDescription) bool {
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return false
	}

	switch x := a.(type) {
	case Destination:
		return x == b.(Destination)
	case Delay:
		y := b.(Delay)
		return x.MaxDelayTime == y.MaxDelayTime && x.ChannelCount == y.ChannelCount
	case AudioBufferSource:
		return x.BufferID == b.(AudioBufferSource).BufferID
	case MediaElementSource:
		return x == b.(MediaElementSource)
	case MediaStreamSource:
		return x == b.(MediaStreamSource)
	case Analyser:
		return x.FFTSize == b.(Analyser).FFTSize
	case AudioWorklet:
		return x == b.(AudioWorklet)
	case DebugSink:
		return x == b.(DebugSink)
	case DynamicsCompressor:
		return x.ChannelCount == b.(DynamicsCompressor).ChannelCount
	case ScriptProcessor:
		return x == b.(ScriptProcessor)
	}
	return true
}

// ChannelHint is the widest channel count a node is declared to produce, or
// 0 when it follows its input.
func ChannelHint(n NodeDescription) int {
	switch x := n.(type) {
	case Destination:
		return int(x.ChannelCount)
	case Delay:
		return int(x.ChannelCount)
	case MediaElementSource:
		return int(x.ChannelCount)
	case MediaStreamSource:
		return int(x.ChannelCount)
	case AudioWorklet:
		return int(x.ChannelCount)
	case DebugSink:
		return int(x.ChannelCount)
	case DynamicsCompressor:
		return int(x.ChannelCount)
	case ScriptProcessor:
		return int(max(x.InputChannels, x.OutputChannels))
	}
	return 0
}
