// SPDX-License-Identifier: EPL-2.0

package wire

import "github.com/ik5/audrender/graph"

// encodeNode writes the per-kind payload. Field order is part of the format.
func encodeNode(e *encoder, n graph.NodeDescription) {
	switch x := n.(type) {
	case graph.Destination:
		e.u32(x.ChannelCount)
	case graph.Gain:
		e.f32(x.Gain)
	case graph.Delay:
		e.f32(x.DelayTime)
		e.f32(x.MaxDelayTime)
		e.u32(x.ChannelCount)
	case graph.Oscillator:
		e.u8(uint8(x.Waveform))
		e.f32(x.Frequency)
		e.f32(x.Detune)
		e.frame(x.Start)
		e.frame(x.Stop)
	case graph.AudioBufferSource:
		e.u64(x.BufferID)
		e.f32(x.PlaybackRate)
		e.f32(x.Detune)
		e.boolean(x.Loop)
		e.f64(x.LoopStart)
		e.f64(x.LoopEnd)
		e.frame(x.Start)
		e.frame(x.Stop)
		e.f64(x.Offset)
		e.frame(x.Duration)
	case graph.MediaElementSource:
		e.u64(x.ProviderID)
		e.u32(x.ChannelCount)
	case graph.MediaStreamSource:
		e.u64(x.ProviderID)
		e.u32(x.ChannelCount)
	case graph.ConstantSource:
		e.f32(x.Offset)
		e.frame(x.Start)
		e.frame(x.Stop)
	case graph.Analyser:
		e.u32(x.FFTSize)
		e.f32(x.MinDecibels)
		e.f32(x.MaxDecibels)
		e.f32(x.Smoothing)
	case graph.AudioWorklet:
		e.str(x.ProcessorName)
		e.u32(x.Inputs)
		e.u32(x.Outputs)
		e.u32(x.ChannelCount)
		e.u32(x.ParamCount)
	case graph.DebugSink:
		e.u32(x.ChannelCount)
		e.boolean(x.Mirror)
		e.str(x.Label)
	case graph.DynamicsCompressor:
		e.f32(x.Threshold)
		e.f32(x.Knee)
		e.f32(x.Ratio)
		e.f32(x.Attack)
		e.f32(x.Release)
		e.u32(x.ChannelCount)
	case graph.ScriptProcessor:
		e.u32(x.BufferSize)
		e.u32(x.InputChannels)
		e.u32(x.OutputChannels)
	}
}

// decodeNode returns nil for an unknown kind.
func decodeNode(d *decoder, kind graph.Kind) graph.NodeDescription {
	switch kind {
	case graph.KindDestination:
		return graph.Destination{ChannelCount: d.u32()}
	case graph.KindGain:
		return graph.Gain{Gain: d.f32()}
	case graph.KindDelay:
		return graph.Delay{DelayTime: d.f32(), MaxDelayTime: d.f32(), ChannelCount: d.u32()}
	case graph.KindOscillator:
		return graph.Oscillator{
			Waveform:  graph.Waveform(d.u8()),
			Frequency: d.f32(),
			Detune:    d.f32(),
			Start:     d.frame(),
			Stop:      d.frame(),
		}
	case graph.KindAudioBufferSource:
		return graph.AudioBufferSource{
			BufferID:     d.u64(),
			PlaybackRate: d.f32(),
			Detune:       d.f32(),
			Loop:         d.boolean(),
			LoopStart:    d.f64(),
			LoopEnd:      d.f64(),
			Start:        d.frame(),
			Stop:         d.frame(),
			Offset:       d.f64(),
			Duration:     d.frame(),
		}
	case graph.KindMediaElementSource:
		return graph.MediaElementSource{ProviderID: d.u64(), ChannelCount: d.u32()}
	case graph.KindMediaStreamSource:
		return graph.MediaStreamSource{ProviderID: d.u64(), ChannelCount: d.u32()}
	case graph.KindConstantSource:
		return graph.ConstantSource{Offset: d.f32(), Start: d.frame(), Stop: d.frame()}
	case graph.KindAnalyser:
		return graph.Analyser{
			FFTSize:     d.u32(),
			MinDecibels: d.f32(),
			MaxDecibels: d.f32(),
			Smoothing:   d.f32(),
		}
	case graph.KindAudioWorklet:
		return graph.AudioWorklet{
			ProcessorName: d.str(),
			Inputs:        d.u32(),
			Outputs:       d.u32(),
			ChannelCount:  d.u32(),
			ParamCount:    d.u32(),
		}
	case graph.KindDebugSink:
		return graph.DebugSink{ChannelCount: d.u32(), Mirror: d.boolean(), Label: d.str()}
	case graph.KindDynamicsCompressor:
		return graph.DynamicsCompressor{
			Threshold:    d.f32(),
			Knee:         d.f32(),
			Ratio:        d.f32(),
			Attack:       d.f32(),
			Release:      d.f32(),
			ChannelCount: d.u32(),
		}
	case graph.KindScriptProcessor:
		return graph.ScriptProcessor{BufferSize: d.u32(), InputChannels: d.u32(), OutputChannels: d.u32()}
	}
	return nil
}

func encodeAutomation(e *encoder, a *graph.ParamAutomation) {
	e.u64(uint64(a.Destination))
	e.u32(a.ParamIndex)
	e.f32(a.Initial)
	e.f32(a.Default)
	e.f32(a.Min)
	e.f32(a.Max)
	e.u8(uint8(a.Rate))
	e.u32(uint32(len(a.Segments)))
	for i := range a.Segments {
		s := &a.Segments[i]
		e.u8(uint8(s.Type))
		e.f64(s.StartTime)
		e.f64(s.EndTime)
		e.u64(s.StartFrame)
		e.u64(s.EndFrame)
		e.f32(s.StartValue)
		e.f32(s.EndValue)
		e.f32(s.TimeConstant)
		e.f32(s.Target)
		e.u32(uint32(len(s.Curve)))
		e.floats(s.Curve)
	}
}

const (
	automationHeaderSize = 8 + 4 + 4*4 + 1 + 4
	segmentMinSize       = 1 + 8*4 + 4*4 + 4
)

func decodeAutomations(d *decoder, desc *graph.Description) {
	n := d.count(automationHeaderSize)
	if n == 0 {
		return
	}
	desc.ParamAutomations = make([]graph.ParamAutomation, n)
	for i := range desc.ParamAutomations {
		a := &desc.ParamAutomations[i]
		a.Destination = graph.NodeID(d.u64())
		a.ParamIndex = d.u32()
		a.Initial = d.f32()
		a.Default = d.f32()
		a.Min = d.f32()
		a.Max = d.f32()
		a.Rate = graph.AutomationRate(d.u8())
		if a.Rate > graph.KRate {
			d.fail("automation rate", nil)
			return
		}

		segs := d.count(segmentMinSize)
		if segs > 0 {
			a.Segments = make([]graph.Segment, segs)
		}
		for j := range a.Segments {
			s := &a.Segments[j]
			s.Type = graph.SegmentType(d.u8())
			if !s.Type.Valid() {
				d.fail("segment type", nil)
				return
			}
			s.StartTime = d.f64()
			s.EndTime = d.f64()
			s.StartFrame = d.u64()
			s.EndFrame = d.u64()
			s.StartValue = d.f32()
			s.EndValue = d.f32()
			s.TimeConstant = d.f32()
			s.Target = d.f32()
			s.Curve = d.floats(d.count(4))
		}
		if d.err != nil {
			return
		}
	}
}
