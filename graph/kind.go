// SPDX-License-Identifier: EPL-2.0

package graph

import "fmt"

// NodeID identifies a node within a graph. It is assigned by the control side
// and stays stable across parameter-only updates.
type NodeID uint64

// Kind tags a node description. Values are the wire type tags.
type Kind uint8

const (
	KindDestination        Kind = 1
	KindGain               Kind = 2
	KindDelay              Kind = 3
	KindOscillator         Kind = 4
	KindAudioBufferSource  Kind = 5
	KindMediaElementSource Kind = 6
	KindMediaStreamSource  Kind = 7
	KindConstantSource     Kind = 8
	KindAnalyser           Kind = 9
	KindAudioWorklet       Kind = 10
	KindDebugSink          Kind = 11
	KindDynamicsCompressor Kind = 12
	KindScriptProcessor    Kind = 13
)

var kindNames = map[Kind]string{
	KindDestination:        "Destination",
	KindGain:               "Gain",
	KindDelay:              "Delay",
	KindOscillator:         "Oscillator",
	KindAudioBufferSource:  "AudioBufferSource",
	KindMediaElementSource: "MediaElementSource",
	KindMediaStreamSource:  "MediaStreamSource",
	KindConstantSource:     "ConstantSource",
	KindAnalyser:           "Analyser",
	KindAudioWorklet:       "AudioWorklet",
	KindDebugSink:          "DebugSink",
	KindDynamicsCompressor: "DynamicsCompressor",
	KindScriptProcessor:    "ScriptProcessor",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Known reports whether k is a kind this package can describe.
func (k Kind) Known() bool {
	_, ok := kindNames[k]
	return ok
}

// Waveform selects an oscillator shape.
type Waveform uint8

const (
	WaveformSine Waveform = iota
	WaveformSquare
	WaveformSawtooth
	WaveformTriangle
)

func (w Waveform) Valid() bool { return w <= WaveformTriangle }
