// SPDX-License-Identifier: EPL-2.0

// Package audrender is a Web Audio style rendering core: audio graphs are
// described, encoded to a compact wire format, built into render nodes and
// driven one 128-frame quantum at a time, either by a realtime thread that
// paces itself against a device ring or by an offline renderer that runs as
// fast as it can.
//
// # Packages
//
//   - graph: graph descriptions, validation, topological order, resources
//   - wire: the byte-exact graph codec and tap snapshots
//   - render: render nodes and the per-quantum graph executor
//   - session: pending/active graph handoff, suspend state, notifications
//   - realtime: the paced render loop writing into a device ring
//   - offline: per-request rendering with suspend points
//   - media: decoded media feeding media source nodes and buffers
//   - formats/...: WAV, MP3, Ogg Vorbis and AIFF decoders, WAV writers
//   - config: YAML configuration
//
// # Quick Start
//
// Render two seconds of a 440 Hz tone offline and export it as 8 kHz mono:
//
//	desc := graph.NewDescription(1, 2)
//	desc.Nodes[2] = graph.Oscillator{Frequency: 440, Start: graph.At(0)}
//	desc.Connections = []graph.Connection{{Source: 2, Destination: 1}}
//
//	res, _ := graph.NewBuildResult(desc, 48000, nil)
//	out, _ := offline.Render(ctx, res, offline.Options{Length: 96000})
//
//	pcm, _ := audrender.ExportMono16(out, 8000)
//	_ = wav.WriteWAV16(file, 8000, 1, pcm)
//
// The same graph can be shipped across a process boundary with wire.Encode
// and handed to session.Session.SetRenderGraphWire on the other side.
package audrender
