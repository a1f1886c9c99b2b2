// SPDX-License-Identifier: EPL-2.0

// Package wav reads and writes WAV files.
//
// Decoder accepts integer PCM at 8, 16, 24 and 32 bits and 32-bit IEEE
// float, in any channel layout, and yields interleaved float32 in [-1, 1].
// Inputs that cannot seek are buffered in memory first.
//
// WriteWAV16 writes a complete 16-bit PCM file to any io.Writer:
//
//	err := wav.WriteWAV16(f, 48000, 2, samples)
//
// FloatWriter streams float32 frames into a 32-bit float file and patches
// the header on Close. It is the sink used for debug mirrors:
//
//	w, err := wav.Create("node-7.wav", 48000, 2)
//	...
//	err = w.WriteSamples(frames)
//	err = w.Close()
package wav
