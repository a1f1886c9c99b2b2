// SPDX-License-Identifier: EPL-2.0

// Package audio provides pull-based PCM building blocks shared by the
// renderer and the media feeders.
//
// Everything speaks interleaved float32 in [-1,1] through the Source
// interface:
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// A read of (0, nil) means the source has nothing buffered right now; it is
// not the end of the stream. io.EOF is.
//
// # Resampling
//
// Resampler converts between sample rates with Catmull-Rom interpolation.
// Its step can be steered at runtime, which is how media element sources
// track a producer whose clock drifts against the context:
//
//	rs := audio.NewResampler(src, 48000)
//	_ = rs.SetRatio(rs.NominalRatio() * 1.001)
//
// Starved reads return what was produced so far and resume on the next
// call. Reset drops the interpolation window after a discontinuity.
//
// # Helpers
//
// MonoMixer averages channels down to mono, SliceSource and
// NewPlanarSource serve in-memory data, and Drain collects a whole source.
// Registry maps format keys to decoders (see formats).
package audio
