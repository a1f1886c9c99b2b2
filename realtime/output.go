// SPDX-License-Identifier: EPL-2.0

package realtime

import "github.com/ik5/audrender/internal/ring"

// Device is an output backend. Open hands it the consumer side of the ring;
// it must read from a single goroutine.
type Device interface {
	Open(out *Output) error
	Close() error
}

// Output is the device's view of the ring: interleaved float32 frames at
// SampleRate with Channels channels.
type Output struct {
	SampleRate int
	Channels   int
	ring       *ring.Ring
}

func newOutput(rate, channels, frames int) *Output {
	return &Output{SampleRate: rate, Channels: channels, ring: ring.New(frames * channels)}
}

// Read copies whole frames into dst and returns the sample count.
func (o *Output) Read(dst []float32) int {
	return o.ring.Read(dst[:len(dst)-len(dst)%o.Channels])
}

// Buffered is the number of frames waiting for the device.
func (o *Output) Buffered() int { return o.ring.Len() / o.Channels }

// Capacity is the ring size in frames.
func (o *Output) Capacity() int { return o.ring.Cap() / o.Channels }
