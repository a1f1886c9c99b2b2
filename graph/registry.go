// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"fmt"
	"maps"
	"slices"
)

// MaxBufferSamples bounds channel_count × length_in_frames of a single
// shared buffer.
const MaxBufferSamples = 1 << 27

// SharedBuffer is immutable planar sample data shared by every graph that
// references it.
type SharedBuffer struct {
	SampleRate float32
	Data       [][]float32
}

// NewSharedBuffer allocates a zeroed buffer.
func NewSharedBuffer(sampleRate float32, channels, frames int) *SharedBuffer {
	data := make([][]float32, channels)
	for c := range data {
		data[c] = make([]float32, frames)
	}
	return &SharedBuffer{SampleRate: sampleRate, Data: data}
}

func (b *SharedBuffer) ChannelCount() int { return len(b.Data) }

func (b *SharedBuffer) Length() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

func (b *SharedBuffer) check(id uint64) error {
	if len(b.Data) == 0 {
		return &ResourceError{ID: id, Reason: "buffer has no channels"}
	}
	if !ValidSampleRate(b.SampleRate) {
		return &ResourceError{ID: id, Reason: "sample rate out of range"}
	}
	n := len(b.Data[0])
	for _, ch := range b.Data[1:] {
		if len(ch) != n {
			return &ResourceError{ID: id, Reason: "channels differ in length"}
		}
	}
	if n*len(b.Data) > MaxBufferSamples {
		return &ResourceError{ID: id, Reason: "buffer too large"}
	}
	return nil
}

// MediaProvider is the consumer side of a media element or stream queue. Read
// never blocks; it returns the number of interleaved samples copied.
type MediaProvider interface {
	SampleRate() int
	Channels() int
	// Generation changes whenever the producer jumps to a non-contiguous
	// position on its timeline.
	Generation() uint64
	// Buffered is the number of frames ready to read.
	Buffered() int
	Read(dst []float32) int
}

// Registry resolves buffer and media provider ids. It is populated on the
// control side and read-only afterwards.
type Registry struct {
	buffers   map[uint64]*SharedBuffer
	providers map[uint64]MediaProvider
}

func NewRegistry() *Registry {
	return &Registry{
		buffers:   make(map[uint64]*SharedBuffer),
		providers: make(map[uint64]MediaProvider),
	}
}

// AddBuffer publishes b under id, replacing any previous buffer.
func (r *Registry) AddBuffer(id uint64, b *SharedBuffer) error {
	if b == nil {
		return &ResourceError{ID: id, Reason: "nil buffer"}
	}
	if err := b.check(id); err != nil {
		return err
	}
	r.buffers[id] = b
	return nil
}

// ResolveAudioBuffer returns the buffer registered under id.
func (r *Registry) ResolveAudioBuffer(id uint64) (*SharedBuffer, error) {
	if r != nil {
		if b, ok := r.buffers[id]; ok {
			return b, nil
		}
	}
	return nil, &ResourceError{ID: id, Reason: "unresolved buffer id"}
}

func (r *Registry) AddMediaProvider(id uint64, p MediaProvider) {
	r.providers[id] = p
}

// ResolveMediaProvider returns the provider registered under id. A provider
// without channels or with an unusable rate is refused.
func (r *Registry) ResolveMediaProvider(id uint64) (MediaProvider, error) {
	var p MediaProvider
	if r != nil {
		p = r.providers[id]
	}
	switch {
	case p == nil:
		return nil, &ResourceError{ID: id, Reason: "unresolved media provider id"}
	case p.Channels() <= 0 || p.Channels() > MaxChannels:
		return nil, &ResourceError{ID: id, Reason: fmt.Sprintf("media provider has %d channels", p.Channels())}
	case p.SampleRate() <= 0 || p.SampleRate() > MaxSampleRate:
		return nil, &ResourceError{ID: id, Reason: fmt.Sprintf("media provider rate %d Hz", p.SampleRate())}
	}
	return p, nil
}

// BufferIDs lists registered buffer ids in ascending order.
func (r *Registry) BufferIDs() []uint64 {
	return slices.Sorted(maps.Keys(r.buffers))
}

// Clone returns a registry sharing r's buffers and providers. A nil r yields
// an empty registry.
func (r *Registry) Clone() *Registry {
	out := NewRegistry()
	if r != nil {
		maps.Copy(out.buffers, r.buffers)
		maps.Copy(out.providers, r.providers)
	}
	return out
}
