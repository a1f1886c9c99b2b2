// SPDX-License-Identifier: EPL-2.0

package render

import "github.com/ik5/audrender/graph"

const (
	// Quantum is the number of frames rendered per call.
	Quantum = 128
	// MaxChannels bounds any bus.
	MaxChannels = graph.MaxChannels
)

// Bus holds up to Capacity channels of one quantum each. The active channel
// count can change between quanta; zero channels means silent or inactive.
type Bus struct {
	data     [][]float32
	channels int
}

// NewBus allocates capacity channels up front.
func NewBus(capacity int) *Bus {
	capacity = min(max(capacity, 1), MaxChannels)
	backing := make([]float32, capacity*Quantum)
	b := &Bus{data: make([][]float32, capacity)}
	for c := range capacity {
		b.data[c] = backing[c*Quantum : (c+1)*Quantum : (c+1)*Quantum]
	}
	return b
}

func (b *Bus) Channels() int { return b.channels }
func (b *Bus) Capacity() int { return len(b.data) }

// SetChannels changes the active channel count. Growing past the capacity
// allocates and is logged; callers size buses so this stays rare.
func (b *Bus) SetChannels(n int) {
	n = min(max(n, 0), MaxChannels)
	if n > len(b.data) {
		log.Debugf("bus grown from %d to %d channels", len(b.data), n)
		for len(b.data) < n {
			b.data = append(b.data, make([]float32, Quantum))
		}
	}
	b.channels = n
}

// Channel returns the samples of channel c, which must be active.
func (b *Bus) Channel(c int) []float32 { return b.data[c] }

// Zero clears the active channels.
func (b *Bus) Zero() {
	for c := range b.channels {
		clear(b.data[c])
	}
}

// CopyFrom makes b an exact copy of src.
func (b *Bus) CopyFrom(src *Bus) {
	b.SetChannels(src.channels)
	for c := range src.channels {
		copy(b.data[c], src.data[c])
	}
}

// SumFrom adds src into b's active channels. Mono feeds both channels of a
// stereo bus, stereo folds to mono at half gain, anything else maps channel
// by channel and drops what does not fit.
func (b *Bus) SumFrom(src *Bus) {
	switch {
	case src.channels == 0 || b.channels == 0:
	case src.channels == 1 && b.channels == 2:
		add(b.data[0], src.data[0])
		add(b.data[1], src.data[0])
	case src.channels == 2 && b.channels == 1:
		dst, l, r := b.data[0], src.data[0], src.data[1]
		for i := range dst {
			dst[i] += 0.5 * (l[i] + r[i])
		}
	default:
		for c := range min(b.channels, src.channels) {
			add(b.data[c], src.data[c])
		}
	}
}

// MonoAt returns the down-mixed value of frame i.
func (b *Bus) MonoAt(i int) float32 {
	switch b.channels {
	case 0:
		return 0
	case 1:
		return b.data[0][i]
	}
	var sum float32
	for c := range b.channels {
		sum += b.data[c][i]
	}
	return sum / float32(b.channels)
}

// Interleave writes the quantum into dst as channels interleaved channels.
// Missing channels are written as silence. dst must hold
// Quantum*channels samples.
func (b *Bus) Interleave(dst []float32, channels int) {
	for c := range channels {
		if c >= b.channels {
			for i := range Quantum {
				dst[i*channels+c] = 0
			}
			continue
		}
		src := b.data[c]
		for i, v := range src {
			dst[i*channels+c] = v
		}
	}
}

// IsSilent reports whether every active sample is zero.
func (b *Bus) IsSilent() bool {
	for c := range b.channels {
		for _, v := range b.data[c] {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

func add(dst, src []float32) {
	for i, v := range src {
		dst[i] += v
	}
}
