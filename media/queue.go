// SPDX-License-Identifier: EPL-2.0

package media

import (
	"sync/atomic"

	"github.com/ik5/audrender/internal/ring"
)

// Queue carries interleaved frames from one producer goroutine to one
// consumer (the render thread). Neither side blocks.
type Queue struct {
	rate     int
	channels int
	ring     *ring.Ring

	gen atomic.Uint64
	// mark is the ring write position at the latest discontinuity. It is
	// stored before gen is bumped.
	mark atomic.Uint64

	// seen is consumer-owned: the generation whose stale frames were flushed.
	seen uint64
}

// NewQueue returns a queue holding at least capacityFrames frames.
func NewQueue(rate, channels, capacityFrames int) *Queue {
	channels = max(channels, 1)
	return &Queue{
		rate:     rate,
		channels: channels,
		ring:     ring.New(max(capacityFrames, 1) * channels),
	}
}

func (q *Queue) SampleRate() int    { return q.rate }
func (q *Queue) Channels() int      { return q.channels }
func (q *Queue) Generation() uint64 { return q.gen.Load() }

// Buffered is the number of whole frames ready for the consumer.
func (q *Queue) Buffered() int { return q.ring.Len() / q.channels }

// Free is the number of whole frames the producer can push.
func (q *Queue) Free() int { return q.ring.Free() / q.channels }

// Push writes as many whole frames from samples as fit and returns the
// number of samples taken.
func (q *Queue) Push(samples []float32) int {
	frames := min(len(samples)/q.channels, q.Free())
	return q.ring.Write(samples[:frames*q.channels])
}

// Discontinuity marks a jump on the producer timeline. Frames pushed before
// the call are dropped by the consumer and the generation advances.
func (q *Queue) Discontinuity() {
	q.mark.Store(q.ring.Written())
	q.gen.Add(1)
}

// Read copies whole frames into dst and returns the sample count.
func (q *Queue) Read(dst []float32) int {
	if g := q.gen.Load(); g != q.seen {
		if stale := q.mark.Load(); stale > q.ring.Consumed() {
			q.ring.Discard(int(stale - q.ring.Consumed()))
		}
		q.seen = g
	}
	return q.ring.Read(dst[:len(dst)-len(dst)%q.channels])
}
