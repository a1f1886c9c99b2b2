// SPDX-License-Identifier: EPL-2.0

// Package ring implements a lock-free single-producer/single-consumer ring
// of interleaved float32 samples.
//
// One goroutine may call the write side (Write, WriteAll, Free) while another
// calls the read side (Read, Len). Neither side blocks or allocates.
package ring

import "sync/atomic"

// Ring is a fixed-capacity SPSC sample queue. Capacity is rounded up to a
// power of two so positions can be masked instead of divided.
type Ring struct {
	buf  []float32
	mask uint64

	// head is owned by the reader, tail by the writer. Both only grow.
	head atomic.Uint64
	tail atomic.Uint64
}

// New returns a ring holding at least capacity samples.
func New(capacity int) *Ring {
	size := 1
	for size < capacity {
		size <<= 1
	}

	return &Ring{
		buf:  make([]float32, size),
		mask: uint64(size - 1),
	}
}

func (r *Ring) Cap() int { return len(r.buf) }

// Len reports the number of samples available to the reader.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Free reports the number of samples the writer can push without overrun.
func (r *Ring) Free() int {
	return len(r.buf) - r.Len()
}

// Written is the total number of samples ever written.
func (r *Ring) Written() uint64 { return r.tail.Load() }

// Consumed is the total number of samples ever read or discarded.
func (r *Ring) Consumed() uint64 { return r.head.Load() }

// Write copies as many samples from src as fit and returns the count.
func (r *Ring) Write(src []float32) int {
	tail := r.tail.Load()
	free := len(r.buf) - int(tail-r.head.Load())
	n := min(free, len(src))
	if n <= 0 {
		return 0
	}

	start := int(tail & r.mask)
	first := min(n, len(r.buf)-start)
	copy(r.buf[start:start+first], src[:first])
	copy(r.buf[:n-first], src[first:n])

	r.tail.Store(tail + uint64(n))
	return n
}

// WriteAll writes src only if it fits entirely.
func (r *Ring) WriteAll(src []float32) bool {
	if r.Free() < len(src) {
		return false
	}
	r.Write(src)
	return true
}

// Read copies up to len(dst) samples into dst and returns the count.
func (r *Ring) Read(dst []float32) int {
	head := r.head.Load()
	avail := int(r.tail.Load() - head)
	n := min(avail, len(dst))
	if n <= 0 {
		return 0
	}

	start := int(head & r.mask)
	first := min(n, len(r.buf)-start)
	copy(dst[:first], r.buf[start:start+first])
	copy(dst[first:n], r.buf[:n-first])

	r.head.Store(head + uint64(n))
	return n
}

// Discard drops up to n readable samples and returns how many were dropped.
func (r *Ring) Discard(n int) int {
	head := r.head.Load()
	n = min(n, int(r.tail.Load()-head))
	if n <= 0 {
		return 0
	}
	r.head.Store(head + uint64(n))
	return n
}

// Reset empties the ring. It must not race with Read or Write.
func (r *Ring) Reset() {
	r.head.Store(0)
	r.tail.Store(0)
}
