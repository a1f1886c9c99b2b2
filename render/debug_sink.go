// SPDX-License-Identifier: EPL-2.0

package render

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/internal/ring"
)

// MirrorSink receives the interleaved PCM of a debug sink. It is written
// from a background goroutine, never from the render thread.
type MirrorSink interface {
	WriteSamples(interleaved []float32) error
	Close() error
}

// MirrorFactory opens the mirror of one debug sink node.
type MirrorFactory func(id graph.NodeID, label string, sampleRate, channels int) (MirrorSink, error)

// mirrorQuanta is how many quanta the staging ring holds.
const mirrorQuanta = 64

// DebugSink forwards its input unchanged. With a mirror configured it also
// stages the stream in a ring that a goroutine drains into the sink. A full
// ring drops the quantum; a failed write disables the mirror. Neither
// affects the output.
type DebugSink struct {
	id       graph.NodeID
	label    string
	out      *Bus
	channels int

	sink     MirrorSink
	ring     *ring.Ring
	scratch  []float32
	disabled atomic.Bool
	dropped  atomic.Uint64
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	err      error
}

func newDebugSink(id graph.NodeID, d graph.DebugSink, sampleRate float64, capacity int, factory MirrorFactory) *DebugSink {
	channels := max(int(d.ChannelCount), 1)
	s := &DebugSink{
		id:       id,
		label:    d.Label,
		out:      NewBus(max(capacity, channels)),
		channels: channels,
	}
	if !d.Mirror || factory == nil {
		return s
	}

	sink, err := factory(id, d.Label, int(sampleRate), channels)
	if err != nil {
		log.Warnf("debug sink %d (%s): mirror disabled: %v", id, d.Label, err)
		return s
	}
	s.sink = sink
	s.ring = ring.New(mirrorQuanta * Quantum * channels)
	s.scratch = make([]float32, Quantum*channels)
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.drain()
	return s
}

func (s *DebugSink) Process(_ *Context, inputs []*Bus, _ []ParamBlock) {
	s.out.CopyFrom(inputs[0])

	if s.sink == nil || s.disabled.Load() {
		return
	}
	s.out.Interleave(s.scratch, s.channels)
	if !s.ring.WriteAll(s.scratch) {
		s.dropped.Add(1)
	}
}

func (s *DebugSink) drain() {
	defer s.wg.Done()

	buf := make([]float32, Quantum*s.channels*8)
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()

	for {
		for {
			n := s.ring.Read(buf)
			if n == 0 {
				break
			}
			if err := s.sink.WriteSamples(buf[:n]); err != nil {
				s.disabled.Store(true)
				s.err = fmt.Errorf("debug sink %d (%s): %w", s.id, s.label, err)
				log.Warnf("%v; mirror disabled", s.err)
				return
			}
		}

		select {
		case <-s.done:
			if s.ring.Len() == 0 {
				return
			}
		case <-tick.C:
		}
	}
}

// Mirroring reports whether the mirror is still accepting samples.
func (s *DebugSink) Mirroring() bool { return s.sink != nil && !s.disabled.Load() }

// Dropped is the number of quanta the mirror could not keep up with.
func (s *DebugSink) Dropped() uint64 { return s.dropped.Load() }

// Close flushes and closes the mirror. The returned error reports mirror
// failures only.
func (s *DebugSink) Close() error {
	if s.sink == nil {
		return nil
	}
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		if err := s.sink.Close(); err != nil && s.err == nil {
			s.err = fmt.Errorf("debug sink %d (%s): close: %w", s.id, s.label, err)
		}
	})
	return s.err
}

func (s *DebugSink) Output(int) *Bus { return s.out }

func (s *DebugSink) Apply(desc graph.NodeDescription) bool {
	x, ok := desc.(graph.DebugSink)
	return ok && x.Label == s.label
}
