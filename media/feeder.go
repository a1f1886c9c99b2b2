// SPDX-License-Identifier: EPL-2.0

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ik5/audrender/audio"
)

const defaultPoll = 5 * time.Millisecond

// Feeder drains a Source into a Queue.
type Feeder struct {
	src  audio.Source
	q    *Queue
	poll time.Duration
	buf  []float32
}

// NewFeeder pairs src with q. The source must already produce the queue's
// rate and channel layout; rate conversion happens in the render graph.
func NewFeeder(src audio.Source, q *Queue) (*Feeder, error) {
	if src.SampleRate() != q.SampleRate() || src.Channels() != q.Channels() {
		return nil, fmt.Errorf("%w: source %d Hz/%d ch, queue %d Hz/%d ch",
			ErrFormatMismatch, src.SampleRate(), src.Channels(), q.SampleRate(), q.Channels())
	}
	size := src.BufSize()
	size -= size % src.Channels()
	if size <= 0 {
		size = 1024 * src.Channels()
	}
	return &Feeder{src: src, q: q, poll: defaultPoll, buf: make([]float32, size)}, nil
}

// SetPoll changes how long Run waits when the queue is full or the source
// has nothing ready.
func (f *Feeder) SetPoll(d time.Duration) {
	if d > 0 {
		f.poll = d
	}
}

// Run feeds until the source ends, fails or ctx is done. Reaching the end
// of the source is not an error. The source is closed on return.
func (f *Feeder) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := f.src.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing source: %w", cerr)
		}
	}()

	var pending []float32
	timer := time.NewTimer(f.poll)
	defer timer.Stop()

	wait := func() error {
		timer.Reset(f.poll)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(pending) == 0 {
			n, rerr := f.src.ReadSamples(f.buf)
			pending = f.buf[:n]
			switch {
			case errors.Is(rerr, io.EOF):
				if err := f.flush(ctx, pending, wait); err != nil {
					return err
				}
				log.Debugf("Feeder source drained")
				return nil
			case rerr != nil:
				return fmt.Errorf("reading source: %w", rerr)
			case n == 0:
				if err := wait(); err != nil {
					return err
				}
				continue
			}
		}

		pending = pending[f.q.Push(pending):]
		if len(pending) > 0 {
			if err := wait(); err != nil {
				return err
			}
		}
	}
}

func (f *Feeder) flush(ctx context.Context, pending []float32, wait func() error) error {
	for len(pending) > 0 {
		pending = pending[f.q.Push(pending):]
		if len(pending) == 0 {
			break
		}
		if err := wait(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// RunFeeders runs every feeder concurrently. The first failure cancels
// the rest.
func RunFeeders(ctx context.Context, feeders ...*Feeder) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, f := range feeders {
		g.Go(func() error { return f.Run(ctx) })
	}
	return g.Wait()
}
