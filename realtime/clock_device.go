// SPDX-License-Identifier: EPL-2.0

package realtime

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ClockDevice stands in for hardware: it drains the ring at the output's
// real-time rate on a ticker and hands every period to Sink, if set. It is
// what the CLI demo and tests use in place of a sound card.
type ClockDevice struct {
	Period time.Duration
	// Sink receives interleaved samples; underrun periods are zero-filled.
	// A Sink error stops consumption and is returned by Close.
	Sink func([]float32) error

	mu       sync.Mutex
	stop     chan struct{}
	done     chan struct{}
	frames   int
	underrun int
	err      error
}

func (d *ClockDevice) Open(out *Output) error {
	if out.SampleRate <= 0 || out.Channels <= 0 {
		return fmt.Errorf("unusable output %d Hz, %d channels", out.SampleRate, out.Channels)
	}
	period := d.Period
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	d.mu.Lock()
	if d.stop != nil {
		d.mu.Unlock()
		return errors.New("clock device already open")
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	d.mu.Unlock()

	frames := max(int(period.Seconds()*float64(out.SampleRate)), 1)
	go d.consume(out, period, make([]float32, frames*out.Channels))
	return nil
}

func (d *ClockDevice) consume(out *Output, period time.Duration, buf []float32) {
	defer close(d.done)
	tick := time.NewTicker(period)
	defer tick.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-tick.C:
		}
		n := out.Read(buf)
		clear(buf[n:])

		d.mu.Lock()
		d.frames += n / out.Channels
		if n < len(buf) {
			d.underrun++
		}
		d.mu.Unlock()

		if d.Sink != nil {
			if err := d.Sink(buf); err != nil {
				d.mu.Lock()
				d.err = err
				d.mu.Unlock()
				return
			}
		}
	}
}

// Stats reports frames consumed and periods that came up short.
func (d *ClockDevice) Stats() (frames, underruns int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames, d.underrun
}

func (d *ClockDevice) Close() error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop = nil
	d.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}
