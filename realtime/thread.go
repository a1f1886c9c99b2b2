// SPDX-License-Identifier: EPL-2.0

package realtime

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ik5/audrender/internal/logging"
	"github.com/ik5/audrender/internal/metrics"
	"github.com/ik5/audrender/render"
)

// Session is what the thread renders each cycle.
type Session interface {
	RenderOneQuantum() bool
	InterleavedOutput() []float32
	Channels() int
}

const quiescePoll = 100 * time.Microsecond

// Thread is the realtime render loop service.
type Thread struct {
	opts Options

	// Control side.
	mu       sync.Mutex
	sessions []Session
	device   Device
	out      *Output
	stop     chan struct{}
	done     chan struct{}

	// Shared with the loop.
	set     atomic.Pointer[[]Session]
	running atomic.Bool
	cycles  atomic.Uint64

	// Loop side.
	mix      []float32
	ema      time.Duration
	wrote    bool
	policy   backoff.BackOff
	timer    *sleepTimer
	writeTo  *Output
	write    backoff.Operation
	retried  func(error, time.Duration)
	throttle *logging.Throttle
	underrun prometheus.Counter
}

func New(opts Options) (*Thread, error) {
	if err := opts.setDefaults(); err != nil {
		return nil, err
	}
	t := &Thread{
		opts:     opts,
		mix:      make([]float32, render.Quantum*opts.Channels),
		policy:   backoff.WithMaxRetries(backoff.NewConstantBackOff(opts.RetryInterval), opts.WriteRetries),
		timer:    &sleepTimer{sleep: opts.Sleep, now: opts.Clock, c: make(chan time.Time, 1)},
		throttle: logging.NewThrottle(5 * time.Second),
		underrun: opts.Metrics.Underruns.WithLabelValues(metrics.UnderrunDevice),
	}
	t.write = func() error {
		if t.writeTo.ring.WriteAll(t.mix) {
			return nil
		}
		return errRingFull
	}
	t.retried = func(error, time.Duration) { t.opts.Metrics.RingRetries.Inc() }
	empty := []Session{}
	t.set.Store(&empty)
	return t, nil
}

// Register adds s to the rendered set. Safe from any goroutine.
func (t *Thread) Register(s Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if slices.Contains(t.sessions, s) {
		return
	}
	next := append(slices.Clone(t.sessions), s)
	t.sessions = next
	t.set.Store(&next)
	t.opts.Metrics.Sessions.Set(float64(len(next)))
}

// Unregister removes s and returns once the loop can no longer be rendering
// it, so the caller may close the session afterwards.
func (t *Thread) Unregister(s Session) bool {
	t.mu.Lock()
	i := slices.Index(t.sessions, s)
	if i < 0 {
		t.mu.Unlock()
		return false
	}
	next := slices.Delete(slices.Clone(t.sessions), i, i+1)
	t.sessions = next
	t.set.Store(&next)
	t.opts.Metrics.Sessions.Set(float64(len(next)))
	t.mu.Unlock()

	t.quiesce()
	return true
}

// quiesce waits for the loop to finish the cycle in flight.
func (t *Thread) quiesce() {
	target := t.cycles.Load() + 1
	for t.running.Load() && t.cycles.Load() < target {
		time.Sleep(quiescePoll)
	}
}

// Sessions is the number of registered sessions.
func (t *Thread) Sessions() int {
	return len(*t.set.Load())
}

// OpenOutput replaces the output: the loop is stopped, the previous device
// closed and a new ring handed to dev. A loop that was running is restarted
// on the new ring.
func (t *Thread) OpenOutput(dev Device) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasRunning := t.stopLocked()
	if t.device != nil {
		if err := t.device.Close(); err != nil {
			log.Warnf("Closing previous output: %v", err)
		}
		t.device, t.out = nil, nil
	}

	frames := int(t.opts.RingLatency.Seconds() * float64(t.opts.SampleRate))
	frames = max(frames, 2*render.Quantum)
	out := newOutput(t.opts.SampleRate, t.opts.Channels, frames)
	if err := dev.Open(out); err != nil {
		return &DeviceError{Op: "open", Err: err}
	}
	t.device, t.out = dev, out
	log.Infof("Output opened: %d Hz, %d channels, %d frame ring", out.SampleRate, out.Channels, out.Capacity())

	if wasRunning {
		t.startLocked()
	}
	return nil
}

// Start launches the loop. It fails until an output is open.
func (t *Thread) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.out == nil {
		return ErrNoOutput
	}
	if !t.running.Load() {
		t.startLocked()
	}
	return nil
}

func (t *Thread) startLocked() {
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.writeTo = t.out
	t.wrote = false
	t.running.Store(true)
	go t.run(t.stop, t.done)
}

// Stop halts the loop and waits for it to exit.
func (t *Thread) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Thread) stopLocked() bool {
	if !t.running.Load() {
		return false
	}
	close(t.stop)
	<-t.done
	t.running.Store(false)
	return true
}

// Close stops the loop and closes the device.
func (t *Thread) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	if t.device == nil {
		return nil
	}
	err := t.device.Close()
	t.device, t.out = nil, nil
	if err != nil {
		return &DeviceError{Op: "close", Err: err}
	}
	return nil
}

func (t *Thread) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}
		t.step()
		t.cycles.Add(1)
	}
}

// step is one loop iteration: pace when the ring has no room for a
// quantum, otherwise render, mix and write. It reports whether it rendered.
func (t *Thread) step() bool {
	out := t.writeTo
	free := out.ring.Free()
	if free < len(t.mix) {
		t.pace(len(t.mix) - free)
		return false
	}
	if t.wrote && out.ring.Len() == 0 {
		t.underrun.Inc()
	}

	start := t.opts.Clock()
	clear(t.mix)
	for _, s := range *t.set.Load() {
		if s.RenderOneQuantum() {
			mixInto(t.mix, t.opts.Channels, s.InterleavedOutput(), s.Channels())
		}
	}
	cost := t.opts.Clock().Sub(start)
	t.ema += time.Duration(t.opts.EMAAlpha * float64(cost-t.ema))
	t.opts.Metrics.RenderSeconds.Observe(cost.Seconds())

	t.flush()
	return true
}

// pace waits roughly until missing samples have been consumed.
func (t *Thread) pace(missing int) {
	frames := (missing + t.opts.Channels - 1) / t.opts.Channels
	wait := time.Duration(frames) * time.Second / time.Duration(t.opts.SampleRate)
	sleep := min(wait-t.ema, t.opts.MaxSleep)
	if sleep <= 0 {
		t.opts.Yield()
		return
	}
	t.opts.Sleep(sleep)
}

func (t *Thread) flush() {
	if t.write() != nil {
		if err := backoff.RetryNotifyWithTimer(t.write, t.policy, t.retried, t.timer); err != nil {
			t.opts.Metrics.RingDrops.Inc()
			if t.throttle.Allow() {
				log.Warnf("Dropped quantum: %v (%d suppressed)", err, t.throttle.Suppressed())
			}
			return
		}
	}
	t.wrote = true
	t.opts.Metrics.Quanta.Inc()
}

// mixInto adds src (srcChannels wide) into dst (channels wide). Mono is
// spread to every channel; wider sources drop channels that do not fit.
func mixInto(dst []float32, channels int, src []float32, srcChannels int) {
	if srcChannels == channels {
		for i, v := range src[:min(len(src), len(dst))] {
			dst[i] += v
		}
		return
	}
	frames := min(len(dst)/channels, len(src)/max(srcChannels, 1))
	for f := range frames {
		for c := range channels {
			switch {
			case srcChannels == 1:
				dst[f*channels+c] += src[f]
			case c < srcChannels:
				dst[f*channels+c] += src[f*srcChannels+c]
			}
		}
	}
}

// sleepTimer drives backoff retries with the injected sleep so pacing
// tests never wait on the wall clock.
type sleepTimer struct {
	sleep func(time.Duration)
	now   func() time.Time
	c     chan time.Time
}

func (s *sleepTimer) Start(d time.Duration) {
	s.sleep(d)
	select {
	case s.c <- s.now():
	default:
	}
}

func (s *sleepTimer) Stop() {
	select {
	case <-s.c:
	default:
	}
}

func (s *sleepTimer) C() <-chan time.Time { return s.c }

var _ backoff.Timer = (*sleepTimer)(nil)
