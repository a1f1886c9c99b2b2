// SPDX-License-Identifier: EPL-2.0

package offline

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/render"
	"github.com/ik5/audrender/session"
)

// Options configures a Renderer.
type Options struct {
	// Length is the number of frames to render.
	Length uint64
	// SuspendAt lists frames to suspend at, each below Length.
	SuspendAt []uint64
	// Session configures the underlying session. DeviceRate is ignored.
	Session session.Options
}

// Result is the rendered audio. An aborted render holds the frames that
// were rendered before the abort.
type Result struct {
	SampleRate int
	Channels   int
	Frames     uint64
	// Samples are interleaved, Frames*Channels long.
	Samples []float32
	Aborted bool
}

// Renderer runs one offline render on its own goroutine.
type Renderer struct {
	opts     Options
	sess     *session.Session
	rate     float32
	suspends []uint64
	out      []float32

	mu        sync.Mutex
	cond      *sync.Cond
	started   bool
	suspended bool

	aborted atomic.Bool
	frame   atomic.Uint64
	events  chan Event
	done    chan struct{}
	result  *Result
}

// New validates the request and publishes res to a fresh session.
func New(res *graph.BuildResult, opts Options) (*Renderer, error) {
	if opts.Length == 0 {
		return nil, ErrLength
	}
	suspends := make([]uint64, 0, len(opts.SuspendAt))
	for _, f := range opts.SuspendAt {
		if f >= opts.Length {
			return nil, fmt.Errorf("%w: %d is not below length %d", ErrSuspendFrame, f, opts.Length)
		}
		q := f - f%render.Quantum
		if slices.Contains(suspends, q) {
			return nil, fmt.Errorf("%w: %d shares quantum boundary %d", ErrSuspendFrame, f, q)
		}
		suspends = append(suspends, q)
	}
	slices.Sort(suspends)

	sopts := opts.Session
	sopts.DeviceRate = 0
	sess, err := session.New(sopts)
	if err != nil {
		return nil, err
	}
	if err := sess.SetRenderGraph(res); err != nil {
		_ = sess.Close()
		return nil, err
	}

	r := &Renderer{
		opts:     opts,
		sess:     sess,
		rate:     res.SampleRate,
		suspends: suspends,
		out:      make([]float32, opts.Length*uint64(sess.Channels())),
		events:   make(chan Event, len(suspends)+1),
		done:     make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	return r, nil
}

// Events delivers suspensions and the final completion, then closes.
// Sends never block: the channel holds every event the render can raise.
func (r *Renderer) Events() <-chan Event { return r.events }

// Frame is the number of frames rendered so far.
func (r *Renderer) Frame() uint64 { return r.frame.Load() }

// Start launches the render goroutine. Cancelling ctx aborts the render.
func (r *Renderer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrStarted
	}
	r.started = true
	r.mu.Unlock()

	stop := context.AfterFunc(ctx, r.Abort)
	go func() {
		defer stop()
		r.run()
	}()
	log.Debugf("Offline render started: %d frames at %v Hz, %d suspend points",
		r.opts.Length, r.rate, len(r.suspends))
	return nil
}

func (r *Renderer) run() {
	defer close(r.done)
	defer close(r.events)

	ch := uint64(r.sess.Channels())
	length := r.opts.Length
	suspends := r.suspends
	var frame uint64
	for frame < length && !r.aborted.Load() {
		if len(suspends) > 0 && suspends[0] == frame {
			suspends = suspends[1:]
			if !r.suspend(frame) {
				break
			}
			continue
		}
		r.sess.RenderOneQuantum()
		n := min(render.Quantum, length-frame)
		copy(r.out[frame*ch:], r.sess.InterleavedOutput()[:n*ch])
		frame += n
		r.frame.Store(frame)
	}

	aborted := frame < length
	r.result = &Result{
		SampleRate: int(math.Round(float64(r.rate))),
		Channels:   int(ch),
		Frames:     frame,
		Samples:    r.out[:frame*ch],
		Aborted:    aborted,
	}
	r.events <- r.event(EventComplete, frame, aborted)
	log.Debugf("Offline render finished at frame %d (aborted %v)", frame, aborted)
}

// event captures the session's node state at frame.
func (r *Renderer) event(kind EventKind, frame uint64, aborted bool) Event {
	return Event{
		Kind:        kind,
		Frame:       frame,
		Aborted:     aborted,
		Snapshots:   r.sess.AnalyserSnapshots(),
		Compressors: r.sess.CompressorReadings(),
		Scripts:     r.sess.ScriptBlocks(),
	}
}

// suspend reports the suspension and blocks until resumed. It returns
// false when the render was aborted meanwhile.
func (r *Renderer) suspend(frame uint64) bool {
	r.mu.Lock()
	r.suspended = true
	r.mu.Unlock()

	r.events <- r.event(EventSuspended, frame, false)

	r.mu.Lock()
	defer r.mu.Unlock()
	for r.suspended && !r.aborted.Load() {
		r.cond.Wait()
	}
	r.suspended = false
	return !r.aborted.Load()
}

// Resume continues a suspended render. A non-nil res replaces the graph
// before the next quantum; it must have the render's sample rate. A graph
// that fails to build leaves the render suspended.
func (r *Renderer) Resume(res *graph.BuildResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.suspended {
		return ErrNotSuspended
	}
	if res != nil {
		if res.SampleRate != r.rate {
			return fmt.Errorf("%w: %v Hz, want %v Hz", ErrSampleRate, res.SampleRate, r.rate)
		}
		if err := r.sess.SetRenderGraph(res); err != nil {
			return err
		}
	}
	r.sess.DrainRetired()
	r.suspended = false
	r.cond.Signal()
	return nil
}

// Abort stops the render at the next quantum boundary and releases a
// suspended render goroutine. It is safe to call at any time.
func (r *Renderer) Abort() {
	r.aborted.Store(true)
	r.mu.Lock()
	r.cond.Broadcast()
	r.mu.Unlock()
}

// Wait blocks until the render goroutine has exited, releases the graphs
// and returns the result. ErrAborted accompanies a partial result.
func (r *Renderer) Wait() (*Result, error) {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}

	<-r.done
	r.sess.DrainRetired()
	if err := r.sess.Close(); err != nil {
		log.Warnf("Offline render: releasing graphs: %v", err)
	}
	if r.result.Aborted {
		return r.result, ErrAborted
	}
	return r.result, nil
}

// Close aborts a running render and releases the graphs. It is the way to
// dispose of a renderer that was never started.
func (r *Renderer) Close() error {
	r.Abort()
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if started {
		<-r.done
	}
	return r.sess.Close()
}

// Render runs a whole render synchronously, resuming every suspension
// without a graph change.
func Render(ctx context.Context, res *graph.BuildResult, opts Options) (*Result, error) {
	r, err := New(res, opts)
	if err != nil {
		return nil, err
	}
	if err := r.Start(ctx); err != nil {
		return nil, err
	}
	for ev := range r.Events() {
		if ev.Kind == EventSuspended {
			if err := r.Resume(nil); err != nil {
				r.Abort()
			}
		}
	}
	return r.Wait()
}
