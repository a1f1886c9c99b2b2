// SPDX-License-Identifier: EPL-2.0

package session

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/internal/logging"
	"github.com/ik5/audrender/internal/metrics"
	"github.com/ik5/audrender/render"
	"github.com/ik5/audrender/wire"
)

const (
	defaultChannels     = 2
	defaultNotifyBuffer = 16
	defaultLogInterval  = 5 * time.Second
)

// Options configures a Session. Zero values pick defaults.
type Options struct {
	// Channels is the interleaved output width. Defaults to 2.
	Channels int
	// DeviceRate, when set and different from a graph's context rate,
	// makes the session resample its output to it.
	DeviceRate int
	Suspend    SuspendPolicy
	// Resources is the base registry for buffers and media providers
	// shipped out of band. Wire-decoded graphs see it in addition to their
	// own BufferTable.
	Resources *graph.Registry
	Render    render.Options
	Metrics   *metrics.Metrics
	// NotificationBuffer is the capacity of the Notifications channel.
	NotificationBuffer int
	// LogInterval bounds how often render-side problems are logged.
	LogInterval time.Duration
}

// pending is what the control side publishes: a new stage, a parameter
// update for the stage that will be active, or both.
type pending struct {
	st     *stage
	update *render.ParamUpdate
	retire retired
}

var lastID atomic.Uint64

// Session is one audio context's render state.
type Session struct {
	id         uint64
	channels   int
	deviceRate int
	opts       Options
	m          *metrics.Metrics

	// Control side.
	mu      sync.Mutex
	current *stage // latest published
	closed  bool

	// Shared with the render thread.
	pending      atomic.Pointer[pending]
	adopted      atomic.Pointer[stage]
	retired      retireStack
	hasRetired   atomic.Bool
	suspend      atomic.Uint64
	frame        atomic.Uint64
	shut         atomic.Bool
	notes        chan Notification
	droppedNotes atomic.Uint64

	// Render side.
	active   *stage
	out      []float32
	silence  []float32
	throttle *logging.Throttle
}

func New(opts Options) (*Session, error) {
	if opts.Channels == 0 {
		opts.Channels = defaultChannels
	}
	if opts.Channels < 0 || opts.Channels > render.MaxChannels {
		return nil, fmt.Errorf("%w: %d", ErrChannels, opts.Channels)
	}
	if opts.DeviceRate < 0 {
		return nil, fmt.Errorf("%w: %d", ErrDeviceRate, opts.DeviceRate)
	}
	if opts.NotificationBuffer <= 0 {
		opts.NotificationBuffer = defaultNotifyBuffer
	}
	if opts.LogInterval <= 0 {
		opts.LogInterval = defaultLogInterval
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	if opts.Render.Metrics == nil {
		opts.Render.Metrics = opts.Metrics
	}
	if opts.Resources == nil {
		opts.Resources = graph.NewRegistry()
	}

	silence := make([]float32, render.Quantum*opts.Channels)
	s := &Session{
		id:         lastID.Add(1),
		channels:   opts.Channels,
		deviceRate: opts.DeviceRate,
		opts:       opts,
		m:          opts.Metrics,
		notes:      make(chan Notification, opts.NotificationBuffer),
		out:        silence,
		silence:    silence,
		throttle:   logging.NewThrottle(opts.LogInterval),
	}
	log.Debugf("Session %d created: %d channels, device rate %d", s.id, s.channels, s.deviceRate)
	return s, nil
}

func (s *Session) ID() uint64    { return s.id }
func (s *Session) Channels() int { return s.channels }

// Frame is the context frame the next quantum will render.
func (s *Session) Frame() uint64 { return s.frame.Load() }

// Notifications delivers render-side failures. Slow readers lose
// notifications rather than stall rendering.
func (s *Session) Notifications() <-chan Notification { return s.notes }

// DroppedNotifications counts notifications lost to a full channel.
func (s *Session) DroppedNotifications() uint64 { return s.droppedNotes.Load() }

// SetRenderGraph builds res and publishes it as the pending graph. An
// unadopted pending graph is discarded. The active graph is untouched.
func (s *Session) SetRenderGraph(res *graph.BuildResult) error {
	if res == nil {
		return ErrNilResult
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(res)
}

// SetRenderGraphWire decodes a wire-encoded graph against the session's
// base resources and publishes it. A decode failure leaves every graph in
// place.
func (s *Session) SetRenderGraphWire(data []byte) error {
	res, err := wire.DecodeWithResources(data, s.opts.Resources)
	if err != nil {
		return err
	}
	return s.SetRenderGraph(res)
}

// SetRenderGraphDescription is the in-process path: desc is validated and
// published with the session's base resources.
func (s *Session) SetRenderGraphDescription(desc *graph.Description, sampleRate float32) error {
	res, err := graph.NewBuildResult(desc, sampleRate, s.opts.Resources)
	if err != nil {
		return err
	}
	return s.SetRenderGraph(res)
}

func (s *Session) setLocked(res *graph.BuildResult) error {
	if s.closed {
		return ErrClosed
	}
	g, err := render.Build(res, s.opts.Render)
	if err != nil {
		return fmt.Errorf("building graph: %w", err)
	}

	st := s.newStage(g, res)
	if old := s.pending.Swap(&pending{st: st}); old != nil && old.st != nil {
		// Never reached the render thread.
		if err := old.st.release(); err != nil {
			log.Warnf("Session %d: releasing superseded graph: %v", s.id, err)
		}
	}
	s.current = st
	log.Debugf("Session %d: graph with %d nodes pending", s.id, len(res.Description.Nodes))
	return nil
}

// UpdateParameters publishes desc as a parameter-only update when its
// topology matches the latest published graph, and reports true. Otherwise
// desc is built as a new graph at the same rate and false is returned.
func (s *Session) UpdateParameters(desc *graph.Description) (bool, error) {
	if desc == nil {
		return false, ErrNilResult
	}
	if err := desc.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	if s.current == nil {
		return false, ErrNoGraph
	}

	u, ok := s.current.g.PrepareUpdate(desc)
	if !ok {
		res, err := graph.NewBuildResult(desc, s.current.res.SampleRate, s.current.res.Resources)
		if err != nil {
			return false, err
		}
		return false, s.setLocked(res)
	}

	for {
		old := s.pending.Load()
		p := &pending{update: u}
		if old != nil {
			// The unadopted stage is s.current, the graph u targets.
			p.st = old.st
		}
		if s.pending.CompareAndSwap(old, p) {
			return true, nil
		}
	}
}

// RenderOneQuantum adopts any pending graph, renders one device quantum and
// reports whether it was audible. Render thread only.
func (s *Session) RenderOneQuantum() (audible bool) {
	if s.shut.Load() {
		s.out = s.silence
		return false
	}
	s.adopt()

	st := s.active
	if st == nil || st.failed {
		s.out = s.silence
		if st != nil {
			s.frame.Add(render.Quantum)
		}
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			st.failed = true
			s.out = s.silence
			audible = false
			log.Errorf("Session %d: render failed at frame %d: %v", s.id, s.frame.Load(), r)
			s.notify(Notification{
				Kind:  NotifyRenderFailed,
				Frame: s.frame.Load(),
				Err:   fmt.Errorf("%w: %v", ErrRenderPanic, r),
			})
		}
	}()

	st.render()
	if !finite(st.out) {
		clear(st.out)
		st.audible = false
		if s.throttle.Allow() {
			log.Warnf("Session %d: muted non-finite quantum at frame %d", s.id, s.frame.Load())
			s.notify(Notification{Kind: NotifyNonFinite, Frame: s.frame.Load(), Err: ErrNonFinite})
		}
	}
	s.out = st.out
	return st.audible
}

func (s *Session) adopt() {
	if s.pending.Load() == nil {
		return
	}
	p := s.pending.Swap(nil)
	if p == nil {
		return
	}

	if p.st != nil {
		if old := s.active; old != nil {
			p.retire.st = old
			s.retired.push(&p.retire)
			s.hasRetired.Store(true)
			s.m.RetiredGraphs.Inc()
		}
		s.active = p.st
		s.adopted.Store(p.st)
		s.m.GraphSwaps.Inc()
		s.notify(Notification{Kind: NotifyGraphAdopted, Frame: s.frame.Load()})
	}
	if p.update != nil {
		if s.active == nil || !s.active.g.ApplyUpdate(p.update) {
			s.notify(Notification{Kind: NotifyUpdateRefused, Frame: s.frame.Load(), Err: ErrUpdateRefused})
		}
	}
}

// renderContext renders one context quantum of st into dst, or silence
// while suspended.
func (s *Session) renderContext(st *stage, dst []float32) {
	frame := s.frame.Load()
	if s.suspend.Load()&suspendedBit != 0 {
		clear(dst)
		if s.opts.Suspend == SuspendAdvanceTimeline {
			s.frame.Store(frame + render.Quantum)
		}
		return
	}

	bus := st.g.Render(frame)
	s.frame.Store(frame + render.Quantum)
	if !bus.IsSilent() {
		st.audible = true
	}
	st.mix.Zero()
	st.mix.SumFrom(bus)
	st.mix.Interleave(dst, s.channels)
}

func finite(samples []float32) bool {
	for _, v := range samples {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// InterleavedOutput is the last rendered quantum. It must not be read
// concurrently with RenderOneQuantum.
func (s *Session) InterleavedOutput() []float32 { return s.out }

// DrainRetired closes graphs the render thread has let go of and returns
// how many there were. Control side only.
func (s *Session) DrainRetired() int {
	if !s.hasRetired.Swap(false) {
		return 0
	}
	n := 0
	for r := s.retired.takeAll(); r != nil; r = r.next {
		if err := r.st.release(); err != nil {
			log.Warnf("Session %d: releasing retired graph: %v", s.id, err)
		}
		n++
	}
	s.m.RetiredGraphs.Sub(float64(n))
	return n
}

// observed is the stage taps read: the one the render thread adopted last,
// or the latest published before any adoption. Callers hold s.mu.
func (s *Session) observed() *stage {
	if st := s.adopted.Load(); st != nil {
		return st
	}
	return s.current
}

// AnalyserSnapshot captures analyser id of the graph being rendered. A graph
// published but not yet adopted is not observed until its first quantum.
func (s *Session) AnalyserSnapshot(id graph.NodeID) (render.AnalyserSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.observed()
	if st == nil {
		return render.AnalyserSnapshot{}, false
	}
	a, ok := st.g.Analyser(id)
	if !ok {
		return render.AnalyserSnapshot{}, false
	}
	return a.Snapshot(), true
}

// AnalyserSnapshots captures every analyser of the graph being rendered in
// execution order.
func (s *Session) AnalyserSnapshots() []render.AnalyserSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.observed()
	if st == nil {
		return nil
	}
	as := st.g.Analysers()
	out := make([]render.AnalyserSnapshot, 0, len(as))
	for _, a := range as {
		out = append(out, a.Snapshot())
	}
	return out
}

// CompressorReadings reads every dynamics compressor of the graph being
// rendered.
func (s *Session) CompressorReadings() []render.CompressorReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.observed()
	if st == nil {
		return nil
	}
	cs := st.g.Compressors()
	out := make([]render.CompressorReading, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Reading())
	}
	return out
}

// ScriptBlocks copies the last complete input block of every script
// processor of the graph being rendered.
func (s *Session) ScriptBlocks() []render.ScriptBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.observed()
	if st == nil {
		return nil
	}
	ps := st.g.ScriptProcessors()
	out := make([]render.ScriptBlock, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Snapshot())
	}
	return out
}

// Close releases every graph. The render thread must have stopped calling
// RenderOneQuantum; realtime.Thread.Unregister guarantees that.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.shut.Store(true)

	var errs []error
	if p := s.pending.Swap(nil); p != nil && p.st != nil {
		errs = append(errs, p.st.release())
	}
	if s.active != nil {
		errs = append(errs, s.active.release())
		s.active = nil
	}
	s.DrainRetired()
	s.current = nil
	s.adopted.Store(nil)
	log.Debugf("Session %d closed", s.id)
	return errors.Join(errs...)
}
