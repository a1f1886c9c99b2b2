// SPDX-License-Identifier: EPL-2.0

package session

import (
	"github.com/ik5/audrender/audio"
	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/render"
)

// stage is a built graph plus its output path. Everything the render
// thread touches is allocated here, on the control side.
type stage struct {
	s   *Session
	g   *render.Graph
	res *graph.BuildResult

	mix    *render.Bus
	ctxBuf []float32 // one context quantum, interleaved
	ctxPos int
	rs     *audio.Resampler // nil when the context runs at the device rate
	out    []float32        // one device quantum, interleaved

	audible bool
	failed  bool
}

func (s *Session) newStage(g *render.Graph, res *graph.BuildResult) *stage {
	st := &stage{
		s:      s,
		g:      g,
		res:    res,
		mix:    render.NewBus(s.channels),
		ctxBuf: make([]float32, render.Quantum*s.channels),
		out:    make([]float32, render.Quantum*s.channels),
	}
	st.mix.SetChannels(s.channels)
	st.ctxPos = len(st.ctxBuf)

	if rate := int(g.SampleRate()); s.deviceRate != 0 && rate != s.deviceRate {
		st.rs = audio.NewResampler(st, s.deviceRate)
		log.Debugf("Session %d converting %d Hz context to %d Hz device", s.id, rate, s.deviceRate)
	}
	return st
}

// The stage is the resampler's source: it renders context quanta on demand.

func (st *stage) SampleRate() int { return int(st.g.SampleRate()) }
func (st *stage) Channels() int   { return st.s.channels }
func (st *stage) BufSize() int    { return len(st.ctxBuf) }
func (st *stage) Close() error    { return nil }

func (st *stage) ReadSamples(dst []float32) (int, error) {
	n := 0
	for n < len(dst) {
		if st.ctxPos == len(st.ctxBuf) {
			st.s.renderContext(st, st.ctxBuf)
			st.ctxPos = 0
		}
		c := copy(dst[n:], st.ctxBuf[st.ctxPos:])
		st.ctxPos += c
		n += c
	}
	return n, nil
}

// render fills st.out with one device quantum.
func (st *stage) render() {
	st.audible = false
	if st.rs == nil {
		st.s.renderContext(st, st.out)
		return
	}
	n, _ := st.rs.ReadSamples(st.out)
	clear(st.out[n:])
	// A device quantum may be served from context frames rendered earlier.
	st.audible = false
	for _, v := range st.out {
		if v != 0 {
			st.audible = true
			break
		}
	}
}

// release frees what the graph holds. Control side only, and only once the
// render thread can no longer reach st.
func (st *stage) release() error {
	return st.g.Close()
}
