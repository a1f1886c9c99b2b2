// SPDX-License-Identifier: EPL-2.0

package render

import (
	"errors"
	"fmt"

	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/internal/metrics"
)

// Graph is the executable form of a description.
type Graph struct {
	built      *graph.Description // never changes, used for topology checks
	desc       *graph.Description // render-side, follows parameter updates
	sampleRate float64
	capacity   int
	ctx        Context

	entries  []*entry // execution order
	byID     map[graph.NodeID]*entry
	breakers []*entry
	dest     *entry
	silent   *Bus

	analysers   []*Analyser
	compressors []*Compressor
	scripts     []*ScriptProcessor
	sinks       []*DebugSink
}

type port struct {
	from *entry
	slot int
}

func (p port) bus() *Bus { return p.from.node.Output(p.slot) }

type paramState struct {
	spec   graph.ParamSpec
	auto   *graph.ParamAutomation
	cursor graph.Cursor
	inputs []port
}

type entry struct {
	id      graph.NodeID
	node    Node
	breaker cycleBreaker

	inputs [][]port
	mix    []*Bus
	in     []*Bus

	params []paramState
	blocks []ParamBlock
}

// Build resolves resources and allocates render state for res.
func Build(res *graph.BuildResult, opts Options) (*Graph, error) {
	if res == nil || res.Description == nil {
		return nil, ErrNilResult
	}
	desc := res.Description
	if !graph.ValidSampleRate(res.SampleRate) {
		return nil, fmt.Errorf("%w: %v", graph.ErrSampleRate, res.SampleRate)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	topo, err := desc.Topology()
	if err != nil {
		return nil, err
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	if opts.Media == (MediaOptions{}) {
		opts.Media = DefaultMediaOptions()
	}

	capacity, err := busCapacity(desc, res.Resources)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		built:      desc,
		desc:       desc,
		sampleRate: float64(res.SampleRate),
		capacity:   capacity,
		ctx:        Context{SampleRate: float64(res.SampleRate), Resources: res.Resources},
		byID:       make(map[graph.NodeID]*entry, len(desc.Nodes)),
		silent:     NewBus(1),
	}

	inCycle := make(map[graph.NodeID]bool, len(topo.CycleDelays))
	for _, id := range topo.CycleDelays {
		inCycle[id] = true
	}

	for _, id := range topo.Order {
		nd := desc.Nodes[id]
		n, err := g.newNode(id, nd, res.Resources, opts, inCycle[id])
		if err != nil {
			_ = g.Close()
			return nil, fmt.Errorf("node %d (%v): %w", id, nd.Kind(), err)
		}

		specs := nd.Params()
		e := &entry{
			id:     id,
			node:   n,
			inputs: make([][]port, nd.InputCount()),
			mix:    make([]*Bus, nd.InputCount()),
			in:     make([]*Bus, nd.InputCount()),
			params: make([]paramState, len(specs)),
			blocks: make([]ParamBlock, len(specs)),
		}
		for i, s := range specs {
			e.params[i].spec = s
			e.blocks[i].Values = make([]float32, Quantum)
		}
		if inCycle[id] {
			e.breaker = n.(cycleBreaker)
			g.breakers = append(g.breakers, e)
		}

		g.entries = append(g.entries, e)
		g.byID[id] = e
	}
	g.dest = g.byID[desc.DestinationID]

	for _, c := range desc.Connections {
		dst := g.byID[c.Destination]
		dst.inputs[c.DestinationInput] = append(dst.inputs[c.DestinationInput], port{g.byID[c.Source], int(c.SourceOutput)})
	}
	for _, e := range g.entries {
		for slot, ports := range e.inputs {
			e.in[slot] = g.silent
			if len(ports) > 1 {
				e.mix[slot] = NewBus(capacity)
			}
		}
	}
	for _, c := range desc.ParamConnections {
		p := &g.byID[c.Destination].params[c.ParamIndex]
		p.inputs = append(p.inputs, port{g.byID[c.Source], int(c.SourceOutput)})
	}
	for i := range desc.ParamAutomations {
		a := &desc.ParamAutomations[i]
		g.byID[a.Destination].params[a.ParamIndex].auto = a
	}

	log.Debugf("built graph: %d nodes, %d cycle delays, bus capacity %d", len(g.entries), len(g.breakers), capacity)

	return g, nil
}

func (g *Graph) newNode(id graph.NodeID, nd graph.NodeDescription, res *graph.Registry, opts Options, inCycle bool) (Node, error) {
	switch x := nd.(type) {
	case graph.Destination:
		return newDestination(x, g.capacity), nil
	case graph.Gain:
		return newGain(g.capacity), nil
	case graph.Delay:
		return newDelay(id, x, g.sampleRate, g.capacity, inCycle)
	case graph.Oscillator:
		return newOscillator(x), nil
	case graph.ConstantSource:
		return newConstantSource(x), nil
	case graph.AudioBufferSource:
		buf, err := res.ResolveAudioBuffer(x.BufferID)
		if err != nil {
			return nil, err
		}
		return newBufferSource(x, buf, g.capacity), nil
	case graph.MediaElementSource:
		return g.newMedia(id, x.ProviderID, res, opts)
	case graph.MediaStreamSource:
		return g.newMedia(id, x.ProviderID, res, opts)
	case graph.Analyser:
		a, err := newAnalyser(id, x, g.capacity)
		if err != nil {
			return nil, err
		}
		g.analysers = append(g.analysers, a)
		return a, nil
	case graph.AudioWorklet:
		return newWorklet(id, x, opts.Worklets, g.capacity), nil
	case graph.DynamicsCompressor:
		c := newCompressor(id, x, g.sampleRate, g.capacity)
		g.compressors = append(g.compressors, c)
		return c, nil
	case graph.ScriptProcessor:
		s := newScriptProcessor(id, x, opts.Scripts, g.capacity)
		g.scripts = append(g.scripts, s)
		return s, nil
	case graph.DebugSink:
		s := newDebugSink(id, x, g.sampleRate, g.capacity, opts.Mirrors)
		g.sinks = append(g.sinks, s)
		return s, nil
	}
	return nil, ErrUnsupportedKind
}

func (g *Graph) newMedia(id graph.NodeID, provider uint64, res *graph.Registry, opts Options) (Node, error) {
	p, err := res.ResolveMediaProvider(provider)
	if err != nil {
		return nil, err
	}
	return newMediaSource(id, p, g.sampleRate, g.capacity, opts.Media, opts.Metrics), nil
}

// busCapacity is the widest channel count any node can produce.
func busCapacity(desc *graph.Description, res *graph.Registry) (int, error) {
	capacity := 2
	for id, nd := range desc.Nodes {
		n := graph.ChannelHint(nd)
		switch x := nd.(type) {
		case graph.AudioBufferSource:
			if b, err := res.ResolveAudioBuffer(x.BufferID); err == nil {
				n = b.ChannelCount()
			}
		case graph.MediaElementSource:
			if p, err := res.ResolveMediaProvider(x.ProviderID); err == nil {
				n = max(n, p.Channels())
			}
		case graph.MediaStreamSource:
			if p, err := res.ResolveMediaProvider(x.ProviderID); err == nil {
				n = max(n, p.Channels())
			}
		}
		if n > MaxChannels {
			return 0, fmt.Errorf("%w: node %d wants %d", ErrChannelCount, id, n)
		}
		capacity = max(capacity, n)
	}
	return capacity, nil
}

// Render renders the quantum starting at frame and returns the destination
// bus.
func (g *Graph) Render(frame uint64) *Bus {
	g.ctx.Frame = frame

	for _, e := range g.breakers {
		g.evalParams(e)
		e.breaker.Emit(&g.ctx, e.blocks)
	}
	for _, e := range g.entries {
		if e.breaker != nil {
			continue
		}
		g.gather(e)
		g.evalParams(e)
		e.node.Process(&g.ctx, e.in, e.blocks)
	}
	for _, e := range g.breakers {
		g.gather(e)
		e.breaker.Absorb(&g.ctx, e.in)
	}

	return g.dest.node.Output(0)
}

func (g *Graph) gather(e *entry) {
	for slot, ports := range e.inputs {
		switch len(ports) {
		case 0:
			e.in[slot] = g.silent
		case 1:
			e.in[slot] = ports[0].bus()
		default:
			mix := e.mix[slot]
			n := 0
			for _, p := range ports {
				n = max(n, p.bus().Channels())
			}
			mix.SetChannels(n)
			mix.Zero()
			for _, p := range ports {
				mix.SumFrom(p.bus())
			}
			e.in[slot] = mix
		}
	}
}

func (g *Graph) evalParams(e *entry) {
	for i := range e.params {
		p := &e.params[i]
		blk := &e.blocks[i]

		rate := p.spec.Rate
		def, lo, hi := p.spec.Default, p.spec.Min, p.spec.Max
		if p.auto != nil {
			rate = p.auto.Rate
			if p.auto.Min < p.auto.Max {
				def, lo, hi = p.auto.Default, p.auto.Min, p.auto.Max
			}
		}

		if p.auto == nil && len(p.inputs) == 0 {
			blk.Values[0] = graph.Resolve(p.spec.Value, def, lo, hi)
			blk.Constant = true
			continue
		}

		n := Quantum
		if rate == graph.KRate {
			n = 1
		}
		for s := range n {
			v := p.spec.Value
			if p.auto != nil {
				v = p.cursor.Value(p.auto, g.ctx.Frame+uint64(s), g.sampleRate)
			}
			for _, in := range p.inputs {
				v += in.bus().MonoAt(s)
			}
			blk.Values[s] = graph.Resolve(v, def, lo, hi)
		}
		blk.Constant = n == 1
	}
}

// ParamUpdate is a parameter-only update prepared off the render thread.
type ParamUpdate struct {
	g     *Graph
	desc  *graph.Description
	nodes []graph.NodeDescription
	specs [][]graph.ParamSpec
	autos [][]*graph.ParamAutomation
}

// PrepareUpdate checks that desc has the topology g was built from and
// precomputes everything ApplyUpdate needs. It reads only immutable state
// and is safe to call while g renders.
func (g *Graph) PrepareUpdate(desc *graph.Description) (*ParamUpdate, bool) {
	if !g.built.SameTopology(desc) {
		return nil, false
	}

	u := &ParamUpdate{
		g:     g,
		desc:  desc,
		nodes: make([]graph.NodeDescription, len(g.entries)),
		specs: make([][]graph.ParamSpec, len(g.entries)),
		autos: make([][]*graph.ParamAutomation, len(g.entries)),
	}
	index := make(map[graph.NodeID]int, len(g.entries))
	for i, e := range g.entries {
		nd := desc.Nodes[e.id]
		u.nodes[i] = nd
		u.specs[i] = nd.Params()
		u.autos[i] = make([]*graph.ParamAutomation, len(u.specs[i]))
		index[e.id] = i
	}
	for i := range desc.ParamAutomations {
		a := &desc.ParamAutomations[i]
		u.autos[index[a.Destination]][a.ParamIndex] = a
	}
	return u, true
}

// ApplyUpdate installs u at a quantum boundary. It returns false when u was
// prepared for another graph or a node refused the new fields.
func (g *Graph) ApplyUpdate(u *ParamUpdate) bool {
	if u == nil || u.g != g {
		return false
	}
	ok := true
	for i, e := range g.entries {
		if !e.node.Apply(u.nodes[i]) {
			ok = false
		}
		for j := range e.params {
			e.params[j].spec = u.specs[i][j]
			e.params[j].auto = u.autos[i][j]
			e.params[j].cursor = graph.Cursor{}
		}
	}
	g.desc = u.desc
	return ok
}

// Description is the description currently rendered. Render side only.
func (g *Graph) Description() *graph.Description { return g.desc }

func (g *Graph) SampleRate() float64 { return g.sampleRate }

// Output is the destination bus of the last rendered quantum.
func (g *Graph) Output() *Bus { return g.dest.node.Output(0) }

// OutputChannels is the destination's declared channel count.
func (g *Graph) OutputChannels() int {
	return int(g.built.Nodes[g.built.DestinationID].(graph.Destination).ChannelCount)
}

// Analysers lists the analyser nodes in execution order.
func (g *Graph) Analysers() []*Analyser { return g.analysers }

// Analyser returns the analyser node with the given id.
func (g *Graph) Analyser(id graph.NodeID) (*Analyser, bool) {
	for _, a := range g.analysers {
		if a.id == id {
			return a, true
		}
	}
	return nil, false
}

// Compressors lists the dynamics compressors in execution order.
func (g *Graph) Compressors() []*Compressor { return g.compressors }

// ScriptProcessors lists the script processors in execution order.
func (g *Graph) ScriptProcessors() []*ScriptProcessor { return g.scripts }

// Close stops debug mirrors. It must not run while g is rendering.
func (g *Graph) Close() error {
	var errs []error
	for _, s := range g.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
