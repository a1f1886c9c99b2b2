// SPDX-License-Identifier: EPL-2.0

package render

import "github.com/ik5/audrender/graph"

// WorkletHost runs audio worklet processors outside the renderer. Process
// must not block; it fills outputs and reports whether it produced audio.
type WorkletHost interface {
	Process(processor string, id graph.NodeID, ctx *Context, inputs, outputs []*Bus, params []ParamBlock) bool
}

// Worklet delegates to a WorkletHost and is silent without one.
type Worklet struct {
	id       graph.NodeID
	name     string
	host     WorkletHost
	channels int
	outputs  []*Bus
}

func newWorklet(id graph.NodeID, w graph.AudioWorklet, host WorkletHost, capacity int) *Worklet {
	outs := make([]*Bus, w.Outputs)
	for i := range outs {
		outs[i] = NewBus(max(capacity, int(w.ChannelCount)))
	}
	return &Worklet{id: id, name: w.ProcessorName, host: host, channels: int(w.ChannelCount), outputs: outs}
}

func (w *Worklet) Process(ctx *Context, inputs []*Bus, params []ParamBlock) {
	for _, o := range w.outputs {
		o.SetChannels(max(w.channels, 1))
		o.Zero()
	}
	if w.host != nil && w.host.Process(w.name, w.id, ctx, inputs, w.outputs, params) {
		return
	}
	for _, o := range w.outputs {
		o.SetChannels(0)
	}
}

func (w *Worklet) Output(slot int) *Bus { return w.outputs[slot] }

func (w *Worklet) Apply(desc graph.NodeDescription) bool {
	x, ok := desc.(graph.AudioWorklet)
	return ok && x.ProcessorName == w.name
}
