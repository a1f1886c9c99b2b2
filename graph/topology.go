// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"fmt"
	"slices"
)

// Topology is the execution plan of a validated graph.
type Topology struct {
	// Order lists every node so that each node runs after the nodes feeding
	// it, except for edges into cycle-breaking delays.
	Order []NodeID
	// CycleDelays are delay nodes inside a cycle. They emit from history
	// before the graph runs and consume their input after it.
	CycleDelays []NodeID
}

// Topology computes the execution order. Audio and param edges both count;
// every cycle must pass through a Delay.
func (d *Description) Topology() (*Topology, error) {
	ids := d.SortedIDs()
	index := make(map[NodeID]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	type edge struct{ from, to int }
	edges := make([]edge, 0, len(d.Connections)+len(d.ParamConnections))
	for _, c := range d.Connections {
		edges = append(edges, edge{index[c.Source], index[c.Destination]})
	}
	for _, c := range d.ParamConnections {
		edges = append(edges, edge{index[c.Source], index[c.Destination]})
	}

	adj := make([][]int, len(ids))
	for _, e := range edges {
		adj[e.from] = append(adj[e.from], e.to)
	}

	cyclic := cyclicNodes(adj)
	breaker := make([]bool, len(ids))
	var delays []NodeID
	for i, id := range ids {
		if cyclic[i] && d.Nodes[id].Kind() == KindDelay {
			breaker[i] = true
			delays = append(delays, id)
		}
	}

	// Kahn over the graph with edges into cycle-breaking delays removed.
	indeg := make([]int, len(ids))
	reduced := make([][]int, len(ids))
	for _, e := range edges {
		if breaker[e.to] {
			continue
		}
		reduced[e.from] = append(reduced[e.from], e.to)
		indeg[e.to]++
	}

	ready := make([]int, 0, len(ids))
	for i := range ids {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]NodeID, 0, len(ids))
	for len(ready) > 0 {
		// Smallest id first keeps the order deterministic.
		slices.Sort(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, ids[n])
		for _, m := range reduced[n] {
			indeg[m]--
			if indeg[m] == 0 {
				ready = append(ready, m)
			}
		}
	}

	if len(order) != len(ids) {
		for i := range ids {
			if indeg[i] > 0 {
				return nil, fmt.Errorf("%w: %w: through node %d", ErrInvalidGraph, ErrCycle, ids[i])
			}
		}
	}

	return &Topology{Order: order, CycleDelays: delays}, nil
}

// cyclicNodes marks nodes that sit on a cycle (Tarjan's strongly connected
// components; a component counts when it has more than one node or a self
// edge).
func cyclicNodes(adj [][]int) []bool {
	n := len(adj)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var (
		stack  []int
		next   int
		cyclic = make([]bool, n)
	)

	var connect func(v int)
	connect = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if index[w] < 0 {
				connect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] != index[v] {
			return
		}

		var comp []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}

		if len(comp) > 1 || slices.Contains(adj[v], v) {
			for _, w := range comp {
				cyclic[w] = true
			}
		}
	}

	for v := range n {
		if index[v] < 0 {
			connect(v)
		}
	}
	return cyclic
}
