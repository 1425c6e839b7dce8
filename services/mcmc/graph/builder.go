// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"container/heap"
	"fmt"
)

// pendingNode is a registration recorded by the builder before IDs are final.
type pendingNode struct {
	node    Node
	kind    Kind
	parents []Node
}

// Builder constructs a Graph with validation.
//
// Description:
//
//	Builder collects parameters and dependents in registration order.
//	Parents may be registered after the dependent that names them; references
//	are resolved in Build. Registration errors are accumulated and the first
//	one is returned by Build.
//
// Thread Safety:
//
//	Builder is NOT safe for concurrent use. Build the graph in a single goroutine.
//
// Example:
//
//	g, err := graph.NewBuilder("model").
//	    AddParameter(mu).
//	    AddParameter(sigma).
//	    AddDependent(likelihood, mu, sigma).
//	    Build()
type Builder struct {
	name    string
	pending []pendingNode
	index   map[Node]int
	errors  []error
}

// NewBuilder creates a new graph builder.
//
// Inputs:
//
//	name - The name for the graph (used in logging and errors).
//
// Outputs:
//
//	*Builder - The builder instance.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:    name,
		pending: make([]pendingNode, 0),
		index:   make(map[Node]int),
		errors:  make([]error, 0),
	}
}

// AddParameter registers a parameter.
//
// Inputs:
//
//	p - The parameter. Must not be nil and must not be registered already.
//
// Outputs:
//
//	*Builder - The builder for chaining.
func (b *Builder) AddParameter(p Parameter) *Builder {
	if p == nil {
		b.errors = append(b.errors, ErrNilNode)
		return b
	}
	b.register(pendingNode{node: p, kind: KindParameter})
	return b
}

// AddDependent registers a dependent and its parents.
//
// Description:
//
//	Every parent must be registered (before or after this call) by the time
//	Build runs. A dependent with no parents is rejected by Build because it
//	would never be recomputed.
//
// Inputs:
//
//	d - The dependent. Must not be nil.
//	parents - Parameters or dependents this node is derived from.
//
// Outputs:
//
//	*Builder - The builder for chaining.
func (b *Builder) AddDependent(d Dependent, parents ...Node) *Builder {
	if d == nil {
		b.errors = append(b.errors, ErrNilNode)
		return b
	}
	for _, parent := range parents {
		if parent == nil {
			b.errors = append(b.errors, NewNodeError(d.Name(), ErrNilNode))
			return b
		}
	}
	b.register(pendingNode{node: d, kind: KindDependent, parents: parents})
	return b
}

func (b *Builder) register(pn pendingNode) {
	if _, exists := b.index[pn.node]; exists {
		b.errors = append(b.errors, NewNodeError(pn.node.Name(), ErrDuplicateNode))
		return
	}
	b.index[pn.node] = len(b.pending)
	b.pending = append(b.pending, pn)
}

// Build validates and constructs the graph.
//
// Description:
//
//	Resolves parent references, rejects isolated dependents and cycles, and
//	computes a deterministic topological order (ties broken by NodeID, which
//	is the registration order).
//
// Outputs:
//
//	*Graph - The constructed graph.
//	error - Non-nil if validation fails.
func (b *Builder) Build() (*Graph, error) {
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	if len(b.pending) == 0 {
		return nil, fmt.Errorf("%w: graph %q has no nodes", ErrInvalidInput, b.name)
	}

	n := len(b.pending)
	g := &Graph{
		name:     b.name,
		nodes:    make([]Node, n),
		kinds:    make([]Kind, n),
		parents:  make([][]NodeID, n),
		children: make([][]NodeID, n),
		ids:      make(map[Node]NodeID, n),
	}

	for i, pn := range b.pending {
		g.nodes[i] = pn.node
		g.kinds[i] = pn.kind
		g.ids[pn.node] = NodeID(i)
	}

	for i, pn := range b.pending {
		if pn.kind == KindDependent && len(pn.parents) == 0 {
			return nil, NewNodeError(pn.node.Name(), ErrIsolatedDependent)
		}
		seen := make(map[NodeID]bool, len(pn.parents))
		for _, parent := range pn.parents {
			pid, ok := g.ids[parent]
			if !ok {
				return nil, NewNodeError(pn.node.Name(),
					fmt.Errorf("%w: parent %q", ErrNodeNotFound, parent.Name()))
			}
			if seen[pid] {
				continue
			}
			seen[pid] = true
			g.parents[i] = append(g.parents[i], pid)
			g.children[pid] = append(g.children[pid], NodeID(i))
		}
	}

	if err := detectCycles(g); err != nil {
		return nil, err
	}

	g.order = topologicalOrder(g)
	g.rank = make([]int, n)
	for pos, id := range g.order {
		g.rank[id] = pos
	}

	return g, nil
}

// detectCycles uses DFS to detect cycles in the graph.
func detectCycles(g *Graph) error {
	n := len(g.nodes)
	visited := make([]bool, n)
	recStack := make([]bool, n)
	path := make([]NodeID, 0)

	var dfs func(id NodeID) error
	dfs = func(id NodeID) error {
		visited[id] = true
		recStack[id] = true
		path = append(path, id)

		for _, child := range g.children[id] {
			if !visited[child] {
				if err := dfs(child); err != nil {
					return err
				}
			} else if recStack[child] {
				cycleStart := 0
				for i, p := range path {
					if p == child {
						cycleStart = i
						break
					}
				}
				names := make([]string, 0, len(path)-cycleStart+1)
				for _, p := range path[cycleStart:] {
					names = append(names, g.nodes[p].Name())
				}
				names = append(names, g.nodes[child].Name())
				return NewCycleError(names)
			}
		}

		path = path[:len(path)-1]
		recStack[id] = false
		return nil
	}

	for id := range g.nodes {
		if !visited[id] {
			if err := dfs(NodeID(id)); err != nil {
				return err
			}
		}
	}

	return nil
}

// topologicalOrder runs Kahn's algorithm with a min-heap on NodeID so the
// order is stable across runs. The graph must be acyclic.
func topologicalOrder(g *Graph) []NodeID {
	indegree := make([]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.parents[id])
	}

	ready := &idHeap{}
	for id, deg := range indegree {
		if deg == 0 {
			heap.Push(ready, NodeID(id))
		}
	}

	order := make([]NodeID, 0, len(g.nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(NodeID)
		order = append(order, id)
		for _, child := range g.children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				heap.Push(ready, child)
			}
		}
	}
	return order
}

type idHeap []NodeID

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(NodeID)) }
func (h *idHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
