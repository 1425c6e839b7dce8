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
	"fmt"
	"slices"
)

// Graph is an immutable-topology dependency graph.
//
// Description:
//
//	Nodes live in an arena indexed by NodeID. Edges point from parent to
//	child. The topological order and each node's rank in it are computed once
//	by the Builder.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use. One chain owns one graph.
type Graph struct {
	name     string
	nodes    []Node
	kinds    []Kind
	parents  [][]NodeID
	children [][]NodeID
	ids      map[Node]NodeID
	order    []NodeID
	rank     []int

	// active is the open transaction, nil between iterations.
	active *Tx
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// ID returns the handle of a registered node.
func (g *Graph) ID(n Node) (NodeID, bool) {
	id, ok := g.ids[n]
	return id, ok
}

// Node returns the node behind a handle, or nil if the handle is out of range.
func (g *Graph) Node(id NodeID) Node {
	if !g.valid(id) {
		return nil
	}
	return g.nodes[id]
}

// Kind returns the kind of the node behind a handle.
func (g *Graph) Kind(id NodeID) Kind {
	return g.kinds[id]
}

// Parents returns the parent handles of a node. The slice is a copy.
func (g *Graph) Parents(id NodeID) []NodeID {
	if !g.valid(id) {
		return nil
	}
	return slices.Clone(g.parents[id])
}

// Children returns the child handles of a node. The slice is a copy.
func (g *Graph) Children(id NodeID) []NodeID {
	if !g.valid(id) {
		return nil
	}
	return slices.Clone(g.children[id])
}

// IsSink returns true if no node depends on id.
func (g *Graph) IsSink(id NodeID) bool {
	return g.valid(id) && len(g.children[id]) == 0
}

// Order returns all handles in topological order. The slice is a copy.
func (g *Graph) Order() []NodeID {
	return slices.Clone(g.order)
}

// Parameters returns every registered parameter in registration order.
func (g *Graph) Parameters() []Parameter {
	params := make([]Parameter, 0)
	for i, n := range g.nodes {
		if g.kinds[i] == KindParameter {
			params = append(params, n.(Parameter))
		}
	}
	return params
}

// InTransaction returns true while a transaction is open.
func (g *Graph) InTransaction() bool {
	return g.active != nil
}

// Downstream returns the closure of the given nodes (the nodes themselves and
// every descendant) in topological order.
//
// Inputs:
//
//	roots - Handles to start from. Duplicates are allowed.
//
// Outputs:
//
//	[]NodeID - The closure, sorted by topological rank.
func (g *Graph) Downstream(roots ...NodeID) []NodeID {
	marked := make([]bool, len(g.nodes))
	stack := make([]NodeID, 0, len(roots))
	for _, r := range roots {
		if g.valid(r) && !marked[r] {
			marked[r] = true
			stack = append(stack, r)
		}
	}

	closure := make([]NodeID, 0, len(stack))
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		closure = append(closure, id)
		for _, child := range g.children[id] {
			if !marked[child] {
				marked[child] = true
				stack = append(stack, child)
			}
		}
	}

	slices.SortFunc(closure, func(a, b NodeID) int {
		return g.rank[a] - g.rank[b]
	})
	return closure
}

// Verify checks that no iteration state outlived its transaction.
//
// Description:
//
//	Between iterations no transaction may be open, no parameter may hold a
//	ChangeInfo, and no node implementing SnapshotHolder may hold a cache
//	snapshot. The chain calls this after every iteration in debug mode.
//
// Outputs:
//
//	error - Wraps ErrDanglingState naming the first offending node, or nil.
func (g *Graph) Verify() error {
	if g.active != nil {
		return fmt.Errorf("%w: graph %q has an open transaction", ErrDanglingState, g.name)
	}
	for i, n := range g.nodes {
		if g.kinds[i] == KindParameter {
			if info := n.(Parameter).ChangeInfo(); info != nil {
				return NewNodeError(n.Name(), fmt.Errorf("%w: pending change %s", ErrDanglingState, info))
			}
		}
		if h, ok := n.(SnapshotHolder); ok && h.HasCache() {
			return NewNodeError(n.Name(), fmt.Errorf("%w: cache snapshot retained", ErrDanglingState))
		}
	}
	return nil
}

// Begin opens the transaction for one iteration.
//
// Description:
//
//	Computes the downstream closure of the parameters about to be perturbed
//	and calls Cache on every node in it. Only one transaction may be open at
//	a time. Begin must be called before any parameter is mutated.
//
// Inputs:
//
//	params - The parameters the selected proposers will perturb.
//
// Outputs:
//
//	*Tx - The open transaction.
//	error - ErrTransactionActive if one is open, ErrNodeNotFound for an
//	  unregistered parameter, ErrDanglingState if a parameter already holds a
//	  ChangeInfo.
func (g *Graph) Begin(params ...Parameter) (*Tx, error) {
	if g.active != nil {
		return nil, ErrTransactionActive
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: no parameters to perturb", ErrInvalidInput)
	}

	roots := make([]NodeID, 0, len(params))
	for _, p := range params {
		if p == nil {
			return nil, ErrNilNode
		}
		id, ok := g.ids[p]
		if !ok {
			return nil, NewNodeError(p.Name(), ErrNodeNotFound)
		}
		if g.kinds[id] != KindParameter {
			return nil, NewNodeError(p.Name(), ErrNotParameter)
		}
		if info := p.ChangeInfo(); info != nil {
			return nil, NewNodeError(p.Name(), fmt.Errorf("%w: pending change %s", ErrDanglingState, info))
		}
		roots = append(roots, id)
	}

	closure := g.Downstream(roots...)
	for _, id := range closure {
		g.nodes[id].(Cacheable).Cache()
	}

	tx := &Tx{
		graph:   g,
		roots:   roots,
		closure: closure,
		state:   txOpen,
	}
	g.active = tx
	return tx, nil
}

func (g *Graph) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes)
}
