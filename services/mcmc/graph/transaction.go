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

type txState int

const (
	txOpen txState = iota
	txPropagated
	txCommitted
	txRolledBack
)

// String returns the state name.
func (s txState) String() string {
	switch s {
	case txOpen:
		return "open"
	case txPropagated:
		return "propagated"
	case txCommitted:
		return "committed"
	case txRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Tx is one iteration's pass over the graph.
//
// # Description
//
// Created by Graph.Begin with every closure node cached. Propagate pushes
// the parameters' ChangeInfos through the closure. Commit or Rollback ends
// the transaction; after either, every method returns ErrTransactionClosed.
//
// # Thread Safety
//
// Tx is NOT safe for concurrent use.
type Tx struct {
	graph      *Graph
	roots      []NodeID
	closure    []NodeID
	state      txState
	recomputed []NodeID
}

// Closure returns the cached nodes in topological order.
func (tx *Tx) Closure() []NodeID {
	return slices.Clone(tx.closure)
}

// Recomputed returns the dependents updated by Propagate, in update order.
func (tx *Tx) Recomputed() []NodeID {
	return slices.Clone(tx.recomputed)
}

// State returns the lifecycle state as a string.
func (tx *Tx) State() string {
	return tx.state.String()
}

// Propagate recomputes every dependent affected by the perturbation.
//
// # Description
//
// Walks the closure in topological order. A parameter with a ChangeInfo
// hands it to each of its children. A dependent with one or more pending
// parent changes is updated exactly once with all of them, and whatever
// ChangeInfo it returns is handed on to its own children. A parameter must
// never receive a parent change. Builder never gives a parameter parents,
// so ErrUnexpectedNotification only fires on a corrupted arena.
//
// # Outputs
//
//   - error: ErrTransactionClosed after Commit/Rollback, ErrAlreadyPropagated
//     on a second call, ErrUnexpectedNotification for a change routed to a
//     parameter, or the first Update error wrapped in a *NodeError.
//
// On error the transaction stays open; the caller must Rollback.
func (tx *Tx) Propagate() error {
	switch tx.state {
	case txCommitted, txRolledBack:
		return ErrTransactionClosed
	case txPropagated:
		return ErrAlreadyPropagated
	}

	g := tx.graph
	pending := make(map[NodeID][]*ChangeInfo)

	for _, id := range tx.closure {
		node := g.nodes[id]
		var out *ChangeInfo

		switch g.kinds[id] {
		case KindParameter:
			if len(pending[id]) > 0 {
				return NewNodeError(node.Name(), ErrUnexpectedNotification)
			}
			out = node.(Parameter).ChangeInfo()

		case KindDependent:
			changes := pending[id]
			if len(changes) == 0 {
				continue
			}
			delete(pending, id)
			info, err := node.(Dependent).Update(changes)
			if err != nil {
				return NewNodeError(node.Name(), err)
			}
			tx.recomputed = append(tx.recomputed, id)
			out = info
		}

		if out == nil {
			continue
		}
		for _, child := range g.children[id] {
			pending[child] = append(pending[child], out)
		}
	}

	tx.state = txPropagated
	return nil
}

// Commit accepts the iteration.
//
// # Description
//
// Calls ClearCache on every closure node and clears every parameter's
// ChangeInfo. Propagate must have succeeded first.
//
// # Outputs
//
//   - error: ErrTransactionClosed if already ended, ErrNotPropagated if
//     Propagate has not run.
func (tx *Tx) Commit() error {
	switch tx.state {
	case txCommitted, txRolledBack:
		return ErrTransactionClosed
	case txOpen:
		return ErrNotPropagated
	}

	for _, id := range tx.closure {
		tx.graph.nodes[id].(Cacheable).ClearCache()
	}
	tx.finish(txCommitted)
	return nil
}

// Rollback rejects the iteration.
//
// # Description
//
// Calls RestoreCache on every closure node and clears every parameter's
// ChangeInfo. Valid whether or not Propagate ran, and after a failed
// Propagate.
//
// # Outputs
//
//   - error: ErrTransactionClosed if already ended.
func (tx *Tx) Rollback() error {
	if tx.state == txCommitted || tx.state == txRolledBack {
		return ErrTransactionClosed
	}

	for _, id := range tx.closure {
		tx.graph.nodes[id].(Cacheable).RestoreCache()
	}
	tx.finish(txRolledBack)
	return nil
}

func (tx *Tx) finish(state txState) {
	for _, id := range tx.closure {
		if tx.graph.kinds[id] == KindParameter {
			tx.graph.nodes[id].(Parameter).SetChangeInfo(nil)
		}
	}
	tx.state = state
	tx.graph.active = nil
}

// String returns a short description for logs.
func (tx *Tx) String() string {
	return fmt.Sprintf("tx{graph=%s roots=%d closure=%d state=%s}",
		tx.graph.name, len(tx.roots), len(tx.closure), tx.state)
}
