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

// NodeID is a stable handle to a node inside a Graph.
type NodeID int

// Kind distinguishes parameters from dependents.
type Kind int

const (
	// KindParameter marks a source node perturbed directly by proposers.
	KindParameter Kind = iota

	// KindDependent marks a node derived from its parents.
	KindDependent
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindDependent:
		return "dependent"
	default:
		return "unknown"
	}
}

// Node is anything that can live in the graph.
//
// Description:
//
//	Nodes are identified by value, so implementations must be comparable;
//	in practice every node is a pointer to a struct.
type Node interface {
	// Name returns a human-readable identifier used in errors and samples.
	Name() string
}

// Cacheable is the snapshot half of the iteration protocol.
type Cacheable interface {
	// Cache snapshots the current value so it can be restored verbatim.
	Cache()

	// ClearCache discards the snapshot; the current value becomes permanent.
	ClearCache()

	// RestoreCache replaces the current value with the snapshot and discards it.
	RestoreCache()
}

// SnapshotHolder is optionally implemented by nodes that can report an
// outstanding snapshot. Verify uses it.
type SnapshotHolder interface {
	// HasCache returns true between Cache and ClearCache/RestoreCache.
	HasCache() bool
}

// Parameter is a mutable source node.
//
// Description:
//
//	A parameter holds one or more sub-parameters. Whoever perturbs it must
//	record a ChangeInfo via SetChangeInfo; the graph forwards that change to
//	the parameter's children during Propagate and clears it when the
//	transaction closes.
type Parameter interface {
	Node
	Cacheable

	// NumSubParameters returns 1 for scalars, N for vectors.
	NumSubParameters() int

	// ChangeInfo returns the pending change, or nil when unperturbed.
	ChangeInfo() *ChangeInfo

	// SetChangeInfo records (or clears, with nil) the pending change.
	SetChangeInfo(info *ChangeInfo)
}

// Dependent is a node derived from one or more parents.
type Dependent interface {
	Node
	Cacheable

	// Update recomputes the dependent after its parents changed.
	//
	// Inputs:
	//
	//	changes - Every parent change of this iteration, merged. Never empty.
	//
	// Outputs:
	//
	//	*ChangeInfo - Change to forward to children, or nil if they are unaffected.
	//	error - Non-nil if the recomputation is impossible. Aborts the iteration.
	Update(changes []*ChangeInfo) (*ChangeInfo, error)
}

// ChangeInfo describes what changed in a node during the current iteration.
type ChangeInfo struct {
	// Node is the node that changed.
	Node Node

	// Cause is a human-readable reason, e.g. "Perturbed by NormalProposer".
	Cause string

	// Indices lists affected sub-parameters. Nil means the whole node.
	Indices []int
}

// NewChangeInfo creates a ChangeInfo. Indices are copied.
func NewChangeInfo(node Node, cause string, indices ...int) *ChangeInfo {
	info := &ChangeInfo{Node: node, Cause: cause}
	if len(indices) > 0 {
		info.Indices = slices.Clone(indices)
	}
	return info
}

// Whole returns true if the change affects every sub-parameter.
func (c *ChangeInfo) Whole() bool {
	return c.Indices == nil
}

// String returns a compact description.
func (c *ChangeInfo) String() string {
	name := "<nil>"
	if c.Node != nil {
		name = c.Node.Name()
	}
	if c.Whole() {
		return fmt.Sprintf("%s: %s", name, c.Cause)
	}
	return fmt.Sprintf("%s%v: %s", name, c.Indices, c.Cause)
}
