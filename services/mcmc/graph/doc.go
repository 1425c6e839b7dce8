// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph implements the dependency graph of an MCMC chain.
//
// The graph is an arena of nodes addressed by NodeID handles. Leaf nodes are
// Parameters (mutable state perturbed by proposers); inner nodes are
// Dependents (values derived from their parents). The topology is fixed once
// Build returns.
//
// # Iteration Protocol
//
// Every chain iteration is one transaction:
//
//	tx, err := g.Begin(perturbed...)   // cache the downstream closure
//	// ... proposers mutate parameters and set ChangeInfo ...
//	err = tx.Propagate()               // recompute in topological order
//	err = tx.Commit()                  // or tx.Rollback()
//
// Begin snapshots every node reachable from the perturbed parameters.
// Propagate visits that closure in topological order, so a dependent with
// several changed parents is recomputed exactly once, after all of them.
// Commit discards the snapshots; Rollback restores them. After either, no
// node holds a snapshot or a ChangeInfo and the transaction is dead.
//
// # Thread Safety
//
// A Graph is owned by a single chain. None of its methods are safe for
// concurrent use.
package graph
