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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTx_RollbackRestoresEverything(t *testing.T) {
	d, err := newDiamond()
	require.NoError(t, err)

	before := []float64{d.a.value, d.b.value, d.c.value, d.ab.value, d.bc.value, d.top.value}

	tx, err := d.g.Begin(d.b)
	require.NoError(t, err)
	assert.True(t, d.g.InTransaction())

	d.b.set(10)
	require.NoError(t, tx.Propagate())
	assert.Equal(t, 11.0, d.ab.value)
	assert.Equal(t, 13.0, d.bc.value)
	assert.Equal(t, 24.0, d.top.value)

	require.NoError(t, tx.Rollback())

	after := []float64{d.a.value, d.b.value, d.c.value, d.ab.value, d.bc.value, d.top.value}
	assert.Equal(t, before, after)
	assert.Nil(t, d.b.info)
	assert.Nil(t, d.b.cached)
	assert.Nil(t, d.ab.cached)
	assert.Nil(t, d.top.cached)
	assert.False(t, d.g.InTransaction())
	assert.NoError(t, d.g.Verify())
}

func TestTx_RollbackBeforePropagate(t *testing.T) {
	d, err := newDiamond()
	require.NoError(t, err)

	tx, err := d.g.Begin(d.a)
	require.NoError(t, err)
	d.a.set(-5)

	require.NoError(t, tx.Rollback())
	assert.Equal(t, 1.0, d.a.value)
	assert.Equal(t, 0, d.ab.updates)
	assert.NoError(t, d.g.Verify())
}

func TestTx_CommitClearsState(t *testing.T) {
	d, err := newDiamond()
	require.NoError(t, err)

	tx, err := d.g.Begin(d.a, d.c)
	require.NoError(t, err)
	d.a.set(4)
	d.c.set(6)
	require.NoError(t, tx.Propagate())
	require.NoError(t, tx.Commit())

	assert.Equal(t, 4.0, d.a.value)
	assert.Equal(t, 6.0, d.ab.value)
	assert.Equal(t, 8.0, d.bc.value)
	assert.Equal(t, 14.0, d.top.value)

	for _, p := range []*testParam{d.a, d.b, d.c} {
		assert.Nil(t, p.cached, p.name)
		assert.Nil(t, p.info, p.name)
	}
	for _, s := range []*sumNode{d.ab, d.bc, d.top} {
		assert.Nil(t, s.cached, s.name)
	}
	assert.NoError(t, d.g.Verify())
}

func TestTx_SingleRecomputationWithMultipleChangedParents(t *testing.T) {
	d, err := newDiamond()
	require.NoError(t, err)

	tx, err := d.g.Begin(d.a, d.c)
	require.NoError(t, err)
	d.a.set(100)
	d.c.set(200)
	require.NoError(t, tx.Propagate())

	// top has two changed parents and must see both changes in one call.
	assert.Equal(t, 1, d.top.updates)
	require.Len(t, d.top.batches, 1)
	assert.Len(t, d.top.batches[0], 2)
	assert.Equal(t, 1, d.ab.updates)
	assert.Equal(t, 1, d.bc.updates)
	assert.Len(t, tx.Recomputed(), 3)

	require.NoError(t, tx.Commit())
}

func TestTx_UntouchedNodesAreNotRecomputed(t *testing.T) {
	d, err := newDiamond()
	require.NoError(t, err)

	tx, err := d.g.Begin(d.a)
	require.NoError(t, err)
	assert.Len(t, tx.Closure(), 3)
	assert.Nil(t, d.bc.cached)

	d.a.set(2)
	require.NoError(t, tx.Propagate())
	assert.Equal(t, 0, d.bc.updates)
	require.NoError(t, tx.Commit())
}

func TestTx_SilentDependentStopsPropagation(t *testing.T) {
	d, err := newDiamond()
	require.NoError(t, err)
	d.ab.silent = true

	tx, err := d.g.Begin(d.a)
	require.NoError(t, err)
	d.a.set(9)
	require.NoError(t, tx.Propagate())

	assert.Equal(t, 1, d.ab.updates)
	assert.Equal(t, 0, d.top.updates)
	require.NoError(t, tx.Commit())
}

func TestTx_UnperturbedParameterPropagatesNothing(t *testing.T) {
	d, err := newDiamond()
	require.NoError(t, err)

	tx, err := d.g.Begin(d.a)
	require.NoError(t, err)
	require.NoError(t, tx.Propagate())
	assert.Empty(t, tx.Recomputed())
	require.NoError(t, tx.Commit())
}

func TestTx_Lifecycle(t *testing.T) {
	t.Run("second terminal call fails", func(t *testing.T) {
		d, err := newDiamond()
		require.NoError(t, err)

		tx, err := d.g.Begin(d.a)
		require.NoError(t, err)
		require.NoError(t, tx.Propagate())
		require.NoError(t, tx.Commit())

		assert.ErrorIs(t, tx.Commit(), ErrTransactionClosed)
		assert.ErrorIs(t, tx.Rollback(), ErrTransactionClosed)
		assert.ErrorIs(t, tx.Propagate(), ErrTransactionClosed)
		assert.Equal(t, "committed", tx.State())
	})

	t.Run("commit requires propagate", func(t *testing.T) {
		d, err := newDiamond()
		require.NoError(t, err)

		tx, err := d.g.Begin(d.a)
		require.NoError(t, err)
		assert.ErrorIs(t, tx.Commit(), ErrNotPropagated)
		require.NoError(t, tx.Rollback())
	})

	t.Run("propagate twice", func(t *testing.T) {
		d, err := newDiamond()
		require.NoError(t, err)

		tx, err := d.g.Begin(d.a)
		require.NoError(t, err)
		require.NoError(t, tx.Propagate())
		assert.ErrorIs(t, tx.Propagate(), ErrAlreadyPropagated)
		require.NoError(t, tx.Rollback())
	})

	t.Run("one transaction at a time", func(t *testing.T) {
		d, err := newDiamond()
		require.NoError(t, err)

		tx, err := d.g.Begin(d.a)
		require.NoError(t, err)

		_, err = d.g.Begin(d.c)
		assert.ErrorIs(t, err, ErrTransactionActive)
		assert.ErrorIs(t, d.g.Verify(), ErrDanglingState)

		require.NoError(t, tx.Rollback())
		tx, err = d.g.Begin(d.c)
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())
	})

	t.Run("begin rejects dangling change", func(t *testing.T) {
		d, err := newDiamond()
		require.NoError(t, err)

		d.a.set(3)
		assert.ErrorIs(t, d.g.Verify(), ErrDanglingState)

		_, err = d.g.Begin(d.a)
		assert.ErrorIs(t, err, ErrDanglingState)
	})

	t.Run("begin rejects unknown parameter", func(t *testing.T) {
		d, err := newDiamond()
		require.NoError(t, err)

		_, err = d.g.Begin(newTestParam("stranger", 0))
		assert.ErrorIs(t, err, ErrNodeNotFound)

		_, err = d.g.Begin()
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestTx_UpdateFailureLeavesTransactionOpen(t *testing.T) {
	d, err := newDiamond()
	require.NoError(t, err)
	d.bc.failing = true

	tx, err := d.g.Begin(d.c)
	require.NoError(t, err)
	d.c.set(7)

	err = tx.Propagate()
	require.Error(t, err)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "bc", nodeErr.NodeName)

	require.NoError(t, tx.Rollback())
	assert.Equal(t, 3.0, d.c.value)
	assert.Equal(t, 5.0, d.bc.value)
	assert.NoError(t, d.g.Verify())
}

func TestGraph_VerifyDetectsRetainedSnapshot(t *testing.T) {
	d, err := newDiamond()
	require.NoError(t, err)
	require.NoError(t, d.g.Verify())

	d.top.Cache()
	err = d.g.Verify()
	assert.ErrorIs(t, err, ErrDanglingState)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "top", nodeErr.NodeName)

	d.top.ClearCache()
	d.b.Cache()
	assert.ErrorIs(t, d.g.Verify(), ErrDanglingState)
	d.b.RestoreCache()
	assert.NoError(t, d.g.Verify())
}

func TestTx_ChangeRoutedToParameterIsRejected(t *testing.T) {
	p := newTestParam("p", 1)
	s := newSumNode("s", p)
	q := newTestParam("q", 0)
	g, err := NewBuilder("corrupt").AddParameter(p).AddDependent(s, p).AddParameter(q).Build()
	require.NoError(t, err)

	// Wire s -> q by hand; Builder cannot produce this edge.
	sID, _ := g.ID(s)
	qID, _ := g.ID(q)
	g.children[sID] = append(g.children[sID], qID)
	g.parents[qID] = append(g.parents[qID], sID)
	g.order = topologicalOrder(g)
	for pos, id := range g.order {
		g.rank[id] = pos
	}

	tx, err := g.Begin(p)
	require.NoError(t, err)
	p.set(2)

	err = tx.Propagate()
	assert.ErrorIs(t, err, ErrUnexpectedNotification)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "q", nodeErr.NodeName)

	require.NoError(t, tx.Rollback())
	assert.Equal(t, 1.0, p.value)
	assert.NoError(t, g.Verify())
}
