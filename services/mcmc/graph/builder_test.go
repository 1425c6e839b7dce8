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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	t.Run("valid diamond", func(t *testing.T) {
		d, err := newDiamond()
		require.NoError(t, err)

		assert.Equal(t, "diamond", d.g.Name())
		assert.Equal(t, 6, d.g.NodeCount())
		assert.Len(t, d.g.Parameters(), 3)

		topID, ok := d.g.ID(d.top)
		require.True(t, ok)
		assert.True(t, d.g.IsSink(topID))
		assert.Equal(t, KindDependent, d.g.Kind(topID))

		bID, _ := d.g.ID(d.b)
		assert.Len(t, d.g.Children(bID), 2)
		assert.False(t, d.g.IsSink(bID))
	})

	t.Run("topological order is deterministic", func(t *testing.T) {
		d, err := newDiamond()
		require.NoError(t, err)

		names := make([]string, 0)
		for _, id := range d.g.Order() {
			names = append(names, d.g.Node(id).Name())
		}
		assert.Equal(t, []string{"a", "b", "c", "ab", "bc", "top"}, names)
	})

	t.Run("dependent registered before its parents", func(t *testing.T) {
		p := newTestParam("p", 1)
		s := newSumNode("s", p)

		g, err := NewBuilder("late").
			AddDependent(s, p).
			AddParameter(p).
			Build()
		require.NoError(t, err)

		order := g.Order()
		require.Len(t, order, 2)
		assert.Equal(t, "p", g.Node(order[0]).Name())
		assert.Equal(t, "s", g.Node(order[1]).Name())
	})

	t.Run("empty graph", func(t *testing.T) {
		_, err := NewBuilder("empty").Build()
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("nil parameter", func(t *testing.T) {
		_, err := NewBuilder("nil").AddParameter(nil).Build()
		assert.ErrorIs(t, err, ErrNilNode)
	})

	t.Run("duplicate registration", func(t *testing.T) {
		p := newTestParam("p", 1)
		_, err := NewBuilder("dup").AddParameter(p).AddParameter(p).Build()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateNode)

		var nodeErr *NodeError
		require.True(t, errors.As(err, &nodeErr))
		assert.Equal(t, "p", nodeErr.NodeName)
	})

	t.Run("unknown parent", func(t *testing.T) {
		p := newTestParam("p", 1)
		ghost := newTestParam("ghost", 1)
		s := newSumNode("s", p, ghost)

		_, err := NewBuilder("unknown").
			AddParameter(p).
			AddDependent(s, p, ghost).
			Build()
		assert.ErrorIs(t, err, ErrNodeNotFound)
		assert.Contains(t, err.Error(), "ghost")
	})

	t.Run("isolated dependent", func(t *testing.T) {
		p := newTestParam("p", 1)
		s := newSumNode("s")

		_, err := NewBuilder("isolated").
			AddParameter(p).
			AddDependent(s).
			Build()
		assert.ErrorIs(t, err, ErrIsolatedDependent)
	})

	t.Run("cycle", func(t *testing.T) {
		p := newTestParam("p", 1)
		x := newSumNode("x", p)
		y := newSumNode("y", x)

		_, err := NewBuilder("cycle").
			AddParameter(p).
			AddDependent(x, p, y).
			AddDependent(y, x).
			Build()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCycleDetected)

		var cycleErr *CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.GreaterOrEqual(t, len(cycleErr.Path), 3)
		assert.Equal(t, cycleErr.Path[0], cycleErr.Path[len(cycleErr.Path)-1])
	})

	t.Run("repeated parent is deduplicated", func(t *testing.T) {
		p := newTestParam("p", 1)
		s := newSumNode("s", p)

		g, err := NewBuilder("dedup").
			AddParameter(p).
			AddDependent(s, p, p).
			Build()
		require.NoError(t, err)

		sID, _ := g.ID(s)
		assert.Len(t, g.Parents(sID), 1)
	})
}

func TestBuilder_ParametersHaveNoParents(t *testing.T) {
	d, err := newDiamond()
	require.NoError(t, err)

	for _, id := range d.g.Order() {
		if d.g.Kind(id) != KindParameter {
			continue
		}
		assert.Empty(t, d.g.Parents(id), d.g.Node(id).Name())
	}

	_, err = NewBuilder("twice").
		AddParameter(d.a).
		AddDependent(newSumNode("s", d.a), d.a).
		AddParameter(d.a).
		Build()
	assert.ErrorIs(t, err, ErrDuplicateNode, "a parameter cannot be re-registered with parents")
}

func TestGraph_Downstream(t *testing.T) {
	d, err := newDiamond()
	require.NoError(t, err)

	aID, _ := d.g.ID(d.a)
	cID, _ := d.g.ID(d.c)

	names := func(ids []NodeID) []string {
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			out = append(out, d.g.Node(id).Name())
		}
		return out
	}

	assert.Equal(t, []string{"a", "ab", "top"}, names(d.g.Downstream(aID)))
	assert.Equal(t, []string{"a", "c", "ab", "bc", "top"}, names(d.g.Downstream(aID, cID, aID)))
	assert.Empty(t, d.g.Downstream(NodeID(99)))
}

func TestChangeInfo_String(t *testing.T) {
	p := newTestParam("rate", 1)

	whole := NewChangeInfo(p, "reset")
	assert.True(t, whole.Whole())
	assert.Equal(t, "rate: reset", whole.String())

	partial := NewChangeInfo(p, "perturbed", 0, 2)
	assert.False(t, partial.Whole())
	assert.Equal(t, "rate[0 2]: perturbed", partial.String())
}
