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

import "errors"

// testParam is a scalar parameter with a one-slot cache.
type testParam struct {
	name   string
	value  float64
	cached *float64
	info   *ChangeInfo
}

func newTestParam(name string, v float64) *testParam {
	return &testParam{name: name, value: v}
}

func (p *testParam) Name() string                  { return p.name }
func (p *testParam) NumSubParameters() int         { return 1 }
func (p *testParam) ChangeInfo() *ChangeInfo       { return p.info }
func (p *testParam) SetChangeInfo(info *ChangeInfo) { p.info = info }

func (p *testParam) Cache() {
	v := p.value
	p.cached = &v
}

func (p *testParam) ClearCache() {
	p.cached = nil
}

func (p *testParam) RestoreCache() {
	if p.cached != nil {
		p.value = *p.cached
		p.cached = nil
	}
}

func (p *testParam) HasCache() bool { return p.cached != nil }

// set mutates the value the way a proposer would.
func (p *testParam) set(v float64) {
	p.value = v
	p.info = NewChangeInfo(p, "test perturbation")
}

// valued is satisfied by every test node.
type valued interface {
	Node
	Value() float64
}

func (p *testParam) Value() float64 { return p.value }

// sumNode sums its parents and counts recomputations.
type sumNode struct {
	name    string
	parents []valued
	value   float64
	cached  *float64
	updates int
	batches [][]*ChangeInfo
	failing bool
	silent  bool
}

func newSumNode(name string, parents ...valued) *sumNode {
	s := &sumNode{name: name, parents: parents}
	s.recompute()
	return s
}

func (s *sumNode) Name() string   { return s.name }
func (s *sumNode) Value() float64 { return s.value }

func (s *sumNode) recompute() {
	total := 0.0
	for _, p := range s.parents {
		total += p.Value()
	}
	s.value = total
}

func (s *sumNode) Update(changes []*ChangeInfo) (*ChangeInfo, error) {
	if s.failing {
		return nil, errors.New("boom")
	}
	s.updates++
	s.batches = append(s.batches, changes)
	s.recompute()
	if s.silent {
		return nil, nil
	}
	return NewChangeInfo(s, "parent changed"), nil
}

func (s *sumNode) Cache() {
	v := s.value
	s.cached = &v
}

func (s *sumNode) ClearCache() {
	s.cached = nil
}

func (s *sumNode) RestoreCache() {
	if s.cached != nil {
		s.value = *s.cached
		s.cached = nil
	}
}

func (s *sumNode) HasCache() bool { return s.cached != nil }

// diamond builds a, b -> ab ; b, c -> bc ; ab, bc -> top.
type diamond struct {
	g          *Graph
	a, b, c    *testParam
	ab, bc, top *sumNode
}

func newDiamond() (*diamond, error) {
	d := &diamond{
		a: newTestParam("a", 1),
		b: newTestParam("b", 2),
		c: newTestParam("c", 3),
	}
	d.ab = newSumNode("ab", d.a, d.b)
	d.bc = newSumNode("bc", d.b, d.c)
	d.top = newSumNode("top", d.ab, d.bc)

	g, err := NewBuilder("diamond").
		AddParameter(d.a).
		AddParameter(d.b).
		AddParameter(d.c).
		AddDependent(d.ab, d.a, d.b).
		AddDependent(d.bc, d.b, d.c).
		AddDependent(d.top, d.ab, d.bc).
		Build()
	if err != nil {
		return nil, err
	}
	d.g = g
	return d, nil
}
