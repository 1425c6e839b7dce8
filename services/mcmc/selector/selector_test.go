// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package selector

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/param"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/proposal"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/schedule"
)

type stubProposer struct {
	name    string
	targets []graph.Parameter
	weight  float64
	enabled bool
}

func (s *stubProposer) Name() string                                 { return s.name }
func (s *stubProposer) Parameters() []graph.Parameter                { return s.targets }
func (s *stubProposer) Weight() float64                              { return s.weight }
func (s *stubProposer) Enabled() bool                                { return s.enabled }
func (s *stubProposer) SetEnabled(e bool)                            { s.enabled = e }
func (s *stubProposer) ClearCache() error                            { return nil }
func (s *stubProposer) RestoreCache() error                          { return nil }
func (s *stubProposer) Statistics() *proposal.Statistics             { return proposal.NewStatistics(0) }
func (s *stubProposer) TuningParameters() []schedule.TuningParameter { return nil }
func (s *stubProposer) Info(prefix string) string                    { return prefix + s.name }
func (s *stubProposer) Perturb(_ *rand.Rand) (*proposal.Proposal, error) {
	return proposal.NewProposal(s, 0, 0, 1), nil
}

func newParam(t *testing.T, name string) graph.Parameter {
	t.Helper()
	d, err := param.NewDouble(name, param.Unbounded(), 1)
	require.NoError(t, err)
	return d
}

func stub(name string, weight float64, targets ...graph.Parameter) *stubProposer {
	return &stubProposer{name: name, targets: targets, weight: weight, enabled: true}
}

func newRNG() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func TestSingleSelector(t *testing.T) {
	a, b := newParam(t, "a"), newParam(t, "b")
	heavy := stub("heavy", 3, a)
	light := stub("light", 1, b)
	off := stub("off", 100, a)
	off.enabled = false
	zero := stub("zero", 0, b)

	s := NewSingleSelector(Options{})
	for _, p := range []proposal.Proposer{heavy, light, off, zero} {
		require.NoError(t, s.Add(p))
	}
	assert.Len(t, s.Proposers(), 4)
	assert.ErrorIs(t, s.Add(heavy), ErrDuplicateProposer)
	assert.ErrorIs(t, s.Add(nil), ErrNilProposer)

	rng := newRNG()
	counts := map[string]int{}
	for i := 0; i < 4000; i++ {
		sel, err := s.Select(rng)
		require.NoError(t, err)
		require.Len(t, sel, 1)
		counts[sel[0].Name()]++
	}
	assert.Zero(t, counts["off"])
	assert.Zero(t, counts["zero"])
	assert.InDelta(t, 3000, counts["heavy"], 150)
	assert.Contains(t, s.Info(""), "SINGLE PROPOSER SELECTOR")
}

func TestSelector_NoEligibleProposer(t *testing.T) {
	a := newParam(t, "a")
	p := stub("p", 1, a)
	p.enabled = false

	single := NewSingleSelector(Options{})
	require.NoError(t, single.Add(p))
	_, err := single.Select(newRNG())
	assert.ErrorIs(t, err, ErrNoEligibleProposer)

	multi, err := NewMultiSelector([]float64{1, 1}, Options{})
	require.NoError(t, err)
	_, err = multi.Select(newRNG())
	assert.ErrorIs(t, err, ErrNoEligibleProposer)
}

func TestMultiSelector_Disjointness(t *testing.T) {
	a, b, c, d := newParam(t, "a"), newParam(t, "b"), newParam(t, "c"), newParam(t, "d")
	proposers := []*stubProposer{
		stub("a", 1, a),
		stub("ab", 1, a, b),
		stub("bc", 1, b, c),
		stub("c", 1, c),
		stub("d", 1, d),
	}

	s, err := NewMultiSelector([]float64{0, 0, 1}, Options{})
	require.NoError(t, err)
	for _, p := range proposers {
		require.NoError(t, s.Add(p))
	}

	rng := newRNG()
	sizes := map[int]int{}
	for i := 0; i < 2000; i++ {
		sel, err := s.Select(rng)
		require.NoError(t, err)
		require.NotEmpty(t, sel)
		sizes[len(sel)]++

		seen := map[graph.Parameter]string{}
		for _, p := range sel {
			for _, target := range p.Parameters() {
				owner, dup := seen[target]
				require.False(t, dup, "%s and %s both target %s", owner, p.Name(), target.Name())
				seen[target] = p.Name()
			}
		}
	}
	assert.Greater(t, sizes[3], 0)
	assert.Zero(t, sizes[4])
}

func TestMultiSelector_CountWeights(t *testing.T) {
	_, err := NewMultiSelector([]float64{1, -1}, Options{})
	assert.ErrorIs(t, err, ErrInvalidWeights)
	_, err = NewMultiSelector([]float64{0, 0}, Options{})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	s, err := NewMultiSelector(nil, Options{})
	require.NoError(t, err)
	for _, name := range []string{"x", "y", "z"} {
		require.NoError(t, s.Add(stub(name, 1, newParam(t, name))))
	}
	sel, err := s.Select(newRNG())
	require.NoError(t, err)
	assert.Len(t, sel, 1)
}

func TestSelector_RequireDisjointTargets(t *testing.T) {
	a, b := newParam(t, "a"), newParam(t, "b")

	s, err := NewMultiSelector([]float64{1, 1}, Options{RequireDisjointTargets: true})
	require.NoError(t, err)
	require.NoError(t, s.Add(stub("a", 1, a)))
	require.NoError(t, s.Add(stub("b", 1, b)))
	assert.ErrorIs(t, s.Add(stub("ab", 1, a, b)), ErrOverlappingTargets)
	assert.Contains(t, s.Info(""), "Disjoint targets required at registration: true")
}

func TestOverlaps(t *testing.T) {
	a, b, c := newParam(t, "a"), newParam(t, "b"), newParam(t, "c")
	assert.True(t, Overlaps(stub("1", 1, a, b), stub("2", 1, b, c)))
	assert.False(t, Overlaps(stub("1", 1, a), stub("2", 1, b, c)))
}
