// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package selector chooses which proposers run in an iteration.
//
// Every selection is target-disjoint: no parameter is perturbed by two
// proposers in the same iteration.
package selector

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/proposal"
)

var (
	// ErrNoEligibleProposer is returned when no enabled proposer has positive weight.
	ErrNoEligibleProposer = errors.New("no enabled proposer with positive weight")

	// ErrOverlappingTargets is returned when strict registration sees shared parameters.
	ErrOverlappingTargets = errors.New("proposers share target parameters")

	// ErrNilProposer is returned when registering nil.
	ErrNilProposer = errors.New("proposer must not be nil")

	// ErrDuplicateProposer is returned when the same proposer is registered twice.
	ErrDuplicateProposer = errors.New("proposer already registered")

	// ErrInvalidWeights is returned for negative or all-zero count weights.
	ErrInvalidWeights = errors.New("invalid proposer count weights")
)

// Selector picks the proposers for one iteration.
type Selector interface {
	// Add registers a proposer. Disabled proposers stay registered.
	Add(p proposal.Proposer) error

	// Proposers returns every registered proposer in registration order.
	Proposers() []proposal.Proposer

	// Select returns a non-empty, target-disjoint set of enabled proposers.
	Select(rng *rand.Rand) ([]proposal.Proposer, error)

	// Info renders a pre-run report block.
	Info(prefix string) string
}

// Options configures registration checks.
type Options struct {
	// RequireDisjointTargets rejects at Add time any proposer sharing a
	// parameter with one already registered.
	RequireDisjointTargets bool
}

// registry holds registered proposers and is shared by both selectors.
type registry struct {
	opts      Options
	proposers []proposal.Proposer
}

func (r *registry) add(p proposal.Proposer) error {
	if p == nil {
		return ErrNilProposer
	}
	for _, q := range r.proposers {
		if q == p {
			return fmt.Errorf("%w: %s", ErrDuplicateProposer, p.Name())
		}
		if r.opts.RequireDisjointTargets && Overlaps(p, q) {
			return fmt.Errorf("%w: %s and %s", ErrOverlappingTargets, p.Name(), q.Name())
		}
	}
	r.proposers = append(r.proposers, p)
	return nil
}

// Proposers returns every registered proposer.
func (r *registry) Proposers() []proposal.Proposer {
	return append([]proposal.Proposer(nil), r.proposers...)
}

// eligible returns enabled proposers with positive weight and their weights.
func (r *registry) eligible() ([]proposal.Proposer, []float64) {
	ps := make([]proposal.Proposer, 0, len(r.proposers))
	ws := make([]float64, 0, len(r.proposers))
	for _, p := range r.proposers {
		if !p.Enabled() {
			continue
		}
		if w := p.Weight(); w > 0 {
			ps = append(ps, p)
			ws = append(ws, w)
		}
	}
	return ps, ws
}

func (r *registry) info(prefix, title string) string {
	var sb strings.Builder
	sb.WriteString(prefix + title + "\n")
	fmt.Fprintf(&sb, "%sRegistered proposers: %d\n", prefix, len(r.proposers))
	for _, p := range r.proposers {
		fmt.Fprintf(&sb, "%s\t%s (weight %g, active %t)\n", prefix, p.Name(), p.Weight(), p.Enabled())
	}
	return sb.String()
}

// Overlaps returns true if a and b share at least one target parameter.
func Overlaps(a, b proposal.Proposer) bool {
	targets := make(map[graph.Parameter]struct{})
	for _, p := range a.Parameters() {
		targets[p] = struct{}{}
	}
	for _, p := range b.Parameters() {
		if _, ok := targets[p]; ok {
			return true
		}
	}
	return false
}

// weightedIndex draws an index with probability proportional to weights.
// Weights must be non-negative with a positive sum.
func weightedIndex(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	u := rng.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if u < acc {
			return i
		}
	}
	// Rounding can leave u == total; fall back to the last positive weight.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return len(weights) - 1
}
