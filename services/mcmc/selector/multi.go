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
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/proposal"
)

// MultiSelector picks one or more target-disjoint proposers per iteration.
//
// Description:
//
//	The number of proposers is drawn from cumulative weights over
//	"1, 2, 3 ... proposers". Proposers are then drawn by weight without
//	replacement; any candidate whose targets intersect an already chosen
//	proposer is discarded. If candidates run out before the desired count is
//	reached, the smaller set is returned.
//
// Thread Safety:
//
//	Not safe for concurrent use.
type MultiSelector struct {
	registry
	cumCounts []float64
}

// NewMultiSelector creates a selector.
//
// Inputs:
//
//	countWeights - Relative weights for selecting 1, 2, 3 ... proposers.
//	  Nil selects exactly one.
//	opts - Registration checks.
//
// Outputs:
//
//	*MultiSelector - The selector.
//	error - ErrInvalidWeights for negative or all-zero weights.
func NewMultiSelector(countWeights []float64, opts Options) (*MultiSelector, error) {
	if len(countWeights) == 0 {
		countWeights = []float64{1}
	}
	cum := make([]float64, len(countWeights))
	total := 0.0
	for i, w := range countWeights {
		if w < 0 {
			return nil, fmt.Errorf("%w: weight %d is negative (%g)", ErrInvalidWeights, i, w)
		}
		total += w
		cum[i] = total
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	for i := range cum {
		cum[i] /= total
	}
	cum[len(cum)-1] = 1.0
	return &MultiSelector{registry: registry{opts: opts}, cumCounts: cum}, nil
}

// Add registers a proposer.
func (s *MultiSelector) Add(p proposal.Proposer) error {
	return s.add(p)
}

// Select returns a non-empty, target-disjoint set of proposers.
func (s *MultiSelector) Select(rng *rand.Rand) ([]proposal.Proposer, error) {
	ps, ws := s.eligible()
	if len(ps) == 0 {
		return nil, ErrNoEligibleProposer
	}

	want := 1
	d := rng.Float64()
	for want < len(s.cumCounts) && d > s.cumCounts[want-1] {
		want++
	}

	chosen := make([]proposal.Proposer, 0, want)
	for len(chosen) < want && len(ps) > 0 {
		i := weightedIndex(rng, ws)
		candidate := ps[i]
		ps = append(ps[:i], ps[i+1:]...)
		ws = append(ws[:i], ws[i+1:]...)

		disjoint := true
		for _, c := range chosen {
			if Overlaps(candidate, c) {
				disjoint = false
				break
			}
		}
		if disjoint {
			chosen = append(chosen, candidate)
		}
	}
	return chosen, nil
}

// Info renders the pre-run report block.
func (s *MultiSelector) Info(prefix string) string {
	var sb strings.Builder
	sb.WriteString(s.info(prefix, "MULTI PROPOSER SELECTOR"))
	fmt.Fprintf(&sb, "%sCumulative proposer count weights: %v\n", prefix, s.cumCounts)
	fmt.Fprintf(&sb, "%sDisjoint targets required at registration: %t\n", prefix, s.opts.RequireDisjointTargets)
	return sb.String()
}
