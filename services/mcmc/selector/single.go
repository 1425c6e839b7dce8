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

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/proposal"
)

// SingleSelector picks exactly one proposer per iteration by weighted draw.
type SingleSelector struct {
	registry
}

// NewSingleSelector creates a single-proposer selector.
func NewSingleSelector(opts Options) *SingleSelector {
	return &SingleSelector{registry: registry{opts: opts}}
}

// Add registers a proposer.
func (s *SingleSelector) Add(p proposal.Proposer) error {
	return s.add(p)
}

// Select draws one enabled proposer with probability proportional to its weight.
func (s *SingleSelector) Select(rng *rand.Rand) ([]proposal.Proposer, error) {
	ps, ws := s.eligible()
	if len(ps) == 0 {
		return nil, ErrNoEligibleProposer
	}
	return []proposal.Proposer{ps[weightedIndex(rng, ws)]}, nil
}

// Info renders the pre-run report block.
func (s *SingleSelector) Info(prefix string) string {
	return s.info(prefix, "SINGLE PROPOSER SELECTOR")
}
