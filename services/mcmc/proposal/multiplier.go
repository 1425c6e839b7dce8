// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proposal

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/param"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/schedule"
)

// MultiplierProposer scales positive values by c = exp(λ(u - 1/2)), u ~ U(0,1).
//
// Description:
//
//	The move is symmetric in log space, so its Hastings ratio is c for each
//	perturbed sub-parameter. Forward is reported as 0 and Backward as the sum
//	of log c. The domain must not extend below zero, and a value of exactly
//	zero cannot be moved.
type MultiplierProposer struct {
	realProposer
	lambda schedule.TuningParameter
}

// NewMultiplierProposer creates a multiplier proposer.
//
// Inputs:
//
//	p - A parameter whose domain lies within [0, inf).
//	lambda - Step length. MinValue must be > 0.
//	weight - Selection weight.
func NewMultiplierProposer(p param.Real, lambda schedule.TuningParameter, weight *schedule.ProposerWeight) (*MultiplierProposer, error) {
	if lambda == nil || lambda.MinValue() <= 0 {
		return nil, fmt.Errorf("%w: lambda must be in (0, inf)", ErrInvalidTuning)
	}
	name := "MultiplierProposer"
	if p != nil {
		name = "MultiplierProposer(" + p.Name() + ")"
	}
	base, err := newRealProposer(name, p, weight)
	if err != nil {
		return nil, err
	}
	if p.Domain().Lower < 0 {
		return nil, fmt.Errorf("%w: %s needs a non-negative domain, got %s", ErrInvalidDomain, name, p.Domain())
	}
	return &MultiplierProposer{realProposer: base, lambda: lambda}, nil
}

// TuningParameters returns lambda.
func (m *MultiplierProposer) TuningParameters() []schedule.TuningParameter {
	return []schedule.TuningParameter{m.lambda}
}

// Perturb scales a random subset of sub-parameters.
func (m *MultiplierProposer) Perturb(rng *rand.Rand) (*Proposal, error) {
	k := m.param.NumSubParameters()
	if err := m.remember(chooseIndices(rng, m.cumWeights, k)); err != nil {
		return nil, err
	}

	domain := m.param.Domain()
	lambda := m.lambda.Value()

	logRatio := 0.0
	for i, idx := range m.indexCache {
		xOld := m.valueCache[i]
		if xOld == 0 {
			if err := m.writeBack(i); err != nil {
				return nil, err
			}
			return Invalid(m), nil
		}

		x, logC, ok := 0.0, 0.0, false
		for attempt := 0; attempt < MaxAttempts && !ok; attempt++ {
			logC = lambda * (rng.Float64() - 0.5)
			x = xOld * math.Exp(logC)
			ok = domain.Contains(x)
		}
		if !ok {
			if err := m.writeBack(i); err != nil {
				return nil, err
			}
			return Invalid(m), nil
		}
		if err := m.param.SetValue(idx, x); err != nil {
			return nil, fmt.Errorf("%s: %w", m.name, err)
		}
		logRatio += logC
	}

	m.markChanged()
	return NewProposal(m, 0, logRatio, len(m.indexCache)), nil
}

// Info renders the pre-run report block.
func (m *MultiplierProposer) Info(prefix string) string {
	var sb strings.Builder
	sb.WriteString(prefix + "MULTIPLIER PROPOSER\n")
	fmt.Fprintf(&sb, "%sPerturbed parameter: %s\n", prefix, m.param.Name())
	fmt.Fprintf(&sb, "%sIs active: %t\n", prefix, m.enabled)
	fmt.Fprintf(&sb, "%sDomain: %s\n", prefix, m.param.Domain())
	sb.WriteString(prefix + "Step length:\n" + m.lambda.Info(prefix+"\t"))
	sb.WriteString(prefix + "Weight:\n" + m.weight.Info(prefix+"\t"))
	return sb.String()
}
