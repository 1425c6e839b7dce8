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

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/param"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/schedule"
)

// ZeroStdDev is the kernel width used when the current value is exactly zero.
const ZeroStdDev = 1e-10

// NormalProposer perturbs a real parameter with a truncated normal kernel.
//
// Description:
//
//	The kernel is centred on the current value x with standard deviation
//	|x*t1| / Φ⁻¹((1+t2)/2), so that a draw falls within (1±t1)x with
//	probability t2. The width depends on x, hence the backward density is
//	computed with the width at the new value. When the parameter domain is
//	bounded, draws are repeated until one lands inside, at most MaxAttempts
//	times, and both densities are divided by the kernel mass inside the
//	domain.
//
// Thread Safety:
//
//	Not safe for concurrent use.
type NormalProposer struct {
	realProposer
	t1 schedule.TuningParameter
	t2 schedule.TuningParameter
}

// NewNormalProposer creates a normal proposer.
//
// Inputs:
//
//	p - The parameter to perturb. Its domain must be a valid interval.
//	t1 - Relative half-width of the t2 band. MinValue must be > 0.
//	t2 - Probability mass of that band. Range must lie in (0, 1).
//	weight - Selection weight.
//
// Outputs:
//
//	*NormalProposer - The proposer, enabled, perturbing one sub-parameter at a time.
//	error - ErrInvalidTuning or ErrInvalidDomain.
func NewNormalProposer(p param.Real, t1, t2 schedule.TuningParameter, weight *schedule.ProposerWeight) (*NormalProposer, error) {
	if t1 == nil || t2 == nil {
		return nil, fmt.Errorf("%w: nil tuning parameter", ErrInvalidTuning)
	}
	if t1.MinValue() <= 0 {
		return nil, fmt.Errorf("%w: t1 %s must be in (0, inf), min is %g", ErrInvalidTuning, t1.Name(), t1.MinValue())
	}
	if t2.MinValue() <= 0 || t2.MaxValue() >= 1 {
		return nil, fmt.Errorf("%w: t2 %s must be in (0, 1), range is [%g, %g]",
			ErrInvalidTuning, t2.Name(), t2.MinValue(), t2.MaxValue())
	}
	name := "NormalProposer"
	if p != nil {
		name = "NormalProposer(" + p.Name() + ")"
	}
	base, err := newRealProposer(name, p, weight)
	if err != nil {
		return nil, err
	}
	return &NormalProposer{realProposer: base, t1: t1, t2: t2}, nil
}

// TuningParameters returns t1 and t2.
func (n *NormalProposer) TuningParameters() []schedule.TuningParameter {
	return []schedule.TuningParameter{n.t1, n.t2}
}

// StdDev returns the kernel width the proposer would use at x.
func (n *NormalProposer) StdDev(x float64) float64 {
	return kernelStdDev(x, n.t1.Value(), normFactor(n.t2.Value()))
}

// Perturb draws new values for a random subset of sub-parameters.
//
// Description:
//
//	On success the parameter holds the new values and a ChangeInfo listing
//	the perturbed indices. If some sub-parameter cannot be placed inside the
//	domain within MaxAttempts draws, every value already changed is written
//	back and an invalid proposal is returned; RestoreCache is still required.
func (n *NormalProposer) Perturb(rng *rand.Rand) (*Proposal, error) {
	k := n.param.NumSubParameters()
	if err := n.remember(chooseIndices(rng, n.cumWeights, k)); err != nil {
		return nil, err
	}

	domain := n.param.Domain()
	t1 := n.t1.Value()
	norm := normFactor(n.t2.Value())

	forward, backward := 0.0, 0.0
	for i, idx := range n.indexCache {
		xOld := n.valueCache[i]
		fwd := distuv.Normal{Mu: xOld, Sigma: kernelStdDev(xOld, t1, norm)}

		x, ok := drawInDomain(rng, fwd, domain)
		if !ok {
			if err := n.writeBack(i); err != nil {
				return nil, err
			}
			return Invalid(n), nil
		}
		if err := n.param.SetValue(idx, x); err != nil {
			return nil, fmt.Errorf("%s: %w", n.name, err)
		}

		bwd := distuv.Normal{Mu: x, Sigma: kernelStdDev(x, t1, norm)}
		forward += fwd.LogProb(x) - logMassInside(fwd, domain)
		backward += bwd.LogProb(xOld) - logMassInside(bwd, domain)
	}

	n.markChanged()
	return NewProposal(n, forward, backward, len(n.indexCache)), nil
}

// Info renders the pre-run report block.
func (n *NormalProposer) Info(prefix string) string {
	var sb strings.Builder
	sb.WriteString(prefix + "NORMAL DISTRIBUTED PROPOSER\n")
	fmt.Fprintf(&sb, "%sPerturbed parameter: %s\n", prefix, n.param.Name())
	fmt.Fprintf(&sb, "%sIs active: %t\n", prefix, n.enabled)
	fmt.Fprintf(&sb, "%sDomain: %s\n", prefix, n.param.Domain())
	fmt.Fprintf(&sb, "%sCumulative sub-parameter weights: %v\n", prefix, n.cumWeights)
	sb.WriteString(prefix + "Tuning parameter 1:\n" + n.t1.Info(prefix+"\t"))
	sb.WriteString(prefix + "Tuning parameter 2:\n" + n.t2.Info(prefix+"\t"))
	sb.WriteString(prefix + "Weight:\n" + n.weight.Info(prefix+"\t"))
	return sb.String()
}

// normFactor returns the N(0,1) quantile at (1+t2)/2.
func normFactor(t2 float64) float64 {
	return distuv.UnitNormal.Quantile((1 + t2) / 2)
}

func kernelStdDev(x, t1, norm float64) float64 {
	if x == 0 {
		return ZeroStdDev
	}
	return math.Abs(x*t1) / norm
}

// drawInDomain samples d until the draw lies in domain, at most MaxAttempts times.
func drawInDomain(rng *rand.Rand, d distuv.Normal, domain param.Interval) (float64, bool) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		x := d.Mu + d.Sigma*rng.NormFloat64()
		if domain.Contains(x) {
			return x, true
		}
	}
	return math.NaN(), false
}

// logMassInside returns the log of the probability d assigns to domain.
func logMassInside(d distuv.Normal, domain param.Interval) float64 {
	mass := 1.0
	if !math.IsInf(domain.Lower, 0) {
		mass -= d.CDF(domain.Lower)
	}
	if !math.IsInf(domain.Upper, 0) {
		mass -= 1 - d.CDF(domain.Upper)
	}
	return math.Log(mass)
}
