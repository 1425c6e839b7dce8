// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package models

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/param"
)

// GaussianLikelihood is the log-likelihood of observations drawn i.i.d.
// from Normal(mu, sigma).
//
// Description:
//
//	mu and sigma are scalar parameters (sub-parameter 0 is used). A
//	non-positive sigma gives log-likelihood -Inf, so such states are
//	always rejected by Metropolis-Hastings.
type GaussianLikelihood struct {
	density
	mu    param.Real
	sigma param.Real
	data  []float64
}

// NewGaussianLikelihood creates the likelihood. data must be non-empty and finite.
func NewGaussianLikelihood(name string, mu, sigma param.Real, data []float64) (*GaussianLikelihood, error) {
	if mu == nil || sigma == nil {
		return nil, fmt.Errorf("%w: %s: nil parameter", ErrInvalidModel, name)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: no observations", ErrInvalidModel, name)
	}
	for i, x := range data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: %s: observation %d is %g", ErrInvalidModel, name, i, x)
		}
	}
	l := &GaussianLikelihood{mu: mu, sigma: sigma, data: slices.Clone(data)}
	l.density = newDensity(name, len(data), func(i int) float64 {
		s := l.sigma.Value(0)
		if !(s > 0) {
			return math.Inf(-1)
		}
		return distuv.Normal{Mu: l.mu.Value(0), Sigma: s}.LogProb(l.data[i])
	})
	return l, nil
}

// Parents returns the nodes this likelihood depends on.
func (l *GaussianLikelihood) Parents() []graph.Node { return []graph.Node{l.mu, l.sigma} }

// Observations returns a copy of the data.
func (l *GaussianLikelihood) Observations() []float64 { return slices.Clone(l.data) }

// Update recomputes every term; each observation depends on both parameters.
func (l *GaussianLikelihood) Update(_ []*graph.ChangeInfo) (*graph.ChangeInfo, error) {
	l.recomputeAll()
	return graph.NewChangeInfo(l, "recomputed"), nil
}
