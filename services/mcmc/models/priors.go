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

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/param"
)

// NormalPrior is an independent Normal(mean, stdDev) density over every
// sub-parameter of x.
type NormalPrior struct {
	density
	x    param.Real
	dist distuv.Normal
}

// NewNormalPrior creates the prior. stdDev must be positive and finite.
func NewNormalPrior(name string, x param.Real, mean, stdDev float64) (*NormalPrior, error) {
	if x == nil {
		return nil, fmt.Errorf("%w: %s: nil parameter", ErrInvalidModel, name)
	}
	if !(stdDev > 0) || math.IsInf(stdDev, 0) || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return nil, fmt.Errorf("%w: %s: normal(%g, %g)", ErrInvalidModel, name, mean, stdDev)
	}
	p := &NormalPrior{x: x, dist: distuv.Normal{Mu: mean, Sigma: stdDev}}
	p.density = newDensity(name, x.NumSubParameters(), func(i int) float64 {
		return p.dist.LogProb(p.x.Value(i))
	})
	return p, nil
}

// Parents returns the nodes this prior depends on.
func (p *NormalPrior) Parents() []graph.Node { return []graph.Node{p.x} }

// Update recomputes the terms of the changed sub-parameters.
func (p *NormalPrior) Update(changes []*graph.ChangeInfo) (*graph.ChangeInfo, error) {
	return p.updateFrom(p.x, changes, p), nil
}

// GammaPrior is an independent Gamma(shape, rate) density over every
// sub-parameter of x. Values at or below zero have log-density -Inf.
type GammaPrior struct {
	density
	x    param.Real
	dist distuv.Gamma
}

// NewGammaPrior creates the prior. shape and rate must be positive and finite.
func NewGammaPrior(name string, x param.Real, shape, rate float64) (*GammaPrior, error) {
	if x == nil {
		return nil, fmt.Errorf("%w: %s: nil parameter", ErrInvalidModel, name)
	}
	if !(shape > 0) || !(rate > 0) || math.IsInf(shape, 0) || math.IsInf(rate, 0) {
		return nil, fmt.Errorf("%w: %s: gamma(%g, %g)", ErrInvalidModel, name, shape, rate)
	}
	p := &GammaPrior{x: x, dist: distuv.Gamma{Alpha: shape, Beta: rate}}
	p.density = newDensity(name, x.NumSubParameters(), func(i int) float64 {
		v := p.x.Value(i)
		if !(v > 0) {
			return math.Inf(-1)
		}
		return p.dist.LogProb(v)
	})
	return p, nil
}

// Parents returns the nodes this prior depends on.
func (p *GammaPrior) Parents() []graph.Node { return []graph.Node{p.x} }

// Update recomputes the terms of the changed sub-parameters.
func (p *GammaPrior) Update(changes []*graph.ChangeInfo) (*graph.ChangeInfo, error) {
	return p.updateFrom(p.x, changes, p), nil
}
