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

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/param"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/schedule"
)

// realProposer holds what every single-parameter real proposer shares:
// identity, weight, statistics, sub-parameter choice and undo state.
type realProposer struct {
	name       string
	param      param.Real
	weight     *schedule.ProposerWeight
	stats      *Statistics
	cumWeights []float64
	enabled    bool

	indexCache []int
	valueCache []float64
}

func newRealProposer(name string, p param.Real, weight *schedule.ProposerWeight) (realProposer, error) {
	if p == nil {
		return realProposer{}, ErrNilParameter
	}
	if weight == nil {
		return realProposer{}, fmt.Errorf("%w: %s has no weight", ErrInvalidTuning, name)
	}
	if err := p.Domain().Validate(); err != nil {
		return realProposer{}, fmt.Errorf("%s: %w: %w", name, ErrInvalidDomain, err)
	}
	return realProposer{
		name:       name,
		param:      p,
		weight:     weight,
		stats:      NewStatistics(DefaultWindowSize),
		cumWeights: []float64{1.0},
		enabled:    true,
	}, nil
}

// Name returns the proposer name.
func (r *realProposer) Name() string { return r.name }

// Parameters returns the single perturbed parameter.
func (r *realProposer) Parameters() []graph.Parameter {
	return []graph.Parameter{r.param}
}

// Weight returns the current selection weight.
func (r *realProposer) Weight() float64 { return r.weight.Value() }

// ProposerWeight returns the weight schedule.
func (r *realProposer) ProposerWeight() *schedule.ProposerWeight { return r.weight }

// Enabled reports whether the proposer may be selected.
func (r *realProposer) Enabled() bool { return r.enabled }

// SetEnabled toggles selection.
func (r *realProposer) SetEnabled(enabled bool) { r.enabled = enabled }

// Statistics returns the acceptance tally.
func (r *realProposer) Statistics() *Statistics { return r.stats }

// SetSubParameterWeights sets relative weights for perturbing 1, 2, 3 ...
// sub-parameters at once. Weights beyond the parameter's size are ignored.
func (r *realProposer) SetSubParameterWeights(weights []float64) error {
	cum, err := cumulativeWeights(weights, r.param.NumSubParameters())
	if err != nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}
	r.cumWeights = cum
	return nil
}

// CumulativeWeights returns a copy of the normalized cumulative weights.
func (r *realProposer) CumulativeWeights() []float64 {
	return append([]float64(nil), r.cumWeights...)
}

// remember stores the undo state for the chosen indices.
func (r *realProposer) remember(indices []int) error {
	if r.indexCache != nil {
		return fmt.Errorf("%s: %w", r.name, ErrPerturbPending)
	}
	r.indexCache = indices
	r.valueCache = make([]float64, len(indices))
	for i, idx := range indices {
		r.valueCache[i] = r.param.Value(idx)
	}
	return nil
}

// ClearCache drops undo state and the parameter's ChangeInfo.
func (r *realProposer) ClearCache() error {
	if r.indexCache == nil {
		return fmt.Errorf("%s: %w", r.name, ErrNoCache)
	}
	r.indexCache = nil
	r.valueCache = nil
	r.param.SetChangeInfo(nil)
	return nil
}

// RestoreCache writes back the cached values and clears the ChangeInfo.
func (r *realProposer) RestoreCache() error {
	if r.indexCache == nil {
		return fmt.Errorf("%s: %w", r.name, ErrNoCache)
	}
	if err := r.writeBack(len(r.indexCache)); err != nil {
		return err
	}
	r.indexCache = nil
	r.valueCache = nil
	r.param.SetChangeInfo(nil)
	return nil
}

// writeBack restores the first n cached sub-values.
func (r *realProposer) writeBack(n int) error {
	for i := 0; i < n; i++ {
		if err := r.param.SetValue(r.indexCache[i], r.valueCache[i]); err != nil {
			return fmt.Errorf("%s: restore: %w", r.name, err)
		}
	}
	return nil
}

func (r *realProposer) markChanged() {
	r.param.SetChangeInfo(graph.NewChangeInfo(r.param, "Perturbed by "+r.name, r.indexCache...))
}
