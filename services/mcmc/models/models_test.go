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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/param"
)

func normalLogPDF(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return -0.5*z*z - math.Log(sigma) - 0.5*math.Log(2*math.Pi)
}

func TestNormalPrior(t *testing.T) {
	x, err := param.NewVector("x", param.Unbounded(), 0, 1, -2)
	require.NoError(t, err)

	p, err := NewNormalPrior("prior.x", x, 0, 2)
	require.NoError(t, err)
	want := normalLogPDF(0, 0, 2) + normalLogPDF(1, 0, 2) + normalLogPDF(-2, 0, 2)
	assert.InDelta(t, want, p.LogLikelihood(), 1e-12)
	assert.Equal(t, []string{"prior.x"}, p.SampleColumns())

	assert.False(t, p.HasCache())
	p.Cache()
	assert.True(t, p.HasCache())
	require.NoError(t, x.SetValue(1, 3))
	info, err := p.Update([]*graph.ChangeInfo{graph.NewChangeInfo(x, "test", 1)})
	require.NoError(t, err)
	assert.Same(t, p, info.Node)
	want2 := normalLogPDF(0, 0, 2) + normalLogPDF(3, 0, 2) + normalLogPDF(-2, 0, 2)
	assert.InDelta(t, want2, p.LogLikelihood(), 1e-12)

	p.RestoreCache()
	assert.False(t, p.HasCache())
	assert.InDelta(t, want, p.LogLikelihood(), 1e-12)
	p.RestoreCache()
	assert.InDelta(t, want, p.LogLikelihood(), 1e-12, "restore without cache is a no-op")
}

func TestNormalPrior_Invalid(t *testing.T) {
	x, err := param.NewDouble("x", param.Unbounded(), 0)
	require.NoError(t, err)

	tests := []struct {
		name   string
		x      param.Real
		mean   float64
		stdDev float64
	}{
		{"nil parameter", nil, 0, 1},
		{"zero stddev", x, 0, 0},
		{"negative stddev", x, 0, -1},
		{"infinite mean", x, math.Inf(1), 1},
		{"nan stddev", x, 0, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNormalPrior("p", tt.x, tt.mean, tt.stdDev)
			assert.ErrorIs(t, err, ErrInvalidModel)
		})
	}
}

func TestGammaPrior(t *testing.T) {
	x, err := param.NewDouble("rate", param.Unbounded(), 2)
	require.NoError(t, err)

	p, err := NewGammaPrior("prior.rate", x, 2, 3)
	require.NoError(t, err)
	// Gamma(2, 3) log density at 2: 2*log 3 + log 2 - 6 - log Γ(2).
	assert.InDelta(t, 2*math.Log(3)+math.Log(2)-6, p.LogLikelihood(), 1e-12)

	require.NoError(t, x.Set(-1))
	_, err = p.Update([]*graph.ChangeInfo{graph.NewChangeInfo(x, "test")})
	require.NoError(t, err)
	assert.True(t, math.IsInf(p.LogLikelihood(), -1))

	_, err = NewGammaPrior("bad", x, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestGaussianLikelihood(t *testing.T) {
	mu, err := param.NewDouble("mu", param.Unbounded(), 1)
	require.NoError(t, err)
	sigma, err := param.NewDouble("sigma", param.Positive(), 2)
	require.NoError(t, err)
	data := []float64{0.5, 1.5, 3}

	l, err := NewGaussianLikelihood("data", mu, sigma, data)
	require.NoError(t, err)
	want := 0.0
	for _, d := range data {
		want += normalLogPDF(d, 1, 2)
	}
	assert.InDelta(t, want, l.LogLikelihood(), 1e-12)
	assert.Equal(t, data, l.Observations())
	assert.Len(t, l.Parents(), 2)

	_, err = NewGaussianLikelihood("empty", mu, sigma, nil)
	assert.ErrorIs(t, err, ErrInvalidModel)
	_, err = NewGaussianLikelihood("nan", mu, sigma, []float64{math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestModelsInGraph(t *testing.T) {
	mu, err := param.NewDouble("mu", param.Unbounded(), 0)
	require.NoError(t, err)
	sigma, err := param.NewDouble("sigma", param.Positive(), 1)
	require.NoError(t, err)

	prior, err := NewNormalPrior("prior.mu", mu, 0, 10)
	require.NoError(t, err)
	lik, err := NewGaussianLikelihood("data", mu, sigma, []float64{2, 2.5, 1.5})
	require.NoError(t, err)

	b := graph.NewBuilder("demo").AddParameter(mu).AddParameter(sigma)
	g, err := Register(b, prior, lik).Build()
	require.NoError(t, err)

	before := prior.LogLikelihood() + lik.LogLikelihood()

	tx, err := g.Begin(mu)
	require.NoError(t, err)
	require.NoError(t, mu.Set(2))
	mu.SetChangeInfo(graph.NewChangeInfo(mu, "test"))
	require.NoError(t, tx.Propagate())
	after := prior.LogLikelihood() + lik.LogLikelihood()
	assert.Greater(t, after, before)

	require.NoError(t, tx.Rollback())
	assert.Equal(t, 0.0, mu.Get())
	assert.InDelta(t, before, prior.LogLikelihood()+lik.LogLikelihood(), 1e-12)
	require.NoError(t, g.Verify())
}
