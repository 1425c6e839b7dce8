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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/param"
)

func TestMultiplierProposer(t *testing.T) {
	t.Run("hastings ratio is the scale factor", func(t *testing.T) {
		d, err := param.NewDouble("sigma", param.Positive(), 2.0)
		require.NoError(t, err)
		mp, err := NewMultiplierProposer(d, constant(t, "lambda", 1.0), unitWeight(t))
		require.NoError(t, err)

		var _ Proposer = mp
		prop, err := mp.Perturb(newTestRNG())
		require.NoError(t, err)
		require.True(t, prop.Valid)

		assert.Equal(t, 0.0, prop.Forward)
		assert.InDelta(t, math.Log(d.Get()/2.0), prop.LogHastingsRatio(), 1e-12)
		assert.LessOrEqual(t, math.Abs(prop.Backward), 0.5)

		require.NoError(t, mp.RestoreCache())
		assert.Equal(t, 2.0, d.Get())
	})

	t.Run("rejects domains below zero", func(t *testing.T) {
		d, err := param.NewDouble("x", param.Unbounded(), 1.0)
		require.NoError(t, err)
		_, err = NewMultiplierProposer(d, constant(t, "lambda", 1.0), unitWeight(t))
		assert.ErrorIs(t, err, ErrInvalidDomain)
	})

	t.Run("rejects non-positive lambda", func(t *testing.T) {
		d, err := param.NewDouble("x", param.Positive(), 1.0)
		require.NoError(t, err)
		_, err = NewMultiplierProposer(d, constant(t, "lambda", 0), unitWeight(t))
		assert.ErrorIs(t, err, ErrInvalidTuning)
	})

	t.Run("zero cannot be scaled", func(t *testing.T) {
		d, err := param.NewDouble("x", param.NonNegative(), 0)
		require.NoError(t, err)
		mp, err := NewMultiplierProposer(d, constant(t, "lambda", 1.0), unitWeight(t))
		require.NoError(t, err)

		prop, err := mp.Perturb(newTestRNG())
		require.NoError(t, err)
		assert.False(t, prop.Valid)
		require.NoError(t, mp.RestoreCache())
	})

	t.Run("upper bound exhaustion", func(t *testing.T) {
		d, err := param.NewDouble("x", param.Closed(1, 1), 1)
		require.NoError(t, err)
		mp, err := NewMultiplierProposer(d, constant(t, "lambda", 1.0), unitWeight(t))
		require.NoError(t, err)

		prop, err := mp.Perturb(newTestRNG())
		require.NoError(t, err)
		assert.False(t, prop.Valid)
		assert.Equal(t, 1.0, d.Get())
		require.NoError(t, mp.RestoreCache())
	})
}
