// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package param

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
)

func TestInterval_Validate(t *testing.T) {
	tests := []struct {
		name    string
		iv      Interval
		wantErr bool
	}{
		{"unbounded", Unbounded(), false},
		{"positive", Positive(), false},
		{"closed degenerate", Closed(0, 0), false},
		{"half open degenerate", Interval{Lower: 1, Upper: 1, UpperOpen: true}, true},
		{"reversed", Closed(2, 1), true},
		{"nan", Closed(math.NaN(), 1), true},
		{"degenerate at infinity", Closed(math.Inf(1), math.Inf(1)), true},
		{"open", Open(-1, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.iv.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInterval)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInterval_Contains(t *testing.T) {
	assert.True(t, Closed(0, 0).Contains(0))
	assert.False(t, Closed(0, 0).Contains(1e-300))

	assert.False(t, Positive().Contains(0))
	assert.True(t, NonNegative().Contains(0))
	assert.True(t, Positive().Contains(math.MaxFloat64))
	assert.False(t, Positive().Contains(math.Inf(1)))

	assert.True(t, Unbounded().Contains(-1e300))
	assert.False(t, Unbounded().Contains(math.NaN()))

	assert.False(t, Open(0, 1).Contains(1))
	assert.True(t, Closed(0, 1).Contains(1))
}

func TestInterval_String(t *testing.T) {
	assert.Equal(t, "(-inf, inf)", Unbounded().String())
	assert.Equal(t, "[0, inf)", NonNegative().String())
	assert.Equal(t, "(0.5, 2]", Interval{Lower: 0.5, Upper: 2, LowerOpen: true}.String())
}

func TestNewVector(t *testing.T) {
	_, err := NewVector("v", Positive(), 1, -1)
	assert.ErrorIs(t, err, ErrOutsideDomain)

	_, err = NewVector("v", Positive())
	assert.ErrorIs(t, err, ErrEmptyParameter)

	_, err = NewVector("v", Closed(1, 0), 0.5)
	assert.ErrorIs(t, err, ErrInvalidInterval)

	v, err := NewVector("v", Unbounded(), 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, v.NumSubParameters())
	assert.Equal(t, []string{"v[0]", "v[1]", "v[2]"}, v.SampleColumns())
}

func TestVector_CacheProtocol(t *testing.T) {
	v, err := NewVector("v", Unbounded(), 1, 2, 3)
	require.NoError(t, err)

	var _ graph.Parameter = v
	var _ Real = v

	v.Cache()
	require.NoError(t, v.SetValue(1, 20))
	v.SetChangeInfo(graph.NewChangeInfo(v, "test", 1))
	assert.True(t, v.HasCache())

	v.RestoreCache()
	assert.Equal(t, []float64{1, 2, 3}, v.Values())
	assert.False(t, v.HasCache())

	// Restore without a snapshot is a no-op.
	v.RestoreCache()
	assert.Equal(t, []float64{1, 2, 3}, v.Values())

	v.Cache()
	require.NoError(t, v.SetValue(0, 10))
	v.ClearCache()
	assert.Equal(t, []float64{10, 2, 3}, v.Values())
	assert.False(t, v.HasCache())
}

func TestVector_SetValue(t *testing.T) {
	v, err := NewVector("v", Closed(0, 1), 0.5)
	require.NoError(t, err)

	assert.ErrorIs(t, v.SetValue(1, 0.5), ErrIndexOutOfRange)
	assert.ErrorIs(t, v.SetValue(0, 2), ErrOutsideDomain)
	assert.NoError(t, v.SetValue(0, 1))
}

func TestDouble(t *testing.T) {
	d, err := NewDouble("mu", Unbounded(), 10)
	require.NoError(t, err)

	var _ Real = d
	assert.Equal(t, 10.0, d.Get())
	assert.Equal(t, []string{"mu"}, d.SampleColumns())

	d.Cache()
	require.NoError(t, d.Set(3))
	assert.Equal(t, "mu=3", d.String())
	d.RestoreCache()
	assert.Equal(t, 10.0, d.Get())
}
