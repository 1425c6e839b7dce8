// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Run("persistent requires path", func(t *testing.T) {
		_, err := Open(Config{})
		assert.Error(t, err)
	})

	t.Run("persistent with gc", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Path = t.TempDir()
		cfg.GCInterval = 10 * time.Millisecond

		db, err := Open(cfg)
		require.NoError(t, err)
		assert.Equal(t, cfg.Path, db.Path())
		assert.False(t, db.InMemory())

		err = db.WithTxn(context.Background(), func(txn *badger.Txn) error {
			return txn.Set([]byte("k"), []byte("v"))
		})
		require.NoError(t, err)

		time.Sleep(30 * time.Millisecond)
		require.NoError(t, db.Close())
	})

	t.Run("in memory", func(t *testing.T) {
		db, err := OpenInMemory()
		require.NoError(t, err)
		defer db.Close()
		assert.True(t, db.InMemory())
		assert.Empty(t, db.Path())
	})
}

func TestWithTxn_CancelledContext(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = db.WithTxn(ctx, func(txn *badger.Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	err = db.WithReadTxn(ctx, func(txn *badger.Txn) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSampleStore(t *testing.T) {
	ctx := context.Background()
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := RunMeta{RunID: "run-b", Columns: []string{"iteration", "mu"}, StartedAt: started}
	require.NoError(t, db.PutRun(ctx, meta))
	assert.ErrorIs(t, db.PutRun(ctx, meta), ErrRunExists)

	require.NoError(t, db.AppendSamples(ctx, "run-b",
		Sample{Iteration: 10, Values: []float64{10, 1.5}},
		Sample{Iteration: 0, Values: []float64{0, 1.0}},
	))
	require.NoError(t, db.AppendSamples(ctx, "run-b", Sample{Iteration: 100, Values: []float64{100, 2.5}}))

	err = db.AppendSamples(ctx, "run-b", Sample{Iteration: 200, Values: []float64{1}})
	assert.ErrorIs(t, err, ErrColumnMismatch)
	err = db.AppendSamples(ctx, "ghost", Sample{Iteration: 0, Values: []float64{1}})
	assert.ErrorIs(t, err, ErrRunNotFound)

	got, err := db.GetRun(ctx, "run-b")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Samples)
	assert.Equal(t, meta.Columns, got.Columns)

	samples, err := db.ReadSamples(ctx, "run-b")
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, []int{0, 10, 100}, []int{samples[0].Iteration, samples[1].Iteration, samples[2].Iteration})
	assert.Equal(t, []float64{100, 2.5}, samples[2].Values)

	require.NoError(t, db.PutRun(ctx, RunMeta{RunID: "run-a", Columns: []string{"x"}, StartedAt: started.Add(-time.Hour)}))
	runs, err := db.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)

	_, err = db.ReadSamples(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSampleStore_NonFinite(t *testing.T) {
	ctx := context.Background()
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.PutRun(ctx, RunMeta{RunID: "r", Columns: []string{"a", "b", "c", "d"}}))
	require.NoError(t, db.AppendSamples(ctx, "r",
		Sample{Iteration: 0, Values: []float64{math.Inf(-1), math.Inf(1), math.NaN(), 0.25}}))

	samples, err := db.ReadSamples(ctx, "r")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	v := samples[0].Values
	assert.True(t, math.IsInf(v[0], -1))
	assert.True(t, math.IsInf(v[1], 1))
	assert.True(t, math.IsNaN(v[2]))
	assert.Equal(t, 0.25, v[3])
}
