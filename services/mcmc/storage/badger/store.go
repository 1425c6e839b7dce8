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
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	runPrefix    = "runs/"
	samplePrefix = "samples/"
)

var (
	// ErrRunNotFound is returned when a run ID has no metadata record.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunExists is returned when PutRun is called twice for one run ID.
	ErrRunExists = errors.New("run already exists")

	// ErrColumnMismatch is returned when a sample width differs from the run's columns.
	ErrColumnMismatch = errors.New("sample width does not match run columns")
)

// RunMeta describes one stored run.
type RunMeta struct {
	RunID     string    `json:"run_id"`
	Columns   []string  `json:"columns"`
	StartedAt time.Time `json:"started_at"`
	Samples   int       `json:"samples"`
}

// Sample is one stored row.
type Sample struct {
	Iteration int       `json:"iteration"`
	Values    []float64 `json:"values"`
}

func runKey(runID string) []byte {
	return []byte(runPrefix + runID)
}

func sampleKey(runID string, iteration int) []byte {
	return []byte(fmt.Sprintf("%s%s/%012d", samplePrefix, runID, iteration))
}

func sampleRunPrefix(runID string) []byte {
	return []byte(samplePrefix + runID + "/")
}

// PutRun stores the metadata of a new run.
func (d *DB) PutRun(ctx context.Context, meta RunMeta) error {
	if meta.RunID == "" {
		return errors.New("run ID must not be empty")
	}
	return d.WithTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(runKey(meta.RunID)); err == nil {
			return fmt.Errorf("%w: %s", ErrRunExists, meta.RunID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal run meta: %w", err)
		}
		return txn.Set(runKey(meta.RunID), data)
	})
}

// AppendSamples stores rows for a run and bumps its sample count.
//
// Description:
//
//	All rows are written in one transaction. Each row must have exactly as
//	many values as the run has columns.
func (d *DB) AppendSamples(ctx context.Context, runID string, samples ...Sample) error {
	if len(samples) == 0 {
		return nil
	}
	return d.WithTxn(ctx, func(txn *badger.Txn) error {
		meta, err := getRun(txn, runID)
		if err != nil {
			return err
		}
		for _, s := range samples {
			if len(s.Values) != len(meta.Columns) {
				return fmt.Errorf("%w: iteration %d has %d values, run has %d columns",
					ErrColumnMismatch, s.Iteration, len(s.Values), len(meta.Columns))
			}
			data, err := json.Marshal(floats(s.Values))
			if err != nil {
				return fmt.Errorf("marshal sample %d: %w", s.Iteration, err)
			}
			if err := txn.Set(sampleKey(runID, s.Iteration), data); err != nil {
				return err
			}
		}
		meta.Samples += len(samples)
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal run meta: %w", err)
		}
		return txn.Set(runKey(runID), data)
	})
}

// GetRun returns the metadata of a run.
func (d *DB) GetRun(ctx context.Context, runID string) (RunMeta, error) {
	var meta RunMeta
	err := d.WithReadTxn(ctx, func(txn *badger.Txn) error {
		m, err := getRun(txn, runID)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	return meta, err
}

// ListRuns returns all run metadata ordered by start time.
func (d *DB) ListRuns(ctx context.Context) ([]RunMeta, error) {
	runs := make([]RunMeta, 0)
	err := d.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var meta RunMeta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			runs = append(runs, meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(runs, func(a, b RunMeta) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return runs, nil
}

// ReadSamples returns every row of a run in iteration order.
func (d *DB) ReadSamples(ctx context.Context, runID string) ([]Sample, error) {
	samples := make([]Sample, 0)
	err := d.WithReadTxn(ctx, func(txn *badger.Txn) error {
		if _, err := getRun(txn, runID); err != nil {
			return err
		}
		prefix := sampleRunPrefix(runID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			suffix := strings.TrimPrefix(string(item.Key()), string(prefix))
			iteration, err := strconv.Atoi(suffix)
			if err != nil {
				return fmt.Errorf("bad sample key %q: %w", item.Key(), err)
			}
			s := Sample{Iteration: iteration}
			if err := item.Value(func(val []byte) error {
				var vals floats
				if err := json.Unmarshal(val, &vals); err != nil {
					return err
				}
				s.Values = vals
				return nil
			}); err != nil {
				return fmt.Errorf("decode sample %d: %w", iteration, err)
			}
			samples = append(samples, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

func getRun(txn *badger.Txn, runID string) (RunMeta, error) {
	var meta RunMeta
	item, err := txn.Get(runKey(runID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return meta, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return meta, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &meta)
	})
	if err != nil {
		return meta, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return meta, nil
}

// floats encodes non-finite values as JSON strings.
type floats []float64

func (f floats) MarshalJSON() ([]byte, error) {
	out := make([]any, len(f))
	for i, v := range f {
		switch {
		case math.IsNaN(v):
			out[i] = "NaN"
		case math.IsInf(v, 1):
			out[i] = "+Inf"
		case math.IsInf(v, -1):
			out[i] = "-Inf"
		default:
			out[i] = v
		}
	}
	return json.Marshal(out)
}

func (f *floats) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	vals := make([]float64, len(raw))
	for i, r := range raw {
		if len(r) > 0 && r[0] == '"' {
			var s string
			if err := json.Unmarshal(r, &s); err != nil {
				return err
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("value %d: %w", i, err)
			}
			vals[i] = v
			continue
		}
		if err := json.Unmarshal(r, &vals[i]); err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
	}
	*f = vals
	return nil
}
