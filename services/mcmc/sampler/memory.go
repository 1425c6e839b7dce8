// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sampler

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemorySink keeps every row in memory.
//
// Thread Safety:
//
//	Safe for concurrent use; readers may inspect it while the chain writes.
type MemorySink struct {
	mu      sync.RWMutex
	runID   string
	columns []string
	records []Record
	started bool
	closed  bool
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Begin records the header.
func (m *MemorySink) Begin(_ context.Context, runID string, columns []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runID = runID
	m.columns = slices.Clone(columns)
	m.started = true
	return nil
}

// Write stores a copy of the record.
func (m *MemorySink) Write(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotStarted
	}
	if len(rec.Values) != len(m.columns) {
		return fmt.Errorf("%w: %d values, %d columns", ErrWidthMismatch, len(rec.Values), len(m.columns))
	}
	m.records = append(m.records, Record{Iteration: rec.Iteration, Values: slices.Clone(rec.Values)})
	return nil
}

// Close marks the sink closed.
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// RunID returns the run ID passed to Begin.
func (m *MemorySink) RunID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runID
}

// Columns returns the header.
func (m *MemorySink) Columns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.columns)
}

// Records returns a copy of every stored row.
func (m *MemorySink) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	for i, r := range m.records {
		out[i] = Record{Iteration: r.Iteration, Values: slices.Clone(r.Values)}
	}
	return out
}

// Column returns every stored value of the named column, or nil if unknown.
func (m *MemorySink) Column(name string) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := slices.Index(m.columns, name)
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(m.records))
	for i, r := range m.records {
		out[i] = r.Values[idx]
	}
	return out
}

// Closed returns true after Close.
func (m *MemorySink) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
