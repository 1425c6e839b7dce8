// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sampler receives the chain's sampled state.
//
// At every thinning checkpoint the chain reads each registered Sampleable in
// registration order and hands the flattened row to a Sink. The column list
// is fixed when the run begins.
package sampler

import (
	"context"
	"errors"
)

var (
	// ErrNotStarted is returned by Write before Begin.
	ErrNotStarted = errors.New("sink not started")

	// ErrWidthMismatch is returned when a record's width differs from the header.
	ErrWidthMismatch = errors.New("record width does not match columns")
)

// Sampleable is anything whose state is written at checkpoints.
type Sampleable interface {
	// SampleColumns returns the column names. Must be constant for a run.
	SampleColumns() []string

	// SampleValues returns the current values, one per column.
	SampleValues() []float64
}

// Record is one sampled row.
type Record struct {
	Iteration int
	Values    []float64
}

// Sink consumes sampled rows.
//
// Description:
//
//	Begin is called once before the first Write. Close flushes and
//	releases resources; it is called once, even after a failed run.
type Sink interface {
	Begin(ctx context.Context, runID string, columns []string) error
	Write(ctx context.Context, rec Record) error
	Close() error
}

// Columns flattens the column names of sampleables in order.
func Columns(sampleables []Sampleable) []string {
	cols := make([]string, 0, len(sampleables))
	for _, s := range sampleables {
		cols = append(cols, s.SampleColumns()...)
	}
	return cols
}

// Values flattens the current values of sampleables in order.
func Values(sampleables []Sampleable) []float64 {
	vals := make([]float64, 0, len(sampleables))
	for _, s := range sampleables {
		vals = append(vals, s.SampleValues()...)
	}
	return vals
}

// MultiSink fans every call out to several sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. Nil entries are dropped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Begin starts every sink, stopping at the first error.
func (m *MultiSink) Begin(ctx context.Context, runID string, columns []string) error {
	for _, s := range m.sinks {
		if err := s.Begin(ctx, runID, columns); err != nil {
			return err
		}
	}
	return nil
}

// Write forwards the record, stopping at the first error.
func (m *MultiSink) Write(ctx context.Context, rec Record) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
