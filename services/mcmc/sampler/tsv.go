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
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// TSVSink writes a header row and one tab-separated row per sample.
type TSVSink struct {
	w       *csv.Writer
	closer  io.Closer
	columns int
	started bool
}

// NewTSVSink writes to w. If w is also an io.Closer it is closed by Close.
func NewTSVSink(w io.Writer) *TSVSink {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	s := &TSVSink{w: cw}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Begin writes the header.
func (s *TSVSink) Begin(_ context.Context, _ string, columns []string) error {
	if err := s.w.Write(columns); err != nil {
		return fmt.Errorf("write tsv header: %w", err)
	}
	s.columns = len(columns)
	s.started = true
	return nil
}

// Write appends one row. Values use the shortest exact representation.
func (s *TSVSink) Write(_ context.Context, rec Record) error {
	if !s.started {
		return ErrNotStarted
	}
	if len(rec.Values) != s.columns {
		return fmt.Errorf("%w: %d values, %d columns", ErrWidthMismatch, len(rec.Values), s.columns)
	}
	row := make([]string, len(rec.Values))
	for i, v := range rec.Values {
		row[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write tsv row %d: %w", rec.Iteration, err)
	}
	return nil
}

// Close flushes buffered rows and closes the underlying writer if it can be closed.
func (s *TSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush tsv: %w", err)
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
