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
	"time"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/storage/badger"
)

// DefaultBatchSize is the number of rows BadgerSink buffers per transaction.
const DefaultBatchSize = 256

// BadgerSink persists rows to a sample store in batches.
//
// The sink does not own the store; closing the sink flushes but leaves the
// store open.
type BadgerSink struct {
	db        *badger.DB
	batchSize int
	runID     string
	pending   []badger.Sample
	started   bool
	now       func() time.Time
}

// NewBadgerSink creates a sink. A non-positive batchSize selects DefaultBatchSize.
func NewBadgerSink(db *badger.DB, batchSize int) *BadgerSink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BadgerSink{db: db, batchSize: batchSize, now: time.Now}
}

// Begin stores the run metadata.
func (b *BadgerSink) Begin(ctx context.Context, runID string, columns []string) error {
	meta := badger.RunMeta{
		RunID:     runID,
		Columns:   slices.Clone(columns),
		StartedAt: b.now().UTC(),
	}
	if err := b.db.PutRun(ctx, meta); err != nil {
		return fmt.Errorf("badger sink: %w", err)
	}
	b.runID = runID
	b.started = true
	return nil
}

// Write buffers a row and flushes when the batch is full.
func (b *BadgerSink) Write(ctx context.Context, rec Record) error {
	if !b.started {
		return ErrNotStarted
	}
	b.pending = append(b.pending, badger.Sample{Iteration: rec.Iteration, Values: slices.Clone(rec.Values)})
	if len(b.pending) >= b.batchSize {
		return b.flush(ctx)
	}
	return nil
}

func (b *BadgerSink) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	if err := b.db.AppendSamples(ctx, b.runID, b.pending...); err != nil {
		return fmt.Errorf("badger sink: %w", err)
	}
	b.pending = b.pending[:0]
	return nil
}

// Close flushes buffered rows.
func (b *BadgerSink) Close() error {
	if !b.started {
		return nil
	}
	return b.flush(context.Background())
}
