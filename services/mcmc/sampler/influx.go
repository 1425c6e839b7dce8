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
	"math"
	"slices"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// DefaultMeasurement is the InfluxDB measurement samples are written to.
const DefaultMeasurement = "mcmc_samples"

// PointWriter is the part of api.WriteAPIBlocking the sink needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxConfig configures an InfluxSink.
type InfluxConfig struct {
	URL         string `yaml:"url" json:"url"`
	Token       string `yaml:"token" json:"token"`
	Org         string `yaml:"org" json:"org"`
	Bucket      string `yaml:"bucket" json:"bucket"`
	Measurement string `yaml:"measurement" json:"measurement"`
	BatchSize   int    `yaml:"batch_size" json:"batch_size"`
}

// InfluxSink writes each row as one point tagged with the run ID.
//
// Description:
//
//	Columns become fields. Non-finite values are skipped because line
//	protocol cannot carry them. Point timestamps start at Begin and advance
//	one nanosecond per iteration so rows stay unique and ordered.
type InfluxSink struct {
	writer      PointWriter
	client      influxdb2.Client
	measurement string
	batchSize   int

	runID   string
	columns []string
	start   time.Time
	pending []*write.Point
	started bool
}

// NewInfluxSink dials InfluxDB and returns a sink that owns the client.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	s := NewInfluxSinkWithWriter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg.Measurement, cfg.BatchSize)
	s.client = client
	return s
}

// NewInfluxSinkWithWriter creates a sink on an existing writer.
func NewInfluxSinkWithWriter(w PointWriter, measurement string, batchSize int) *InfluxSink {
	if measurement == "" {
		measurement = DefaultMeasurement
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &InfluxSink{writer: w, measurement: measurement, batchSize: batchSize}
}

// Begin records the header and the base timestamp.
func (s *InfluxSink) Begin(_ context.Context, runID string, columns []string) error {
	s.runID = runID
	s.columns = slices.Clone(columns)
	s.start = time.Now()
	s.started = true
	return nil
}

// Write converts the row to a point and flushes full batches.
func (s *InfluxSink) Write(ctx context.Context, rec Record) error {
	if !s.started {
		return ErrNotStarted
	}
	if len(rec.Values) != len(s.columns) {
		return fmt.Errorf("%w: %d values, %d columns", ErrWidthMismatch, len(rec.Values), len(s.columns))
	}

	p := influxdb2.NewPointWithMeasurement(s.measurement).
		AddTag("run_id", s.runID).
		AddField("iteration", rec.Iteration).
		SetTime(s.start.Add(time.Duration(rec.Iteration)))
	for i, v := range rec.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		p.AddField(fieldName(s.columns[i], i), v)
	}
	s.pending = append(s.pending, p)

	if len(s.pending) >= s.batchSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *InfluxSink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.writer.WritePoint(ctx, s.pending...); err != nil {
		return fmt.Errorf("influx sink: write %d points: %w", len(s.pending), err)
	}
	s.pending = s.pending[:0]
	return nil
}

// Close flushes buffered points and closes the client if the sink owns it.
func (s *InfluxSink) Close() error {
	err := s.flush(context.Background())
	if s.client != nil {
		s.client.Close()
	}
	return err
}

// fieldName avoids clashing with the iteration field.
func fieldName(column string, i int) string {
	if column == "iteration" || column == "" {
		return "col_" + strconv.Itoa(i)
	}
	return column
}
