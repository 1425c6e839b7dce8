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
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Summary describes one column of a finished run.
type Summary struct {
	Column string  `json:"column"`
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Q025   float64 `json:"q025"`
	Median float64 `json:"median"`
	Q975   float64 `json:"q975"`
	Max    float64 `json:"max"`
}

// Summarize computes per-column statistics over records.
//
// Inputs:
//
//	columns - Column names, one per value.
//	records - Rows to summarize.
//	burnIn - Rows with Iteration < burnIn are ignored.
//
// Outputs:
//
//	[]Summary - One entry per column. Columns with no finite values have
//	  N == 0 and NaN statistics.
func Summarize(columns []string, records []Record, burnIn int) []Summary {
	out := make([]Summary, len(columns))
	for c, name := range columns {
		xs := make([]float64, 0, len(records))
		for _, r := range records {
			if r.Iteration < burnIn || c >= len(r.Values) {
				continue
			}
			if v := r.Values[c]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				xs = append(xs, v)
			}
		}
		out[c] = summarizeColumn(name, xs)
	}
	return out
}

func summarizeColumn(name string, xs []float64) Summary {
	s := Summary{Column: name, N: len(xs)}
	if len(xs) == 0 {
		nan := math.NaN()
		s.Mean, s.StdDev, s.Min, s.Q025, s.Median, s.Q975, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}
	slices.Sort(xs)
	s.Mean, s.StdDev = stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		s.StdDev = 0
	}
	s.Min = xs[0]
	s.Max = xs[len(xs)-1]
	s.Q025 = stat.Quantile(0.025, stat.Empirical, xs, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, xs, nil)
	s.Q975 = stat.Quantile(0.975, stat.Empirical, xs, nil)
	return s
}
