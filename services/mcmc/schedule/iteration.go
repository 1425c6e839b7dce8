// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schedule holds the chain's iteration counter, the thinning rule and
// the tuning parameters whose values may follow the iteration count.
package schedule

import (
	"fmt"
	"strings"
)

// Iteration counts chain iterations from 0 up to Total.
//
// Thread Safety:
//
//	Not safe for concurrent use. Owned by the chain.
type Iteration struct {
	current int
	total   int
}

// NewIteration creates a counter for total iterations.
func NewIteration(total int) (*Iteration, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: total iterations %d", ErrInvalidSchedule, total)
	}
	return &Iteration{total: total}, nil
}

// Current returns the number of completed iterations.
func (it *Iteration) Current() int { return it.current }

// Total returns the configured number of iterations.
func (it *Iteration) Total() int { return it.total }

// Increment advances the counter. Returns false once Total is reached.
func (it *Iteration) Increment() bool {
	if it.current >= it.total {
		return false
	}
	it.current++
	return true
}

// Done returns true once Total iterations have completed.
func (it *Iteration) Done() bool { return it.current >= it.total }

// Name returns "iteration".
func (it *Iteration) Name() string { return "iteration" }

// SampleColumns returns the single sample column.
func (it *Iteration) SampleColumns() []string { return []string{"iteration"} }

// SampleValues returns the current iteration.
func (it *Iteration) SampleValues() []float64 { return []float64{float64(it.current)} }

// Info describes the counter.
func (it *Iteration) Info(prefix string) string {
	var sb strings.Builder
	sb.WriteString(prefix + "ITERATION\n")
	fmt.Fprintf(&sb, "%sCurrent: %d of %d\n", prefix, it.current, it.total)
	return sb.String()
}

// Thinner decides which iterations are sampled.
type Thinner struct {
	iteration *Iteration
	factor    int
}

// NewThinner samples every factor-th iteration, including iteration 0.
func NewThinner(iteration *Iteration, factor int) (*Thinner, error) {
	if iteration == nil {
		return nil, ErrNilIteration
	}
	if factor <= 0 {
		return nil, fmt.Errorf("%w: thinning factor %d", ErrInvalidSchedule, factor)
	}
	return &Thinner{iteration: iteration, factor: factor}, nil
}

// Factor returns the thinning factor.
func (t *Thinner) Factor() int { return t.factor }

// DoSample returns true if the current iteration is a sampling checkpoint.
func (t *Thinner) DoSample() bool {
	return t.iteration.Current()%t.factor == 0
}

// Expected returns the number of samples a full run will emit.
func (t *Thinner) Expected() int {
	return t.iteration.Total()/t.factor + 1
}

// Info describes the thinning rule.
func (t *Thinner) Info(prefix string) string {
	return fmt.Sprintf("%sTHINNER\n%sFactor: %d\n%sExpected samples: %d\n",
		prefix, prefix, t.factor, prefix, t.Expected())
}
