// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proposal

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultWindowSize is the number of recent outcomes kept for WindowRate.
const DefaultWindowSize = 100

// Tally is an attempts/acceptances pair.
type Tally struct {
	Attempts    int `json:"attempts"`
	Acceptances int `json:"acceptances"`
}

// Rate returns Acceptances/Attempts, or 0 without attempts.
func (t Tally) Rate() float64 {
	if t.Attempts == 0 {
		return 0
	}
	return float64(t.Acceptances) / float64(t.Attempts)
}

// Statistics tallies proposal outcomes.
//
// Description:
//
//	Outcomes are counted overall, per number of perturbed sub-parameters,
//	and in a fixed-size ring of the most recent outcomes.
//
// Thread Safety:
//
//	Not safe for concurrent use. Written by the chain goroutine only.
type Statistics struct {
	total   Tally
	buckets map[int]*Tally
	window  []bool
	next    int
	filled  bool
}

// NewStatistics creates statistics with a recent window of windowSize outcomes.
// A non-positive size selects DefaultWindowSize.
func NewStatistics(windowSize int) *Statistics {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Statistics{
		buckets: make(map[int]*Tally),
		window:  make([]bool, windowSize),
	}
}

// Add records one outcome.
//
// Inputs:
//
//	accepted - Whether the proposal was accepted.
//	subParameters - Number of sub-parameters it perturbed; 0 for invalid proposals.
func (s *Statistics) Add(accepted bool, subParameters int) {
	s.total.Attempts++
	b, ok := s.buckets[subParameters]
	if !ok {
		b = &Tally{}
		s.buckets[subParameters] = b
	}
	b.Attempts++
	if accepted {
		s.total.Acceptances++
		b.Acceptances++
	}

	s.window[s.next] = accepted
	s.next++
	if s.next == len(s.window) {
		s.next = 0
		s.filled = true
	}
}

// Total returns the overall tally.
func (s *Statistics) Total() Tally { return s.total }

// AcceptanceRate returns the overall acceptance rate.
func (s *Statistics) AcceptanceRate() float64 { return s.total.Rate() }

// Bucket returns the tally for proposals that perturbed k sub-parameters.
func (s *Statistics) Bucket(k int) Tally {
	if b, ok := s.buckets[k]; ok {
		return *b
	}
	return Tally{}
}

// Buckets returns the sub-parameter counts seen so far, ascending.
func (s *Statistics) Buckets() []int {
	keys := make([]int, 0, len(s.buckets))
	for k := range s.buckets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// WindowRate returns the acceptance rate over the most recent outcomes.
func (s *Statistics) WindowRate() float64 {
	n := s.next
	if s.filled {
		n = len(s.window)
	}
	if n == 0 {
		return 0
	}
	acc := 0
	for _, ok := range s.window[:n] {
		if ok {
			acc++
		}
	}
	return float64(acc) / float64(n)
}

// Info renders the tally for the post-run report.
func (s *Statistics) Info(prefix string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%sAcceptance ratio: %d / %d = %.4f\n",
		prefix, s.total.Acceptances, s.total.Attempts, s.total.Rate())
	fmt.Fprintf(&sb, "%sRecent acceptance ratio: %.4f\n", prefix, s.WindowRate())
	for _, k := range s.Buckets() {
		b := s.buckets[k]
		fmt.Fprintf(&sb, "%s\t%d sub-parameter(s): %d / %d = %.4f\n",
			prefix, k, b.Acceptances, b.Attempts, b.Rate())
	}
	return sb.String()
}
