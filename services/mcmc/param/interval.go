// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package param

import (
	"fmt"
	"math"
	"strconv"
)

// Interval is a real interval with independently open or closed ends.
//
// Description:
//
//	Infinite ends are always treated as open. The zero value is the closed
//	degenerate interval [0, 0]; use Unbounded for the whole real line.
type Interval struct {
	Lower     float64 `yaml:"lower" json:"lower"`
	Upper     float64 `yaml:"upper" json:"upper"`
	LowerOpen bool    `yaml:"lower_open" json:"lower_open"`
	UpperOpen bool    `yaml:"upper_open" json:"upper_open"`
}

// Unbounded returns (-inf, inf).
func Unbounded() Interval {
	return Interval{Lower: math.Inf(-1), Upper: math.Inf(1), LowerOpen: true, UpperOpen: true}
}

// Positive returns (0, inf).
func Positive() Interval {
	return Interval{Lower: 0, Upper: math.Inf(1), LowerOpen: true, UpperOpen: true}
}

// NonNegative returns [0, inf).
func NonNegative() Interval {
	return Interval{Lower: 0, Upper: math.Inf(1), UpperOpen: true}
}

// Closed returns [lower, upper].
func Closed(lower, upper float64) Interval {
	return Interval{Lower: lower, Upper: upper}
}

// Open returns (lower, upper).
func Open(lower, upper float64) Interval {
	return Interval{Lower: lower, Upper: upper, LowerOpen: true, UpperOpen: true}
}

// NewInterval builds and validates an interval.
//
// Outputs:
//
//	Interval - The interval.
//	error - ErrInvalidInterval if Validate fails.
func NewInterval(lower, upper float64, lowerOpen, upperOpen bool) (Interval, error) {
	iv := Interval{Lower: lower, Upper: upper, LowerOpen: lowerOpen, UpperOpen: upperOpen}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// Validate rejects intervals no value can ever be sampled from.
//
// Description:
//
//	An interval is invalid if either end is NaN, if it contains no point, or
//	if it is degenerate at an infinite point. A closed degenerate interval
//	[a, a] with finite a is accepted.
func (iv Interval) Validate() error {
	if math.IsNaN(iv.Lower) || math.IsNaN(iv.Upper) {
		return fmt.Errorf("%w: NaN bound", ErrInvalidInterval)
	}
	if iv.IsEmpty() {
		return fmt.Errorf("%w: %s is empty", ErrInvalidInterval, iv)
	}
	if iv.IsDegenerate() && math.IsInf(iv.Lower, 0) {
		return fmt.Errorf("%w: %s is degenerate at infinity", ErrInvalidInterval, iv)
	}
	return nil
}

// IsEmpty returns true if no real number lies in the interval.
func (iv Interval) IsEmpty() bool {
	if iv.Lower > iv.Upper {
		return true
	}
	if iv.Lower == iv.Upper {
		return iv.lowerOpen() || iv.upperOpen()
	}
	return false
}

// IsDegenerate returns true for a single-point interval.
func (iv Interval) IsDegenerate() bool {
	return iv.Lower == iv.Upper
}

// IsBounded returns true if at least one end is finite.
func (iv Interval) IsBounded() bool {
	return !math.IsInf(iv.Lower, -1) || !math.IsInf(iv.Upper, 1)
}

// Contains returns true if x lies within the interval.
func (iv Interval) Contains(x float64) bool {
	if math.IsNaN(x) {
		return false
	}
	if iv.lowerOpen() {
		if x <= iv.Lower {
			return false
		}
	} else if x < iv.Lower {
		return false
	}
	if iv.upperOpen() {
		if x >= iv.Upper {
			return false
		}
	} else if x > iv.Upper {
		return false
	}
	return true
}

// String renders the interval in mathematical notation, e.g. "[0, inf)".
func (iv Interval) String() string {
	left, right := "[", "]"
	if iv.lowerOpen() {
		left = "("
	}
	if iv.upperOpen() {
		right = ")"
	}
	return left + formatBound(iv.Lower) + ", " + formatBound(iv.Upper) + right
}

func (iv Interval) lowerOpen() bool {
	return iv.LowerOpen || math.IsInf(iv.Lower, -1)
}

func (iv Interval) upperOpen() bool {
	return iv.UpperOpen || math.IsInf(iv.Upper, 1)
}

func formatBound(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}
