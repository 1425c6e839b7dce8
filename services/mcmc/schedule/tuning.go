// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schedule

import (
	"fmt"
	"math"
)

// TuningParameter is a bounded value read by proposers, selectors or the chain.
//
// Description:
//
//	Value always lies in [MinValue, MaxValue]. Constructors check the
//	declared bounds so consumers can validate against MinValue/MaxValue
//	once, at setup, and trust Value afterwards.
type TuningParameter interface {
	// Name identifies the parameter in logs and run reports.
	Name() string

	// Value returns the current value.
	Value() float64

	// MinValue returns the smallest value this parameter can ever take.
	MinValue() float64

	// MaxValue returns the largest value this parameter can ever take.
	MaxValue() float64

	// Info renders a run report block, each line prefixed by prefix.
	Info(prefix string) string
}

// Adapter is a tuning parameter that learns from acceptance outcomes.
type Adapter interface {
	TuningParameter

	// Observe records one accepted or rejected proposal.
	Observe(accepted bool)

	// Frozen returns true once adaptation has stopped for good.
	Frozen() bool
}

func checkBounds(name string, min, max float64, values ...float64) error {
	if math.IsNaN(min) || math.IsNaN(max) || min > max {
		return fmt.Errorf("%w: %s bounds [%g, %g]", ErrInvalidBounds, name, min, max)
	}
	for _, v := range values {
		if math.IsNaN(v) || v < min || v > max {
			return fmt.Errorf("%w: %s value %g outside [%g, %g]", ErrInvalidBounds, name, v, min, max)
		}
	}
	return nil
}

// Constant is a tuning parameter whose value never changes.
type Constant struct {
	name  string
	value float64
}

// NewConstant creates a constant tuning parameter.
func NewConstant(name string, value float64) (*Constant, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("%w: %s value %g", ErrInvalidBounds, name, value)
	}
	return &Constant{name: name, value: value}, nil
}

// Name returns the parameter name.
func (c *Constant) Name() string { return c.name }

// Value returns the constant.
func (c *Constant) Value() float64 { return c.value }

// MinValue returns the constant.
func (c *Constant) MinValue() float64 { return c.value }

// MaxValue returns the constant.
func (c *Constant) MaxValue() float64 { return c.value }

// Info describes the parameter.
func (c *Constant) Info(prefix string) string {
	return fmt.Sprintf("%sCONSTANT TUNING PARAMETER %s\n%sValue: %g\n", prefix, c.name, prefix, c.value)
}

// Linear interpolates from Start to End over the first StopAt iterations and
// stays at End afterwards.
type Linear struct {
	name      string
	start     float64
	end       float64
	stopAt    int
	iteration *Iteration
}

// NewLinear creates a linearly scheduled tuning parameter.
func NewLinear(name string, iteration *Iteration, start, end float64, stopAt int) (*Linear, error) {
	if iteration == nil {
		return nil, ErrNilIteration
	}
	if stopAt <= 0 {
		return nil, fmt.Errorf("%w: %s stop iteration %d", ErrInvalidSchedule, name, stopAt)
	}
	if err := checkBounds(name, math.Min(start, end), math.Max(start, end), start, end); err != nil {
		return nil, err
	}
	if math.IsInf(start, 0) || math.IsInf(end, 0) {
		return nil, fmt.Errorf("%w: %s endpoints must be finite", ErrInvalidBounds, name)
	}
	return &Linear{name: name, start: start, end: end, stopAt: stopAt, iteration: iteration}, nil
}

// Name returns the parameter name.
func (l *Linear) Name() string { return l.name }

// Value returns the interpolated value for the current iteration.
func (l *Linear) Value() float64 {
	cur := l.iteration.Current()
	if cur >= l.stopAt {
		return l.end
	}
	frac := float64(cur) / float64(l.stopAt)
	return l.start + (l.end-l.start)*frac
}

// MinValue returns the smaller endpoint.
func (l *Linear) MinValue() float64 { return math.Min(l.start, l.end) }

// MaxValue returns the larger endpoint.
func (l *Linear) MaxValue() float64 { return math.Max(l.start, l.end) }

// Info describes the schedule.
func (l *Linear) Info(prefix string) string {
	return fmt.Sprintf("%sLINEAR TUNING PARAMETER %s\n%sFrom %g to %g until iteration %d\n%sCurrent value: %g\n",
		prefix, l.name, prefix, l.start, l.end, l.stopAt, prefix, l.Value())
}

// AdaptiveOptions configures an Adaptive tuning parameter.
type AdaptiveOptions struct {
	// Target is the acceptance rate the parameter steers toward, in (0, 1).
	Target float64

	// Interval is the number of observations between adjustments.
	Interval int

	// Factor scales the value on each adjustment. Must be > 1.
	Factor float64

	// StopAt is the iteration after which the value is frozen.
	StopAt int

	// Inverse makes a high acceptance rate shrink the value instead of grow it.
	Inverse bool
}

// DefaultAdaptiveOptions targets 0.3 acceptance, adjusting by 10% every 100 observations.
func DefaultAdaptiveOptions(stopAt int) AdaptiveOptions {
	return AdaptiveOptions{
		Target:   0.3,
		Interval: 100,
		Factor:   1.1,
		StopAt:   stopAt,
	}
}

// Adaptive steers its value toward a target acceptance rate during burn-in.
//
// Description:
//
//	Every Interval observations the acceptance rate of that batch is compared
//	with Target. Above target the value is multiplied by Factor, below it is
//	divided (reversed with Inverse), then clamped to [min, max]. Once the
//	iteration counter reaches StopAt no further observation is counted and
//	the value never changes again.
//
// Thread Safety:
//
//	Not safe for concurrent use.
type Adaptive struct {
	name      string
	value     float64
	min       float64
	max       float64
	opts      AdaptiveOptions
	iteration *Iteration

	observed    int
	accepted    int
	adjustments int
}

// NewAdaptive creates an adaptive tuning parameter.
//
// Inputs:
//
//	name - Parameter name.
//	iteration - The chain's iteration counter.
//	initial - Starting value, inside [min, max].
//	min, max - Hard bounds.
//	opts - Adaptation settings.
//
// Outputs:
//
//	*Adaptive - The parameter.
//	error - ErrInvalidBounds or ErrInvalidSchedule.
func NewAdaptive(name string, iteration *Iteration, initial, min, max float64, opts AdaptiveOptions) (*Adaptive, error) {
	if iteration == nil {
		return nil, ErrNilIteration
	}
	if err := checkBounds(name, min, max, initial); err != nil {
		return nil, err
	}
	if opts.Target <= 0 || opts.Target >= 1 {
		return nil, fmt.Errorf("%w: %s target acceptance %g not in (0,1)", ErrInvalidSchedule, name, opts.Target)
	}
	if opts.Interval <= 0 || opts.Factor <= 1 || opts.StopAt < 0 {
		return nil, fmt.Errorf("%w: %s interval=%d factor=%g stop=%d",
			ErrInvalidSchedule, name, opts.Interval, opts.Factor, opts.StopAt)
	}
	return &Adaptive{
		name:      name,
		value:     initial,
		min:       min,
		max:       max,
		opts:      opts,
		iteration: iteration,
	}, nil
}

// Name returns the parameter name.
func (a *Adaptive) Name() string { return a.name }

// Value returns the current value.
func (a *Adaptive) Value() float64 { return a.value }

// MinValue returns the lower bound.
func (a *Adaptive) MinValue() float64 { return a.min }

// MaxValue returns the upper bound.
func (a *Adaptive) MaxValue() float64 { return a.max }

// Frozen returns true once the iteration counter has reached StopAt.
func (a *Adaptive) Frozen() bool {
	return a.iteration.Current() >= a.opts.StopAt
}

// Adjustments returns how many times the value has been changed.
func (a *Adaptive) Adjustments() int { return a.adjustments }

// Observe records one proposal outcome.
func (a *Adaptive) Observe(accepted bool) {
	if a.Frozen() {
		return
	}
	a.observed++
	if accepted {
		a.accepted++
	}
	if a.observed < a.opts.Interval {
		return
	}

	rate := float64(a.accepted) / float64(a.observed)
	a.observed, a.accepted = 0, 0

	grow := rate > a.opts.Target
	if a.opts.Inverse {
		grow = !grow
	}
	next := a.value
	if grow {
		next *= a.opts.Factor
	} else {
		next /= a.opts.Factor
	}
	next = math.Max(a.min, math.Min(a.max, next))
	if next != a.value {
		a.value = next
		a.adjustments++
	}
}

// Info describes the parameter.
func (a *Adaptive) Info(prefix string) string {
	return fmt.Sprintf("%sADAPTIVE TUNING PARAMETER %s\n%sValue: %g in [%g, %g]\n%sTarget acceptance: %g, interval %d, factor %g, frozen after iteration %d\n%sAdjustments: %d\n",
		prefix, a.name, prefix, a.value, a.min, a.max,
		prefix, a.opts.Target, a.opts.Interval, a.opts.Factor, a.opts.StopAt,
		prefix, a.adjustments)
}

// ProposerWeight is the non-negative relative weight of a proposer.
//
// Description:
//
//	It wraps any tuning parameter whose MinValue is >= 0, so weights can be
//	constant or follow a schedule.
type ProposerWeight struct {
	TuningParameter
}

// NewProposerWeight wraps t, rejecting negative weights.
func NewProposerWeight(t TuningParameter) (*ProposerWeight, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil weight", ErrInvalidBounds)
	}
	if t.MinValue() < 0 {
		return nil, fmt.Errorf("%w: weight %s may become negative (%g)", ErrInvalidBounds, t.Name(), t.MinValue())
	}
	return &ProposerWeight{TuningParameter: t}, nil
}

// ConstantWeight is a shorthand for a fixed proposer weight.
func ConstantWeight(w float64) (*ProposerWeight, error) {
	c, err := NewConstant("weight", w)
	if err != nil {
		return nil, err
	}
	return NewProposerWeight(c)
}
