// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package param provides real-valued parameters for the dependency graph.
package param

import (
	"fmt"
	"slices"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
)

// Real is a parameter made of one or more real sub-parameters.
type Real interface {
	graph.Parameter

	// Value returns sub-parameter i.
	Value(i int) float64

	// SetValue overwrites sub-parameter i. The value must lie in Domain.
	SetValue(i int, v float64) error

	// Domain returns the interval every sub-parameter is confined to.
	Domain() Interval
}

// Vector is a fixed-length real parameter.
//
// Description:
//
//	Cache snapshots every element. Values set between Cache and RestoreCache
//	are undone verbatim; ClearCache makes them permanent.
//
// Thread Safety:
//
//	Not safe for concurrent use. Owned by the chain's graph.
type Vector struct {
	name   string
	values []float64
	cached []float64
	domain Interval
	info   *graph.ChangeInfo
}

// NewVector creates a vector parameter.
//
// Inputs:
//
//	name - Parameter name, used as sample column prefix.
//	domain - Domain of every element. Must be a valid interval.
//	values - Initial values. At least one, all inside domain.
//
// Outputs:
//
//	*Vector - The parameter.
//	error - ErrInvalidInterval, ErrEmptyParameter or ErrOutsideDomain.
func NewVector(name string, domain Interval, values ...float64) (*Vector, error) {
	if err := domain.Validate(); err != nil {
		return nil, fmt.Errorf("parameter %q: %w", name, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("parameter %q: %w", name, ErrEmptyParameter)
	}
	for i, v := range values {
		if !domain.Contains(v) {
			return nil, fmt.Errorf("parameter %q[%d]=%g not in %s: %w", name, i, v, domain, ErrOutsideDomain)
		}
	}
	return &Vector{
		name:   name,
		values: slices.Clone(values),
		domain: domain,
	}, nil
}

// Name returns the parameter name.
func (p *Vector) Name() string { return p.name }

// NumSubParameters returns the vector length.
func (p *Vector) NumSubParameters() int { return len(p.values) }

// Domain returns the element domain.
func (p *Vector) Domain() Interval { return p.domain }

// Value returns element i. It panics if i is out of range, like a slice.
func (p *Vector) Value(i int) float64 { return p.values[i] }

// Values returns a copy of every element.
func (p *Vector) Values() []float64 { return slices.Clone(p.values) }

// SetValue overwrites element i.
func (p *Vector) SetValue(i int, v float64) error {
	if i < 0 || i >= len(p.values) {
		return fmt.Errorf("parameter %q index %d: %w", p.name, i, ErrIndexOutOfRange)
	}
	if !p.domain.Contains(v) {
		return fmt.Errorf("parameter %q[%d]=%g not in %s: %w", p.name, i, v, p.domain, ErrOutsideDomain)
	}
	p.values[i] = v
	return nil
}

// ChangeInfo returns the pending change, nil when unperturbed.
func (p *Vector) ChangeInfo() *graph.ChangeInfo { return p.info }

// SetChangeInfo records the pending change.
func (p *Vector) SetChangeInfo(info *graph.ChangeInfo) { p.info = info }

// Cache snapshots every element.
func (p *Vector) Cache() {
	p.cached = slices.Clone(p.values)
}

// ClearCache drops the snapshot.
func (p *Vector) ClearCache() {
	p.cached = nil
}

// RestoreCache writes the snapshot back. A no-op without a snapshot.
func (p *Vector) RestoreCache() {
	if p.cached == nil {
		return
	}
	copy(p.values, p.cached)
	p.cached = nil
}

// HasCache returns true between Cache and ClearCache/RestoreCache.
func (p *Vector) HasCache() bool { return p.cached != nil }

// SampleColumns returns "name" for length 1, otherwise "name[i]" per element.
func (p *Vector) SampleColumns() []string {
	if len(p.values) == 1 {
		return []string{p.name}
	}
	cols := make([]string, len(p.values))
	for i := range p.values {
		cols[i] = fmt.Sprintf("%s[%d]", p.name, i)
	}
	return cols
}

// SampleValues returns the current elements.
func (p *Vector) SampleValues() []float64 { return p.Values() }

// String returns "name=[v0 v1 ...]".
func (p *Vector) String() string {
	return fmt.Sprintf("%s=%v", p.name, p.values)
}

// Double is a scalar real parameter.
type Double struct {
	Vector
}

// NewDouble creates a scalar parameter.
func NewDouble(name string, domain Interval, value float64) (*Double, error) {
	v, err := NewVector(name, domain, value)
	if err != nil {
		return nil, err
	}
	return &Double{Vector: *v}, nil
}

// Get returns the scalar value.
func (p *Double) Get() float64 { return p.values[0] }

// Set overwrites the scalar value.
func (p *Double) Set(v float64) error { return p.SetValue(0, v) }

// String returns "name=v".
func (p *Double) String() string {
	return fmt.Sprintf("%s=%g", p.name, p.values[0])
}
