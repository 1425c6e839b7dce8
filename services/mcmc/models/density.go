// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package models provides log-density dependents for building chains.
//
// Each model is a graph.Dependent whose value is a log-likelihood. Models are
// registered with the chain manager, which sums them to form the joint
// log-likelihood. Per-term values are kept so that a change to a few
// sub-parameters only recomputes the affected terms.
package models

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
)

var (
	// ErrInvalidModel is returned when a model is constructed with bad settings.
	ErrInvalidModel = errors.New("invalid model")
)

// termFunc evaluates the log-density contribution of term i.
type termFunc func(i int) float64

// density holds per-term log values and their snapshot.
//
// Thread Safety:
//
//	Not safe for concurrent use. Driven by a single chain.
type density struct {
	name   string
	terms  []float64
	total  float64
	cached []float64
	hasSum bool
	sum    float64
	term   termFunc
}

func newDensity(name string, n int, term termFunc) density {
	d := density{name: name, terms: make([]float64, n), term: term}
	d.recomputeAll()
	return d
}

// Name returns the model name.
func (d *density) Name() string { return d.name }

// LogLikelihood returns the current log-density.
func (d *density) LogLikelihood() float64 { return d.total }

// Cache snapshots the term values.
func (d *density) Cache() {
	d.cached = slices.Clone(d.terms)
	d.sum = d.total
	d.hasSum = true
}

// ClearCache discards the snapshot.
func (d *density) ClearCache() {
	d.cached = nil
	d.hasSum = false
}

// RestoreCache restores the snapshot. A no-op without one.
func (d *density) RestoreCache() {
	if !d.hasSum {
		return
	}
	d.terms = d.cached
	d.total = d.sum
	d.cached = nil
	d.hasSum = false
}

// HasCache returns true while a snapshot is held.
func (d *density) HasCache() bool { return d.hasSum }

// SampleColumns implements sampler.Sampleable.
func (d *density) SampleColumns() []string { return []string{d.name} }

// SampleValues implements sampler.Sampleable.
func (d *density) SampleValues() []float64 { return []float64{d.total} }

func (d *density) recomputeAll() {
	for i := range d.terms {
		d.terms[i] = d.term(i)
	}
	d.resum()
}

func (d *density) recompute(indices []int) {
	for _, i := range indices {
		if i >= 0 && i < len(d.terms) {
			d.terms[i] = d.term(i)
		}
	}
	d.resum()
}

// resum sums the terms. Any -Inf term makes the total -Inf.
func (d *density) resum() {
	total := 0.0
	for _, t := range d.terms {
		if math.IsInf(t, -1) {
			d.total = math.Inf(-1)
			return
		}
		total += t
	}
	d.total = total
}

// updateFrom recomputes the terms named by changes to source. Changes from
// other nodes, or whole-node changes, recompute everything.
func (d *density) updateFrom(source graph.Node, changes []*graph.ChangeInfo, self graph.Node) *graph.ChangeInfo {
	var indices []int
	for _, c := range changes {
		if c.Node != source || c.Whole() {
			d.recomputeAll()
			return graph.NewChangeInfo(self, "recomputed")
		}
		indices = append(indices, c.Indices...)
	}
	slices.Sort(indices)
	indices = slices.Compact(indices)
	d.recompute(indices)
	return graph.NewChangeInfo(self, "recomputed")
}

func (d *density) String() string {
	return fmt.Sprintf("%s = %g", d.name, d.total)
}
