// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package acceptor decides whether a proposed state replaces the current one.
package acceptor

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/proposal"
)

// Acceptor accepts or rejects one iteration.
//
// Description:
//
//	Likelihoods are natural logs. Any invalid proposal forces rejection
//	before anything else is evaluated. Acceptors hold no state beyond
//	decision counts.
type Acceptor interface {
	// Accept returns true if the new state should be kept.
	//
	// Inputs:
	//
	//	rng - Random source, used by stochastic acceptors only.
	//	newLogL - Joint log-likelihood of the proposed state.
	//	oldLogL - Joint log-likelihood of the current state.
	//	proposals - Every proposal that contributed to the new state.
	Accept(rng *rand.Rand, newLogL, oldLogL float64, proposals []*proposal.Proposal) bool

	// Name identifies the acceptor.
	Name() string

	// Info renders a pre/post-run report block.
	Info(prefix string) string
}

// anyInvalid returns true if some proposal is nil or invalid.
func anyInvalid(proposals []*proposal.Proposal) bool {
	for _, p := range proposals {
		if p == nil || !p.Valid {
			return true
		}
	}
	return false
}

// counts tracks decisions for reports.
type counts struct {
	accepted int
	rejected int
	invalid  int
}

func (c *counts) record(accepted, invalid bool) bool {
	switch {
	case invalid:
		c.invalid++
	case accepted:
		c.accepted++
	default:
		c.rejected++
	}
	return accepted
}

func (c *counts) info(prefix, title string) string {
	var sb strings.Builder
	sb.WriteString(prefix + title + "\n")
	fmt.Fprintf(&sb, "%sAccepted: %d, rejected: %d, invalid: %d\n", prefix, c.accepted, c.rejected, c.invalid)
	return sb.String()
}

// MetropolisHastings accepts with probability min(1, L'/L * Π b/f).
//
// Thread Safety:
//
//	Not safe for concurrent use.
type MetropolisHastings struct {
	counts
}

// NewMetropolisHastings creates a Metropolis-Hastings acceptor.
func NewMetropolisHastings() *MetropolisHastings {
	return &MetropolisHastings{}
}

// Name returns "metropolis-hastings".
func (m *MetropolisHastings) Name() string { return "metropolis-hastings" }

// Accept draws u ~ U(0,1) and accepts iff log u < (L' - L) + Σ(log b - log f).
//
// A NaN ratio rejects. A proposed state with log-likelihood -Inf is
// always rejected, even from a current state that is also -Inf.
func (m *MetropolisHastings) Accept(rng *rand.Rand, newLogL, oldLogL float64, proposals []*proposal.Proposal) bool {
	if anyInvalid(proposals) {
		return m.record(false, true)
	}
	if math.IsInf(newLogL, -1) || math.IsNaN(newLogL) {
		return m.record(false, false)
	}
	logRatio := newLogL - oldLogL
	for _, p := range proposals {
		logRatio += p.LogHastingsRatio()
	}
	if math.IsNaN(logRatio) {
		return m.record(false, false)
	}
	if logRatio >= 0 {
		return m.record(true, false)
	}
	return m.record(math.Log(rng.Float64()) < logRatio, false)
}

// Info renders the report block.
func (m *MetropolisHastings) Info(prefix string) string {
	return m.info(prefix, "METROPOLIS-HASTINGS PROPOSAL ACCEPTOR")
}

// HillClimbing accepts iff the likelihood strictly improves.
type HillClimbing struct {
	counts
}

// NewHillClimbing creates a hill-climbing acceptor.
func NewHillClimbing() *HillClimbing {
	return &HillClimbing{}
}

// Name returns "hill-climbing".
func (h *HillClimbing) Name() string { return "hill-climbing" }

// Accept returns newLogL > oldLogL. rng is not used and may be nil.
func (h *HillClimbing) Accept(_ *rand.Rand, newLogL, oldLogL float64, proposals []*proposal.Proposal) bool {
	if anyInvalid(proposals) {
		return h.record(false, true)
	}
	return h.record(newLogL > oldLogL, false)
}

// Info renders the report block.
func (h *HillClimbing) Info(prefix string) string {
	return h.info(prefix, "HILL-CLIMBING PROPOSAL ACCEPTOR")
}

// New returns the acceptor registered under name.
func New(name string) (Acceptor, error) {
	switch name {
	case "metropolis-hastings", "mh", "":
		return NewMetropolisHastings(), nil
	case "hill-climbing", "hill":
		return NewHillClimbing(), nil
	default:
		return nil, fmt.Errorf("unknown acceptor %q", name)
	}
}
