// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package proposal defines proposers, the proposals they emit and their
// acceptance statistics.
package proposal

import (
	"fmt"
	"math/rand/v2"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/schedule"
)

// MaxAttempts is the number of draws a bounded kernel gets before it gives up
// and returns an invalid proposal.
const MaxAttempts = 100

// Proposal is the outcome of one Perturb call.
//
// Description:
//
//	Forward and Backward are natural-log densities: Forward is the kernel
//	density of moving from the old state to the new one, Backward of moving
//	back. An invalid proposal carries no densities and must be rejected.
type Proposal struct {
	// Proposer is the proposer that produced this proposal.
	Proposer Proposer

	// Forward is log q(new | old).
	Forward float64

	// Backward is log q(old | new).
	Backward float64

	// Valid is false when no admissible new state could be drawn.
	Valid bool

	// SubParameters is the number of sub-parameters perturbed.
	SubParameters int
}

// NewProposal creates a valid proposal.
func NewProposal(p Proposer, forward, backward float64, subParameters int) *Proposal {
	return &Proposal{
		Proposer:      p,
		Forward:       forward,
		Backward:      backward,
		Valid:         true,
		SubParameters: subParameters,
	}
}

// Invalid creates an invalid proposal for p.
func Invalid(p Proposer) *Proposal {
	return &Proposal{Proposer: p}
}

// LogHastingsRatio returns log(backward / forward).
func (p *Proposal) LogHastingsRatio() float64 {
	return p.Backward - p.Forward
}

// String returns a compact description.
func (p *Proposal) String() string {
	name := "<nil>"
	if p.Proposer != nil {
		name = p.Proposer.Name()
	}
	if !p.Valid {
		return fmt.Sprintf("proposal{%s invalid}", name)
	}
	return fmt.Sprintf("proposal{%s k=%d logf=%g logb=%g}", name, p.SubParameters, p.Forward, p.Backward)
}

// Proposer perturbs a fixed set of parameters.
//
// Description:
//
//	A proposer keeps its own undo state for the values it changed, in
//	addition to the graph-level cache, so it can be resolved independently
//	of the transaction. Every Perturb must be followed by exactly one of
//	ClearCache (accepted) or RestoreCache (rejected).
//
// Thread Safety:
//
//	Implementations are not safe for concurrent use.
type Proposer interface {
	// Name identifies the proposer in logs, metrics and reports.
	Name() string

	// Parameters returns the parameters this proposer may change.
	Parameters() []graph.Parameter

	// Weight returns the current relative selection weight.
	Weight() float64

	// Enabled reports whether the proposer may be selected.
	Enabled() bool

	// SetEnabled toggles selection without unregistering.
	SetEnabled(enabled bool)

	// Perturb caches, perturbs and sets the ChangeInfo of its parameters.
	//
	// Inputs:
	//
	//	rng - The chain's random source.
	//
	// Outputs:
	//
	//	*Proposal - Never nil on success; may be invalid.
	//	error - Non-nil only for protocol violations such as ErrPerturbPending.
	Perturb(rng *rand.Rand) (*Proposal, error)

	// ClearCache drops undo state after acceptance.
	ClearCache() error

	// RestoreCache writes back pre-perturbation values and clears ChangeInfo.
	RestoreCache() error

	// Statistics returns the acceptance tally.
	Statistics() *Statistics

	// TuningParameters returns every tuning parameter the proposer reads.
	TuningParameters() []schedule.TuningParameter

	// Info renders a pre-run report block.
	Info(prefix string) string
}
