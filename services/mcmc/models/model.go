// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package models

import "github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"

// Model is a log-density dependent that knows its parents.
type Model interface {
	graph.Dependent

	// LogLikelihood returns the current log-density.
	LogLikelihood() float64

	// Parents returns the nodes the model reads.
	Parents() []graph.Node
}

// Register adds every model to b as a dependent of its parents.
//
// The parents must already be registered, or be registered before Build.
func Register(b *graph.Builder, ms ...Model) *graph.Builder {
	for _, m := range ms {
		b.AddDependent(m, m.Parents()...)
	}
	return b
}

var (
	_ Model = (*NormalPrior)(nil)
	_ Model = (*GammaPrior)(nil)
	_ Model = (*GaussianLikelihood)(nil)
)
