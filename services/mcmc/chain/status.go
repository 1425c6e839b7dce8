// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chain

import (
	"math"
	"slices"
	"time"
)

// ProposerStatus is the acceptance tally of one proposer.
type ProposerStatus struct {
	Name        string  `json:"name"`
	Enabled     bool    `json:"enabled"`
	Weight      float64 `json:"weight"`
	Attempts    int     `json:"attempts"`
	Acceptances int     `json:"acceptances"`
	Rate        float64 `json:"acceptance_rate"`
	WindowRate  float64 `json:"window_acceptance_rate"`
}

// Status is a point-in-time snapshot of a chain.
type Status struct {
	RunID     string           `json:"run_id"`
	Running   bool             `json:"running"`
	StartedAt time.Time        `json:"started_at,omitempty"`
	Iteration int              `json:"iteration"`
	Total     int              `json:"total"`
	LogL      float64          `json:"log_likelihood"`
	BestLogL  float64          `json:"best_log_likelihood"`
	Accepted  int              `json:"accepted"`
	Rejected  int              `json:"rejected"`
	Invalid   int              `json:"invalid"`
	Samples   int              `json:"samples"`
	Proposers []ProposerStatus `json:"proposers"`
}

// Status returns the latest snapshot. Safe to call concurrently with Run.
//
// Non-finite likelihoods are reported as zero so the snapshot is always
// JSON-encodable.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.status
	s.Proposers = slices.Clone(m.status.Proposers)
	s.LogL = finite(s.LogL)
	s.BestLogL = finite(s.BestLogL)
	return s
}

func (m *Manager) setRunning() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.RunID = m.runID
	m.status.Running = true
	m.status.StartedAt = time.Now().UTC()
}

// updateStatus copies the chain's counters into the snapshot.
// Called by the run goroutine only.
func (m *Manager) updateStatus() {
	proposers := m.selector.Proposers()
	ps := make([]ProposerStatus, len(proposers))
	for i, p := range proposers {
		st := p.Statistics()
		total := st.Total()
		ps[i] = ProposerStatus{
			Name:        p.Name(),
			Enabled:     p.Enabled(),
			Weight:      p.Weight(),
			Attempts:    total.Attempts,
			Acceptances: total.Acceptances,
			Rate:        finite(total.Rate()),
			WindowRate:  finite(st.WindowRate()),
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Iteration = m.iter.Current()
	m.status.LogL = m.logL
	m.status.BestLogL = m.bestLogL
	m.status.Accepted = m.accepted
	m.status.Rejected = m.rejected
	m.status.Invalid = m.invalid
	m.status.Samples = m.samples
	m.status.Proposers = ps
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
