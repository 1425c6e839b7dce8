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
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("aleutian.mcmc.chain")
	meter  = otel.Meter("aleutian.mcmc.chain")
)

// Prometheus chain metrics.
var (
	iterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcmc_chain_iterations_total",
		Help: "Chain iterations by outcome",
	}, []string{"outcome"})

	proposerAcceptances = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcmc_proposer_acceptances_total",
		Help: "Accepted iterations per proposer",
	}, []string{"proposer"})

	proposerAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcmc_proposer_attempts_total",
		Help: "Iterations in which the proposer was selected",
	}, []string{"proposer"})

	logLikelihoodGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mcmc_chain_log_likelihood",
		Help: "Current joint log-likelihood of each running chain",
	}, []string{"run_id"})

	samplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcmc_chain_samples_total",
		Help: "Rows written to the sample sink",
	})
)

// Iteration outcomes used as metric labels.
const (
	outcomeAccepted = "accepted"
	outcomeRejected = "rejected"
	outcomeInvalid  = "invalid"
)

// initMetrics lazily creates the OpenTelemetry instruments.
// Failures are logged and the affected instrument stays nil.
func (m *Manager) initMetrics() {
	m.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		m.iterLatency, err = meter.Float64Histogram("mcmc_iteration_duration_seconds",
			metric.WithDescription("Time spent in one chain iteration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "iteration_latency: "+err.Error())
		}

		m.recomputed, err = meter.Int64Counter("mcmc_dependents_recomputed_total",
			metric.WithDescription("Dependent recomputations across all iterations"),
		)
		if err != nil {
			initErrors = append(initErrors, "recomputed: "+err.Error())
		}

		m.runLatency, err = meter.Float64Histogram("mcmc_run_duration_seconds",
			metric.WithDescription("Total chain run time"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "run_latency: "+err.Error())
		}

		if len(initErrors) > 0 {
			m.logger.Error("failed to initialize some chain metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}
