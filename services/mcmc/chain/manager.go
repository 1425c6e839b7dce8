// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chain drives a Markov chain over a dependency graph.
//
// Each iteration selects proposers, opens a graph transaction on their
// parameters, perturbs, propagates, evaluates the joint log-likelihood and
// either commits or rolls back. Sampled state is written to a sink at every
// thinning checkpoint.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/acceptor"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/proposal"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/sampler"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/schedule"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/selector"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/telemetry"
)

// DefaultProgressInterval is how often progress is logged during a run.
const DefaultProgressInterval = 5 * time.Second

// Model contributes a term to the joint log-likelihood.
type Model interface {
	Name() string
	LogLikelihood() float64
}

// Setup collects everything a Manager needs.
type Setup struct {
	// Graph holds every parameter and dependent. Required.
	Graph *graph.Graph

	// Selector chooses proposers each iteration. Required.
	Selector selector.Selector

	// Acceptor decides each iteration. Required.
	Acceptor acceptor.Acceptor

	// Models are summed to form the joint log-likelihood. At least one.
	Models []Model

	// Iteration is the chain's counter. Tuning schedules must share it. Required.
	Iteration *schedule.Iteration

	// Thinning writes a row every Thinning iterations. Zero means 1.
	Thinning int

	// Sampleables are appended to each row after the iteration and logL columns.
	Sampleables []sampler.Sampleable

	// Sink receives rows. Nil discards them.
	Sink sampler.Sink

	// Debug verifies graph state after every iteration.
	Debug bool

	// ProgressInterval throttles progress logs. Zero selects DefaultProgressInterval.
	ProgressInterval time.Duration

	// Logger for run logs. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	Iterations int
	Samples    int
	Accepted   int
	Rejected   int
	Invalid    int
	FinalLogL  float64
	BestLogL   float64
	Duration   time.Duration
}

// Manager runs one chain.
//
// Description:
//
//	A Manager owns the iteration loop. It is itself sampleable, contributing
//	the current joint log-likelihood as column "logL".
//
// Thread Safety:
//
//	Run must not be called concurrently. Status may be called from any
//	goroutine while Run is in progress.
type Manager struct {
	graph    *graph.Graph
	selector selector.Selector
	acceptor acceptor.Acceptor
	models   []Model
	iter     *schedule.Iteration
	thinner  *schedule.Thinner
	rows     []sampler.Sampleable
	sink     sampler.Sink
	debug    bool
	progress time.Duration
	logger   *slog.Logger

	logL     float64
	bestLogL float64
	accepted int
	rejected int
	invalid  int
	samples  int
	runID    string

	mu      sync.Mutex
	status  Status
	running bool

	metricsOnce sync.Once
	iterLatency metric.Float64Histogram
	recomputed  metric.Int64Counter
	runLatency  metric.Float64Histogram
}

// NewManager validates setup and creates a manager.
//
// Outputs:
//
//	*Manager - The manager, ready to Run.
//	error - Wraps ErrInvalidSetup or ErrNoModels.
func NewManager(s Setup) (*Manager, error) {
	switch {
	case s.Graph == nil:
		return nil, fmt.Errorf("%w: graph is required", ErrInvalidSetup)
	case s.Selector == nil:
		return nil, fmt.Errorf("%w: selector is required", ErrInvalidSetup)
	case s.Acceptor == nil:
		return nil, fmt.Errorf("%w: acceptor is required", ErrInvalidSetup)
	case s.Iteration == nil:
		return nil, fmt.Errorf("%w: iteration is required", ErrInvalidSetup)
	case len(s.Models) == 0:
		return nil, ErrNoModels
	}
	for i, m := range s.Models {
		if m == nil {
			return nil, fmt.Errorf("%w: model %d is nil", ErrInvalidSetup, i)
		}
	}

	thinning := s.Thinning
	if thinning == 0 {
		thinning = 1
	}
	thinner, err := schedule.NewThinner(s.Iteration, thinning)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSetup, err)
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := s.ProgressInterval
	if progress <= 0 {
		progress = DefaultProgressInterval
	}

	m := &Manager{
		graph:    s.Graph,
		selector: s.Selector,
		acceptor: s.Acceptor,
		models:   append([]Model(nil), s.Models...),
		iter:     s.Iteration,
		thinner:  thinner,
		sink:     s.Sink,
		debug:    s.Debug,
		progress: progress,
		logger:   logger,
	}
	m.rows = append([]sampler.Sampleable{s.Iteration, m}, s.Sampleables...)
	m.logL = m.jointLogLikelihood()
	m.bestLogL = m.logL
	m.status = Status{Total: s.Iteration.Total(), LogL: m.logL, BestLogL: m.bestLogL}
	return m, nil
}

// SampleColumns implements sampler.Sampleable.
func (m *Manager) SampleColumns() []string { return []string{"logL"} }

// SampleValues implements sampler.Sampleable.
func (m *Manager) SampleValues() []float64 { return []float64{m.logL} }

// LogLikelihood returns the current joint log-likelihood.
func (m *Manager) LogLikelihood() float64 { return m.logL }

// BestLogLikelihood returns the highest joint log-likelihood seen.
func (m *Manager) BestLogLikelihood() float64 { return m.bestLogL }

// Columns returns the header of the sampled rows.
func (m *Manager) Columns() []string { return sampler.Columns(m.rows) }

func (m *Manager) jointLogLikelihood() float64 {
	total := 0.0
	for _, model := range m.models {
		total += model.LogLikelihood()
	}
	return total
}

// Run executes the remaining iterations.
//
// Description:
//
//	Writes the starting state, then iterates until the counter is done.
//	Context cancellation is checked between iterations only; an iteration
//	in flight always completes its commit or rollback. The sink is closed
//	before Run returns.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	rng - The chain's random source. Must not be nil.
//
// Outputs:
//
//	*Result - Counts and likelihoods, also on failure.
//	error - ctx.Err() on cancellation, ErrChainHalted wrapping the cause on
//	  any other failure.
func (m *Manager) Run(ctx context.Context, rng *rand.Rand) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if rng == nil {
		return nil, ErrNilRand
	}
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()

	m.initMetrics()
	m.runID = uuid.NewString()[:12]

	ctx, span := tracer.Start(ctx, "mcmc.Chain",
		trace.WithAttributes(
			attribute.String("mcmc.run_id", m.runID),
			attribute.String("mcmc.graph", m.graph.Name()),
			attribute.Int("mcmc.iterations", m.iter.Total()),
			attribute.Int("mcmc.thinning", m.thinner.Factor()),
		),
	)
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, m.logger)

	start := time.Now()
	logger.Info("chain started",
		slog.String("run_id", m.runID),
		slog.String("graph", m.graph.Name()),
		slog.Int("nodes", m.graph.NodeCount()),
		slog.Int("iterations", m.iter.Total()),
		slog.Float64("log_likelihood", m.logL),
	)

	err := m.loop(ctx, rng, span)

	if m.sink != nil {
		if cerr := m.sink.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("%w: close sink: %w", ErrChainHalted, cerr))
		}
	}

	res := m.result(time.Since(start))
	if m.runLatency != nil {
		m.runLatency.Record(ctx, res.Duration.Seconds())
	}

	m.mu.Lock()
	m.running = false
	m.status.Running = false
	m.mu.Unlock()
	logLikelihoodGauge.DeleteLabelValues(m.runID)

	if err != nil {
		telemetry.RecordError(span, err, attribute.Int("mcmc.iteration", m.iter.Current()))
		logger.Error("chain stopped",
			slog.String("run_id", m.runID),
			slog.Int("iteration", m.iter.Current()),
			slog.String("error", err.Error()),
		)
		return res, err
	}

	telemetry.SetSpanOK(span)
	logger.Info("chain finished",
		slog.String("run_id", m.runID),
		slog.Int("iterations", res.Iterations),
		slog.Int("samples", res.Samples),
		slog.Float64("log_likelihood", res.FinalLogL),
		slog.Float64("best_log_likelihood", res.BestLogL),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

func (m *Manager) loop(ctx context.Context, rng *rand.Rand, span trace.Span) error {
	if m.sink != nil {
		if err := m.sink.Begin(ctx, m.runID, m.Columns()); err != nil {
			return fmt.Errorf("%w: begin sink: %w", ErrChainHalted, err)
		}
	}
	m.setRunning()

	if m.thinner.DoSample() {
		if err := m.sample(ctx); err != nil {
			return err
		}
	}

	progress := rate.Sometimes{Interval: m.progress}
	for !m.iter.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		iterStart := time.Now()
		if err := m.step(ctx, rng); err != nil {
			return fmt.Errorf("%w: iteration %d: %w", ErrChainHalted, m.iter.Current(), err)
		}
		m.iter.Increment()
		if m.iterLatency != nil {
			m.iterLatency.Record(ctx, time.Since(iterStart).Seconds())
		}

		if m.debug {
			if err := m.graph.Verify(); err != nil {
				return fmt.Errorf("%w: iteration %d: %w", ErrChainHalted, m.iter.Current(), err)
			}
		}

		if m.thinner.DoSample() {
			if err := m.sample(ctx); err != nil {
				return err
			}
			span.AddEvent("checkpoint", trace.WithAttributes(
				attribute.Int("mcmc.iteration", m.iter.Current()),
				attribute.Float64("mcmc.log_likelihood", m.logL),
			))
		}
		m.updateStatus()

		progress.Do(func() {
			m.logger.Info("chain progress",
				slog.String("run_id", m.runID),
				slog.Int("iteration", m.iter.Current()),
				slog.Int("total", m.iter.Total()),
				slog.Float64("log_likelihood", m.logL),
				slog.Float64("best_log_likelihood", m.bestLogL),
			)
		})
	}
	return nil
}

// step runs one iteration.
//
// Description:
//
//	Select, begin, perturb, propagate, evaluate, accept, then commit or roll
//	back both the graph and the proposers. An invalid proposal skips
//	propagation and is rejected. Any returned error is fatal.
func (m *Manager) step(ctx context.Context, rng *rand.Rand) error {
	chosen, err := m.selector.Select(rng)
	if err != nil {
		return err
	}

	tx, err := m.graph.Begin(targets(chosen)...)
	if err != nil {
		return err
	}

	proposals := make([]*proposal.Proposal, 0, len(chosen))
	valid := true
	for _, p := range chosen {
		prop, err := p.Perturb(rng)
		if err != nil {
			return errors.Join(err, m.abort(tx, chosen[:len(proposals)]))
		}
		proposals = append(proposals, prop)
		if !prop.Valid {
			valid = false
			break
		}
	}

	newLogL := math.Inf(-1)
	if valid {
		if err := tx.Propagate(); err != nil {
			return errors.Join(err, m.abort(tx, chosen))
		}
		if m.recomputed != nil {
			m.recomputed.Add(ctx, int64(len(tx.Recomputed())))
		}
		newLogL = m.jointLogLikelihood()
	}

	accepted := m.acceptor.Accept(rng, newLogL, m.logL, proposals)

	if accepted {
		if err := tx.Commit(); err != nil {
			return err
		}
		for _, p := range chosen {
			if err := p.ClearCache(); err != nil {
				return err
			}
		}
		m.logL = newLogL
		if newLogL > m.bestLogL {
			m.bestLogL = newLogL
		}
	} else if err := m.abort(tx, chosen[:len(proposals)]); err != nil {
		return err
	}

	m.record(chosen, proposals, accepted, valid)
	return nil
}

// abort restores the perturbed proposers and rolls the transaction back.
func (m *Manager) abort(tx *graph.Tx, perturbed []proposal.Proposer) error {
	var errs []error
	for _, p := range perturbed {
		if err := p.RestoreCache(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := tx.Rollback(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// record updates statistics, tuning feedback and counters.
func (m *Manager) record(chosen []proposal.Proposer, proposals []*proposal.Proposal, accepted, valid bool) {
	outcome := outcomeRejected
	switch {
	case !valid:
		m.invalid++
		outcome = outcomeInvalid
	case accepted:
		m.accepted++
		outcome = outcomeAccepted
	default:
		m.rejected++
	}
	iterationsTotal.WithLabelValues(outcome).Inc()

	// Proposers after an invalid proposal never perturbed and are not charged.
	for i, p := range chosen[:len(proposals)] {
		p.Statistics().Add(accepted, proposals[i].SubParameters)
		proposerAttempts.WithLabelValues(p.Name()).Inc()
		if accepted {
			proposerAcceptances.WithLabelValues(p.Name()).Inc()
		}
		for _, tp := range p.TuningParameters() {
			if a, ok := tp.(schedule.Adapter); ok {
				a.Observe(accepted)
			}
		}
	}
	logLikelihoodGauge.WithLabelValues(m.runID).Set(m.logL)
}

func (m *Manager) sample(ctx context.Context) error {
	if m.sink == nil {
		return nil
	}
	rec := sampler.Record{Iteration: m.iter.Current(), Values: sampler.Values(m.rows)}
	if err := m.sink.Write(ctx, rec); err != nil {
		return fmt.Errorf("%w: write sample %d: %w", ErrChainHalted, rec.Iteration, err)
	}
	m.samples++
	samplesTotal.Inc()
	return nil
}

func (m *Manager) result(d time.Duration) *Result {
	return &Result{
		RunID:      m.runID,
		Iterations: m.iter.Current(),
		Samples:    m.samples,
		Accepted:   m.accepted,
		Rejected:   m.rejected,
		Invalid:    m.invalid,
		FinalLogL:  m.logL,
		BestLogL:   m.bestLogL,
		Duration:   d,
	}
}

// targets returns the distinct parameters of the chosen proposers.
func targets(chosen []proposal.Proposer) []graph.Parameter {
	seen := make(map[graph.Parameter]struct{})
	out := make([]graph.Parameter, 0, len(chosen))
	for _, p := range chosen {
		for _, param := range p.Parameters() {
			if _, ok := seen[param]; ok {
				continue
			}
			seen[param] = struct{}{}
			out = append(out, param)
		}
	}
	return out
}

// Info renders the pre-run or post-run report.
func (m *Manager) Info(prefix string) string {
	var sb strings.Builder
	sb.WriteString(prefix + "MCMC MANAGER\n")
	fmt.Fprintf(&sb, "%sGraph: %s (%d nodes)\n", prefix, m.graph.Name(), m.graph.NodeCount())
	sb.WriteString(m.iter.Info(prefix + "\t"))
	sb.WriteString(m.thinner.Info(prefix + "\t"))
	fmt.Fprintf(&sb, "%s\tLog-likelihood: %g (best %g)\n", prefix, m.logL, m.bestLogL)
	fmt.Fprintf(&sb, "%s\tSample columns: %s\n", prefix, strings.Join(m.Columns(), ", "))
	sb.WriteString(m.acceptor.Info(prefix + "\t"))
	sb.WriteString(m.selector.Info(prefix + "\t"))
	for _, p := range m.selector.Proposers() {
		sb.WriteString(p.Info(prefix + "\t"))
		sb.WriteString(p.Statistics().Info(prefix + "\t\t"))
		for _, tp := range p.TuningParameters() {
			sb.WriteString(tp.Info(prefix + "\t\t"))
		}
	}
	return sb.String()
}
