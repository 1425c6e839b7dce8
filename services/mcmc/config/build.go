// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/acceptor"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/chain"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/graph"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/models"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/param"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/proposal"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/sampler"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/schedule"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/selector"
)

// Assembly is every runtime component built from a RunConfig.
type Assembly struct {
	Graph      *graph.Graph
	Iteration  *schedule.Iteration
	Parameters []*param.Vector
	Proposers  []proposal.Proposer
	Selector   selector.Selector
	Acceptor   acceptor.Acceptor
	Models     []models.Model
}

// Sampleables returns the parameters then the models, in declaration order.
func (a *Assembly) Sampleables() []sampler.Sampleable {
	out := make([]sampler.Sampleable, 0, len(a.Parameters)+len(a.Models))
	for _, p := range a.Parameters {
		out = append(out, p)
	}
	for _, m := range a.Models {
		if s, ok := m.(sampler.Sampleable); ok {
			out = append(out, s)
		}
	}
	return out
}

// ChainModels returns the models as chain.Model values.
func (a *Assembly) ChainModels() []chain.Model {
	out := make([]chain.Model, len(a.Models))
	for i, m := range a.Models {
		out[i] = m
	}
	return out
}

// Setup returns a chain.Setup with every field except Sink and Logger filled.
func (a *Assembly) Setup(cfg RunConfig) chain.Setup {
	return chain.Setup{
		Graph:            a.Graph,
		Selector:         a.Selector,
		Acceptor:         a.Acceptor,
		Models:           a.ChainModels(),
		Iteration:        a.Iteration,
		Thinning:         cfg.Chain.Thinning,
		Sampleables:      a.Sampleables(),
		Debug:            cfg.Chain.Debug,
		ProgressInterval: cfg.Chain.ProgressInterval,
	}
}

// Build constructs the graph, proposers, selector and acceptor of a run.
//
// Description:
//
//	Parameters are created in declaration order, then priors, then the
//	likelihood. Every parameter gets the proposer its config names; a fixed
//	parameter's proposer is registered but disabled.
//
// Inputs:
//
//	cfg - A validated configuration.
//	logger - Logger for setup messages. If nil, uses slog.Default().
//
// Outputs:
//
//	*Assembly - The components.
//	error - Non-nil if any component rejects its settings.
func Build(cfg RunConfig, logger *slog.Logger) (*Assembly, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Parameters = append([]ParameterConfig(nil), cfg.Parameters...)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	it, err := schedule.NewIteration(cfg.Chain.Iterations)
	if err != nil {
		return nil, err
	}
	a := &Assembly{Iteration: it}

	acc, err := acceptor.New(cfg.Acceptor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	a.Acceptor = acc

	opts := selector.Options{RequireDisjointTargets: cfg.Selector.RequireDisjointTargets}
	switch cfg.Selector.Kind {
	case "multi":
		sel, err := selector.NewMultiSelector(cfg.Selector.CountWeights, opts)
		if err != nil {
			return nil, err
		}
		a.Selector = sel
	default:
		a.Selector = selector.NewSingleSelector(opts)
	}

	b := graph.NewBuilder("mcmc")
	byName := make(map[string]*param.Vector, len(cfg.Parameters))
	for _, pc := range cfg.Parameters {
		domain, err := pc.Domain.Interval()
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", pc.Name, err)
		}
		p, err := param.NewVector(pc.Name, domain, pc.Values...)
		if err != nil {
			return nil, err
		}
		prop, err := buildProposer(p, pc.Proposer, it)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", pc.Name, err)
		}
		if pc.Fixed {
			prop.SetEnabled(false)
			logger.Debug("parameter fixed", slog.String("parameter", pc.Name))
		}
		if err := a.Selector.Add(prop); err != nil {
			return nil, err
		}
		b.AddParameter(p)
		byName[pc.Name] = p
		a.Parameters = append(a.Parameters, p)
		a.Proposers = append(a.Proposers, prop)
	}

	for _, pr := range cfg.Model.Priors {
		name := fmt.Sprintf("prior.%s", pr.Parameter)
		var m models.Model
		switch pr.Kind {
		case "gamma":
			m, err = models.NewGammaPrior(name, byName[pr.Parameter], pr.A, pr.B)
		default:
			m, err = models.NewNormalPrior(name, byName[pr.Parameter], pr.A, pr.B)
		}
		if err != nil {
			return nil, err
		}
		a.Models = append(a.Models, m)
	}
	if l := cfg.Model.Likelihood; l != nil {
		name := l.Name
		if name == "" {
			name = "likelihood"
		}
		m, err := models.NewGaussianLikelihood(name, byName[l.Mu], byName[l.Sigma], l.Data)
		if err != nil {
			return nil, err
		}
		a.Models = append(a.Models, m)
	}

	g, err := models.Register(b, a.Models...).Build()
	if err != nil {
		return nil, err
	}
	a.Graph = g

	logger.Info("chain assembled",
		slog.Int("parameters", len(a.Parameters)),
		slog.Int("models", len(a.Models)),
		slog.Int("nodes", g.NodeCount()),
		slog.String("acceptor", acc.Name()),
		slog.String("selector", cfg.Selector.Kind),
	)
	return a, nil
}

func buildProposer(p *param.Vector, pc ProposerConfig, it *schedule.Iteration) (proposal.Proposer, error) {
	wt, err := buildTuning(p.Name()+".weight", pc.Weight, it)
	if err != nil {
		return nil, err
	}
	weight, err := schedule.NewProposerWeight(wt)
	if err != nil {
		return nil, err
	}

	switch pc.Kind {
	case "multiplier":
		lambda, err := buildTuning(p.Name()+".lambda", pc.Lambda, it)
		if err != nil {
			return nil, err
		}
		mp, err := proposal.NewMultiplierProposer(p, lambda, weight)
		if err != nil {
			return nil, err
		}
		if len(pc.SubParameterWeights) > 0 {
			if err := mp.SetSubParameterWeights(pc.SubParameterWeights); err != nil {
				return nil, err
			}
		}
		return mp, nil
	default:
		t1, err := buildTuning(p.Name()+".t1", pc.T1, it)
		if err != nil {
			return nil, err
		}
		t2, err := buildTuning(p.Name()+".t2", pc.T2, it)
		if err != nil {
			return nil, err
		}
		np, err := proposal.NewNormalProposer(p, t1, t2, weight)
		if err != nil {
			return nil, err
		}
		if len(pc.SubParameterWeights) > 0 {
			if err := np.SetSubParameterWeights(pc.SubParameterWeights); err != nil {
				return nil, err
			}
		}
		return np, nil
	}
}

func buildTuning(name string, tc TuningConfig, it *schedule.Iteration) (schedule.TuningParameter, error) {
	switch tc.Kind {
	case "linear":
		return schedule.NewLinear(name, it, tc.Start, tc.End, tc.StopAt)
	case "adaptive":
		opts := schedule.DefaultAdaptiveOptions(tc.StopAt)
		if tc.Target != 0 {
			opts.Target = tc.Target
		}
		if tc.Interval != 0 {
			opts.Interval = tc.Interval
		}
		if tc.Factor != 0 {
			opts.Factor = tc.Factor
		}
		opts.Inverse = tc.Inverse
		return schedule.NewAdaptive(name, it, tc.Value, tc.Min, tc.Max, opts)
	default:
		return schedule.NewConstant(name, tc.Value)
	}
}
