// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates chain run configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/param"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// RunConfig describes one chain run end to end.
type RunConfig struct {
	// Chain controls the iteration loop.
	Chain ChainConfig `json:"chain" yaml:"chain"`

	// Acceptor is "metropolis-hastings" (alias "mh") or "hill-climbing" (alias "hill").
	Acceptor string `json:"acceptor" yaml:"acceptor" validate:"oneof=metropolis-hastings mh hill-climbing hill"`

	// Selector chooses proposers each iteration.
	Selector SelectorConfig `json:"selector" yaml:"selector"`

	// Parameters declares every parameter and its proposer.
	Parameters []ParameterConfig `json:"parameters" yaml:"parameters" validate:"required,min=1,dive"`

	// Model declares priors and the data likelihood.
	Model ModelConfig `json:"model" yaml:"model"`

	// Sinks selects where samples go.
	Sinks SinksConfig `json:"sinks" yaml:"sinks"`

	// Telemetry configures tracing and metrics export.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Server configures the status API used by "run --serve".
	Server ServerConfig `json:"server" yaml:"server"`

	// Logging configures the CLI logger.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ChainConfig controls the iteration loop.
type ChainConfig struct {
	Iterations       int           `json:"iterations" yaml:"iterations" validate:"gt=0"`
	Thinning         int           `json:"thinning" yaml:"thinning" validate:"gte=1"`
	Seed             uint64        `json:"seed" yaml:"seed"`
	Debug            bool          `json:"debug" yaml:"debug"`
	ProgressInterval time.Duration `json:"progress_interval" yaml:"progress_interval"`
}

// SelectorConfig chooses the proposer selector.
type SelectorConfig struct {
	// Kind is "single" or "multi".
	Kind string `json:"kind" yaml:"kind" validate:"oneof=single multi"`

	// CountWeights are relative weights for picking 1, 2, 3 ... proposers (multi only).
	CountWeights []float64 `json:"count_weights,omitempty" yaml:"count_weights,omitempty" validate:"omitempty,dive,gte=0"`

	// RequireDisjointTargets rejects overlapping proposers at registration.
	RequireDisjointTargets bool `json:"require_disjoint_targets" yaml:"require_disjoint_targets"`
}

// ParameterConfig declares a real-valued parameter and the proposer that moves it.
type ParameterConfig struct {
	Name   string       `json:"name" yaml:"name" validate:"required"`
	Values []float64    `json:"values" yaml:"values" validate:"required,min=1"`
	Domain DomainConfig `json:"domain" yaml:"domain"`

	// Fixed registers the proposer but never selects it.
	Fixed bool `json:"fixed" yaml:"fixed"`

	Proposer ProposerConfig `json:"proposer" yaml:"proposer"`
}

// DomainConfig is an interval. A nil bound is infinite.
type DomainConfig struct {
	Lower     *float64 `json:"lower,omitempty" yaml:"lower,omitempty"`
	Upper     *float64 `json:"upper,omitempty" yaml:"upper,omitempty"`
	LowerOpen bool     `json:"lower_open" yaml:"lower_open"`
	UpperOpen bool     `json:"upper_open" yaml:"upper_open"`
}

// Interval converts the domain to a param.Interval.
func (d DomainConfig) Interval() (param.Interval, error) {
	lo, hi := math.Inf(-1), math.Inf(1)
	loOpen, hiOpen := true, true
	if d.Lower != nil {
		lo, loOpen = *d.Lower, d.LowerOpen
	}
	if d.Upper != nil {
		hi, hiOpen = *d.Upper, d.UpperOpen
	}
	return param.NewInterval(lo, hi, loOpen, hiOpen)
}

// ProposerConfig configures the proposer of a parameter.
type ProposerConfig struct {
	// Kind is "normal" or "multiplier".
	Kind string `json:"kind" yaml:"kind" validate:"oneof=normal multiplier"`

	// Weight is the relative selection weight.
	Weight TuningConfig `json:"weight" yaml:"weight"`

	// T1 and T2 tune the normal proposer.
	T1 TuningConfig `json:"t1" yaml:"t1"`
	T2 TuningConfig `json:"t2" yaml:"t2"`

	// Lambda tunes the multiplier proposer.
	Lambda TuningConfig `json:"lambda" yaml:"lambda"`

	// SubParameterWeights are relative weights for perturbing 1, 2, 3 ... sub-parameters.
	SubParameterWeights []float64 `json:"sub_parameter_weights,omitempty" yaml:"sub_parameter_weights,omitempty" validate:"omitempty,dive,gte=0"`
}

// TuningConfig declares a tuning parameter schedule.
type TuningConfig struct {
	// Kind is "constant", "linear" or "adaptive".
	Kind string `json:"kind" yaml:"kind" validate:"oneof=constant linear adaptive"`

	// Value is the constant value, or the initial value of an adaptive schedule.
	Value float64 `json:"value" yaml:"value"`

	// Start and End are the linear endpoints.
	Start float64 `json:"start,omitempty" yaml:"start,omitempty"`
	End   float64 `json:"end,omitempty" yaml:"end,omitempty"`

	// StopAt is the iteration where linear interpolation or adaptation stops.
	StopAt int `json:"stop_at,omitempty" yaml:"stop_at,omitempty" validate:"gte=0"`

	// Min and Max bound an adaptive schedule.
	Min float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max float64 `json:"max,omitempty" yaml:"max,omitempty"`

	// Target, Interval, Factor and Inverse override the adaptive defaults when set.
	Target   float64 `json:"target,omitempty" yaml:"target,omitempty"`
	Interval int     `json:"interval,omitempty" yaml:"interval,omitempty" validate:"gte=0"`
	Factor   float64 `json:"factor,omitempty" yaml:"factor,omitempty"`
	Inverse  bool    `json:"inverse,omitempty" yaml:"inverse,omitempty"`
}

// Constant returns a constant tuning config.
func Constant(v float64) TuningConfig {
	return TuningConfig{Kind: "constant", Value: v}
}

// ModelConfig declares the log-density terms.
type ModelConfig struct {
	Priors     []PriorConfig     `json:"priors" yaml:"priors" validate:"dive"`
	Likelihood *LikelihoodConfig `json:"likelihood,omitempty" yaml:"likelihood,omitempty"`
}

// PriorConfig declares a prior on one parameter.
type PriorConfig struct {
	// Kind is "normal" (A = mean, B = stddev) or "gamma" (A = shape, B = rate).
	Kind      string  `json:"kind" yaml:"kind" validate:"oneof=normal gamma"`
	Parameter string  `json:"parameter" yaml:"parameter" validate:"required"`
	A         float64 `json:"a" yaml:"a"`
	B         float64 `json:"b" yaml:"b"`
}

// LikelihoodConfig declares a Gaussian data likelihood.
type LikelihoodConfig struct {
	Name  string    `json:"name" yaml:"name"`
	Mu    string    `json:"mu" yaml:"mu" validate:"required"`
	Sigma string    `json:"sigma" yaml:"sigma" validate:"required"`
	Data  []float64 `json:"data" yaml:"data" validate:"required,min=1"`
}

// SinksConfig selects sample outputs. Any combination may be enabled.
type SinksConfig struct {
	// TSV is a file path; "-" writes to stdout. Empty disables it.
	TSV    string       `json:"tsv" yaml:"tsv"`
	Badger BadgerConfig `json:"badger" yaml:"badger"`
	Influx InfluxConfig `json:"influx" yaml:"influx"`
}

// BadgerConfig enables the persistent sample store.
type BadgerConfig struct {
	Path      string `json:"path" yaml:"path"`
	BatchSize int    `json:"batch_size" yaml:"batch_size" validate:"gte=0"`
}

// InfluxConfig enables the InfluxDB sink.
type InfluxConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	URL         string `json:"url" yaml:"url" validate:"required_if=Enabled true"`
	Token       string `json:"token" yaml:"token"`
	Org         string `json:"org" yaml:"org" validate:"required_if=Enabled true"`
	Bucket      string `json:"bucket" yaml:"bucket" validate:"required_if=Enabled true"`
	Measurement string `json:"measurement" yaml:"measurement"`
	BatchSize   int    `json:"batch_size" yaml:"batch_size" validate:"gte=0"`
}

// TelemetryConfig selects exporters.
type TelemetryConfig struct {
	ServiceName     string `json:"service_name" yaml:"service_name"`
	TraceExporter   string `json:"trace_exporter" yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricsExporter string `json:"metrics_exporter" yaml:"metrics_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint    string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// ServerConfig configures the status API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" validate:"required"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `json:"json" yaml:"json"`
	File  string `json:"file" yaml:"file"`
}

// Default returns a configuration with every field set except the
// parameters and model, which have no sensible default.
func Default() RunConfig {
	return RunConfig{
		Chain: ChainConfig{
			Iterations:       10000,
			Thinning:         10,
			Seed:             1,
			ProgressInterval: 5 * time.Second,
		},
		Acceptor: "metropolis-hastings",
		Selector: SelectorConfig{Kind: "single"},
		Sinks: SinksConfig{
			Influx: InfluxConfig{
				URL:         "http://localhost:8086",
				Measurement: "mcmc_samples",
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:     "aleutian-mcmc",
			TraceExporter:   "none",
			MetricsExporter: "prometheus",
			OTLPEndpoint:    "localhost:4317",
		},
		Server:  ServerConfig{Addr: ":12230"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - path: Path to a YAML/JSON config file (optional, can be empty).
//
// Outputs:
//   - RunConfig: Merged configuration.
//   - error: Non-nil if the file is unreadable or the result is invalid.
func Load(path string) (RunConfig, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadEnv(&cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *RunConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadEnv(cfg *RunConfig) {
	if v := os.Getenv("MCMC_ITERATIONS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Chain.Iterations = i
		}
	}
	if v := os.Getenv("MCMC_THINNING"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Chain.Thinning = i
		}
	}
	if v := os.Getenv("MCMC_SEED"); v != "" {
		if u, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Chain.Seed = u
		}
	}
	if v := os.Getenv("MCMC_DEBUG"); v != "" {
		cfg.Chain.Debug = v == "true" || v == "1"
	}
	if v := os.Getenv("MCMC_ACCEPTOR"); v != "" {
		cfg.Acceptor = v
	}
	if v := os.Getenv("MCMC_TSV"); v != "" {
		cfg.Sinks.TSV = v
	}
	if v := os.Getenv("MCMC_BADGER_PATH"); v != "" {
		cfg.Sinks.Badger.Path = v
	}

	if v := os.Getenv("INFLUXDB_URL"); v != "" {
		cfg.Sinks.Influx.URL = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		cfg.Sinks.Influx.Token = v
	}
	if v := os.Getenv("INFLUXDB_ORG"); v != "" {
		cfg.Sinks.Influx.Org = v
	}
	if v := os.Getenv("INFLUXDB_BUCKET"); v != "" {
		cfg.Sinks.Influx.Bucket = v
	}

	if v := os.Getenv("MCMC_TRACE_EXPORTER"); v != "" {
		cfg.Telemetry.TraceExporter = v
	}
	if v := os.Getenv("MCMC_METRICS_EXPORTER"); v != "" {
		cfg.Telemetry.MetricsExporter = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("MCMC_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MCMC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}

// ApplyDefaults fills empty per-parameter proposer fields. Load calls it
// before validation; call it yourself on a hand-built config.
func (c *RunConfig) ApplyDefaults() {
	for i := range c.Parameters {
		p := &c.Parameters[i].Proposer
		if p.Kind == "" {
			p.Kind = "normal"
		}
		if p.Weight.Kind == "" {
			p.Weight.Kind = "constant"
			if p.Weight.Value == 0 {
				p.Weight.Value = 1
			}
		}
		for _, tc := range []*TuningConfig{&p.T1, &p.T2, &p.Lambda} {
			if tc.Kind == "" {
				tc.Kind = "constant"
			}
		}
		if p.Kind == "normal" {
			if p.T1.Kind == "constant" && p.T1.Value == 0 {
				p.T1.Value = 0.5
			}
			if p.T2.Kind == "constant" && p.T2.Value == 0 {
				p.T2.Value = 0.6
			}
		}
		if p.Kind == "multiplier" && p.Lambda.Kind == "constant" && p.Lambda.Value == 0 {
			p.Lambda.Value = 2 * math.Log(1.5)
		}
	}
}

// Validate runs the struct-tag checks and the cross-field checks.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig naming the first problem.
func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	names := make(map[string]int, len(c.Parameters))
	for _, p := range c.Parameters {
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidConfig, p.Name)
		}
		names[p.Name] = len(p.Values)

		iv, err := p.Domain.Interval()
		if err != nil {
			return fmt.Errorf("%w: parameter %q: %w", ErrInvalidConfig, p.Name, err)
		}
		for i, v := range p.Values {
			if !iv.Contains(v) {
				return fmt.Errorf("%w: parameter %q value %d (%g) outside %s", ErrInvalidConfig, p.Name, i, v, iv)
			}
		}
	}

	for _, pr := range c.Model.Priors {
		if _, ok := names[pr.Parameter]; !ok {
			return fmt.Errorf("%w: prior on unknown parameter %q", ErrInvalidConfig, pr.Parameter)
		}
	}
	if l := c.Model.Likelihood; l != nil {
		for _, ref := range []string{l.Mu, l.Sigma} {
			n, ok := names[ref]
			if !ok {
				return fmt.Errorf("%w: likelihood refers to unknown parameter %q", ErrInvalidConfig, ref)
			}
			if n != 1 {
				return fmt.Errorf("%w: likelihood parameter %q must be scalar", ErrInvalidConfig, ref)
			}
		}
	}
	if len(c.Model.Priors) == 0 && c.Model.Likelihood == nil {
		return fmt.Errorf("%w: model has no priors and no likelihood", ErrInvalidConfig)
	}
	if c.Chain.Iterations > 0 && c.Chain.Thinning > c.Chain.Iterations {
		return fmt.Errorf("%w: thinning %d exceeds iterations %d", ErrInvalidConfig, c.Chain.Thinning, c.Chain.Iterations)
	}
	return nil
}
