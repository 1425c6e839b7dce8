// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianMCMC/pkg/logging"
	"github.com/AleutianAI/AleutianMCMC/pkg/ux"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/chain"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/config"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/sampler"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/server"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/storage/badger"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/telemetry"
)

// runOptions are the flags of `mcmc run`.
type runOptions struct {
	*rootOptions
	configPath string
	tsv        string
	badgerPath string
	serve      bool
	addr       string
	quiet      bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a chain",
		Long: `Run the chain described by --config.

Samples go to every sink the config enables. --tsv and --db override the
config's TSV path and sample store. With --serve, chain status and metrics
are served over HTTP until the chain finishes. On a terminal a progress bar
is drawn unless --plain or --quiet is set.

Examples:
  mcmc run -c configs/normal-model.yaml
  mcmc run -c run.yaml --tsv - --quiet > samples.tsv
  mcmc run -c run.yaml --serve --addr :12230`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChain(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Run configuration (YAML or JSON)")
	cmd.Flags().StringVar(&opts.tsv, "tsv", "", "Write samples as TSV to this path, or - for stdout")
	cmd.Flags().StringVar(&opts.badgerPath, "db", "", "Persist samples to this sample store directory")
	cmd.Flags().BoolVar(&opts.serve, "serve", false, "Serve chain status and metrics while running")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address for --serve")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Skip the pre-run and post-run reports")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// runChain loads, assembles and runs one chain.
func runChain(ctx context.Context, opts *runOptions, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.tsv != "" {
		cfg.Sinks.TSV = opts.tsv
	}
	if opts.badgerPath != "" {
		cfg.Sinks.Badger.Path = opts.badgerPath
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}

	lg, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	defer lg.Close()
	logger := lg.Slog()

	prov, err := telemetry.Init(ctx, telemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := prov.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	asm, err := config.Build(cfg, logger)
	if err != nil {
		return err
	}

	sink, closeSinks, err := openSinks(cfg.Sinks, stdout, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	setup := asm.Setup(cfg)
	setup.Sink = sink
	setup.Logger = logger
	mgr, err := chain.NewManager(setup)
	if err != nil {
		if sink != nil {
			_ = sink.Close()
		}
		return err
	}

	p := ux.NewPrinter(stderr, opts.plain)
	if !opts.quiet {
		p.Box("Before", mgr.Info(""))
	}

	rng := rand.New(rand.NewPCG(cfg.Chain.Seed, 0))
	var res *chain.Result
	run := func() (*chain.Result, error) {
		if opts.serve {
			return runServed(ctx, mgr, rng, cfg, prov.MetricsHandler(), logger)
		}
		return mgr.Run(ctx, rng)
	}
	if opts.plain || opts.quiet {
		res, err = run()
	} else {
		res, err = runWithProgress(ctx, stderr, mgr, logger, run)
	}

	if !opts.quiet && res != nil {
		p.Box("After", mgr.Info(""))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) && res != nil {
			p.Warning(fmt.Sprintf("run %s interrupted after %d iterations", res.RunID, res.Iterations))
		}
		return err
	}
	p.Success(fmt.Sprintf("run %s: %d iterations, %d samples, %d accepted, log-likelihood %g",
		res.RunID, res.Iterations, res.Samples, res.Accepted, res.FinalLogL))
	return nil
}

// runServed runs the chain and the status server together. The server stops
// when the chain finishes; a server failure cancels the chain.
func runServed(ctx context.Context, mgr *chain.Manager, rng *rand.Rand, cfg config.RunConfig, metrics http.Handler, logger *slog.Logger) (*chain.Result, error) {
	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr,
		ServiceName:    cfg.Telemetry.ServiceName,
		Debug:          cfg.Logging.Level == "debug",
		MetricsHandler: metrics,
	}, mgr, logger)

	var res *chain.Result
	g.Go(func() error {
		return srv.Run(srvCtx)
	})
	g.Go(func() error {
		defer stopServer()
		var err error
		res, err = mgr.Run(gctx, rng)
		return err
	})
	err := g.Wait()
	return res, err
}

// newLogger builds the CLI logger from the logging section.
func newLogger(cfg config.LoggingConfig, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		File:    cfg.File,
		JSON:    cfg.JSON,
		Service: "mcmc",
		Output:  stderr,
	})
}

// telemetryConfig maps the telemetry section onto telemetry.Config.
func telemetryConfig(tc config.TelemetryConfig) telemetry.Config {
	out := telemetry.DefaultConfig()
	if tc.ServiceName != "" {
		out.ServiceName = tc.ServiceName
	}
	if tc.TraceExporter != "" {
		out.Traces = telemetry.Exporter(tc.TraceExporter)
	}
	if tc.MetricsExporter != "" {
		out.Metrics = telemetry.Exporter(tc.MetricsExporter)
	}
	if tc.OTLPEndpoint != "" {
		out.OTLPEndpoint = tc.OTLPEndpoint
	}
	return out
}

// openSinks opens every enabled sink.
//
// Outputs:
//
//	sampler.Sink - Nil when no sink is enabled.
//	func() - Releases stores the sinks do not own. Always non-nil.
//	error - Non-nil if any sink cannot be opened; already opened ones are released.
func openSinks(sc config.SinksConfig, stdout io.Writer, logger *slog.Logger) (sampler.Sink, func(), error) {
	var sinks []sampler.Sink
	var closers []func()
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch sc.TSV {
	case "":
	case "-":
		sinks = append(sinks, sampler.NewTSVSink(unclosable{stdout}))
	default:
		f, err := os.Create(sc.TSV)
		if err != nil {
			return nil, release, fmt.Errorf("open tsv output: %w", err)
		}
		sinks = append(sinks, sampler.NewTSVSink(f))
	}

	if sc.Badger.Path != "" {
		bcfg := badger.DefaultConfig()
		bcfg.Path = sc.Badger.Path
		bcfg.Logger = logger
		db, err := badger.Open(bcfg)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			release()
			return nil, func() {}, fmt.Errorf("open sample store: %w", err)
		}
		closers = append(closers, func() {
			if err := db.Close(); err != nil {
				logger.Warn("close sample store failed", slog.String("error", err.Error()))
			}
		})
		sinks = append(sinks, sampler.NewBadgerSink(db, sc.Badger.BatchSize))
	}

	if sc.Influx.Enabled {
		sinks = append(sinks, sampler.NewInfluxSink(sampler.InfluxConfig{
			URL:         sc.Influx.URL,
			Token:       sc.Influx.Token,
			Org:         sc.Influx.Org,
			Bucket:      sc.Influx.Bucket,
			Measurement: sc.Influx.Measurement,
			BatchSize:   sc.Influx.BatchSize,
		}))
	}

	switch len(sinks) {
	case 0:
		return nil, release, nil
	case 1:
		return sinks[0], release, nil
	default:
		return sampler.NewMultiSink(sinks...), release, nil
	}
}

// unclosable hides Close so TSVSink leaves stdout open.
type unclosable struct {
	io.Writer
}
