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
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianMCMC/pkg/ux"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/sampler"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/storage/badger"
)

// inspectOptions are the flags of `mcmc inspect`.
type inspectOptions struct {
	*rootOptions
	dbPath string
	runID  string
	burnIn int
}

func newInspectCmd(root *rootOptions) *cobra.Command {
	opts := &inspectOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List stored runs or summarize one",
		Long: `Without --run, list every run in the sample store. With --run, print
per-column posterior summaries of that run's samples.

Examples:
  mcmc inspect --db ./samples
  mcmc inspect --db ./samples --run 3f2a9c1b7d40 --burn-in 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return inspect(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Sample store directory")
	cmd.Flags().StringVar(&opts.runID, "run", "", "Run ID to summarize")
	cmd.Flags().IntVar(&opts.burnIn, "burn-in", 0, "Discard samples before this iteration")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func inspect(ctx context.Context, opts *inspectOptions, out io.Writer) error {
	cfg := badger.DefaultConfig()
	cfg.Path = opts.dbPath
	cfg.GCInterval = 0
	db, err := badger.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	p := ux.NewPrinter(out, opts.plain)
	if opts.runID == "" {
		return listRuns(ctx, db, p)
	}
	return summarizeRun(ctx, db, opts.runID, opts.burnIn, p)
}

func listRuns(ctx context.Context, db *badger.DB, p *ux.Printer) error {
	runs, err := db.ListRuns(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.RunID,
			r.StartedAt.Format(time.RFC3339),
			strconv.Itoa(r.Samples),
			strconv.Itoa(len(r.Columns)),
		}
	}
	p.Title("Runs")
	p.Table([]string{"run_id", "started_at", "samples", "columns"}, rows)
	return nil
}

func summarizeRun(ctx context.Context, db *badger.DB, runID string, burnIn int, p *ux.Printer) error {
	meta, err := db.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	stored, err := db.ReadSamples(ctx, runID)
	if err != nil {
		return err
	}
	records := make([]sampler.Record, len(stored))
	for i, s := range stored {
		records[i] = sampler.Record{Iteration: s.Iteration, Values: s.Values}
	}

	summaries := sampler.Summarize(meta.Columns, records, burnIn)
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		if s.Column == "iteration" {
			continue
		}
		rows = append(rows, []string{
			s.Column,
			strconv.Itoa(s.N),
			formatStat(s.Mean),
			formatStat(s.StdDev),
			formatStat(s.Q025),
			formatStat(s.Median),
			formatStat(s.Q975),
		})
	}
	p.Title(fmt.Sprintf("Run %s (%d samples, burn-in %d)", runID, len(records), burnIn))
	p.Table([]string{"column", "n", "mean", "sd", "2.5%", "median", "97.5%"}, rows)
	return nil
}

func formatStat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
