// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command mcmc runs Markov chain Monte Carlo chains described by a config file.
//
// Usage:
//
//	mcmc run -c configs/normal-model.yaml
//	mcmc run -c run.yaml --tsv - --serve
//	mcmc validate -c run.yaml
//	mcmc inspect --db ./samples [--run ID] [--burn-in 100]
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	plain bool
}

// newRootCmd builds the command tree writing to stdout and stderr.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "mcmc",
		Short: "Run and inspect Markov chain Monte Carlo chains",
		Long: `Run Metropolis-Hastings or hill-climbing chains over a dependency graph
of parameters, priors and likelihoods described in a YAML or JSON file.

Commands:
  run       - Run a chain and write samples to the configured sinks
  validate  - Check a config and assemble the chain without running it
  inspect   - List stored runs or summarize one`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVar(&opts.plain, "plain", !isTerminal(stderr),
		"Plain tab-separated output without styling (default when stderr is not a terminal)")

	root.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
		newInspectCmd(opts),
	)
	return root
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
