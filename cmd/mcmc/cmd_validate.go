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
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianMCMC/pkg/logging"
	"github.com/AleutianAI/AleutianMCMC/pkg/ux"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/config"
	"github.com/AleutianAI/AleutianMCMC/services/mcmc/sampler"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a run configuration",
		Long: `Load the configuration, apply defaults and environment overrides,
then assemble the graph, proposers and models without running the chain.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return validateConfig(configPath, root.plain, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Run configuration (YAML or JSON)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func validateConfig(path string, plain bool, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	lg, err := logging.New(logging.Config{Quiet: true})
	if err != nil {
		return err
	}
	defer lg.Close()

	asm, err := config.Build(cfg, lg.Slog())
	if err != nil {
		return err
	}

	p := ux.NewPrinter(out, plain)
	p.Success(fmt.Sprintf("%s: %d parameters, %d models, %d graph nodes",
		path, len(asm.Parameters), len(asm.Models), asm.Graph.NodeCount()))
	if !plain {
		p.Box("Columns", strings.Join(sampler.Columns(asm.Sampleables()), "\n"))
	}
	return nil
}
