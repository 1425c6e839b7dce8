// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)

	p.Title("ignored")
	p.Success("done")
	p.Warning("slow")
	p.Error("failed")
	p.Box("Report", "line one\nline two\n")
	p.Table([]string{"column", "mean"}, [][]string{{"mu", "5.01"}, {"sigma", "0.98"}})

	want := "OK: done\n" +
		"WARN: slow\n" +
		"ERROR: failed\n" +
		"line one\nline two\n" +
		"column\tmean\n" +
		"mu\t5.01\n" +
		"sigma\t0.98\n"
	if got := buf.String(); got != want {
		t.Errorf("plain output =\n%q\nwant\n%q", got, want)
	}
}

func TestPrinter_Styled(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	p.Title("MCMC")
	p.Box("Report", "iterations 100")
	p.Table([]string{"column", "mean"}, [][]string{{"mu", "5.01"}})

	out := buf.String()
	for _, want := range []string{"MCMC", "Report", "iterations 100", "column", "mu", "5.01", "╭"} {
		if !strings.Contains(out, want) {
			t.Errorf("styled output missing %q:\n%s", want, out)
		}
	}
}
