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
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/AleutianAI/AleutianMCMC/services/mcmc/chain"
)

// progressRefresh is how often the progress bar polls the chain.
const progressRefresh = 100 * time.Millisecond

type progressTickMsg time.Time

// progressDoneMsg tells the progress model the chain has returned.
type progressDoneMsg struct{}

// progressModel renders a live bar for a running chain.
type progressModel struct {
	status   func() chain.Status
	bar      progress.Model
	interval time.Duration
	last     chain.Status
	done     bool
}

func newProgressModel(status func() chain.Status, interval time.Duration) progressModel {
	return progressModel{
		status:   status,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		interval: interval,
		last:     status(),
	}
}

// Init implements tea.Model.
func (m progressModel) Init() tea.Cmd {
	return m.tick()
}

func (m progressModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

// Update implements tea.Model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case progressTickMsg:
		if m.done {
			return m, nil
		}
		m.last = m.status()
		return m, m.tick()
	case progressDoneMsg:
		m.last = m.status()
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m progressModel) View() string {
	frac := 0.0
	if m.last.Total > 0 {
		frac = float64(m.last.Iteration) / float64(m.last.Total)
	}
	view := fmt.Sprintf("%s %d/%d  logL %.6g  accepted %d",
		m.bar.ViewAs(frac), m.last.Iteration, m.last.Total, m.last.LogL, m.last.Accepted)
	if m.done {
		view += "\n"
	}
	return view
}

// runWithProgress calls run while a progress bar for mgr is drawn on w.
// The bar stops when run returns or ctx is cancelled.
func runWithProgress(ctx context.Context, w io.Writer, mgr *chain.Manager, logger *slog.Logger,
	run func() (*chain.Result, error)) (*chain.Result, error) {
	prog := tea.NewProgram(newProgressModel(mgr.Status, progressRefresh),
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(w),
		tea.WithoutSignalHandler(),
	)
	uiDone := make(chan error, 1)
	go func() {
		_, err := prog.Run()
		uiDone <- err
	}()

	res, err := run()
	prog.Send(progressDoneMsg{})
	if uiErr := <-uiDone; uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		logger.Warn("progress display failed", slog.String("error", uiErr.Error()))
	}
	return res, err
}
