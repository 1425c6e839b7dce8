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

import "errors"

var (
	// ErrChainHalted wraps any error that stops a run before its last iteration.
	ErrChainHalted = errors.New("chain halted")

	// ErrNilContext is returned when Run is given a nil context.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilRand is returned when Run is given a nil random source.
	ErrNilRand = errors.New("random source must not be nil")

	// ErrAlreadyRunning is returned when Run is called on a running manager.
	ErrAlreadyRunning = errors.New("chain is already running")

	// ErrInvalidSetup is returned by NewManager for missing components.
	ErrInvalidSetup = errors.New("invalid chain setup")

	// ErrNoModels is returned when no model contributes to the likelihood.
	ErrNoModels = errors.New("no models registered")
)
