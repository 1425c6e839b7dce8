// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proposal

import "errors"

var (
	// ErrInvalidTuning is returned when a tuning parameter's declared range is unusable.
	ErrInvalidTuning = errors.New("invalid tuning parameter range")

	// ErrInvalidWeights is returned for negative or all-zero sub-parameter weights.
	ErrInvalidWeights = errors.New("invalid sub-parameter weights")

	// ErrInvalidDomain is returned when the parameter domain cannot host the kernel.
	ErrInvalidDomain = errors.New("invalid domain for proposer")

	// ErrNilParameter is returned when a proposer is built without a parameter.
	ErrNilParameter = errors.New("parameter must not be nil")

	// ErrNoCache is returned by ClearCache/RestoreCache without a preceding Perturb.
	ErrNoCache = errors.New("proposer has no cached state")

	// ErrPerturbPending is returned by Perturb while the previous perturbation is unresolved.
	ErrPerturbPending = errors.New("previous perturbation not cleared or restored")
)
