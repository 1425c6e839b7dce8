// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schedule

import "errors"

var (
	// ErrInvalidBounds is returned when min > max, a value is outside [min, max], or a bound is NaN.
	ErrInvalidBounds = errors.New("invalid tuning bounds")

	// ErrInvalidSchedule is returned for non-positive intervals, factors or iteration counts.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrNilIteration is returned when a schedule needs an iteration counter and got nil.
	ErrNilIteration = errors.New("iteration counter must not be nil")
)
