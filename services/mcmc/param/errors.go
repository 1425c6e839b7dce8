// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package param

import "errors"

var (
	// ErrInvalidInterval is returned for empty, NaN or non-finite degenerate intervals.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrOutsideDomain is returned when a value lies outside the parameter domain.
	ErrOutsideDomain = errors.New("value outside parameter domain")

	// ErrIndexOutOfRange is returned for a sub-parameter index that does not exist.
	ErrIndexOutOfRange = errors.New("sub-parameter index out of range")

	// ErrEmptyParameter is returned when a vector parameter has no elements.
	ErrEmptyParameter = errors.New("parameter must have at least one sub-parameter")
)
