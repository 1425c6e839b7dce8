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

import (
	"fmt"
	"math/rand/v2"
)

// cumulativeWeights normalizes weights over "perturb 1, 2, 3 ... sub-parameters".
//
// Only the first k weights are used. The last entry is forced to exactly 1.
func cumulativeWeights(weights []float64, k int) ([]float64, error) {
	m := min(len(weights), k)
	if m == 0 {
		return nil, fmt.Errorf("%w: no weights", ErrInvalidWeights)
	}
	cum := make([]float64, m)
	total := 0.0
	for i := 0; i < m; i++ {
		if weights[i] < 0 {
			return nil, fmt.Errorf("%w: weight %d is negative (%g)", ErrInvalidWeights, i, weights[i])
		}
		total += weights[i]
		cum[i] = total
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	for i := range cum {
		cum[i] /= total
	}
	cum[m-1] = 1.0
	return cum, nil
}

// chooseIndices picks which of k sub-parameters to perturb.
//
// The count is drawn from cum, then that many distinct indices are drawn
// uniformly without replacement.
func chooseIndices(rng *rand.Rand, cum []float64, k int) []int {
	m := len(cum)
	switch {
	case k == 1:
		return []int{0}
	case m == 1:
		return []int{rng.IntN(k)}
	case m == k && cum[m-2] == 0:
		all := make([]int, k)
		for i := range all {
			all[i] = i
		}
		return all
	}

	count := 1
	d := rng.Float64()
	for count < m && d > cum[count-1] {
		count++
	}

	pool := make([]int, k)
	for i := range pool {
		pool[i] = i
	}
	chosen := make([]int, count)
	for i := 0; i < count; i++ {
		j := rng.IntN(len(pool))
		chosen[i] = pool[j]
		pool = append(pool[:j], pool[j+1:]...)
	}
	return chosen
}
