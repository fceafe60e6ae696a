// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

package features

// singleExponential returns the final smoothed level of the series under
// single exponential smoothing with the given alpha:
//
//	s[0] = x[0]
//	s[t] = alpha*x[t] + (1-alpha)*s[t-1]
//
// Callers must ensure the series is non-empty; Compute gates this behind its
// minimum-observation precondition.
func singleExponential(series []float64, alpha float64) float64 {
	level := series[0]
	for _, x := range series[1:] {
		level = alpha*x + (1-alpha)*level
	}
	return level
}
