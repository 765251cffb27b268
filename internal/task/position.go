package task

import "math"

// minGap is the smallest position gap considered safe for midpoint
// insertion. Below this, repeated halving runs out of float64 precision
// and neighbors must be rebalanced first.
const minGap = 1e-6

// Between returns the midpoint position between two neighbors. It reports
// false when the gap is too small to split, signaling that the caller
// should rebalance before retrying.
func Between(before, after float64) (float64, bool) {
	if after-before < minGap {
		return 0, false
	}
	mid := before + (after-before)/2
	if mid <= before || mid >= after {
		return 0, false
	}
	return mid, true
}

// isFinite reports whether f is a usable position value.
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
