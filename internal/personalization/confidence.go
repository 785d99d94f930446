// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package personalization

import (
	"math"
	"sort"
	"time"
)

// Shared confidence and decay math. Every score-producing component in the
// package goes through these helpers so the [0,1] clamping invariant holds
// in one place.

const secondsPerDay = 86400.0

// Clamp01 bounds v to [0,1]. NaN clamps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// WholeDays returns the interval between two instants in whole days,
// rounding total seconds rather than truncating. Truncation would turn a
// 6.9999-day gap (a 7-day cycle recorded with microsecond jitter) into 6
// days and skew every cycle statistic by one.
func WholeDays(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Seconds() / secondsPerDay))
}

// DaysSince returns fractional days elapsed from t to now.
func DaysSince(t, now time.Time) float64 {
	return now.Sub(t).Seconds() / secondsPerDay
}

// OrderCountConfidence maps a confirming-order count to a confidence score
// that saturates at 0.9 after ten orders.
func OrderCountConfidence(orderCount int) float64 {
	return math.Min(0.9, float64(orderCount)/10.0)
}

// CycleConfidence scores a reorder cycle: regular cycles (low variance
// relative to the mean) approach 1, erratic ones approach 0.
func CycleConfidence(meanDays, stdDevDays float64) float64 {
	if meanDays <= 0 {
		return 0
	}
	return Clamp01(1.0 - stdDevDays/meanDays)
}

// DecayWeight returns an exponential time-decay weight for a signal of the
// given age. halfLife controls how fast old signals fade; a signal exactly
// one half-life old weighs 0.5.
func DecayWeight(age time.Duration, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1.0
	}
	if age <= 0 {
		return 1.0
	}
	return math.Exp2(-age.Seconds() / halfLife.Seconds())
}

// FilterOutliers removes intervals larger than maxDays. The removed values
// stay in the caller's raw history; only the cycle statistics ignore them.
// Returns the kept intervals and the number removed.
func FilterOutliers(intervals []int, maxDays int) (kept []int, removed int) {
	kept = make([]int, 0, len(intervals))
	for _, d := range intervals {
		if d > maxDays {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	return kept, removed
}

// MeanStdDev computes the mean and population standard deviation of the
// given intervals. A single sample has an undefined spread, reported as 0.
func MeanStdDev(intervals []int) (mean, stdDev float64) {
	if len(intervals) == 0 {
		return 0, 0
	}
	sum := 0
	for _, d := range intervals {
		sum += d
	}
	mean = float64(sum) / float64(len(intervals))

	if len(intervals) < 2 {
		return mean, 0
	}
	var ss float64
	for _, d := range intervals {
		diff := float64(d) - mean
		ss += diff * diff
	}
	return mean, math.Sqrt(ss / float64(len(intervals)))
}

// QuantityMode returns the statistical mode of the given quantities. Ties
// resolve to the smallest quantity so the result is deterministic.
func QuantityMode(quantities []int) int {
	if len(quantities) == 0 {
		return 0
	}
	counts := make(map[int]int, len(quantities))
	for _, q := range quantities {
		counts[q]++
	}
	keys := make([]int, 0, len(counts))
	for q := range counts {
		keys = append(keys, q)
	}
	sort.Ints(keys)

	mode, best := keys[0], 0
	for _, q := range keys {
		if counts[q] > best {
			mode, best = q, counts[q]
		}
	}
	return mode
}
