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

// ReorderPredictor turns cycle statistics into due dates, urgency bands,
// and bundle suggestions. Pure and stateless.
type ReorderPredictor struct {
	cfg ReorderConfig
}

// NewReorderPredictor creates a predictor with the given thresholds.
func NewReorderPredictor(cfg ReorderConfig) *ReorderPredictor {
	return &ReorderPredictor{cfg: cfg}
}

// Predict computes a reorder cycle for every sku with usable statistics.
// Irregular skus (every interval was a seasonal gap) and single-sample
// degenerate cycles produce no prediction: insufficient data, not an
// error. Output is sorted by sku for determinism.
func (p *ReorderPredictor) Predict(stats map[string]CycleStat, now time.Time) []ReorderCycle {
	cycles := make([]ReorderCycle, 0, len(stats))

	skus := make([]string, 0, len(stats))
	for sku := range stats {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	for _, sku := range skus {
		stat := stats[sku]
		if stat.Irregular || stat.SampleCount == 0 || stat.MeanIntervalDays <= 0 {
			continue
		}

		cycle := ReorderCycle{
			Sku:              sku,
			MeanIntervalDays: stat.MeanIntervalDays,
			StdDevDays:       stat.StdDevDays,
			SampleCount:      stat.SampleCount,
			LastOrdered:      stat.LastOrdered,
			Confidence:       CycleConfidence(stat.MeanIntervalDays, stat.StdDevDays),
		}

		due := stat.LastOrdered.Add(daysToDuration(stat.MeanIntervalDays))
		if adjusted, ok := p.holidayAdjust(due); ok {
			due = adjusted
			cycle.HolidayAdjusted = true
		}
		cycle.PredictedDueDate = due
		cycle.Urgency = p.urgency(stat, due, now)

		cycles = append(cycles, cycle)
	}

	return cycles
}

// urgency classifies one cycle. The bands are strict, non-overlapping,
// and evaluated in order: overdue, due_now, due_soon, upcoming.
func (p *ReorderPredictor) urgency(stat CycleStat, due, now time.Time) Urgency {
	daysSince := DaysSince(stat.LastOrdered, now)
	daysUntil := DaysSince(now, due)

	switch {
	case daysSince > stat.MeanIntervalDays*p.cfg.OverdueMultiplier:
		return UrgencyOverdue
	case daysSince >= stat.MeanIntervalDays:
		return UrgencyDueNow
	case daysUntil <= float64(p.cfg.BufferDays):
		return UrgencyDueSoon
	default:
		return UrgencyUpcoming
	}
}

// holidayAdjust shifts a due date earlier by the holiday window when it
// lands within that window of a known holiday.
func (p *ReorderPredictor) holidayAdjust(due time.Time) (time.Time, bool) {
	if p.cfg.HolidayWindowDays <= 0 || len(p.cfg.Holidays) == 0 {
		return due, false
	}
	window := float64(p.cfg.HolidayWindowDays)
	for _, h := range p.cfg.Holidays {
		if math.Abs(DaysSince(h, due)) <= window {
			return due.AddDate(0, 0, -p.cfg.HolidayWindowDays), true
		}
	}
	return due, false
}

// SuggestBundles groups cycles whose predicted due dates fall within the
// bundle tolerance of each other. Groups of one are not bundles. The
// grouping is greedy over due-date order, anchored at each group's
// earliest date, so results are deterministic.
func (p *ReorderPredictor) SuggestBundles(cycles []ReorderCycle) []Bundle {
	if len(cycles) < 2 {
		return nil
	}

	sorted := make([]ReorderCycle, len(cycles))
	copy(sorted, cycles)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].PredictedDueDate.Equal(sorted[j].PredictedDueDate) {
			return sorted[i].PredictedDueDate.Before(sorted[j].PredictedDueDate)
		}
		return sorted[i].Sku < sorted[j].Sku
	})

	tolerance := float64(p.cfg.BundleToleranceDays)
	var bundles []Bundle
	var group []ReorderCycle

	flush := func() {
		if len(group) >= 2 {
			skus := make([]string, len(group))
			for i, c := range group {
				skus[i] = c.Sku
			}
			sort.Strings(skus)
			bundles = append(bundles, Bundle{
				Skus:     skus,
				DueDate:  group[0].PredictedDueDate,
				SpanDays: DaysSince(group[0].PredictedDueDate, group[len(group)-1].PredictedDueDate),
			})
		}
		group = group[:0]
	}

	for _, c := range sorted {
		if len(group) > 0 && DaysSince(group[0].PredictedDueDate, c.PredictedDueDate) > tolerance {
			flush()
		}
		group = append(group, c)
	}
	flush()

	return bundles
}

// Bucket splits cycles into the four urgency bands of the suggestion
// result, preserving the predictor's sku order within each band.
func Bucket(userID string, cycles []ReorderCycle, bundles []Bundle) *ReorderSuggestionResult {
	res := &ReorderSuggestionResult{
		UserID:   userID,
		DueNow:   []ReorderCycle{},
		DueSoon:  []ReorderCycle{},
		Upcoming: []ReorderCycle{},
		Overdue:  []ReorderCycle{},
		Bundles:  bundles,
	}
	for _, c := range cycles {
		switch c.Urgency {
		case UrgencyOverdue:
			res.Overdue = append(res.Overdue, c)
		case UrgencyDueNow:
			res.DueNow = append(res.DueNow, c)
		case UrgencyDueSoon:
			res.DueSoon = append(res.DueSoon, c)
		default:
			res.Upcoming = append(res.Upcoming, c)
		}
	}
	return res
}

// daysToDuration converts fractional days to a duration without losing
// sub-day precision.
func daysToDuration(days float64) time.Duration {
	return time.Duration(days * secondsPerDay * float64(time.Second))
}
