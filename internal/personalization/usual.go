// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package personalization

import "sort"

// UsualItemDetector thresholds pattern-analysis output into the user's
// usual basket. Pure and stateless.
type UsualItemDetector struct {
	cfg PatternConfig
}

// NewUsualItemDetector creates a detector with the given thresholds.
func NewUsualItemDetector(cfg PatternConfig) *UsualItemDetector {
	return &UsualItemDetector{cfg: cfg}
}

// Detect returns the usual basket mined from the analysis. A sku
// qualifies iff it appears in at least MinOrderCount orders and its order
// frequency meets UsualThreshold (boundary inclusive).
//
// The result is sorted by frequency descending, ties broken by order
// count descending, then by sku ascending, so output is deterministic.
// Zero history yields an empty slice; downstream renders a "not enough
// history yet" state rather than failing.
func (d *UsualItemDetector) Detect(analysis *Analysis) []UsualItem {
	items := make([]UsualItem, 0, len(analysis.Frequencies))
	if analysis.TotalOrders == 0 {
		return items
	}

	for sku, freq := range analysis.Frequencies {
		count := analysis.OrderCounts[sku]
		if count < d.cfg.MinOrderCount || freq < d.cfg.UsualThreshold {
			continue
		}
		items = append(items, UsualItem{
			Sku:           sku,
			UsualQuantity: analysis.QuantityPatterns[sku].Usual,
			Frequency:     Clamp01(freq),
			Confidence:    OrderCountConfidence(count),
			OrderCount:    count,
			LastOrdered:   analysis.LastOrdered[sku],
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Frequency != items[j].Frequency {
			return items[i].Frequency > items[j].Frequency
		}
		if items[i].OrderCount != items[j].OrderCount {
			return items[i].OrderCount > items[j].OrderCount
		}
		return items[i].Sku < items[j].Sku
	})

	return items
}

// BasketConfidence summarizes a basket into one confidence score: the
// mean of the item confidences, zero for an empty basket.
func BasketConfidence(items []UsualItem) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, it := range items {
		sum += it.Confidence
	}
	return Clamp01(sum / float64(len(items)))
}
