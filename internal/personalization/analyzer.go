// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package personalization

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// QuantityClass classifies how stable a sku's purchased quantity is.
type QuantityClass string

const (
	// QuantityConsistent means every order had the same quantity.
	QuantityConsistent QuantityClass = "consistent"
	// QuantitySlightlyVariable means quantities deviate by at most one unit.
	QuantitySlightlyVariable QuantityClass = "slightly_variable"
	// QuantityVariable means quantities deviate by more than one unit.
	QuantityVariable QuantityClass = "variable"
)

// QuantityPattern is the per-sku quantity statistic.
type QuantityPattern struct {
	Sku string `json:"sku"`

	// Usual is the statistical mode of purchased quantities.
	Usual int `json:"usual"`

	Classification QuantityClass `json:"classification"`
}

// CycleStat is the per-sku purchase cadence derived from order history.
type CycleStat struct {
	Sku              string    `json:"sku"`
	MeanIntervalDays float64   `json:"mean_interval_days"`
	StdDevDays       float64   `json:"std_dev_days"`
	SampleCount      int       `json:"sample_count"`
	LastOrdered      time.Time `json:"last_ordered"`

	// Irregular is set when every observed interval exceeded the
	// seasonal outlier window, leaving no usable cycle.
	Irregular bool `json:"irregular,omitempty"`

	// OutliersRemoved counts intervals excluded as seasonal gaps. The
	// raw history keeps them; only these statistics ignore them.
	OutliersRemoved int `json:"outliers_removed,omitempty"`
}

// Analysis is the full output of one pattern-mining pass.
type Analysis struct {
	// TotalOrders is the number of distinct orders in the history.
	TotalOrders int

	// Frequencies maps sku to orders_containing_sku / total_orders.
	Frequencies map[string]float64

	// OrderCounts maps sku to the number of orders containing it.
	OrderCounts map[string]int

	// QuantityPatterns maps sku to its quantity statistic.
	QuantityPatterns map[string]QuantityPattern

	// CycleStats maps sku to its purchase cadence. Skus with fewer than
	// the minimum order count have no entry: that is insufficient data,
	// not an error.
	CycleStats map[string]CycleStat

	// LastOrdered maps sku to its most recent purchase time.
	LastOrdered map[string]time.Time

	// SkippedEvents counts malformed events dropped during the pass.
	SkippedEvents int
}

// orderLine is one purchase line item within an order.
type orderLine struct {
	ts       time.Time
	quantity int
}

// PatternAnalyzer mines frequency, quantity, and cycle statistics from a
// user's purchase history. It is pure and stateless: safe for concurrent
// use across requests.
type PatternAnalyzer struct {
	cfg    PatternConfig
	logger zerolog.Logger
}

// NewPatternAnalyzer creates an analyzer with the given thresholds.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPatternAnalyzer(cfg PatternConfig, logger zerolog.Logger) *PatternAnalyzer {
	return &PatternAnalyzer{
		cfg:    cfg,
		logger: logger.With().Str("component", "pattern_analyzer").Logger(),
	}
}

// Analyze derives frequencies, quantity patterns, and cycle statistics
// from the given events. Only purchase events participate; malformed
// events are skipped, counted, and logged, never fatal. An empty history
// yields an empty Analysis, not an error.
func (a *PatternAnalyzer) Analyze(history []InteractionEvent) *Analysis {
	out := &Analysis{
		Frequencies:      make(map[string]float64),
		OrderCounts:      make(map[string]int),
		QuantityPatterns: make(map[string]QuantityPattern),
		CycleStats:       make(map[string]CycleStat),
		LastOrdered:      make(map[string]time.Time),
	}

	// Group purchase line items into orders. Lines recorded in the same
	// checkout share a timestamp.
	orders := make(map[int64]map[string]bool) // order ts -> set of skus
	lines := make(map[string][]orderLine)     // sku -> purchase lines

	for i := range history {
		ev := &history[i]
		if ev.EventType != EventPurchase {
			continue
		}
		if err := ev.Validate(); err != nil {
			out.SkippedEvents++
			a.logger.Debug().
				Str("user_id", ev.UserID).
				Str("product_id", ev.ProductID).
				Time("timestamp", ev.Timestamp).
				Msg("skipping malformed purchase event")
			continue
		}

		key := ev.Timestamp.UnixNano()
		if orders[key] == nil {
			orders[key] = make(map[string]bool)
		}
		orders[key][ev.ProductID] = true

		qty := ev.Quantity
		if qty == 0 {
			qty = 1
		}
		lines[ev.ProductID] = append(lines[ev.ProductID], orderLine{ts: ev.Timestamp, quantity: qty})

		if ev.Timestamp.After(out.LastOrdered[ev.ProductID]) {
			out.LastOrdered[ev.ProductID] = ev.Timestamp
		}
	}

	out.TotalOrders = len(orders)
	if out.TotalOrders == 0 {
		return out
	}

	for _, skus := range orders {
		for sku := range skus {
			out.OrderCounts[sku]++
		}
	}
	for sku, count := range out.OrderCounts {
		out.Frequencies[sku] = float64(count) / float64(out.TotalOrders)
	}

	for sku, skuLines := range lines {
		out.QuantityPatterns[sku] = quantityPattern(sku, skuLines)

		if out.OrderCounts[sku] < a.cfg.MinOrderCount {
			// Insufficient data for a cycle; not an error.
			continue
		}
		if stat, ok := a.cycleStat(sku, skuLines, out.LastOrdered[sku]); ok {
			out.CycleStats[sku] = stat
		}
	}

	if out.SkippedEvents > 0 {
		a.logger.Info().
			Int("skipped", out.SkippedEvents).
			Int("total_orders", out.TotalOrders).
			Msg("analysis completed with malformed events skipped")
	}

	return out
}

// quantityPattern computes the mode and variability class for one sku.
func quantityPattern(sku string, skuLines []orderLine) QuantityPattern {
	quantities := make([]int, len(skuLines))
	minQ, maxQ := skuLines[0].quantity, skuLines[0].quantity
	for i, l := range skuLines {
		quantities[i] = l.quantity
		if l.quantity < minQ {
			minQ = l.quantity
		}
		if l.quantity > maxQ {
			maxQ = l.quantity
		}
	}

	class := QuantityVariable
	switch maxQ - minQ {
	case 0:
		class = QuantityConsistent
	case 1:
		class = QuantitySlightlyVariable
	}

	return QuantityPattern{
		Sku:            sku,
		Usual:          QuantityMode(quantities),
		Classification: class,
	}
}

// cycleStat computes interval statistics for one sku. Returns false when
// the sku has no usable consecutive intervals at all.
func (a *PatternAnalyzer) cycleStat(sku string, skuLines []orderLine, lastOrdered time.Time) (CycleStat, bool) {
	// Distinct order timestamps, sorted ascending.
	seen := make(map[int64]time.Time, len(skuLines))
	for _, l := range skuLines {
		seen[l.ts.UnixNano()] = l.ts
	}
	stamps := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	if len(stamps) < 2 {
		return CycleStat{}, false
	}

	intervals := make([]int, 0, len(stamps)-1)
	for i := 1; i < len(stamps); i++ {
		intervals = append(intervals, WholeDays(stamps[i-1], stamps[i]))
	}

	kept, removed := FilterOutliers(intervals, a.cfg.SeasonalOutlierDays)
	if len(kept) == 0 {
		// Every interval was a seasonal gap: no cycle available.
		return CycleStat{
			Sku:             sku,
			SampleCount:     0,
			LastOrdered:     lastOrdered,
			Irregular:       true,
			OutliersRemoved: removed,
		}, true
	}

	mean, stdDev := MeanStdDev(kept)
	return CycleStat{
		Sku:              sku,
		MeanIntervalDays: mean,
		StdDevDays:       stdDev,
		SampleCount:      len(kept),
		LastOrdered:      lastOrdered,
		OutliersRemoved:  removed,
	}, true
}
