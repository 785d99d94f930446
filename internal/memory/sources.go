// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
)

// Deriver exposes the engine's history-derived signals without pulling
// the whole engine into this package.
type Deriver interface {
	Derive(ctx context.Context, userID string, now time.Time) ([]personalization.UsualItem, []personalization.ReorderCycle, int)
}

// EventReader reads a user's raw interaction events, purchases and
// browsing alike. The history store satisfies it.
type EventReader interface {
	Events(ctx context.Context, userID string) ([]personalization.InteractionEvent, error)
}

// EngineSource surfaces usual items and reorder cycles computed by the
// personalization engine.
type EngineSource struct {
	deriver Deriver
}

// NewEngineSource creates the history-derived signal source.
func NewEngineSource(deriver Deriver) *EngineSource {
	return &EngineSource{deriver: deriver}
}

// Name implements SignalSource.
func (s *EngineSource) Name() string { return "engine" }

// Collect implements SignalSource.
func (s *EngineSource) Collect(ctx context.Context, userID, _ string) (*Signals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, cycles, orders := s.deriver.Derive(ctx, userID, time.Now().UTC())
	return &Signals{
		UsualItems: items,
		Cycles:     cycles,
		Orders:     orders,
	}, nil
}

// PreferenceSource derives brand and category affinities from the full
// interaction stream. Each event contributes its type's signal weight,
// decayed by age, and the per-dimension totals are normalized so the
// strongest affinity is 1.
type PreferenceSource struct {
	reader   EventReader
	halfLife time.Duration
}

// NewPreferenceSource creates the affinity source. halfLifeDays tunes
// how fast old interactions fade.
func NewPreferenceSource(reader EventReader, halfLifeDays float64) *PreferenceSource {
	return &PreferenceSource{
		reader:   reader,
		halfLife: time.Duration(halfLifeDays * 24 * float64(time.Hour)),
	}
}

// Name implements SignalSource.
func (s *PreferenceSource) Name() string { return "preferences" }

// Collect implements SignalSource.
func (s *PreferenceSource) Collect(ctx context.Context, userID, _ string) (*Signals, error) {
	events, err := s.reader.Events(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return &Signals{}, nil
	}

	now := time.Now().UTC()
	brands := make(map[string]float64)
	categories := make(map[string]float64)

	// Price tracking per category: what the user browsed versus what
	// they actually bought.
	type priceAgg struct {
		viewedSum, viewedN       float64
		purchasedSum, purchasedN float64
	}
	prices := make(map[string]*priceAgg)

	for i := range events {
		evt := &events[i]
		w := evt.EventType.SignalWeight() * personalization.DecayWeight(now.Sub(evt.Timestamp), s.halfLife)
		if w <= 0 {
			continue
		}
		if evt.Brand != "" {
			brands[evt.Brand] += w
		}
		if evt.Category != "" {
			categories[evt.Category] += w
		}
		if evt.Category != "" && evt.UnitPrice > 0 {
			agg := prices[evt.Category]
			if agg == nil {
				agg = &priceAgg{}
				prices[evt.Category] = agg
			}
			if evt.EventType == personalization.EventPurchase {
				agg.purchasedSum += evt.UnitPrice
				agg.purchasedN++
			} else {
				agg.viewedSum += evt.UnitPrice
				agg.viewedN++
			}
		}
	}

	sig := &Signals{
		BrandAffinities:    normalize(brands),
		CategoryAffinities: normalize(categories),
	}

	// A user who consistently buys cheaper than they browse is price
	// sensitive. The signal only exists when both sides are observed.
	var ratios []float64
	for _, agg := range prices {
		if agg.viewedN == 0 || agg.purchasedN == 0 {
			continue
		}
		viewed := agg.viewedSum / agg.viewedN
		purchased := agg.purchasedSum / agg.purchasedN
		if viewed > 0 {
			ratios = append(ratios, personalization.Clamp01((viewed-purchased)/viewed))
		}
	}
	if len(ratios) > 0 {
		var sum float64
		for _, r := range ratios {
			sum += r
		}
		sig.PriceSensitivity = sum / float64(len(ratios))
		sig.HasPriceSensitivity = true
	}

	return sig, nil
}

func normalize(weights map[string]float64) map[string]float64 {
	if len(weights) == 0 {
		return nil
	}
	var max float64
	for _, w := range weights {
		if w > max {
			max = w
		}
	}
	if max <= 0 {
		return nil
	}
	out := make(map[string]float64, len(weights))
	for k, w := range weights {
		out[k] = w / max
	}
	return out
}

// maxRelated bounds how many co-purchase neighbors are reported per sku.
const maxRelated = 3

// CoPurchaseSource mines the purchase history for products bought in
// the same order and reports the strongest pairings.
type CoPurchaseSource struct {
	reader EventReader
}

// NewCoPurchaseSource creates the co-purchase graph source.
func NewCoPurchaseSource(reader EventReader) *CoPurchaseSource {
	return &CoPurchaseSource{reader: reader}
}

// Name implements SignalSource.
func (s *CoPurchaseSource) Name() string { return "copurchase" }

// Collect implements SignalSource.
func (s *CoPurchaseSource) Collect(ctx context.Context, userID, _ string) (*Signals, error) {
	events, err := s.reader.Events(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Purchases sharing a timestamp form one order.
	orders := make(map[int64]map[string]bool)
	for i := range events {
		evt := &events[i]
		if evt.EventType != personalization.EventPurchase {
			continue
		}
		key := evt.Timestamp.UnixNano()
		if orders[key] == nil {
			orders[key] = make(map[string]bool)
		}
		orders[key][evt.ProductID] = true
	}

	counts := make(map[string]map[string]int)
	for _, skus := range orders {
		if len(skus) < 2 {
			continue
		}
		list := make([]string, 0, len(skus))
		for sku := range skus {
			list = append(list, sku)
		}
		for _, a := range list {
			for _, b := range list {
				if a == b {
					continue
				}
				if counts[a] == nil {
					counts[a] = make(map[string]int)
				}
				counts[a][b]++
			}
		}
	}

	if len(counts) == 0 {
		return &Signals{}, nil
	}

	related := make(map[string][]string, len(counts))
	for sku, neighbors := range counts {
		type pair struct {
			sku   string
			count int
		}
		pairs := make([]pair, 0, len(neighbors))
		for n, c := range neighbors {
			pairs = append(pairs, pair{sku: n, count: c})
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].count != pairs[j].count {
				return pairs[i].count > pairs[j].count
			}
			return pairs[i].sku < pairs[j].sku
		})
		top := make([]string, 0, maxRelated)
		for _, p := range pairs {
			if len(top) == maxRelated {
				break
			}
			top = append(top, p.sku)
		}
		related[sku] = top
	}

	return &Signals{Related: related}, nil
}

// ProfileSource serves externally managed preference data, dietary
// restrictions above all. Backed by an in-memory registry that the API
// layer updates.
type ProfileSource struct {
	mu       sync.RWMutex
	profiles map[string]personalization.UserPreferenceProfile
}

// NewProfileSource creates an empty profile registry.
func NewProfileSource() *ProfileSource {
	return &ProfileSource{
		profiles: make(map[string]personalization.UserPreferenceProfile),
	}
}

// Set stores or replaces a user's declared profile.
func (s *ProfileSource) Set(userID string, profile personalization.UserPreferenceProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = profile
}

// Name implements SignalSource.
func (s *ProfileSource) Name() string { return "profile" }

// Collect implements SignalSource.
func (s *ProfileSource) Collect(ctx context.Context, userID, _ string) (*Signals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	profile, ok := s.profiles[userID]
	s.mu.RUnlock()
	if !ok {
		return &Signals{}, nil
	}

	sig := &Signals{
		DietaryRestrictions: append([]string(nil), profile.DietaryRestrictions...),
	}
	// Declared affinities complement the derived ones; the aggregator
	// keeps the stronger value on collision.
	if len(profile.BrandAffinities) > 0 {
		sig.BrandAffinities = make(map[string]float64, len(profile.BrandAffinities))
		for k, v := range profile.BrandAffinities {
			sig.BrandAffinities[k] = personalization.Clamp01(v)
		}
	}
	if len(profile.CategoryAffinities) > 0 {
		sig.CategoryAffinities = make(map[string]float64, len(profile.CategoryAffinities))
		for k, v := range profile.CategoryAffinities {
			sig.CategoryAffinities[k] = personalization.Clamp01(v)
		}
	}
	return sig, nil
}
