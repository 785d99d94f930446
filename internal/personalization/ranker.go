// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package personalization

import "sort"

// Ranker reorders an externally produced candidate list using a
// personalization context. It never originates candidates and never
// writes back to history; annotating each item with its boost reasons is
// the only mutation it performs (on copies).
//
// Determinism: identical (candidates, context) input always yields the
// same output ordering. Scores are combined with a stable sort, so ties
// preserve the original relative order.
type Ranker struct {
	cfg RankingConfig
}

// NewRanker creates a ranker with the given weighting parameters.
func NewRanker(cfg RankingConfig) *Ranker {
	return &Ranker{cfg: cfg}
}

// Rerank produces the personalized ordering of candidates.
//
// When the context's data quality is below MinConfidence the candidates
// pass through unchanged: personalization is suppressed rather than
// applied on weak evidence. Otherwise each candidate's baseline relevance
// is scaled by brand, category, usual-basket, and price-sensitivity
// factors, and candidates violating an active dietary restriction are
// excluded outright.
func (r *Ranker) Rerank(candidates []Product, pctx *PersonalizationContext) *RerankedList {
	if pctx == nil || pctx.DataQualityScore < r.cfg.MinConfidence {
		items := make([]Product, len(candidates))
		copy(items, candidates)
		for i := range items {
			items[i].Score = items[i].Relevance
		}
		quality := 0.0
		if pctx != nil {
			quality = pctx.DataQualityScore
		}
		return &RerankedList{
			Items:            items,
			Personalized:     false,
			DataQualityScore: quality,
		}
	}

	usual := make(map[string]bool, len(pctx.UsualItems))
	for _, it := range pctx.UsualItems {
		usual[it.Sku] = true
	}
	categoryMeans := categoryMeanPrices(candidates)

	items := make([]Product, 0, len(candidates))
	excluded := 0
	for i := range candidates {
		c := candidates[i] // copy; the caller's slice is never mutated

		if pctx.Preferences.Restricted(c.DietaryTags) {
			excluded++
			continue
		}

		score := c.Relevance
		c.BoostReasons = nil

		if usual[c.Sku] {
			score *= r.cfg.FrequentBoost
			c.BoostReasons = append(c.BoostReasons, ReasonFrequentlyPurchased)
		}

		if aff, ok := pctx.Preferences.BrandAffinities[c.Brand]; ok && aff >= r.cfg.MinBrandAffinity {
			score *= r.cfg.BrandBoost
			c.BoostReasons = append(c.BoostReasons, ReasonPreferredBrand)
		}

		if aff := pctx.Preferences.CategoryAffinities[c.Category]; aff > 0 {
			score *= 1.0 + r.cfg.CategoryWeight*Clamp01(aff)
			c.BoostReasons = append(c.BoostReasons, ReasonPreferredCategory)
		}

		if factor := r.priceFactor(c, categoryMeans, pctx.Preferences.PriceSensitivity); factor != 1.0 {
			score *= factor
			if factor > 1.0 {
				c.BoostReasons = append(c.BoostReasons, ReasonPriceMatch)
			}
		}

		c.Score = score
		items = append(items, c)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	return &RerankedList{
		Items:            items,
		Personalized:     true,
		Excluded:         excluded,
		DataQualityScore: pctx.DataQualityScore,
	}
}

// priceFactor reweights a candidate against the mean price of its own
// category within the candidate list. Higher price sensitivity moves
// cheaper-than-average products up and pricier ones down, proportionally
// to their relative distance from the mean, capped at PriceWeight in
// either direction. No hard price cutoff.
func (r *Ranker) priceFactor(c Product, categoryMeans map[string]float64, sensitivity float64) float64 {
	if sensitivity <= 0 || c.Price <= 0 {
		return 1.0
	}
	mean, ok := categoryMeans[c.Category]
	if !ok || mean <= 0 {
		return 1.0
	}

	// Relative distance below (positive) or above (negative) the mean.
	rel := (mean - c.Price) / mean
	if rel > 1 {
		rel = 1
	}
	if rel < -1 {
		rel = -1
	}

	return 1.0 + Clamp01(sensitivity)*r.cfg.PriceWeight*rel
}

// categoryMeanPrices computes the mean price per category across the
// candidate list, ignoring unpriced candidates.
func categoryMeanPrices(candidates []Product) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i := range candidates {
		if candidates[i].Price <= 0 {
			continue
		}
		sums[candidates[i].Category] += candidates[i].Price
		counts[candidates[i].Category]++
	}
	means := make(map[string]float64, len(sums))
	for cat, sum := range sums {
		means[cat] = sum / float64(counts[cat])
	}
	return means
}
