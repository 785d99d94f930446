// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package personalization

import (
	"fmt"
	"time"
)

// Config contains all tunable thresholds for the personalization engine.
// Every value here is business-tunable configuration, not a contract:
// the defaults mirror what product observed in the field, and all of them
// can be overridden from the config file or environment.
type Config struct {
	// Patterns contains pattern-mining thresholds.
	Patterns PatternConfig `json:"patterns" koanf:"patterns"`

	// Reorder contains reorder-prediction thresholds.
	Reorder ReorderConfig `json:"reorder" koanf:"reorder"`

	// Ranking contains rerank weighting parameters.
	Ranking RankingConfig `json:"ranking" koanf:"ranking"`

	// CacheTTL bounds how long derived results (usual baskets, reorder
	// suggestions, reranked lists) may be served from cache.
	CacheTTL time.Duration `json:"cache_ttl" koanf:"cache_ttl"`
}

// PatternConfig holds thresholds for the pattern analyzer and the
// usual-item detector.
type PatternConfig struct {
	// UsualThreshold is the minimum order frequency (0..1) for a sku to
	// qualify as a usual item. The boundary is inclusive.
	UsualThreshold float64 `json:"usual_threshold" koanf:"usual_threshold"`

	// MinOrderCount is the minimum number of confirming orders for a
	// usual item or a reorder cycle.
	MinOrderCount int `json:"min_order_count" koanf:"min_order_count"`

	// SeasonalOutlierDays is the interval length above which a purchase
	// gap is treated as a seasonal absence and excluded from cycle
	// statistics.
	SeasonalOutlierDays int `json:"seasonal_outlier_days" koanf:"seasonal_outlier_days"`

	// OrdersForFullQuality is the order count at which the history
	// portion of the data quality score saturates.
	OrdersForFullQuality int `json:"orders_for_full_quality" koanf:"orders_for_full_quality"`
}

// ReorderConfig holds urgency-banding and bundling thresholds.
type ReorderConfig struct {
	// OverdueMultiplier scales the mean interval for the overdue test.
	// 1.0 means strictly past the predicted date.
	OverdueMultiplier float64 `json:"overdue_multiplier" koanf:"overdue_multiplier"`

	// BufferDays is the due_soon window before the predicted date.
	BufferDays int `json:"buffer_days" koanf:"buffer_days"`

	// HolidayWindowDays shifts due dates that land near a holiday.
	HolidayWindowDays int `json:"holiday_window_days" koanf:"holiday_window_days"`

	// BundleToleranceDays groups cycles whose due dates fall within
	// this many days of each other.
	BundleToleranceDays int `json:"bundle_tolerance_days" koanf:"bundle_tolerance_days"`

	// Holidays are known holiday dates (date component only).
	Holidays []time.Time `json:"holidays,omitempty" koanf:"holidays"`
}

// RankingConfig holds the ranker's weighting parameters.
type RankingConfig struct {
	// MinConfidence suppresses personalization entirely when the
	// context's data quality score falls below it.
	MinConfidence float64 `json:"min_confidence" koanf:"min_confidence"`

	// BrandBoost multiplies the score of candidates whose brand the
	// user has an affinity for.
	BrandBoost float64 `json:"brand_boost" koanf:"brand_boost"`

	// MinBrandAffinity is the affinity floor for the brand boost.
	MinBrandAffinity float64 `json:"min_brand_affinity" koanf:"min_brand_affinity"`

	// FrequentBoost multiplies the score of candidates in the usual
	// basket.
	FrequentBoost float64 `json:"frequent_boost" koanf:"frequent_boost"`

	// CategoryWeight scales the category-affinity factor:
	// factor = 1 + CategoryWeight * affinity.
	CategoryWeight float64 `json:"category_weight" koanf:"category_weight"`

	// PriceWeight caps how far price-sensitivity reweighting can move a
	// score in either direction.
	PriceWeight float64 `json:"price_weight" koanf:"price_weight"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		Patterns: PatternConfig{
			UsualThreshold:       0.5,
			MinOrderCount:        2,
			SeasonalOutlierDays:  90,
			OrdersForFullQuality: 5,
		},
		Reorder: ReorderConfig{
			OverdueMultiplier:   1.0,
			BufferDays:          2,
			HolidayWindowDays:   3,
			BundleToleranceDays: 2,
		},
		Ranking: RankingConfig{
			MinConfidence:    0.3,
			BrandBoost:       1.5,
			MinBrandAffinity: 0.5,
			FrequentBoost:    1.2,
			CategoryWeight:   0.5,
			PriceWeight:      0.3,
		},
		CacheTTL: 5 * time.Minute,
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Patterns.UsualThreshold < 0 || c.Patterns.UsualThreshold > 1 {
		return fmt.Errorf("patterns.usual_threshold must be in [0,1], got %f", c.Patterns.UsualThreshold)
	}
	if c.Patterns.MinOrderCount < 1 {
		return fmt.Errorf("patterns.min_order_count must be >= 1, got %d", c.Patterns.MinOrderCount)
	}
	if c.Patterns.SeasonalOutlierDays <= 0 {
		return fmt.Errorf("patterns.seasonal_outlier_days must be positive, got %d", c.Patterns.SeasonalOutlierDays)
	}
	if c.Patterns.OrdersForFullQuality < 1 {
		return fmt.Errorf("patterns.orders_for_full_quality must be >= 1, got %d", c.Patterns.OrdersForFullQuality)
	}
	if c.Reorder.OverdueMultiplier <= 0 {
		return fmt.Errorf("reorder.overdue_multiplier must be positive, got %f", c.Reorder.OverdueMultiplier)
	}
	if c.Reorder.BufferDays < 0 {
		return fmt.Errorf("reorder.buffer_days must be >= 0, got %d", c.Reorder.BufferDays)
	}
	if c.Reorder.HolidayWindowDays < 0 {
		return fmt.Errorf("reorder.holiday_window_days must be >= 0, got %d", c.Reorder.HolidayWindowDays)
	}
	if c.Reorder.BundleToleranceDays < 0 {
		return fmt.Errorf("reorder.bundle_tolerance_days must be >= 0, got %d", c.Reorder.BundleToleranceDays)
	}
	if c.Ranking.MinConfidence < 0 || c.Ranking.MinConfidence > 1 {
		return fmt.Errorf("ranking.min_confidence must be in [0,1], got %f", c.Ranking.MinConfidence)
	}
	if c.Ranking.BrandBoost <= 0 {
		return fmt.Errorf("ranking.brand_boost must be positive, got %f", c.Ranking.BrandBoost)
	}
	if c.Ranking.MinBrandAffinity < 0 || c.Ranking.MinBrandAffinity > 1 {
		return fmt.Errorf("ranking.min_brand_affinity must be in [0,1], got %f", c.Ranking.MinBrandAffinity)
	}
	if c.Ranking.FrequentBoost <= 0 {
		return fmt.Errorf("ranking.frequent_boost must be positive, got %f", c.Ranking.FrequentBoost)
	}
	if c.Ranking.CategoryWeight < 0 {
		return fmt.Errorf("ranking.category_weight must be >= 0, got %f", c.Ranking.CategoryWeight)
	}
	if c.Ranking.PriceWeight < 0 || c.Ranking.PriceWeight >= 1 {
		return fmt.Errorf("ranking.price_weight must be in [0,1), got %f", c.Ranking.PriceWeight)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL)
	}
	return nil
}
