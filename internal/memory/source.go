// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package memory

import (
	"context"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
)

// Signals is the partial contribution of one signal source. Nil maps
// and empty slices mean the source has nothing to say about that
// dimension; the aggregator merges non-empty fields only.
type Signals struct {
	UsualItems []personalization.UsualItem
	Cycles     []personalization.ReorderCycle

	// Orders is the purchase-order count backing the history-derived
	// signals. It drives the data quality score.
	Orders int

	BrandAffinities    map[string]float64
	CategoryAffinities map[string]float64

	PriceSensitivity    float64
	HasPriceSensitivity bool

	DietaryRestrictions []string

	Related map[string][]string
}

// SignalSource produces one slice of personalization signals. Sources
// must respect ctx: the aggregator runs them under a shared deadline
// and treats overruns as partial results, not failures of the whole.
type SignalSource interface {
	Name() string
	Collect(ctx context.Context, userID, sessionID string) (*Signals, error)
}
