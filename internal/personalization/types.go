// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package personalization

import (
	"errors"
	"time"
)

// EventType classifies user-product interactions.
type EventType string

const (
	// EventView indicates the product was viewed.
	EventView EventType = "view"
	// EventClick indicates the product was clicked through.
	EventClick EventType = "click"
	// EventAddToCart indicates the product was added to a cart.
	EventAddToCart EventType = "add_to_cart"
	// EventPurchase indicates the product was purchased.
	EventPurchase EventType = "purchase"
)

// Valid reports whether the event type is one of the known types.
func (t EventType) Valid() bool {
	switch t {
	case EventView, EventClick, EventAddToCart, EventPurchase:
		return true
	default:
		return false
	}
}

// SignalWeight returns the implicit-feedback weight for this event type.
// Purchases carry the strongest preference signal.
func (t EventType) SignalWeight() float64 {
	switch t {
	case EventPurchase:
		return 1.0
	case EventAddToCart:
		return 0.6
	case EventClick:
		return 0.3
	case EventView:
		return 0.1
	default:
		return 0.0
	}
}

// ErrInvalidEvent is returned when an interaction event is structurally
// unusable (missing timestamp, product, or a non-positive price on a
// purchase). Invalid events are skipped and counted, never fatal.
var ErrInvalidEvent = errors.New("invalid interaction event")

// InteractionEvent is a single user-product interaction. Events are
// append-only: once recorded they are never mutated.
//
// Purchase events recorded in the same checkout share a timestamp; the
// analyzer uses that to group line items into orders.
type InteractionEvent struct {
	// UserID is the user the event belongs to.
	UserID string `json:"user_id" validate:"required"`

	// ProductID is the SKU the event refers to.
	ProductID string `json:"product_id" validate:"required"`

	// Category is the product category (e.g., "dairy").
	Category string `json:"category,omitempty"`

	// Brand is the product brand.
	Brand string `json:"brand,omitempty"`

	// EventType is one of view, click, add_to_cart, purchase.
	EventType EventType `json:"event_type" validate:"required,oneof=view click add_to_cart purchase"`

	// Quantity is the number of units involved. Zero is normalized to 1
	// for non-purchase events.
	Quantity int `json:"quantity,omitempty" validate:"gte=0"`

	// UnitPrice is the per-unit price at event time.
	UnitPrice float64 `json:"unit_price,omitempty" validate:"gte=0"`

	// Timestamp is when the interaction occurred.
	Timestamp time.Time `json:"timestamp" validate:"required"`
}

// Validate checks the structural invariants of the event. A purchase with a
// zero timestamp, empty product ID, or missing price is malformed.
func (e *InteractionEvent) Validate() error {
	if e.UserID == "" || e.ProductID == "" {
		return ErrInvalidEvent
	}
	if e.Timestamp.IsZero() {
		return ErrInvalidEvent
	}
	if !e.EventType.Valid() {
		return ErrInvalidEvent
	}
	if e.EventType == EventPurchase && e.UnitPrice <= 0 {
		return ErrInvalidEvent
	}
	if e.Quantity < 0 {
		return ErrInvalidEvent
	}
	return nil
}

// UsualItem is a product purchased frequently enough to be part of the
// user's routine basket. Derived and ephemeral: recomputed on demand,
// never persisted.
type UsualItem struct {
	// Sku is the product identifier.
	Sku string `json:"sku"`

	// UsualQuantity is the statistical mode of purchased quantities.
	UsualQuantity int `json:"usual_quantity"`

	// Frequency is the share of orders containing this sku (0..1).
	Frequency float64 `json:"frequency"`

	// Confidence is min(0.9, order_count/10).
	Confidence float64 `json:"confidence"`

	// OrderCount is the number of orders containing this sku.
	OrderCount int `json:"order_count"`

	// LastOrdered is the timestamp of the most recent order containing it.
	LastOrdered time.Time `json:"last_ordered"`
}

// Urgency classifies how imminent a predicted reorder is.
type Urgency string

const (
	// UrgencyUpcoming means the predicted date is comfortably in the future.
	UrgencyUpcoming Urgency = "upcoming"
	// UrgencyDueSoon means the predicted date is within the buffer window.
	UrgencyDueSoon Urgency = "due_soon"
	// UrgencyDueNow means the cycle interval has elapsed.
	UrgencyDueNow Urgency = "due_now"
	// UrgencyOverdue means the predicted date passed with no reorder.
	UrgencyOverdue Urgency = "overdue"
)

// ReorderCycle is the learned purchase cadence for one sku.
type ReorderCycle struct {
	Sku              string    `json:"sku"`
	MeanIntervalDays float64   `json:"mean_interval_days"`
	StdDevDays       float64   `json:"std_dev_days"`
	SampleCount      int       `json:"sample_count"`
	LastOrdered      time.Time `json:"last_ordered"`
	PredictedDueDate time.Time `json:"predicted_due_date"`
	Urgency          Urgency   `json:"urgency"`

	// Confidence is 1 - (stddev/mean), clamped to [0,1]. High-variance
	// cycles get low confidence without being errors.
	Confidence float64 `json:"confidence"`

	// HolidayAdjusted is set when the due date was pulled earlier to
	// clear a holiday window.
	HolidayAdjusted bool `json:"holiday_adjusted,omitempty"`
}

// Bundle groups skus whose predicted due dates fall close enough together
// to be delivered in one order. Pricing the delivery-fee savings is an
// external concern; the engine only proposes the grouping.
type Bundle struct {
	// Skus are the bundled products, sorted for determinism.
	Skus []string `json:"skus"`

	// DueDate is the earliest predicted due date in the group.
	DueDate time.Time `json:"due_date"`

	// SpanDays is the spread between the earliest and latest due date.
	SpanDays float64 `json:"span_days"`
}

// UserPreferenceProfile holds aggregated preference signals for a user.
type UserPreferenceProfile struct {
	// BrandAffinities maps brand name to an affinity score in [0,1].
	BrandAffinities map[string]float64 `json:"brand_affinities,omitempty"`

	// CategoryAffinities maps category to an affinity score in [0,1].
	CategoryAffinities map[string]float64 `json:"category_affinities,omitempty"`

	// PriceSensitivity is 0 (price-insensitive) to 1 (highly sensitive).
	PriceSensitivity float64 `json:"price_sensitivity"`

	// DietaryRestrictions are active exclusion tags (e.g., "contains-nuts").
	DietaryRestrictions []string `json:"dietary_restrictions,omitempty"`
}

// Restricted reports whether any of the given tags violates an active
// dietary restriction.
func (p *UserPreferenceProfile) Restricted(tags []string) bool {
	if len(p.DietaryRestrictions) == 0 || len(tags) == 0 {
		return false
	}
	for _, r := range p.DietaryRestrictions {
		for _, t := range tags {
			if r == t {
				return true
			}
		}
	}
	return false
}

// PersonalizationContext is the single bundle of derived and external
// signals handed to the ranker. It is always structurally valid: a user
// with no history gets an empty context with DataQualityScore zero,
// never a nil or an error.
type PersonalizationContext struct {
	UserID        string                `json:"user_id"`
	UsualItems    []UsualItem           `json:"usual_items,omitempty"`
	ReorderCycles []ReorderCycle        `json:"reorder_cycles,omitempty"`
	Preferences   UserPreferenceProfile `json:"preference_profile"`

	// Related maps a sku to products frequently bought alongside it,
	// as reported by the graph relationship source.
	Related map[string][]string `json:"related,omitempty"`

	// DataQualityScore measures how complete the signals are (0..1).
	// Zero whenever the user has no purchase history.
	DataQualityScore float64 `json:"data_quality_score"`

	// LoadedAt is when this context was assembled.
	LoadedAt time.Time `json:"loaded_at"`

	// Partial is set when one or more signal sources missed the deadline.
	Partial bool `json:"partial"`

	// Sources records per-source outcome ("ok", "timeout", "error",
	// "breaker_open") for observability.
	Sources map[string]string `json:"sources,omitempty"`
}

// EmptyContext returns a structurally valid context carrying no signals.
func EmptyContext(userID string) *PersonalizationContext {
	return &PersonalizationContext{
		UserID:           userID,
		DataQualityScore: 0,
		LoadedAt:         time.Now().UTC(),
	}
}

// Product is a search candidate to be reranked. Relevance is the baseline
// score assigned by the external search service; the engine never
// originates candidates, it only reorders and filters them.
type Product struct {
	Sku         string   `json:"sku" validate:"required"`
	Name        string   `json:"name,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	Category    string   `json:"category,omitempty"`
	Price       float64  `json:"price,omitempty"`
	DietaryTags []string `json:"dietary_tags,omitempty"`

	// Relevance is the externally computed baseline relevance score.
	Relevance float64 `json:"relevance"`

	// Score is the composite score after personalization. Equal to
	// Relevance when personalization is suppressed.
	Score float64 `json:"score"`

	// BoostReasons explains which signals changed this product's rank
	// (e.g., "preferred_brand", "frequently_purchased").
	BoostReasons []string `json:"boost_reasons,omitempty"`
}

// Boost reason labels attached by the ranker.
const (
	ReasonFrequentlyPurchased = "frequently_purchased"
	ReasonPreferredBrand      = "preferred_brand"
	ReasonPreferredCategory   = "preferred_category"
	ReasonPriceMatch          = "price_match"
)

// UsualBasketResult is the response of the usual-basket operation.
type UsualBasketResult struct {
	UserID string      `json:"user_id"`
	Items  []UsualItem `json:"items"`

	// ConfidenceScore summarizes how reliable the basket is (0..1).
	// Zero when there is not enough history.
	ConfidenceScore float64 `json:"confidence_score"`

	// TotalOrders is the number of orders the basket was mined from.
	TotalOrders int `json:"total_orders"`
}

// ReorderSuggestionResult buckets predicted cycles by urgency band.
type ReorderSuggestionResult struct {
	UserID   string         `json:"user_id"`
	DueNow   []ReorderCycle `json:"due_now"`
	DueSoon  []ReorderCycle `json:"due_soon"`
	Upcoming []ReorderCycle `json:"upcoming"`
	Overdue  []ReorderCycle `json:"overdue"`
	Bundles  []Bundle       `json:"bundles,omitempty"`
}

// RerankedList is the response of the rerank operation.
type RerankedList struct {
	Items []Product `json:"items"`

	// Personalized is false when context quality was below the
	// suppression threshold and the baseline order was preserved.
	Personalized bool `json:"personalized"`

	// Excluded is the number of candidates removed by dietary
	// restrictions.
	Excluded int `json:"excluded"`

	// DataQualityScore echoes the context quality the decision was
	// based on.
	DataQualityScore float64 `json:"data_quality_score"`
}
