// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package personalization

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/metrics"
)

// Note: apart from the leaf metrics package, this package has no
// dependencies on other internal packages. The HistoryProvider and
// ContextProvider interfaces let the storage and aggregation layers
// integrate without circular imports.

// HistoryProvider supplies a user's interaction history, ordered by time.
// Typically implemented by the badger-backed event store.
type HistoryProvider interface {
	// PurchaseHistory returns all recorded events for the user, oldest
	// first. An unknown user returns an empty slice, not an error.
	PurchaseHistory(ctx context.Context, userID string) ([]InteractionEvent, error)
}

// ContextProvider assembles the personalization context for a user.
// Implementations must degrade rather than fail: a context is always
// returned, possibly empty with a zero data quality score.
type ContextProvider interface {
	Context(ctx context.Context, userID, sessionID string) *PersonalizationContext
}

// Engine is the facade over the pattern analyzer, usual-item detector,
// reorder predictor, and ranker. It caches per-user analysis output with
// a short TTL and degrades every failure to an empty, low-confidence
// result: no error originating below this point reaches the caller.
//
// Safe for concurrent use.
type Engine struct {
	cfg    *Config
	logger zerolog.Logger

	history  HistoryProvider
	contexts ContextProvider

	analyzer  *PatternAnalyzer
	detector  *UsualItemDetector
	predictor *ReorderPredictor
	ranker    *Ranker

	// Per-user analysis cache. Derived entities hold no identity of
	// their own: they are recomputed whenever the TTL lapses.
	cache   map[string]analysisEntry
	cacheMu sync.RWMutex

	// Short-lived rerank result cache keyed by user, session, and
	// candidate signature. Repeated pagination of the same result set
	// skips the context fetch.
	rerank   map[string]rerankEntry
	rerankMu sync.Mutex

	requests  atomic.Int64
	cacheHits atomic.Int64
}

type analysisEntry struct {
	analysis  *Analysis
	expiresAt time.Time
}

type rerankEntry struct {
	list      *RerankedList
	expiresAt time.Time
}

const (
	rerankCacheTTL = 30 * time.Second

	// rerankCacheMax bounds the high-cardinality rerank keys; the map
	// is dropped wholesale when it fills.
	rerankCacheMax = 4096
)

// NewEngine creates a personalization engine.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEngine(cfg *Config, history HistoryProvider, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if history == nil {
		return nil, fmt.Errorf("history provider is required")
	}

	logger = logger.With().Str("component", "personalization").Logger()

	return &Engine{
		cfg:       cfg,
		logger:    logger,
		history:   history,
		analyzer:  NewPatternAnalyzer(cfg.Patterns, logger),
		detector:  NewUsualItemDetector(cfg.Patterns),
		predictor: NewReorderPredictor(cfg.Reorder),
		ranker:    NewRanker(cfg.Ranking),
		cache:     make(map[string]analysisEntry),
		rerank:    make(map[string]rerankEntry),
	}, nil
}

// SetContextProvider sets the aggregator used by Rerank. Kept as a setter
// because the aggregator itself consumes the engine's derived signals.
func (e *Engine) SetContextProvider(cp ContextProvider) {
	e.contexts = cp
}

// GetUsualBasket returns the user's usual basket. A user with no history
// gets an empty basket with confidence zero; provider failures degrade
// the same way.
func (e *Engine) GetUsualBasket(ctx context.Context, userID string) *UsualBasketResult {
	e.requests.Add(1)

	analysis := e.analysisFor(ctx, userID)
	items := e.detector.Detect(analysis)

	return &UsualBasketResult{
		UserID:          userID,
		Items:           items,
		ConfidenceScore: BasketConfidence(items),
		TotalOrders:     analysis.TotalOrders,
	}
}

// GetReorderSuggestions predicts reorder cycles for the user and buckets
// them by urgency at the given instant. Degrades to empty buckets.
func (e *Engine) GetReorderSuggestions(ctx context.Context, userID string, now time.Time) *ReorderSuggestionResult {
	e.requests.Add(1)
	if now.IsZero() {
		now = time.Now().UTC()
	}

	analysis := e.analysisFor(ctx, userID)
	cycles := e.predictor.Predict(analysis.CycleStats, now)
	bundles := e.predictor.SuggestBundles(cycles)

	return Bucket(userID, cycles, bundles)
}

// Rerank reorders the externally supplied candidates using the
// aggregated personalization context. Without a context provider the
// baseline ordering passes through untouched.
func (e *Engine) Rerank(ctx context.Context, userID, sessionID string, candidates []Product) *RerankedList {
	e.requests.Add(1)

	key := rerankKey(userID, sessionID, candidates)
	e.rerankMu.Lock()
	if entry, ok := e.rerank[key]; ok && time.Now().Before(entry.expiresAt) {
		e.rerankMu.Unlock()
		e.cacheHits.Add(1)
		return entry.list
	}
	e.rerankMu.Unlock()

	var pctx *PersonalizationContext
	if e.contexts != nil {
		pctx = e.contexts.Context(ctx, userID, sessionID)
	}
	if pctx == nil {
		pctx = EmptyContext(userID)
	}

	list := e.ranker.Rerank(candidates, pctx)
	if !list.Personalized {
		e.logger.Debug().
			Str("user_id", userID).
			Float64("data_quality", pctx.DataQualityScore).
			Msg("personalization suppressed, returning baseline order")
	}

	e.rerankMu.Lock()
	if len(e.rerank) >= rerankCacheMax {
		e.rerank = make(map[string]rerankEntry)
	}
	e.rerank[key] = rerankEntry{list: list, expiresAt: time.Now().Add(rerankCacheTTL)}
	e.rerankMu.Unlock()

	return list
}

// rerankKey derives a cache key from the inputs that determine the
// rerank output: user, session, and each candidate's sku and baseline
// relevance.
func rerankKey(userID, sessionID string, candidates []Product) string {
	var b strings.Builder
	b.WriteString(userID)
	b.WriteByte(0)
	b.WriteString(sessionID)
	for _, c := range candidates {
		b.WriteByte(0)
		b.WriteString(c.Sku)
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(c.Relevance, 'g', -1, 64))
	}
	return b.String()
}

// Derive computes the history-derived signals (usual items, reorder
// cycles, order count) for the aggregator. Implements the aggregator's
// deriver interface.
func (e *Engine) Derive(ctx context.Context, userID string, now time.Time) ([]UsualItem, []ReorderCycle, int) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	analysis := e.analysisFor(ctx, userID)
	items := e.detector.Detect(analysis)
	cycles := e.predictor.Predict(analysis.CycleStats, now)
	return items, cycles, analysis.TotalOrders
}

// Stats reports request and analysis-cache counters.
func (e *Engine) Stats() (requests, cacheHits int64) {
	return e.requests.Load(), e.cacheHits.Load()
}

// analysisFor returns the cached analysis for the user, recomputing it
// from history when the TTL has lapsed. Provider failures are logged and
// degrade to an empty analysis.
func (e *Engine) analysisFor(ctx context.Context, userID string) *Analysis {
	e.cacheMu.RLock()
	entry, ok := e.cache[userID]
	e.cacheMu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		e.cacheHits.Add(1)
		metrics.EngineCacheHits.Inc()
		return entry.analysis
	}
	metrics.EngineCacheMisses.Inc()

	events, err := e.history.PurchaseHistory(ctx, userID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).
			Msg("history fetch failed, degrading to empty analysis")
		return e.analyzer.Analyze(nil)
	}

	analysis := e.analyzer.Analyze(events)

	e.cacheMu.Lock()
	e.cache[userID] = analysisEntry{
		analysis:  analysis,
		expiresAt: time.Now().Add(e.cfg.CacheTTL),
	}
	e.cacheMu.Unlock()

	return analysis
}

// InvalidateUser drops the cached analysis for a user, forcing the next
// request to recompute from history. Called by the ingestion pipeline
// after new events land.
func (e *Engine) InvalidateUser(userID string) {
	e.cacheMu.Lock()
	delete(e.cache, userID)
	e.cacheMu.Unlock()

	prefix := userID + "\x00"
	e.rerankMu.Lock()
	for key := range e.rerank {
		if strings.HasPrefix(key, prefix) {
			delete(e.rerank, key)
		}
	}
	e.rerankMu.Unlock()
}
