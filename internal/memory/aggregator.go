// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

// Package memory assembles the personalization context from multiple
// signal sources.
//
// # Architecture
//
// The Aggregator fans out to every registered SignalSource under one
// shared deadline. Each source runs in its own goroutine behind a
// circuit breaker; a slow, failing, or panicking source costs its own
// signals and nothing else. Concurrent requests for the same user and
// session are coalesced so one assembly serves all waiters, and
// finished contexts are cached with a TTL.
//
// # Degraded-Mode Behavior
//
// Context never returns an error. When every source fails the last
// known good context is served if one exists, and an empty context
// otherwise. Contexts assembled with missing sources carry Partial
// plus a per-source status map.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/cache"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/metrics"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
)

// Source status values recorded in PersonalizationContext.Sources.
const (
	statusOK          = "ok"
	statusError       = "error"
	statusTimeout     = "timeout"
	statusBreakerOpen = "breaker_open"
	statusPanic       = "panic"
)

// lastGoodTTL keeps stale-but-usable contexts around long enough to
// ride out a source outage.
const lastGoodTTL = time.Hour

// Config holds aggregator tuning.
type Config struct {
	// Timeout caps one full fan-out.
	Timeout time.Duration

	// OrdersForFullQuality is the order count at which the history
	// component of the quality score saturates.
	OrdersForFullQuality int

	// Circuit breaker settings shared by all sources.
	BreakerMaxFailures uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:              2 * time.Second,
		OrdersForFullQuality: 5,
		BreakerMaxFailures:   5,
		BreakerInterval:      time.Minute,
		BreakerTimeout:       30 * time.Second,
	}
}

// Aggregator builds personalization contexts. Safe for concurrent use.
type Aggregator struct {
	cfg      Config
	sources  []SignalSource
	breakers map[string]*gobreaker.CircuitBreaker[*Signals]
	group    singleflight.Group
	cache    cache.Cacher
	lastGood *cache.TTL
	logger   zerolog.Logger

	// userKeys maps a user to their cached context keys so that
	// per-user invalidation can reach hashed cache keys.
	mu       sync.Mutex
	userKeys map[string]map[string]struct{}
}

// New creates an aggregator over the given sources. The cache holds
// finished contexts; pass a TTL matched to how fresh contexts must be.
func New(cfg Config, cacher cache.Cacher, logger zerolog.Logger, sources ...SignalSource) *Aggregator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.OrdersForFullQuality < 1 {
		cfg.OrdersForFullQuality = DefaultConfig().OrdersForFullQuality
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker[*Signals], len(sources))
	for _, src := range sources {
		maxFailures := cfg.BreakerMaxFailures
		if maxFailures == 0 {
			maxFailures = DefaultConfig().BreakerMaxFailures
		}
		breakers[src.Name()] = gobreaker.NewCircuitBreaker[*Signals](gobreaker.Settings{
			Name:     "signal-source-" + src.Name(),
			Interval: cfg.BreakerInterval,
			Timeout:  cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
		})
	}

	return &Aggregator{
		cfg:      cfg,
		sources:  sources,
		breakers: breakers,
		cache:    cacher,
		lastGood: cache.NewTTL(lastGoodTTL),
		logger:   logger.With().Str("component", "memory").Logger(),
		userKeys: make(map[string]map[string]struct{}),
	}
}

// Close releases the internal fallback cache.
func (a *Aggregator) Close() {
	a.lastGood.Close()
}

// Context assembles (or serves from cache) the personalization context
// for a user and session. It never returns nil and never errors.
func (a *Aggregator) Context(ctx context.Context, userID, sessionID string) *personalization.PersonalizationContext {
	key := cache.GenerateKey("pctx", userID, sessionID)

	if cached, ok := a.cache.Get(key); ok {
		if pctx, ok := cached.(*personalization.PersonalizationContext); ok {
			return pctx
		}
	}

	v, _, _ := a.group.Do(key, func() (interface{}, error) {
		pctx := a.assemble(ctx, userID, sessionID)
		a.cache.Set(key, pctx)
		a.rememberKey(userID, key)
		if !pctx.Partial && pctx.DataQualityScore > 0 {
			a.lastGood.SetWithTTL("user:"+userID, pctx, lastGoodTTL)
		}
		return pctx, nil
	})

	pctx, ok := v.(*personalization.PersonalizationContext)
	if !ok || pctx == nil {
		return personalization.EmptyContext(userID)
	}
	return pctx
}

// InvalidateUser drops every cached context for the user so the next
// request rebuilds from fresh signals. The last-known-good fallback is
// kept; it only serves when assembly fails entirely.
func (a *Aggregator) InvalidateUser(userID string) {
	a.mu.Lock()
	keys := a.userKeys[userID]
	delete(a.userKeys, userID)
	a.mu.Unlock()

	for key := range keys {
		a.cache.Delete(key)
	}
}

// Warm assembles and caches the session-less context for a user. Used
// by the background refresh sweep.
func (a *Aggregator) Warm(ctx context.Context, userID string) {
	a.Context(ctx, userID, "")
}

func (a *Aggregator) rememberKey(userID, key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := a.userKeys[userID]
	if keys == nil {
		keys = make(map[string]struct{})
		a.userKeys[userID] = keys
	}
	keys[key] = struct{}{}
}

type outcome struct {
	name    string
	signals *Signals
	status  string
}

// assemble runs the fan-out and merges whatever arrived in time.
func (a *Aggregator) assemble(parent context.Context, userID, sessionID string) *personalization.PersonalizationContext {
	// The shared deadline must not inherit the first caller's
	// cancellation: coalesced followers would be sunk with it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.cfg.Timeout)
	defer cancel()

	results := make(chan outcome, len(a.sources))
	for _, src := range a.sources {
		go a.collect(ctx, src, userID, sessionID, results)
	}

	pending := make(map[string]bool, len(a.sources))
	for _, src := range a.sources {
		pending[src.Name()] = true
	}

	pctx := personalization.EmptyContext(userID)
	pctx.Sources = make(map[string]string, len(a.sources))

	completed := 0
	orders := 0
	for range a.sources {
		select {
		case o := <-results:
			delete(pending, o.name)
			pctx.Sources[o.name] = o.status
			if o.status == statusOK {
				completed++
				a.merge(pctx, o.signals)
				if o.signals != nil && o.signals.Orders > orders {
					orders = o.signals.Orders
				}
			}
		case <-ctx.Done():
			for name := range pending {
				pctx.Sources[name] = statusTimeout
				metrics.ObserveSignalSource(name, a.cfg.Timeout, "timeout")
			}
			pending = nil
		}
		if pending == nil {
			break
		}
	}

	pctx.Partial = completed < len(a.sources)
	pctx.DataQualityScore = a.quality(orders, completed)
	pctx.LoadedAt = time.Now().UTC()

	if completed == 0 {
		if prev, ok := a.lastGood.Get("user:" + userID); ok {
			if prevCtx, ok := prev.(*personalization.PersonalizationContext); ok {
				a.logger.Warn().Str("user_id", userID).Msg("all signal sources failed, serving last known context")
				stale := *prevCtx
				stale.Partial = true
				stale.Sources = pctx.Sources
				metrics.ContextsAggregated.WithLabelValues("partial").Inc()
				return &stale
			}
		}
	}

	if pctx.Partial {
		metrics.ContextsAggregated.WithLabelValues("partial").Inc()
	} else {
		metrics.ContextsAggregated.WithLabelValues("complete").Inc()
	}
	return pctx
}

// collect runs one source behind its breaker, converting panics and
// breaker rejections into statuses.
func (a *Aggregator) collect(ctx context.Context, src SignalSource, userID, sessionID string, results chan<- outcome) {
	start := time.Now()
	o := outcome{name: src.Name()}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Str("source", src.Name()).Msg("signal source panicked")
			o.status = statusPanic
			o.signals = nil
			metrics.ObserveSignalSource(src.Name(), time.Since(start), "panic")
		}
		results <- o
	}()

	signals, err := a.breakers[src.Name()].Execute(func() (*Signals, error) {
		return src.Collect(ctx, userID, sessionID)
	})

	elapsed := time.Since(start)
	switch {
	case err == nil:
		o.signals = signals
		o.status = statusOK
		metrics.ObserveSignalSource(src.Name(), elapsed, "")
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		o.status = statusBreakerOpen
		metrics.ObserveSignalSource(src.Name(), elapsed, "breaker_open")
	case errors.Is(err, context.DeadlineExceeded):
		o.status = statusTimeout
		metrics.ObserveSignalSource(src.Name(), elapsed, "timeout")
	default:
		o.status = statusError
		a.logger.Warn().Err(err).Str("source", src.Name()).Str("user_id", userID).Msg("signal source failed")
		metrics.ObserveSignalSource(src.Name(), elapsed, "error")
	}
}

// merge folds one source's signals into the context. Map collisions
// keep the stronger affinity.
func (a *Aggregator) merge(pctx *personalization.PersonalizationContext, sig *Signals) {
	if sig == nil {
		return
	}
	if len(sig.UsualItems) > 0 {
		pctx.UsualItems = sig.UsualItems
	}
	if len(sig.Cycles) > 0 {
		pctx.ReorderCycles = sig.Cycles
	}
	if len(sig.BrandAffinities) > 0 {
		if pctx.Preferences.BrandAffinities == nil {
			pctx.Preferences.BrandAffinities = make(map[string]float64, len(sig.BrandAffinities))
		}
		for k, v := range sig.BrandAffinities {
			if v > pctx.Preferences.BrandAffinities[k] {
				pctx.Preferences.BrandAffinities[k] = v
			}
		}
	}
	if len(sig.CategoryAffinities) > 0 {
		if pctx.Preferences.CategoryAffinities == nil {
			pctx.Preferences.CategoryAffinities = make(map[string]float64, len(sig.CategoryAffinities))
		}
		for k, v := range sig.CategoryAffinities {
			if v > pctx.Preferences.CategoryAffinities[k] {
				pctx.Preferences.CategoryAffinities[k] = v
			}
		}
	}
	if sig.HasPriceSensitivity {
		pctx.Preferences.PriceSensitivity = sig.PriceSensitivity
	}
	if len(sig.DietaryRestrictions) > 0 {
		pctx.Preferences.DietaryRestrictions = appendUnique(pctx.Preferences.DietaryRestrictions, sig.DietaryRestrictions)
	}
	if len(sig.Related) > 0 {
		if pctx.Related == nil {
			pctx.Related = make(map[string][]string, len(sig.Related))
		}
		for k, v := range sig.Related {
			pctx.Related[k] = v
		}
	}
}

// quality is history completeness scaled by source completeness. No
// orders means zero regardless of how many sources answered.
func (a *Aggregator) quality(orders, completed int) float64 {
	if len(a.sources) == 0 || orders == 0 {
		return 0
	}
	historyPart := float64(orders) / float64(a.cfg.OrdersForFullQuality)
	if historyPart > 1 {
		historyPart = 1
	}
	return historyPart * float64(completed) / float64(len(a.sources))
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]bool, len(dst)+len(src))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if !seen[s] {
			dst = append(dst, s)
			seen[s] = true
		}
	}
	return dst
}
