// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

// Package personalization implements the pattern-mining and scoring core
// of the LeafLoaf grocery assistant.
//
// # Architecture
//
// Raw interaction events flow through a pipeline of pure, stateless
// components:
//
//   - Pattern Analyzer: order frequencies, quantity modes, purchase-cycle
//     statistics with seasonal-outlier filtering
//   - Usual-Item Detector: thresholds frequencies into the routine basket
//   - Reorder Predictor: due dates, urgency bands, holiday adjustment,
//     bundle suggestions
//   - Personalized Ranker: multi-signal rerank of an external candidate
//     list with per-item boost reasons
//
// The Engine facade ties them together, caches per-user analysis with a
// short TTL, and exposes the three operations consumed by the response
// assembly layer: usual basket, reorder suggestions, and rerank.
//
// # Degraded-Mode Behavior
//
// Nothing in this package raises to its caller. Missing history, a sku
// with a single purchase, an all-outlier cycle, or a malformed event all
// degrade to empty or lower-confidence results. Every confidence and
// score field is clamped to [0,1].
//
// # Thread Safety
//
// The analyzer, detector, predictor, and ranker are pure computations
// safe to run concurrently across requests. The only shared mutable
// state is the engine's per-user analysis cache, guarded by an RWMutex.
package personalization
