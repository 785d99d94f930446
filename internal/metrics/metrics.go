// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

// Package metrics exposes Prometheus instrumentation for the LeafLoaf
// server: API latency and throughput, engine cache efficiency, signal
// source health, and event ingestion counters.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafloaf_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leafloaf_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	// Personalization engine metrics.
	EngineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafloaf_engine_requests_total",
			Help: "Total personalization operations by kind",
		},
		[]string{"operation"}, // usual_basket, reorder_suggestions, rerank
	)

	EngineCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leafloaf_engine_cache_hits_total",
			Help: "Analysis cache hits in the personalization engine",
		},
	)

	EngineCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leafloaf_engine_cache_misses_total",
			Help: "Analysis cache misses in the personalization engine",
		},
	)

	RerankSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leafloaf_rerank_suppressed_total",
			Help: "Rerank requests served unpersonalized due to low data quality",
		},
	)

	RerankExcluded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leafloaf_rerank_excluded_products_total",
			Help: "Products excluded from reranked results by dietary restrictions",
		},
	)

	// Memory aggregator metrics.
	SignalSourceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leafloaf_signal_source_duration_seconds",
			Help:    "Latency of individual signal sources during aggregation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"source"},
	)

	SignalSourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafloaf_signal_source_failures_total",
			Help: "Signal source failures by source and reason",
		},
		[]string{"source", "reason"}, // error, timeout, breaker_open, panic
	)

	ContextsAggregated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafloaf_contexts_aggregated_total",
			Help: "Personalization contexts assembled, by completeness",
		},
		[]string{"result"}, // complete, partial
	)

	// Event ingestion metrics.
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafloaf_events_ingested_total",
			Help: "Interaction events accepted into the history store",
		},
		[]string{"event_type"},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafloaf_events_rejected_total",
			Help: "Interaction events rejected during ingestion",
		},
		[]string{"reason"}, // unmarshal, validation, store
	)
)

// ObserveAPIRequest records one completed HTTP request.
func ObserveAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveSignalSource records one signal source attempt.
func ObserveSignalSource(source string, duration time.Duration, failureReason string) {
	SignalSourceDuration.WithLabelValues(source).Observe(duration.Seconds())
	if failureReason != "" {
		SignalSourceFailures.WithLabelValues(source, failureReason).Inc()
	}
}
