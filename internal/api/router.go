// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

// Package api provides the HTTP surface of the LeafLoaf server using
// the chi router.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
)

// Engine is the personalization surface the handlers call. All three
// operations degrade internally and never return an error.
type Engine interface {
	GetUsualBasket(ctx context.Context, userID string) *personalization.UsualBasketResult
	GetReorderSuggestions(ctx context.Context, userID string, now time.Time) *personalization.ReorderSuggestionResult
	Rerank(ctx context.Context, userID, sessionID string, candidates []personalization.Product) *personalization.RerankedList
}

// EventPublisher accepts interaction events for ingestion.
type EventPublisher interface {
	Publish(ctx context.Context, evt *personalization.InteractionEvent) error
}

// ProfileWriter stores declared user preference profiles.
type ProfileWriter interface {
	Set(userID string, profile personalization.UserPreferenceProfile)
}

// Invalidator drops a user's cached personalization state. Profile
// changes must take effect immediately, dietary restrictions above
// all, so the profile handler flushes the caches instead of waiting
// out their TTLs.
type Invalidator interface {
	InvalidateUser(userID string)
}

// Config holds the router settings.
type Config struct {
	RateLimitReqs   int
	RateLimitWindow time.Duration
	CORSOrigins     []string
}

// Router wires handlers, middleware, and routes.
type Router struct {
	cfg        Config
	engine     Engine
	events     EventPublisher
	profiles   ProfileWriter
	invalidate Invalidator
	ready      func() bool
	logger     zerolog.Logger
}

// NewRouter creates the API router. The events publisher and profile
// writer may be nil, in which case the corresponding endpoints report
// service unavailable. invalidate may be nil when no caches sit in
// front of the profile store. ready gates the readiness probe; nil
// means always ready.
func NewRouter(cfg Config, engine Engine, events EventPublisher, profiles ProfileWriter, invalidate Invalidator, ready func() bool, logger zerolog.Logger) *Router {
	return &Router{
		cfg:        cfg,
		engine:     engine,
		events:     events,
		profiles:   profiles,
		invalidate: invalidate,
		ready:      ready,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// Setup builds the HTTP handler with the full middleware stack.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", rt.handleLive)
		r.Get("/ready", rt.handleReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if rt.cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow))
		}
		r.Use(SecurityHeaders)
		r.Use(Metrics)

		r.Route("/personalization/{userID}", func(r chi.Router) {
			r.Get("/usual-basket", rt.handleUsualBasket)
			r.Get("/reorder-suggestions", rt.handleReorderSuggestions)
			r.Post("/rerank", rt.handleRerank)
			r.Put("/profile", rt.handlePutProfile)
		})

		r.Post("/events", rt.handleIngestEvent)
	})

	return r
}
