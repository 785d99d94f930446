// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

// Package main is the entry point for the LeafLoaf server.
//
// LeafLoaf is a grocery personalization engine. It learns each user's
// shopping patterns from their interaction events and serves three
// operations over HTTP: the usual basket, reorder suggestions bucketed
// by urgency, and personalized reranking of search results.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered defaults, YAML file, and LEAFLOAF_
//     environment variables (Koanf v2)
//  2. Event store: Badger-backed interaction history
//  3. Engine: pattern analysis, usual items, reorder cycles, reranking
//  4. Memory: signal sources fanned into personalization contexts
//  5. Event pipeline: Watermill ingestion (in-process or NATS JetStream)
//  6. HTTP server: Chi REST API with rate limiting and Prometheus metrics
//
// Everything runs under a suture supervisor tree so a crash in the
// ingest path cannot take down the API.
//
// # Configuration
//
// Environment variables use the LEAFLOAF_ prefix with double
// underscores for nesting:
//
//	export LEAFLOAF_SERVER__PORT=8080
//	export LEAFLOAF_HISTORY__PATH=/var/lib/leafloaf
//	export LEAFLOAF_EVENTS__NATS_URL=nats://localhost:4222
//	./leafloaf
//
// With no NATS URL configured, events ingested over HTTP flow through
// an in-process channel transport, which is the single-node default.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the pipeline finishes buffered events, and the
// event store closes cleanly.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/api"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/cache"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/config"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/eventstream"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/history"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/logging"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/memory"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/supervisor"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging)
	logging.Info().
		Str("history_path", cfg.History.Path).
		Str("events_transport", transportName(cfg.Events.NATSURL)).
		Msg("Starting LeafLoaf")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Event store.
	store, err := history.Open(history.Options{
		Path:          cfg.History.Path,
		RetentionDays: cfg.History.RetentionDays,
		Logger:        logging.Logger(),
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open event store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event store")
		}
	}()

	// Personalization engine over the stored history.
	engine, err := personalization.NewEngine(&cfg.Personalization, store, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create engine")
	}

	// Signal sources feeding the context aggregator.
	profiles := memory.NewProfileSource()
	aggregator := memory.New(
		memory.Config{
			Timeout:              cfg.Memory.AggregationTimeout,
			OrdersForFullQuality: cfg.Memory.OrdersForFullQuality,
			BreakerMaxFailures:   cfg.Memory.BreakerMaxFailures,
			BreakerInterval:      cfg.Memory.BreakerInterval,
			BreakerTimeout:       cfg.Memory.BreakerTimeout,
		},
		cache.New(cfg.Memory.Cache),
		logging.Logger(),
		memory.NewEngineSource(engine),
		memory.NewPreferenceSource(store, cfg.Memory.HalfLifeDays),
		memory.NewCoPurchaseSource(store),
		profiles,
	)
	defer aggregator.Close()
	engine.SetContextProvider(aggregator)

	// Event ingestion pipeline. The watermill router logs through the
	// same zerolog sink via the slog bridge.
	wmLogger := watermill.NewSlogLogger(logging.NewSlogLogger())
	streamCfg := eventstream.Config{
		NATSURL:         cfg.Events.NATSURL,
		Topic:           cfg.Events.Topic,
		SubscriberCount: cfg.Events.SubscriberCount,
		RetryCount:      cfg.Events.RetryCount,
		RetryInterval:   cfg.Events.RetryInterval,
		CloseTimeout:    cfg.Events.CloseTimeout,
	}
	transport, err := eventstream.NewTransport(streamCfg, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event transport")
	}
	flush := invalidators{engine, aggregator}
	pipeline, err := eventstream.NewPipeline(streamCfg, transport, store, flush, wmLogger, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event pipeline")
	}

	// HTTP surface.
	router := api.NewRouter(api.Config{
		RateLimitReqs:   cfg.Server.RateLimitReqs,
		RateLimitWindow: cfg.Server.RateLimitWindow,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}, engine, pipeline, profiles, flush, pipelineReady(pipeline), logging.Logger())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Supervisor tree.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddIngestService(services.NewStreamService(pipeline))
	if cfg.Refresh.Enabled {
		tree.AddBackgroundService(services.NewRefreshService(services.RefreshConfig{
			Interval:     cfg.Refresh.Interval,
			ActiveWindow: cfg.Refresh.ActiveWindow,
			MaxUsers:     cfg.Refresh.MaxUsers,
		}, store, aggregator, store, logging.Logger()))
		logging.Info().Dur("interval", cfg.Refresh.Interval).Msg("Context refresh enabled")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Stopped gracefully")
}

// invalidators fans a cache invalidation out to the engine's analysis
// cache and the aggregator's context cache.
type invalidators []eventstream.Invalidator

func (is invalidators) InvalidateUser(userID string) {
	for _, i := range is {
		i.InvalidateUser(userID)
	}
}

// pipelineReady gates the readiness probe on the watermill router
// actually consuming.
func pipelineReady(p *eventstream.Pipeline) func() bool {
	return func() bool {
		select {
		case <-p.Running():
			return true
		default:
			return false
		}
	}
}

func transportName(natsURL string) string {
	if natsURL == "" {
		return "gochannel"
	}
	return "nats-jetstream"
}
