// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

// Package eventstream ingests interaction events through Watermill.
//
// Clients publish events to a single topic; a consumer handler
// validates each event, appends it to the history store, and
// invalidates the engine's cached analysis for that user. Malformed
// events are counted and acknowledged so they never wedge the stream;
// store failures are retried with backoff.
package eventstream

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/metrics"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
)

// EventSink receives validated events, normally the history store.
type EventSink interface {
	Append(ctx context.Context, evt personalization.InteractionEvent) error
}

// Invalidator drops cached per-user state after new events land,
// normally the personalization engine.
type Invalidator interface {
	InvalidateUser(userID string)
}

// Pipeline wires the transport, router, and appender handler together.
type Pipeline struct {
	cfg         Config
	transport   *Transport
	router      *message.Router
	serializer  *Serializer
	sink        EventSink
	invalidator Invalidator
	logger      zerolog.Logger
}

// NewPipeline builds the ingestion router. The invalidator may be nil
// when no engine cache needs flushing, as in tests.
func NewPipeline(
	cfg Config,
	transport *Transport,
	sink EventSink,
	invalidator Invalidator,
	wmLogger watermill.LoggerAdapter,
	logger zerolog.Logger,
) (*Pipeline, error) {
	if sink == nil {
		return nil, fmt.Errorf("event sink is required")
	}

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInterval,
		Logger:          wmLogger,
	}
	router.AddMiddleware(retry.Middleware)
	router.AddMiddleware(middleware.CorrelationID)

	p := &Pipeline{
		cfg:         cfg,
		transport:   transport,
		router:      router,
		serializer:  NewSerializer(),
		sink:        sink,
		invalidator: invalidator,
		logger:      logger.With().Str("component", "eventstream").Logger(),
	}

	router.AddConsumerHandler(
		"event-appender",
		cfg.Topic,
		transport.Subscriber,
		p.handleEvent,
	)

	return p, nil
}

// handleEvent appends one event. A nil return acknowledges the
// message; malformed payloads are acknowledged too since redelivery
// cannot fix them.
func (p *Pipeline) handleEvent(msg *message.Message) error {
	evt, err := p.serializer.Unmarshal(msg.Payload)
	if err != nil {
		metrics.EventsRejected.WithLabelValues("unmarshal").Inc()
		p.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping malformed event")
		return nil
	}

	if err := p.sink.Append(msg.Context(), *evt); err != nil {
		metrics.EventsRejected.WithLabelValues("store").Inc()
		return fmt.Errorf("append event for %s: %w", evt.UserID, err)
	}

	metrics.EventsIngested.WithLabelValues(string(evt.EventType)).Inc()
	if p.invalidator != nil {
		p.invalidator.InvalidateUser(evt.UserID)
	}
	return nil
}

// Publish validates and publishes one event to the ingestion topic.
func (p *Pipeline) Publish(ctx context.Context, evt *personalization.InteractionEvent) error {
	data, err := p.serializer.Marshal(evt)
	if err != nil {
		metrics.EventsRejected.WithLabelValues("validation").Inc()
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	middleware.SetCorrelationID(watermill.NewShortUUID(), msg)

	if err := p.transport.Publisher.Publish(p.cfg.Topic, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Run starts the router and blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.router.Run(ctx)
}

// Running returns a channel that closes once the router is consuming.
func (p *Pipeline) Running() <-chan struct{} {
	return p.router.Running()
}

// Close stops the router and the transport.
func (p *Pipeline) Close() error {
	if err := p.router.Close(); err != nil {
		return err
	}
	return p.transport.Publisher.Close()
}
