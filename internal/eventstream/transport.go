// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package eventstream

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
)

// Config holds the ingestion pipeline settings.
type Config struct {
	// NATSURL selects the transport. Empty runs an in-process Go
	// channel transport, which is what tests and single-node
	// deployments use.
	NATSURL string

	// Topic is the subject interaction events are published on.
	Topic string

	// SubscriberCount is the number of parallel consumers.
	SubscriberCount int

	// RetryCount and RetryInterval drive the handler retry middleware.
	RetryCount    int
	RetryInterval time.Duration

	// CloseTimeout bounds graceful shutdown of the router.
	CloseTimeout time.Duration
}

// DefaultConfig returns in-process transport defaults.
func DefaultConfig() Config {
	return Config{
		Topic:           "grocery.events",
		SubscriberCount: 2,
		RetryCount:      3,
		RetryInterval:   100 * time.Millisecond,
		CloseTimeout:    30 * time.Second,
	}
}

// Transport is a matched publisher/subscriber pair.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// NewTransport creates the transport selected by cfg: NATS JetStream
// when a URL is configured, an in-process Go channel otherwise.
func NewTransport(cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
	if cfg.NATSURL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger)
		return &Transport{Publisher: ch, Subscriber: ch}, nil
	}
	return newNATSTransport(cfg, logger)
}

func newNATSTransport(cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("nats disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("nats reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		QueueGroupPrefix: "leafloaf",
		SubscribersCount: cfg.SubscriberCount,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: true,
			DurablePrefix: "leafloaf-ingest",
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &Transport{Publisher: pub, Subscriber: sub}, nil
}
