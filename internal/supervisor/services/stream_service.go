// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package services

import (
	"context"
	"fmt"
)

// StreamRunner matches the event pipeline's lifecycle.
//
// Satisfied by *eventstream.Pipeline:
//   - Run(ctx) blocks until the context is canceled
//   - Close() releases the transport
type StreamRunner interface {
	Run(ctx context.Context) error
	Close() error
}

// StreamService wraps the event ingestion pipeline as a supervised
// service. Run blocks for the life of the service, so a broker outage
// that kills the router surfaces as a service failure and suture
// restarts it with backoff.
type StreamService struct {
	runner StreamRunner
	name   string
}

// NewStreamService creates a new event pipeline service wrapper.
func NewStreamService(runner StreamRunner) *StreamService {
	return &StreamService{
		runner: runner,
		name:   "event-pipeline",
	}
}

// Serve implements suture.Service.
func (s *StreamService) Serve(ctx context.Context) error {
	if err := s.runner.Run(ctx); err != nil {
		return fmt.Errorf("event pipeline failed: %w", err)
	}
	if err := s.runner.Close(); err != nil {
		return fmt.Errorf("event pipeline close failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *StreamService) String() string {
	return s.name
}
