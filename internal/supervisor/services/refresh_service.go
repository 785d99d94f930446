// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// UserLister reports users with recent activity.
//
// Satisfied by *history.Store.
type UserLister interface {
	RecentUsers(ctx context.Context, since time.Time, limit int) ([]string, error)
}

// ContextWarmer rebuilds a user's personalization context.
//
// Satisfied by *memory.Aggregator. Warming with an empty session ID
// populates the cache entry served to session-less requests.
type ContextWarmer interface {
	InvalidateUser(userID string)
	Warm(ctx context.Context, userID string)
}

// Maintainer runs periodic store maintenance.
//
// Satisfied by *history.Store.
type Maintainer interface {
	GC()
}

// RefreshConfig tunes the background refresh sweep.
type RefreshConfig struct {
	// Interval between sweeps.
	Interval time.Duration

	// ActiveWindow selects users with events newer than this.
	ActiveWindow time.Duration

	// MaxUsers bounds how many users one sweep refreshes.
	MaxUsers int
}

// RefreshService periodically rebuilds personalization contexts for
// recently active users so their first request after a quiet period
// hits a warm cache, and runs store maintenance on the same cadence.
type RefreshService struct {
	cfg    RefreshConfig
	users  UserLister
	warmer ContextWarmer
	maint  Maintainer
	logger zerolog.Logger
	name   string
}

// NewRefreshService creates a new refresh service. maint may be nil
// when the store needs no maintenance pass.
func NewRefreshService(cfg RefreshConfig, users UserLister, warmer ContextWarmer, maint Maintainer, logger zerolog.Logger) *RefreshService {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = 24 * time.Hour
	}
	if cfg.MaxUsers <= 0 {
		cfg.MaxUsers = 500
	}
	return &RefreshService{
		cfg:    cfg,
		users:  users,
		warmer: warmer,
		maint:  maint,
		logger: logger.With().Str("component", "refresh").Logger(),
		name:   "context-refresh",
	}
}

// Serve implements suture.Service.
func (s *RefreshService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RefreshService) sweep(ctx context.Context) {
	since := time.Now().Add(-s.cfg.ActiveWindow)
	users, err := s.users.RecentUsers(ctx, since, s.cfg.MaxUsers)
	if err != nil {
		s.logger.Warn().Err(err).Msg("listing active users failed")
		return
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		// Drop the stale entry first so Warm rebuilds from fresh signals.
		s.warmer.InvalidateUser(userID)
		s.warmer.Warm(ctx, userID)
	}

	if s.maint != nil {
		s.maint.GC()
	}
	s.logger.Debug().Int("users", len(users)).Msg("refresh sweep complete")
}

// String implements fmt.Stringer for suture's log messages.
func (s *RefreshService) String() string {
	return s.name
}
