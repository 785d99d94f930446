// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

// Package history persists interaction events in BadgerDB.
//
// Events are append-only. Each event is stored under a key ordered by
// user and timestamp so a user's history reads as a single prefix
// scan. A small per-user activity index supports finding recently
// active users for background refresh.
package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
)

// Key prefixes for BadgerDB storage.
const (
	eventKeyPrefix    = "evt:"
	activityKeyPrefix = "act:"
)

// Options configures a Store.
type Options struct {
	// Path is the Badger directory. Empty opens an in-memory store.
	Path string

	// RetentionDays bounds how far back reads go. Zero disables the
	// cutoff.
	RetentionDays int

	Logger zerolog.Logger
}

// Store is a Badger-backed event store implementing the engine's
// history provider contract.
type Store struct {
	db        *badger.DB
	retention int
	logger    zerolog.Logger
	seq       atomic.Uint64
}

// Open opens or creates the store at opts.Path.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	// Badger logs through its own interface; silence it and rely on
	// our own structured logging instead.
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Path, err)
	}
	return &Store{
		db:        db,
		retention: opts.RetentionDays,
		logger:    opts.Logger.With().Str("component", "history").Logger(),
	}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append validates and persists one event.
func (s *Store) Append(ctx context.Context, evt personalization.InteractionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := evt.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := s.eventKey(evt.UserID, evt.Timestamp)
	actKey := []byte(activityKeyPrefix + userSegment(evt.UserID))
	actVal := []byte(strconv.FormatInt(evt.Timestamp.UnixNano(), 10))

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set event: %w", err)
		}
		// Only move the activity marker forward.
		current, err := txn.Get(actKey)
		if err == nil {
			var prev int64
			if verr := current.Value(func(val []byte) error {
				prev, _ = strconv.ParseInt(string(val), 10, 64)
				return nil
			}); verr == nil && prev >= evt.Timestamp.UnixNano() {
				return nil
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get activity marker: %w", err)
		}
		return txn.Set(actKey, actVal)
	})
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("user_id", evt.UserID).
		Str("product_id", evt.ProductID).
		Str("event_type", string(evt.EventType)).
		Msg("event appended")
	return nil
}

// userSegment length-prefixes the user ID. IDs are arbitrary strings
// and may contain the key delimiter; without the length a scan for
// "alice" would also match keys belonging to "alice:admin".
func userSegment(userID string) string {
	return strconv.Itoa(len(userID)) + ":" + userID
}

// decodeUserSegment reverses userSegment. Reports false when raw is
// not a well-formed segment.
func decodeUserSegment(raw string) (string, bool) {
	sep := strings.IndexByte(raw, ':')
	if sep < 1 {
		return "", false
	}
	n, err := strconv.Atoi(raw[:sep])
	if err != nil || len(raw)-sep-1 != n {
		return "", false
	}
	return raw[sep+1:], true
}

// eventKey orders events by user, then timestamp, then an in-process
// sequence so multiple lines of one order keep distinct keys.
func (s *Store) eventKey(userID string, ts time.Time) []byte {
	seq := s.seq.Add(1)
	return []byte(fmt.Sprintf("%s%s:%020d:%010d", eventKeyPrefix, userSegment(userID), ts.UnixNano(), seq))
}

// Events returns all stored events for a user in timestamp order,
// bounded by the retention window.
func (s *Store) Events(ctx context.Context, userID string) ([]personalization.InteractionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cutoff time.Time
	if s.retention > 0 {
		cutoff = time.Now().AddDate(0, 0, -s.retention)
	}

	events := make([]personalization.InteractionEvent, 0, 64)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix + userSegment(userID) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var evt personalization.InteractionEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &evt)
			})
			if err != nil {
				// A corrupt record should not sink the whole read.
				s.logger.Warn().Err(err).Str("user_id", userID).Msg("skipping unreadable event")
				continue
			}
			if !cutoff.IsZero() && evt.Timestamp.Before(cutoff) {
				continue
			}
			events = append(events, evt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan events for %s: %w", userID, err)
	}
	return events, nil
}

// PurchaseHistory returns the user's purchase events in timestamp
// order. It satisfies the personalization engine's history provider.
func (s *Store) PurchaseHistory(ctx context.Context, userID string) ([]personalization.InteractionEvent, error) {
	events, err := s.Events(ctx, userID)
	if err != nil {
		return nil, err
	}
	purchases := events[:0:0]
	for _, evt := range events {
		if evt.EventType == personalization.EventPurchase {
			purchases = append(purchases, evt)
		}
	}
	return purchases, nil
}

// RecentUsers returns up to limit user IDs with activity at or after
// since. Order is unspecified.
func (s *Store) RecentUsers(ctx context.Context, since time.Time, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	users := make([]string, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(activityKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(users) >= limit {
				return nil
			}
			item := it.Item()
			userID, ok := decodeUserSegment(string(item.Key()[len(prefix):]))
			if !ok {
				continue
			}
			err := item.Value(func(val []byte) error {
				nanos, perr := strconv.ParseInt(string(val), 10, 64)
				if perr != nil {
					return nil
				}
				if !time.Unix(0, nanos).Before(since) {
					users = append(users, userID)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan activity index: %w", err)
	}
	return users, nil
}

// GC runs one value-log garbage collection pass. Badger returns an
// error when nothing was rewritten; that is not a failure.
func (s *Store) GC() {
	if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		s.logger.Warn().Err(err).Msg("value log gc failed")
	}
}
