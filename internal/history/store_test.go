// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package history

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
)

var testBase = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func purchase(user, sku string, day, qty int) personalization.InteractionEvent {
	return personalization.InteractionEvent{
		UserID:    user,
		ProductID: sku,
		EventType: personalization.EventPurchase,
		Timestamp: testBase.AddDate(0, 0, day),
		Quantity:  qty,
		UnitPrice: 3.49,
	}
}

func TestAppendAndReadBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	events := []personalization.InteractionEvent{
		purchase("user-1", "sku-milk-1l", 0, 1),
		purchase("user-1", "sku-eggs-12", 0, 1),
		purchase("user-1", "sku-milk-1l", 7, 2),
	}
	for _, evt := range events {
		if err := s.Append(ctx, evt); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.Events(ctx, "user-1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Events returned %d, want 3", len(got))
	}
	// Timestamp order, same-instant events in append order.
	if got[0].ProductID != "sku-milk-1l" || got[1].ProductID != "sku-eggs-12" {
		t.Errorf("unexpected order: %s, %s", got[0].ProductID, got[1].ProductID)
	}
	if !got[2].Timestamp.Equal(testBase.AddDate(0, 0, 7)) {
		t.Errorf("last event timestamp = %v", got[2].Timestamp)
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	evt := purchase("user-1", "sku-milk-1l", 0, 1)
	evt.UserID = ""
	if err := s.Append(ctx, evt); err == nil {
		t.Error("expected validation error for missing user ID")
	}

	evt = purchase("user-1", "sku-milk-1l", 0, 1)
	evt.UnitPrice = 0
	if err := s.Append(ctx, evt); err == nil {
		t.Error("expected validation error for zero-price purchase")
	}

	got, err := s.Events(ctx, "user-1")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("rejected events were persisted: %d", len(got))
	}
}

func TestUserIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, purchase("user-1", "sku-milk-1l", 0, 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, purchase("user-2", "sku-bread", 0, 1)); err != nil {
		t.Fatal(err)
	}

	got, err := s.Events(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ProductID != "sku-milk-1l" {
		t.Errorf("user-1 events = %v", got)
	}
}

func TestPurchaseHistoryFiltersNonPurchases(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	view := purchase("user-1", "sku-milk-1l", 0, 0)
	view.EventType = personalization.EventView
	view.UnitPrice = 0
	if err := s.Append(ctx, view); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, purchase("user-1", "sku-milk-1l", 1, 1)); err != nil {
		t.Fatal(err)
	}

	all, err := s.Events(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("Events = %d, want 2", len(all))
	}

	purchases, err := s.PurchaseHistory(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(purchases) != 1 || purchases[0].EventType != personalization.EventPurchase {
		t.Errorf("PurchaseHistory = %v", purchases)
	}
}

func TestRetentionCutoff(t *testing.T) {
	s, err := Open(Options{RetentionDays: 30, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()

	old := personalization.InteractionEvent{
		UserID:    "user-1",
		ProductID: "sku-old",
		EventType: personalization.EventPurchase,
		Timestamp: time.Now().AddDate(0, 0, -90),
		Quantity:  1,
		UnitPrice: 2.0,
	}
	fresh := personalization.InteractionEvent{
		UserID:    "user-1",
		ProductID: "sku-fresh",
		EventType: personalization.EventPurchase,
		Timestamp: time.Now().AddDate(0, 0, -1),
		Quantity:  1,
		UnitPrice: 2.0,
	}
	if err := s.Append(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	got, err := s.Events(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ProductID != "sku-fresh" {
		t.Errorf("retention did not drop old event: %v", got)
	}
}

func TestRecentUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	mk := func(user string, age time.Duration) personalization.InteractionEvent {
		return personalization.InteractionEvent{
			UserID:    user,
			ProductID: "sku-milk-1l",
			EventType: personalization.EventPurchase,
			Timestamp: now.Add(-age),
			Quantity:  1,
			UnitPrice: 2.0,
		}
	}
	if err := s.Append(ctx, mk("user-active", time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, mk("user-stale", 72*time.Hour)); err != nil {
		t.Fatal(err)
	}

	users, err := s.RecentUsers(ctx, now.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0] != "user-active" {
		t.Errorf("RecentUsers = %v, want [user-active]", users)
	}
}

func TestRecentUsersLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	for _, user := range []string{"a", "b", "c", "d"} {
		evt := personalization.InteractionEvent{
			UserID:    user,
			ProductID: "sku-milk-1l",
			EventType: personalization.EventPurchase,
			Timestamp: now,
			Quantity:  1,
			UnitPrice: 2.0,
		}
		if err := s.Append(ctx, evt); err != nil {
			t.Fatal(err)
		}
	}

	users, err := s.RecentUsers(ctx, now.Add(-time.Hour), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Errorf("RecentUsers with limit 2 returned %d", len(users))
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Options{Path: dir, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, purchase("user-1", "sku-milk-1l", 0, 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(Options{Path: dir, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s2.Close() })

	got, err := s2.Events(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("events after reopen = %d, want 1", len(got))
	}
}

func TestAppendHonorsContextCancellation(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Append(ctx, purchase("user-1", "sku-milk-1l", 0, 1)); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestUserIDsContainingDelimiterStayIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, purchase("alice:admin", "sku-oats-1kg", 0, 1)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, purchase("alice", "sku-milk-1l", 0, 1)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Events(ctx, "alice")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 1 || got[0].ProductID != "sku-milk-1l" {
		t.Fatalf("alice read %d events: %+v", len(got), got)
	}

	got, err = s.Events(ctx, "alice:admin")
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(got) != 1 || got[0].ProductID != "sku-oats-1kg" {
		t.Fatalf("alice:admin read %d events: %+v", len(got), got)
	}

	users, err := s.RecentUsers(ctx, testBase.Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("RecentUsers: %v", err)
	}
	seen := make(map[string]bool, len(users))
	for _, u := range users {
		seen[u] = true
	}
	if !seen["alice"] || !seen["alice:admin"] {
		t.Errorf("RecentUsers = %v, want both users", users)
	}
}

func TestUserSegmentRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		userID string
	}{
		{"plain", "user-1"},
		{"embedded delimiter", "alice:admin"},
		{"leading digits", "42:x"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeUserSegment(userSegment(tt.userID))
			if !ok || got != tt.userID {
				t.Errorf("round trip = %q, %v", got, ok)
			}
		})
	}

	for _, raw := range []string{"", "alice", ":x", "3:ab", "2:abc", "x:ab"} {
		if _, ok := decodeUserSegment(raw); ok {
			t.Errorf("decodeUserSegment(%q) accepted malformed input", raw)
		}
	}
}
