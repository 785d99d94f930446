// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
)

type fakeEngine struct {
	lastNow       time.Time
	lastUser      string
	lastSession   string
	lastCandidate int
}

func (f *fakeEngine) GetUsualBasket(_ context.Context, userID string) *personalization.UsualBasketResult {
	f.lastUser = userID
	return &personalization.UsualBasketResult{
		UserID:          userID,
		Items:           []personalization.UsualItem{{Sku: "sku-milk-1l", UsualQuantity: 2, Frequency: 0.8, Confidence: 0.5}},
		ConfidenceScore: 0.5,
		TotalOrders:     5,
	}
}

func (f *fakeEngine) GetReorderSuggestions(_ context.Context, userID string, now time.Time) *personalization.ReorderSuggestionResult {
	f.lastUser = userID
	f.lastNow = now
	return &personalization.ReorderSuggestionResult{UserID: userID}
}

func (f *fakeEngine) Rerank(_ context.Context, userID, sessionID string, candidates []personalization.Product) *personalization.RerankedList {
	f.lastUser = userID
	f.lastSession = sessionID
	f.lastCandidate = len(candidates)
	items := append([]personalization.Product(nil), candidates...)
	return &personalization.RerankedList{Items: items, Personalized: true, DataQualityScore: 0.9}
}

type fakePublisher struct {
	published []personalization.InteractionEvent
}

func (f *fakePublisher) Publish(_ context.Context, evt *personalization.InteractionEvent) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	f.published = append(f.published, *evt)
	return nil
}

type fakeProfiles struct {
	set map[string]personalization.UserPreferenceProfile
}

func (f *fakeProfiles) Set(userID string, p personalization.UserPreferenceProfile) {
	if f.set == nil {
		f.set = make(map[string]personalization.UserPreferenceProfile)
	}
	f.set[userID] = p
}

func newTestServer(t *testing.T, engine *fakeEngine, pub *fakePublisher, profiles *fakeProfiles, ready func() bool) *httptest.Server {
	t.Helper()
	cfg := Config{RateLimitReqs: 0, CORSOrigins: []string{"*"}}
	var pubIface EventPublisher
	if pub != nil {
		pubIface = pub
	}
	var profIface ProfileWriter
	if profiles != nil {
		profIface = profiles
	}
	rt := NewRouter(cfg, engine, pubIface, profIface, nil, ready, zerolog.Nop())
	srv := httptest.NewServer(rt.Setup())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthEndpoints(t *testing.T) {
	var ready atomic.Bool
	srv := newTestServer(t, &fakeEngine{}, nil, nil, ready.Load)

	resp, err := http.Get(srv.URL + "/api/v1/health/live")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("live = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready while starting = %d, want 503", resp.StatusCode)
	}

	ready.Store(true)
	resp, err = http.Get(srv.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d, want 200", resp.StatusCode)
	}
}

func TestUsualBasketEndpoint(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(t, engine, nil, nil, nil)

	resp, err := http.Get(srv.URL + "/api/v1/personalization/user-1/usual-basket")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if engine.lastUser != "user-1" {
		t.Errorf("engine saw user %q", engine.lastUser)
	}

	var result personalization.UsualBasketResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].Sku != "sku-milk-1l" {
		t.Errorf("items = %v", result.Items)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestReorderSuggestionsNowParam(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(t, engine, nil, nil, nil)

	resp, err := http.Get(srv.URL + "/api/v1/personalization/user-1/reorder-suggestions?now=2026-03-06T00:00:00Z")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	want := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	if !engine.lastNow.Equal(want) {
		t.Errorf("engine saw now = %v, want %v", engine.lastNow, want)
	}

	resp, err = http.Get(srv.URL + "/api/v1/personalization/user-1/reorder-suggestions?now=tomorrow")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad now = %d, want 400", resp.StatusCode)
	}
}

func TestRerankEndpoint(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(t, engine, nil, nil, nil)

	body := rerankRequest{
		SessionID: "session-9",
		Candidates: []personalization.Product{
			{Sku: "sku-a", Relevance: 0.9},
			{Sku: "sku-b", Relevance: 0.7},
		},
	}
	data, _ := json.Marshal(body)

	resp, err := http.Post(srv.URL+"/api/v1/personalization/user-1/rerank", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if engine.lastSession != "session-9" || engine.lastCandidate != 2 {
		t.Errorf("engine saw session=%q candidates=%d", engine.lastSession, engine.lastCandidate)
	}

	var result personalization.RerankedList
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if !result.Personalized || len(result.Items) != 2 {
		t.Errorf("result = %+v", result)
	}
}

func TestRerankRejectsBadBodies(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, nil, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"candidates": [`},
		{"no candidates", `{"session_id":"s","candidates":[]}`},
		{"candidate without sku", `{"candidates":[{"relevance":0.5}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/personalization/user-1/rerank", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestIngestEventEndpoint(t *testing.T) {
	pub := &fakePublisher{}
	srv := newTestServer(t, &fakeEngine{}, pub, nil, nil)

	evt := personalization.InteractionEvent{
		UserID:    "user-1",
		ProductID: "sku-milk-1l",
		EventType: personalization.EventPurchase,
		Quantity:  1,
		UnitPrice: 2.79,
		Timestamp: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	data, _ := json.Marshal(evt)

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published = %d events", len(pub.published))
	}

	// Purchase without a price is rejected before ingestion.
	evt.UnitPrice = 0
	data, _ = json.Marshal(evt)
	resp, err = http.Post(srv.URL+"/api/v1/events", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid event = %d, want 400", resp.StatusCode)
	}
}

func TestIngestWithoutPublisher(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, nil, nil, nil)

	resp, err := http.Post(srv.URL+"/api/v1/events", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestPutProfileEndpoint(t *testing.T) {
	profiles := &fakeProfiles{}
	srv := newTestServer(t, &fakeEngine{}, nil, profiles, nil)

	body := `{"dietary_restrictions":["contains-nuts"],"price_sensitivity":0.7}`
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/personalization/user-1/profile", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	stored := profiles.set["user-1"]
	if len(stored.DietaryRestrictions) != 1 || stored.PriceSensitivity != 0.7 {
		t.Errorf("stored profile = %+v", stored)
	}

	bad := `{"price_sensitivity":1.5}`
	req, _ = http.NewRequest(http.MethodPut, srv.URL+"/api/v1/personalization/user-1/profile", strings.NewReader(bad))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out-of-range sensitivity = %d, want 400", resp.StatusCode)
	}
}

type fakeInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeInvalidator) InvalidateUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
}

func (f *fakeInvalidator) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users...)
}

func TestPutProfileInvalidatesCaches(t *testing.T) {
	profiles := &fakeProfiles{}
	inv := &fakeInvalidator{}
	rt := NewRouter(Config{}, &fakeEngine{}, nil, profiles, inv, nil, zerolog.Nop())
	srv := httptest.NewServer(rt.Setup())
	t.Cleanup(srv.Close)

	body := `{"dietary_restrictions":["contains-gluten"]}`
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/personalization/user-1/profile", strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	if got := inv.calls(); len(got) != 1 || got[0] != "user-1" {
		t.Errorf("invalidated = %v, want [user-1]", got)
	}

	// A rejected profile must not flush anything.
	req, _ = http.NewRequest(http.MethodPut, srv.URL+"/api/v1/personalization/user-1/profile", strings.NewReader(`{"price_sensitivity":2}`))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if got := inv.calls(); len(got) != 1 {
		t.Errorf("invalidated on rejected profile: %v", got)
	}
}
