// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/logging"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/metrics"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
)

// maxBodyBytes bounds request bodies; candidate lists are the largest
// legitimate payload.
const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func (rt *Router) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	if rt.ready != nil && !rt.ready() {
		writeError(w, r, http.StatusServiceUnavailable, "not_ready", "server is starting up")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (rt *Router) handleUsualBasket(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_user", "user ID is required")
		return
	}

	metrics.EngineRequestsTotal.WithLabelValues("usual_basket").Inc()
	result := rt.engine.GetUsualBasket(r.Context(), userID)
	writeJSON(w, r, http.StatusOK, result)
}

func (rt *Router) handleReorderSuggestions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_user", "user ID is required")
		return
	}

	// An explicit reference time supports "what is due by Friday"
	// queries; default is the server clock.
	now := time.Now().UTC()
	if raw := r.URL.Query().Get("now"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_now", "now must be RFC 3339")
			return
		}
		now = parsed
	}

	metrics.EngineRequestsTotal.WithLabelValues("reorder_suggestions").Inc()
	result := rt.engine.GetReorderSuggestions(r.Context(), userID, now)
	writeJSON(w, r, http.StatusOK, result)
}

// rerankRequest is the POST body for the rerank operation.
type rerankRequest struct {
	SessionID  string                    `json:"session_id"`
	Candidates []personalization.Product `json:"candidates" validate:"required,min=1,max=500,dive"`
}

func (rt *Router) handleRerank(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_user", "user ID is required")
		return
	}

	var req rerankRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_body", "request body is not valid JSON")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_candidates", err.Error())
		return
	}

	metrics.EngineRequestsTotal.WithLabelValues("rerank").Inc()
	result := rt.engine.Rerank(r.Context(), userID, req.SessionID, req.Candidates)
	if !result.Personalized {
		metrics.RerankSuppressed.Inc()
	}
	if result.Excluded > 0 {
		metrics.RerankExcluded.Add(float64(result.Excluded))
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (rt *Router) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_user", "user ID is required")
		return
	}
	if rt.profiles == nil {
		writeError(w, r, http.StatusServiceUnavailable, "profiles_disabled", "profile storage is not configured")
		return
	}

	var profile personalization.UserPreferenceProfile
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_body", "request body is not valid JSON")
		return
	}
	if profile.PriceSensitivity < 0 || profile.PriceSensitivity > 1 {
		writeError(w, r, http.StatusBadRequest, "bad_profile", "price_sensitivity must be in [0,1]")
		return
	}

	rt.profiles.Set(userID, profile)
	// The new profile must win over any cached context or rerank
	// result; a declared dietary restriction cannot wait out a TTL.
	if rt.invalidate != nil {
		rt.invalidate.InvalidateUser(userID)
	}
	logging.Ctx(r.Context()).Info().Str("user_id", userID).Msg("profile updated")
	writeJSON(w, r, http.StatusNoContent, nil)
}

func (rt *Router) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	if rt.events == nil {
		writeError(w, r, http.StatusServiceUnavailable, "ingestion_disabled", "event ingestion is not configured")
		return
	}

	var evt personalization.InteractionEvent
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_body", "request body is not valid JSON")
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if err := rt.events.Publish(r.Context(), &evt); err != nil {
		if err := evt.Validate(); err != nil {
			writeError(w, r, http.StatusBadRequest, "bad_event", "event failed validation")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("publishing event failed")
		writeError(w, r, http.StatusInternalServerError, "publish_failed", "event could not be accepted")
		return
	}

	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}
