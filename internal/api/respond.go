// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/logging"
)

// errorBody is the uniform error envelope.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("encoding response failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, r, status, body)
}
