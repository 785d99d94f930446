// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package eventstream

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
)

// Serializer encodes interaction events for the message transport.
type Serializer struct{}

// NewSerializer creates a serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Marshal validates and encodes an event as JSON.
func (s *Serializer) Marshal(evt *personalization.InteractionEvent) ([]byte, error) {
	if err := evt.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Unmarshal decodes JSON into an event and validates it.
func (s *Serializer) Unmarshal(data []byte) (*personalization.InteractionEvent, error) {
	var evt personalization.InteractionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := evt.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	return &evt, nil
}
