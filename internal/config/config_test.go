// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Memory.AggregationTimeout != 2*time.Second {
		t.Errorf("AggregationTimeout = %v, want 2s", cfg.Memory.AggregationTimeout)
	}
	if cfg.Personalization.Patterns.UsualThreshold != 0.5 {
		t.Errorf("UsualThreshold = %f, want 0.5", cfg.Personalization.Patterns.UsualThreshold)
	}
	if cfg.Personalization.Reorder.BufferDays != 2 {
		t.Errorf("BufferDays = %d, want 2", cfg.Personalization.Reorder.BufferDays)
	}
	if cfg.Events.Topic != "grocery.events" {
		t.Errorf("Events.Topic = %q, want grocery.events", cfg.Events.Topic)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LEAFLOAF_SERVER__PORT", "9090")
	t.Setenv("LEAFLOAF_LOGGING__LEVEL", "debug")
	t.Setenv("LEAFLOAF_MEMORY__AGGREGATION_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Memory.AggregationTimeout != 750*time.Millisecond {
		t.Errorf("AggregationTimeout = %v, want 750ms", cfg.Memory.AggregationTimeout)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 8443
personalization:
  ranking:
    brand_boost: 2.0
  reorder:
    holidays:
      - 2026-12-25T00:00:00Z
      - 2027-01-01T00:00:00Z
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8443 {
		t.Errorf("Server.Port = %d, want 8443", cfg.Server.Port)
	}
	if cfg.Personalization.Ranking.BrandBoost != 2.0 {
		t.Errorf("BrandBoost = %f, want 2.0", cfg.Personalization.Ranking.BrandBoost)
	}
	if len(cfg.Personalization.Reorder.Holidays) != 2 {
		t.Fatalf("Holidays = %d entries, want 2", len(cfg.Personalization.Reorder.Holidays))
	}
	want := time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)
	if !cfg.Personalization.Reorder.Holidays[0].Equal(want) {
		t.Errorf("Holidays[0] = %v, want %v", cfg.Personalization.Reorder.Holidays[0], want)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8443\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("LEAFLOAF_SERVER__PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 (env wins over file)", cfg.Server.Port)
	}
}

func TestCommaSeparatedSliceFromEnv(t *testing.T) {
	t.Setenv("LEAFLOAF_SERVER__CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LEAFLOAF_SERVER__PORT", "server.port"},
		{"LEAFLOAF_MEMORY__CACHE__TTL", "memory.cache.ttl"},
		{"LEAFLOAF_MEMORY__HALF_LIFE_DAYS", "memory.half_life_days"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero timeout", func(c *Config) { c.Server.Timeout = 0 }},
		{"empty topic", func(c *Config) { c.Events.Topic = "" }},
		{"no subscribers", func(c *Config) { c.Events.SubscriberCount = 0 }},
		{"zero aggregation timeout", func(c *Config) { c.Memory.AggregationTimeout = 0 }},
		{"negative half life", func(c *Config) { c.Memory.HalfLifeDays = -1 }},
		{"refresh without interval", func(c *Config) {
			c.Refresh.Enabled = true
			c.Refresh.Interval = 0
		}},
		{"bad personalization threshold", func(c *Config) {
			c.Personalization.Patterns.UsualThreshold = 1.5
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
