// LeafLoaf - Grocery Personalization Engine
// Copyright 2026 Adeetya (adeetya02)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/adeetya02/LeafLoafLangGraph-sub004

// Package config loads and validates the LeafLoaf server configuration.
//
// Configuration is layered with koanf v2, in order of increasing
// precedence:
//
//  1. Built-in defaults
//  2. Optional YAML config file (CONFIG_PATH or the default search paths)
//  3. Environment variables with the LEAFLOAF_ prefix
//
// Environment variable names map to config paths with a double
// underscore as the nesting separator:
//
//	LEAFLOAF_SERVER__PORT=8080          -> server.port
//	LEAFLOAF_LOGGING__LEVEL=debug       -> logging.level
//	LEAFLOAF_MEMORY__CACHE_TTL=10m      -> memory.cache_ttl
//
// Holiday dates are RFC 3339 timestamps; list-valued settings accept
// comma-separated strings when set through the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/cache"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/logging"
	"github.com/adeetya02/LeafLoafLangGraph-sub004/internal/personalization"
)

// DefaultConfigPaths lists where config files are searched, first hit wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/leafloaf/config.yaml",
	"/etc/leafloaf/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces LeafLoaf environment variables.
const envPrefix = "LEAFLOAF_"

// Config is the root configuration for the LeafLoaf server.
type Config struct {
	Server          ServerConfig           `koanf:"server"`
	Logging         logging.Config         `koanf:"logging"`
	History         HistoryConfig          `koanf:"history"`
	Events          EventsConfig           `koanf:"events"`
	Personalization personalization.Config `koanf:"personalization"`
	Memory          MemoryConfig           `koanf:"memory"`
	Refresh         RefreshConfig          `koanf:"refresh"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// HistoryConfig holds the Badger event store settings.
type HistoryConfig struct {
	// Path is the Badger directory. Empty means in-memory, which is
	// what tests and local development use.
	Path string `koanf:"path"`

	// RetentionDays bounds how far back PurchaseHistory reads.
	// Zero disables the cutoff.
	RetentionDays int `koanf:"retention_days"`
}

// EventsConfig holds the Watermill ingestion settings. With an empty
// NATSURL events flow over an in-process Go channel transport.
type EventsConfig struct {
	NATSURL         string        `koanf:"nats_url"`
	Topic           string        `koanf:"topic"`
	SubscriberCount int           `koanf:"subscriber_count"`
	RetryCount      int           `koanf:"retry_count"`
	RetryInterval   time.Duration `koanf:"retry_interval"`
	CloseTimeout    time.Duration `koanf:"close_timeout"`
}

// MemoryConfig holds the context aggregator settings.
type MemoryConfig struct {
	// AggregationTimeout caps the whole fan-out; sources that miss it
	// are reported as timed out and the context is marked partial.
	AggregationTimeout time.Duration `koanf:"aggregation_timeout"`

	Cache cache.Config `koanf:"cache"`

	// HalfLifeDays controls recency decay when deriving affinities
	// from interaction history.
	HalfLifeDays float64 `koanf:"half_life_days"`

	// OrdersForFullQuality is the order count at which the history
	// component of the context quality score saturates.
	OrdersForFullQuality int `koanf:"orders_for_full_quality"`

	// Breaker settings are shared by all signal sources.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// RefreshConfig holds the background context refresh settings.
type RefreshConfig struct {
	Enabled bool `koanf:"enabled"`

	// Interval between refresh sweeps.
	Interval time.Duration `koanf:"interval"`

	// ActiveWindow selects users with events newer than this.
	ActiveWindow time.Duration `koanf:"active_window"`

	// MaxUsers bounds how many users one sweep refreshes.
	MaxUsers int `koanf:"max_users"`
}

// defaultConfig returns the built-in defaults, overridden by file and
// environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: logging.DefaultConfig(),
		History: HistoryConfig{
			Path:          "/data/leafloaf/history",
			RetentionDays: 365,
		},
		Events: EventsConfig{
			NATSURL:         "",
			Topic:           "grocery.events",
			SubscriberCount: 2,
			RetryCount:      3,
			RetryInterval:   100 * time.Millisecond,
			CloseTimeout:    30 * time.Second,
		},
		Personalization: *personalization.DefaultConfig(),
		Memory: MemoryConfig{
			AggregationTimeout: 2 * time.Second,
			Cache: cache.Config{
				Kind:     "ttl",
				TTL:      5 * time.Minute,
				Capacity: 10000,
			},
			HalfLifeDays:         30,
			OrdersForFullQuality: 5,
			BreakerMaxFailures:   5,
			BreakerInterval:      time.Minute,
			BreakerTimeout:       30 * time.Second,
		},
		Refresh: RefreshConfig{
			Enabled:      false,
			Interval:     10 * time.Minute,
			ActiveWindow: 24 * time.Hour,
			MaxUsers:     500,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and LEAFLOAF_ environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envTransform maps LEAFLOAF_SERVER__PORT to server.port. Double
// underscores nest; single underscores stay inside the key.
func envTransform(name string) string {
	name = strings.TrimPrefix(name, envPrefix)
	name = strings.ToLower(name)
	return strings.ReplaceAll(name, "__", ".")
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists settings parsed as comma-separated lists when
// provided through the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"personalization.reorder.holidays",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		s, ok := val.(string)
		if !ok {
			continue // already a slice from the YAML layer
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

// Validate checks the full configuration tree.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("server.rate_limit_reqs must not be negative")
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must not be negative")
	}
	if c.Events.Topic == "" {
		return fmt.Errorf("events.topic must not be empty")
	}
	if c.Events.SubscriberCount < 1 {
		return fmt.Errorf("events.subscriber_count must be at least 1")
	}
	if c.Memory.AggregationTimeout <= 0 {
		return fmt.Errorf("memory.aggregation_timeout must be positive")
	}
	if c.Memory.HalfLifeDays <= 0 {
		return fmt.Errorf("memory.half_life_days must be positive")
	}
	if c.Memory.Cache.TTL <= 0 {
		return fmt.Errorf("memory.cache.ttl must be positive")
	}
	if c.Refresh.Enabled {
		if c.Refresh.Interval <= 0 {
			return fmt.Errorf("refresh.interval must be positive")
		}
		if c.Refresh.MaxUsers < 1 {
			return fmt.Errorf("refresh.max_users must be at least 1")
		}
	}
	if err := c.Personalization.Validate(); err != nil {
		return fmt.Errorf("personalization: %w", err)
	}
	return nil
}
