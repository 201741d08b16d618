// Package config loads and validates the hub's runtime configuration
// from environment variables, with an optional .env file for local
// development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable the hub reads at startup.
//
// Tags:
//
//	env: environment variable name
//	envDefault: default value if not set
type Config struct {
	// HTTP surface
	Addr string `env:"TAGHUB_ADDR" envDefault:":8080"`

	// Kafka ingress
	KafkaBrokers  string `env:"KAFKA_BROKERS" envDefault:"localhost:19092"`
	KafkaTopic    string `env:"KAFKA_TOPIC" envDefault:"tag-values"`
	ConsumerGroup string `env:"KAFKA_CONSUMER_GROUP" envDefault:"taghub-group"`

	// NATS JetStream KV snapshot store
	NatsURL      string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	KVBucket     string `env:"TAGHUB_KV_BUCKET" envDefault:"taghub-snapshots"`
	KVScopePrefix string `env:"TAGHUB_KV_SCOPE_PREFIX" envDefault:""`

	// Subscription manager
	MaxSubscriptions  int `env:"TAGHUB_MAX_SUBSCRIPTIONS" envDefault:"10000"`
	SubscriberQueueCap int `env:"TAGHUB_SUBSCRIBER_QUEUE_CAP" envDefault:"10"`

	// Polling driver
	PollInterval  time.Duration `env:"TAGHUB_POLL_INTERVAL" envDefault:"1s"`
	PollPageSize  int           `env:"TAGHUB_POLL_PAGE_SIZE" envDefault:"100"`
	PollRateLimit int           `env:"TAGHUB_POLL_RATE_LIMIT" envDefault:"500"`

	// Cache eviction policy on last-unsubscribe: "keep" or "evict".
	CacheEvictionPolicy string `env:"TAGHUB_CACHE_EVICTION_POLICY" envDefault:"keep"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from an optional .env file and the process
// environment (environment variables win), then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// No .env file is fine; environment variables alone are enough
		// in a container.
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks range and enum constraints not expressible via
// struct tags.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("TAGHUB_ADDR is required")
	}
	if c.MaxSubscriptions < 0 {
		return fmt.Errorf("TAGHUB_MAX_SUBSCRIPTIONS must be >= 0, got %d", c.MaxSubscriptions)
	}
	if c.SubscriberQueueCap < 1 {
		return fmt.Errorf("TAGHUB_SUBSCRIBER_QUEUE_CAP must be > 0, got %d", c.SubscriberQueueCap)
	}
	if c.PollPageSize < 1 {
		return fmt.Errorf("TAGHUB_POLL_PAGE_SIZE must be > 0, got %d", c.PollPageSize)
	}
	if c.PollRateLimit < 1 {
		return fmt.Errorf("TAGHUB_POLL_RATE_LIMIT must be > 0, got %d", c.PollRateLimit)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got %s)", c.LogLevel)
	}

	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got %s)", c.LogFormat)
	}

	validEvictionPolicies := map[string]bool{"keep": true, "evict": true}
	if !validEvictionPolicies[c.CacheEvictionPolicy] {
		return fmt.Errorf("TAGHUB_CACHE_EVICTION_POLICY must be one of: keep, evict (got %s)", c.CacheEvictionPolicy)
	}

	return nil
}
