package goGuard

import (
	"errors"
	"time"
)

// Config is the static configuration of an [Engine]. Per-operation
// settings (rate limits, breakers, requirements) are applied at runtime
// through Engine methods or [Engine.ApplyPolicy].
type Config struct {
	RateLimit  RateLimiterConfig
	Approval   ApprovalConfig
	Resilience ResilienceConfig
	Router     RouterConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
RATE LIMITER CONFIG
====================================
*/

// Rate limit state backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RateLimiterConfig selects where rate limit state lives.
type RateLimiterConfig struct {
	Backend      string // "memory" (default) or "redis"
	RedisPrefix  string
	MemoryShards int
}

/*
====================================
APPROVAL CONFIG
====================================
*/

// ApprovalConfig sets the multisig policy for approval-gated operations.
type ApprovalConfig struct {
	RequiredApprovals int
	MinDelay          time.Duration
	Lifetime          time.Duration
}

/*
====================================
RESILIENCE CONFIG
====================================
*/

// ResilienceConfig sets the guardian quorum for High and Critical levels.
type ResilienceConfig struct {
	GuardianQuorum int
}

/*
====================================
ROUTER CONFIG
====================================
*/

type RouterConfig struct {
	StartInBypass bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		RateLimit: RateLimiterConfig{
			Backend:      BackendMemory,
			RedisPrefix:  "grl",
			MemoryShards: 64,
		},
		Approval: ApprovalConfig{
			RequiredApprovals: 2,
			MinDelay:          24 * time.Hour,
			Lifetime:          7 * 24 * time.Hour,
		},
		Resilience: ResilienceConfig{
			GuardianQuorum: 2,
		},
		Router: RouterConfig{
			StartInBypass: false,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first setting that cannot be enforced. The returned
// error wraps [ErrInvalidConfig].
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// Rate limiter
	switch c.RateLimit.Backend {
	case BackendMemory:
		if c.RateLimit.MemoryShards < 0 {
			return errors.New("RateLimit MemoryShards must be >= 0")
		}
	case BackendRedis:
		if c.RateLimit.RedisPrefix == "" {
			return errors.New("RateLimit RedisPrefix must be set for the redis backend")
		}
	default:
		return errors.New("unsupported RateLimit Backend")
	}

	// Approval
	if c.Approval.RequiredApprovals < 1 {
		return errors.New("Approval RequiredApprovals must be >= 1")
	}
	if c.Approval.MinDelay < 0 {
		return errors.New("Approval MinDelay must be >= 0")
	}
	if c.Approval.Lifetime <= c.Approval.MinDelay {
		return errors.New("Approval Lifetime must be > MinDelay")
	}

	// Resilience
	if c.Resilience.GuardianQuorum < 1 {
		return errors.New("Resilience GuardianQuorum must be >= 1")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
