package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// Algorithm selects the throttling strategy for one operation.
type Algorithm uint8

const (
	FixedWindow Algorithm = iota
	SlidingWindow
	TokenBucket
)

func (a Algorithm) String() string {
	switch a {
	case FixedWindow:
		return "fixed_window"
	case SlidingWindow:
		return "sliding_window"
	case TokenBucket:
		return "token_bucket"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

// ParseAlgorithm accepts the String form of an algorithm, case-insensitive.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed_window", "fixed":
		return FixedWindow, nil
	case "sliding_window", "sliding":
		return SlidingWindow, nil
	case "token_bucket", "bucket":
		return TokenBucket, nil
	default:
		return 0, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidConfig, s)
	}
}

// Config describes the limit applied to one operation.
type Config struct {
	Algorithm       Algorithm
	MaxRequests     uint64
	Window          time.Duration
	RefillPerSecond float64
	Global          bool
	Active          bool
}

// Validate rejects configurations that could never admit a request or that
// name an unknown algorithm.
func (c Config) Validate() error {
	if c.MaxRequests == 0 {
		return fmt.Errorf("%w: MaxRequests must be > 0", ErrInvalidConfig)
	}
	switch c.Algorithm {
	case FixedWindow, SlidingWindow:
		if c.Window <= 0 {
			return fmt.Errorf("%w: Window must be > 0 for %s", ErrInvalidConfig, c.Algorithm)
		}
	case TokenBucket:
		if c.RefillPerSecond <= 0 {
			return fmt.Errorf("%w: RefillPerSecond must be > 0 for token_bucket", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported algorithm %s", ErrInvalidConfig, c.Algorithm)
	}
	return nil
}

// State is the persisted counter state of one rate limit key.
type State struct {
	RequestCount uint64
	WindowStart  time.Time
	LastRequest  time.Time
	Tokens       float64
	LastRefill   time.Time
}

// Apply runs one check-and-consume step. exists reports whether st was
// loaded from a store; a missing state is initialized for cfg at now. The
// returned state must be persisted whether or not the request was allowed.
func Apply(cfg Config, st State, exists bool, now time.Time) (State, bool) {
	switch cfg.Algorithm {
	case FixedWindow:
		if !exists || elapsed(st.WindowStart, now) >= cfg.Window {
			st.WindowStart = now
			st.RequestCount = 0
		}
		if st.RequestCount >= cfg.MaxRequests {
			return st, false
		}
		st.RequestCount++
		st.LastRequest = now
		return st, true

	case SlidingWindow:
		if !exists || elapsed(st.LastRequest, now) >= cfg.Window {
			st.RequestCount = 0
			st.WindowStart = now
		}
		if st.RequestCount >= cfg.MaxRequests {
			return st, false
		}
		st.RequestCount++
		st.LastRequest = now
		return st, true

	case TokenBucket:
		capacity := float64(cfg.MaxRequests)
		if !exists {
			st.Tokens = capacity
			st.LastRefill = now
		}
		st.Tokens += elapsed(st.LastRefill, now).Seconds() * cfg.RefillPerSecond
		if st.Tokens > capacity {
			st.Tokens = capacity
		}
		if now.After(st.LastRefill) {
			st.LastRefill = now
		}
		if st.Tokens < 1 {
			return st, false
		}
		st.Tokens--
		st.RequestCount++
		st.LastRequest = now
		return st, true
	}

	return st, true
}

func elapsed(from, now time.Time) time.Duration {
	d := now.Sub(from)
	if d < 0 {
		return 0
	}
	return d
}
