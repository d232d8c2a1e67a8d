package resilience

import (
	"fmt"
	"time"
)

// BreakerConfig configures the circuit breaker of one operation.
type BreakerConfig struct {
	Threshold       uint64
	Window          time.Duration
	Cooldown        time.Duration
	TriggerSeverity Level
}

func (c BreakerConfig) Validate() error {
	if c.Threshold == 0 {
		return fmt.Errorf("%w: Threshold must be > 0", ErrInvalidConfig)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: Window must be > 0", ErrInvalidConfig)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("%w: Cooldown must be > 0", ErrInvalidConfig)
	}
	if !c.TriggerSeverity.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidLevel, c.TriggerSeverity)
	}
	return nil
}

// BreakerState is the stored failure record of one operation. IsOpen as
// stored may be stale; OpenAt gives the effective value.
type BreakerState struct {
	FailureCount uint64
	WindowStart  time.Time
	IsOpen       bool
	OpenedAt     time.Time
}

// OpenAt reports whether the breaker blocks at now.
func (s BreakerState) OpenAt(cfg BreakerConfig, now time.Time) bool {
	return s.IsOpen && now.Sub(s.OpenedAt) <= cfg.Cooldown
}

// observe returns the state as seen at now, closing a breaker whose
// cooldown has elapsed.
func (s BreakerState) observe(cfg BreakerConfig, now time.Time) BreakerState {
	if s.IsOpen && !s.OpenAt(cfg, now) {
		return BreakerState{WindowStart: now}
	}
	return s
}

// recordFailure applies one failure at now. tripped reports whether the
// failure count reached the threshold, which (re)opens the breaker.
func recordFailure(cfg BreakerConfig, st BreakerState, now time.Time) (next BreakerState, tripped bool) {
	st = st.observe(cfg, now)
	if st.WindowStart.IsZero() || now.Sub(st.WindowStart) >= cfg.Window {
		st.WindowStart = now
		st.FailureCount = 0
	}
	st.FailureCount++
	if st.FailureCount >= cfg.Threshold {
		st.IsOpen = true
		st.OpenedAt = now
		return st, true
	}
	return st, false
}
