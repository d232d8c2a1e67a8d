package resilience

import (
	"fmt"
	"strings"
	"time"
)

// Level grades how severely the system is restricted.
type Level uint8

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// ParseLevel accepts the String form of a level, case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return LevelNone, nil
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	case "critical":
		return LevelCritical, nil
	default:
		return LevelNone, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

func (l Level) Valid() bool { return l <= LevelCritical }

// Blocks reports whether operations are denied at this level.
func (l Level) Blocks() bool { return l >= LevelMedium && l.Valid() }

// RequiresConsensus reports whether activation needs a guardian quorum.
func (l Level) RequiresConsensus() bool { return l >= LevelHigh && l.Valid() }

// EmergencyState is the active emergency record of the global scope or of
// one named scope.
type EmergencyState struct {
	Level       Level
	Reason      string
	ActivatedBy string
	ActivatedAt time.Time
	Duration    time.Duration
	AutoResolve bool
}

// Expired reports whether an auto-resolving state has outlived Duration.
func (s EmergencyState) Expired(now time.Time) bool {
	return s.Level != LevelNone && s.AutoResolve && now.Sub(s.ActivatedAt) > s.Duration
}

// Effective returns the state as observed at now: an expired auto-resolving
// state reads as LevelNone.
func (s EmergencyState) Effective(now time.Time) EmergencyState {
	if s.Expired(now) {
		return EmergencyState{}
	}
	return s
}
