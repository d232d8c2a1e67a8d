package resilience

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// VoteID binds guardian votes to one exact activation request.
type VoteID [32]byte

func (v VoteID) String() string {
	return hex.EncodeToString(v[:])
}

// ParseVoteID decodes the String form of a VoteID.
func ParseVoteID(s string) (VoteID, error) {
	var id VoteID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("invalid vote id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

const voteDomain = "goguard.vote.v1"

// ComputeVoteID hashes the activation parameters. Every field is length
// prefixed and the scope is always present, empty for the global level.
// at is truncated to the second, so votes and activation must share the
// same unix second.
func ComputeVoteID(level Level, duration time.Duration, reason, scope string, at time.Time) VoteID {
	h := sha256.New()
	writeField(h, []byte(voteDomain))
	writeField(h, []byte{byte(level)})
	writeField(h, binary.BigEndian.AppendUint64(nil, uint64(duration.Nanoseconds())))
	writeField(h, []byte(reason))
	writeField(h, []byte(scope))
	writeField(h, binary.BigEndian.AppendUint64(nil, uint64(at.Unix())))

	var id VoteID
	copy(id[:], h.Sum(nil))
	return id
}

func writeField(h hash.Hash, b []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(b)))
	h.Write(n[:])
	h.Write(b)
}

type breakerEntry struct {
	mu  sync.Mutex
	cfg BreakerConfig
	st  BreakerState
}

// FailureResult describes the effect of one recorded failure.
type FailureResult struct {
	Configured bool
	State      BreakerState
	Tripped    bool
	Escalated  bool
	Level      Level
}

// Monitor owns circuit breakers, emergency levels, and guardian votes.
//
// Readers load emergency snapshots without locking. Writers of emergency
// state serialize on one mutex; breaker writers lock only their operation.
type Monitor struct {
	quorum int

	bmu      sync.RWMutex
	breakers map[string]*breakerEntry

	emu      sync.Mutex
	global   atomic.Pointer[EmergencyState]
	scoped   atomic.Pointer[map[string]EmergencyState]
	votes    map[VoteID]map[string]struct{}
	consumed map[VoteID]struct{}
}

// NewMonitor creates a Monitor requiring quorum guardian votes for High and
// Critical activations.
func NewMonitor(quorum int) *Monitor {
	if quorum < 1 {
		quorum = 1
	}
	m := &Monitor{
		quorum:   quorum,
		breakers: make(map[string]*breakerEntry),
		votes:    make(map[VoteID]map[string]struct{}),
		consumed: make(map[VoteID]struct{}),
	}
	m.global.Store(&EmergencyState{})
	empty := map[string]EmergencyState{}
	m.scoped.Store(&empty)
	return m
}

// Quorum returns the number of guardian votes High and Critical need.
func (m *Monitor) Quorum() int { return m.quorum }

/*
====================================
CIRCUIT BREAKERS
====================================
*/

// SetBreaker installs or replaces the breaker configuration of op. Existing
// failure state is kept.
func (m *Monitor) SetBreaker(op string, cfg BreakerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.bmu.Lock()
	defer m.bmu.Unlock()

	if e, ok := m.breakers[op]; ok {
		e.mu.Lock()
		e.cfg = cfg
		e.mu.Unlock()
		return nil
	}
	m.breakers[op] = &breakerEntry{cfg: cfg}
	return nil
}

func (m *Monitor) entry(op string) (*breakerEntry, bool) {
	m.bmu.RLock()
	e, ok := m.breakers[op]
	m.bmu.RUnlock()
	return e, ok
}

// RecordFailure counts one failure of op at now. When the breaker trips
// and its severity is set, the global emergency level is raised (never
// lowered) for one cooldown. Unconfigured operations are ignored.
func (m *Monitor) RecordFailure(op string, now time.Time) FailureResult {
	e, ok := m.entry(op)
	if !ok {
		return FailureResult{}
	}

	e.mu.Lock()
	next, tripped := recordFailure(e.cfg, e.st, now)
	e.st = next
	cfg := e.cfg
	e.mu.Unlock()

	res := FailureResult{Configured: true, State: next, Tripped: tripped}
	if tripped && cfg.TriggerSeverity != LevelNone {
		res.Escalated = m.Escalate(cfg.TriggerSeverity, cfg.Cooldown, "circuit breaker tripped: "+op, "circuit_breaker", now)
		res.Level = cfg.TriggerSeverity
	}
	return res
}

// ResetBreaker clears the failure state of op.
func (m *Monitor) ResetBreaker(op string) error {
	e, ok := m.entry(op)
	if !ok {
		return ErrNotConfigured
	}
	e.mu.Lock()
	e.st = BreakerState{}
	e.mu.Unlock()
	return nil
}

// Breaker returns the configuration of op and its state as observed at
// now, with IsOpen recomputed from the cooldown.
func (m *Monitor) Breaker(op string, now time.Time) (BreakerConfig, BreakerState, bool) {
	e, ok := m.entry(op)
	if !ok {
		return BreakerConfig{}, BreakerState{}, false
	}
	e.mu.Lock()
	cfg, st := e.cfg, e.st
	e.mu.Unlock()

	st.IsOpen = st.OpenAt(cfg, now)
	return cfg, st, true
}

// BreakerOps lists configured breakers in sorted order.
func (m *Monitor) BreakerOps() []string {
	m.bmu.RLock()
	out := make([]string, 0, len(m.breakers))
	for op := range m.breakers {
		out = append(out, op)
	}
	m.bmu.RUnlock()
	sort.Strings(out)
	return out
}

/*
====================================
EMERGENCY LEVELS
====================================
*/

// Global returns the effective global emergency state at now.
func (m *Monitor) Global(now time.Time) EmergencyState {
	return m.global.Load().Effective(now)
}

// Scoped returns the effective emergency state of scope at now.
func (m *Monitor) Scoped(scope string, now time.Time) EmergencyState {
	st, ok := (*m.scoped.Load())[scope]
	if !ok {
		return EmergencyState{}
	}
	return st.Effective(now)
}

// ScopedAll returns every effective non-None scoped state at now.
func (m *Monitor) ScopedAll(now time.Time) map[string]EmergencyState {
	out := make(map[string]EmergencyState)
	for scope, st := range *m.scoped.Load() {
		if eff := st.Effective(now); eff.Level != LevelNone {
			out[scope] = eff
		}
	}
	return out
}

// Vote records voter's approval of id and returns the vote count.
func (m *Monitor) Vote(id VoteID, voter string) (int, error) {
	m.emu.Lock()
	defer m.emu.Unlock()

	if _, used := m.consumed[id]; used {
		return 0, ErrVoteConsumed
	}
	set, ok := m.votes[id]
	if !ok {
		set = make(map[string]struct{})
		m.votes[id] = set
	}
	if _, dup := set[voter]; dup {
		return len(set), ErrAlreadyVoted
	}
	set[voter] = struct{}{}
	return len(set), nil
}

// Votes returns the number of unconsumed votes for id.
func (m *Monitor) Votes(id VoteID) int {
	m.emu.Lock()
	defer m.emu.Unlock()
	return len(m.votes[id])
}

// consumeQuorum checks and consumes the votes for id. Callers hold emu.
func (m *Monitor) consumeQuorum(id VoteID) error {
	if _, used := m.consumed[id]; used {
		return ErrVoteConsumed
	}
	if len(m.votes[id]) < m.quorum {
		return ErrInsufficientGuardianVotes
	}
	delete(m.votes, id)
	m.consumed[id] = struct{}{}
	return nil
}

// Activate sets the global emergency level. High and Critical require a
// guardian quorum on ComputeVoteID(level, duration, reason, "", now).
// Activation never lowers the effective level.
func (m *Monitor) Activate(actor string, level Level, duration time.Duration, reason string, autoResolve bool, now time.Time) (EmergencyState, error) {
	if level == LevelNone || !level.Valid() {
		return EmergencyState{}, fmt.Errorf("%w: %s", ErrInvalidLevel, level)
	}

	m.emu.Lock()
	defer m.emu.Unlock()

	if current := m.global.Load().Effective(now); level < current.Level {
		return EmergencyState{}, ErrEmergencyDowngrade
	}
	if level.RequiresConsensus() {
		if err := m.consumeQuorum(ComputeVoteID(level, duration, reason, "", now)); err != nil {
			return EmergencyState{}, err
		}
	}

	st := EmergencyState{
		Level:       level,
		Reason:      reason,
		ActivatedBy: actor,
		ActivatedAt: now,
		Duration:    duration,
		AutoResolve: autoResolve,
	}
	m.global.Store(&st)
	return st, nil
}

// Escalate raises the global level to level without consensus when it is
// currently lower. It reports whether the level changed.
func (m *Monitor) Escalate(level Level, duration time.Duration, reason, actor string, now time.Time) bool {
	if level == LevelNone || !level.Valid() {
		return false
	}
	m.emu.Lock()
	defer m.emu.Unlock()

	if current := m.global.Load().Effective(now); level <= current.Level {
		return false
	}
	m.global.Store(&EmergencyState{
		Level:       level,
		Reason:      reason,
		ActivatedBy: actor,
		ActivatedAt: now,
		Duration:    duration,
		AutoResolve: true,
	})
	return true
}

// Deactivate clears the global emergency.
func (m *Monitor) Deactivate() EmergencyState {
	m.emu.Lock()
	defer m.emu.Unlock()
	prev := *m.global.Load()
	m.global.Store(&EmergencyState{})
	return prev
}

// ActivateScoped mirrors Activate for one scope. The state auto-resolves
// when duration is positive.
func (m *Monitor) ActivateScoped(actor, scope string, level Level, duration time.Duration, reason string, now time.Time) (EmergencyState, error) {
	if level == LevelNone || !level.Valid() {
		return EmergencyState{}, fmt.Errorf("%w: %s", ErrInvalidLevel, level)
	}

	m.emu.Lock()
	defer m.emu.Unlock()

	current := *m.scoped.Load()
	if prev, ok := current[scope]; ok && level < prev.Effective(now).Level {
		return EmergencyState{}, ErrEmergencyDowngrade
	}
	if level.RequiresConsensus() {
		if err := m.consumeQuorum(ComputeVoteID(level, duration, reason, scope, now)); err != nil {
			return EmergencyState{}, err
		}
	}

	st := EmergencyState{
		Level:       level,
		Reason:      reason,
		ActivatedBy: actor,
		ActivatedAt: now,
		Duration:    duration,
		AutoResolve: duration > 0,
	}
	next := make(map[string]EmergencyState, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[scope] = st
	m.scoped.Store(&next)
	return st, nil
}

// DeactivateScoped clears the emergency of scope.
func (m *Monitor) DeactivateScoped(scope string) EmergencyState {
	m.emu.Lock()
	defer m.emu.Unlock()

	current := *m.scoped.Load()
	prev, ok := current[scope]
	if !ok {
		return EmergencyState{}
	}
	next := make(map[string]EmergencyState, len(current))
	for k, v := range current {
		if k != scope {
			next[k] = v
		}
	}
	m.scoped.Store(&next)
	return prev
}

// AutoResolve clears every expired auto-resolving state and reports what
// was cleared.
func (m *Monitor) AutoResolve(now time.Time) (global bool, scopes []string) {
	m.emu.Lock()
	defer m.emu.Unlock()

	if m.global.Load().Expired(now) {
		m.global.Store(&EmergencyState{})
		global = true
	}

	current := *m.scoped.Load()
	next := make(map[string]EmergencyState, len(current))
	for k, v := range current {
		if v.Expired(now) {
			scopes = append(scopes, k)
			continue
		}
		next[k] = v
	}
	if len(scopes) > 0 {
		sort.Strings(scopes)
		m.scoped.Store(&next)
	}
	return global, scopes
}

// Check reports whether op, bound to scope, is blocked at now and why.
func (m *Monitor) Check(op, scope string, now time.Time) (bool, string) {
	if g := m.Global(now); g.Level.Blocks() {
		return true, "emergency_" + g.Level.String()
	}
	if scope != "" {
		if s := m.Scoped(scope, now); s.Level.Blocks() {
			return true, "scoped_emergency_" + s.Level.String()
		}
	}
	if e, ok := m.entry(op); ok {
		e.mu.Lock()
		open := e.st.OpenAt(e.cfg, now)
		e.mu.Unlock()
		if open {
			return true, "circuit_open"
		}
	}
	return false, ""
}
