package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Limiter holds per-operation configuration and the caller whitelist, and
// delegates state to a Store.
type Limiter struct {
	store Store

	mu        sync.RWMutex
	configs   map[string]Config
	whitelist map[string]struct{}
}

// New creates a Limiter over store. A nil store selects a MemoryStore.
func New(store Store) *Limiter {
	if store == nil {
		store = NewMemoryStore(0)
	}
	return &Limiter{
		store:     store,
		configs:   make(map[string]Config),
		whitelist: make(map[string]struct{}),
	}
}

// Configure installs cfg for op, replacing any previous configuration.
// Existing state is kept.
func (l *Limiter) Configure(op string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.configs[op] = cfg
	l.mu.Unlock()
	return nil
}

// SetActive toggles enforcement of an existing configuration.
func (l *Limiter) SetActive(op string, active bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, ok := l.configs[op]
	if !ok {
		return ErrNotConfigured
	}
	cfg.Active = active
	l.configs[op] = cfg
	return nil
}

// Config returns the configuration for op.
func (l *Limiter) Config(op string) (Config, bool) {
	l.mu.RLock()
	cfg, ok := l.configs[op]
	l.mu.RUnlock()
	return cfg, ok
}

// Operations lists configured operations in sorted order.
func (l *Limiter) Operations() []string {
	l.mu.RLock()
	out := make([]string, 0, len(l.configs))
	for op := range l.configs {
		out = append(out, op)
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out
}

// SetWhitelisted adds or removes caller from the whitelist.
func (l *Limiter) SetWhitelisted(caller string, whitelisted bool) {
	l.mu.Lock()
	if whitelisted {
		l.whitelist[caller] = struct{}{}
	} else {
		delete(l.whitelist, caller)
	}
	l.mu.Unlock()
}

// IsWhitelisted reports whether caller bypasses every limit.
func (l *Limiter) IsWhitelisted(caller string) bool {
	l.mu.RLock()
	_, ok := l.whitelist[caller]
	l.mu.RUnlock()
	return ok
}

// Check consumes one request for caller on op. Whitelisted callers and
// operations without an active configuration are allowed without touching
// state.
func (l *Limiter) Check(ctx context.Context, op, caller string, now time.Time) (bool, error) {
	if l.IsWhitelisted(caller) {
		return true, nil
	}
	cfg, ok := l.Config(op)
	if !ok || !cfg.Active {
		return true, nil
	}

	_, allowed, err := l.store.Apply(ctx, StateKey(op, caller, cfg.Global), cfg, now)
	if err != nil {
		return false, err
	}
	return allowed, nil
}

// State returns the state governing caller on op: the shared state when
// the configuration is global, the caller's own state otherwise.
func (l *Limiter) State(ctx context.Context, op, caller string) (State, error) {
	cfg, _ := l.Config(op)
	st, _, err := l.store.Get(ctx, StateKey(op, caller, cfg.Global))
	return st, err
}

// GlobalState returns the shared state of op.
func (l *Limiter) GlobalState(ctx context.Context, op string) (State, error) {
	st, _, err := l.store.Get(ctx, StateKey(op, "", true))
	return st, err
}

// ClearUser deletes the per-caller state of caller on op. Ops with a
// global limit keep no per-caller state and are refused.
func (l *Limiter) ClearUser(ctx context.Context, op, caller string) error {
	if cfg, ok := l.Config(op); ok && cfg.Global {
		return fmt.Errorf("%w: %s uses a global limit, clear it with ClearGlobal", ErrInvalidConfig, op)
	}
	return l.store.Delete(ctx, StateKey(op, caller, false))
}

// ClearGlobal deletes the shared state of op.
func (l *Limiter) ClearGlobal(ctx context.Context, op string) error {
	return l.store.Delete(ctx, StateKey(op, "", true))
}

// StateKey builds the store key for op and caller.
func StateKey(op, caller string, global bool) string {
	if global {
		return op
	}
	return op + ":" + caller
}
