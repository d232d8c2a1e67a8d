package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrArrayLengthMismatch is returned by ConfigureBulk when its slices differ
// in length.
var ErrArrayLengthMismatch = errors.New("array length mismatch")

// Decision reasons.
const (
	ReasonAllowed              = "allowed"
	ReasonPaused               = "paused"
	ReasonBypass               = "bypass"
	ReasonBlocked              = "blocked"
	ReasonApprovalRequired     = "approval_required"
	ReasonRateLimited          = "rate_limited"
	ReasonRateLimitUnavailable = "rate_limit_unavailable"
)

// Requirements lists the guards an operation must pass.
type Requirements struct {
	RequiresRateLimit bool
	RequiresApproval  bool
	// Scope names the resource consulted for scoped emergencies. Empty
	// means the operation key itself.
	Scope string
}

// Decision is the result of one evaluation.
type Decision struct {
	Allowed bool
	Reason  string
	// Detail carries the blocking cause for ReasonBlocked, such as
	// "circuit_open".
	Detail string
}

// Gates are the guards consulted by Decide.
type Gates interface {
	Blocked(op, scope string) (bool, string)
	RateLimit(ctx context.Context, op, caller string) (bool, error)
}

// Table holds per-operation requirements plus the kill switch and pause
// flag.
type Table struct {
	mu  sync.RWMutex
	ops map[string]Requirements

	bypass atomic.Bool
	paused atomic.Bool
}

func New() *Table {
	return &Table{ops: make(map[string]Requirements)}
}

// Configure sets the requirement flags of op, keeping its scope binding.
func (t *Table) Configure(op string, rateLimit, approval bool) Requirements {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.ops[op]
	r.RequiresRateLimit = rateLimit
	r.RequiresApproval = approval
	t.ops[op] = r
	return r
}

// ConfigureBulk applies Configure to every index, or to none when the
// slices differ in length.
func (t *Table) ConfigureBulk(ops []string, rateLimit, approval []bool) error {
	if len(ops) != len(rateLimit) || len(ops) != len(approval) {
		return fmt.Errorf("%w: %d ops, %d rate limit flags, %d approval flags",
			ErrArrayLengthMismatch, len(ops), len(rateLimit), len(approval))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i, op := range ops {
		r := t.ops[op]
		r.RequiresRateLimit = rateLimit[i]
		r.RequiresApproval = approval[i]
		t.ops[op] = r
	}
	return nil
}

// BindScope binds op to scope. An empty scope restores the default.
func (t *Table) BindScope(op, scope string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.ops[op]
	r.Scope = scope
	t.ops[op] = r
}

// Get returns the requirements of op with the default scope filled in.
func (t *Table) Get(op string) (Requirements, bool) {
	t.mu.RLock()
	r, ok := t.ops[op]
	t.mu.RUnlock()
	if r.Scope == "" {
		r.Scope = op
	}
	return r, ok
}

// Operations lists configured operation keys in sorted order.
func (t *Table) Operations() []string {
	t.mu.RLock()
	out := make([]string, 0, len(t.ops))
	for op := range t.ops {
		out = append(out, op)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (t *Table) SetBypass(on bool) bool { return t.bypass.Swap(on) }
func (t *Table) Bypass() bool           { return t.bypass.Load() }
func (t *Table) SetPaused(on bool) bool { return t.paused.Swap(on) }
func (t *Table) Paused() bool           { return t.paused.Load() }

// Decide evaluates op for caller in fixed order: pause, bypass, emergency
// and breaker block, approval requirement, rate limit. A rate-limit backend
// error denies and is returned alongside the decision.
func (t *Table) Decide(ctx context.Context, g Gates, caller, op string, approvedCall bool) (Decision, error) {
	if t.paused.Load() {
		return Decision{Reason: ReasonPaused}, nil
	}
	if t.bypass.Load() {
		return Decision{Allowed: true, Reason: ReasonBypass}, nil
	}

	req, _ := t.Get(op)
	if blocked, why := g.Blocked(op, req.Scope); blocked {
		return Decision{Reason: ReasonBlocked, Detail: why}, nil
	}
	if req.RequiresApproval && !approvedCall {
		return Decision{Reason: ReasonApprovalRequired}, nil
	}
	if req.RequiresRateLimit {
		ok, err := g.RateLimit(ctx, op, caller)
		if err != nil {
			return Decision{Reason: ReasonRateLimitUnavailable}, err
		}
		if !ok {
			return Decision{Reason: ReasonRateLimited}, nil
		}
	}
	return Decision{Allowed: true, Reason: ReasonAllowed}, nil
}
