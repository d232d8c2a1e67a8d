package approval

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/internal/keylock"
	"github.com/google/uuid"
)

// Config sets the approval quorum and timing.
type Config struct {
	RequiredApprovals int
	MinDelay          time.Duration
	Lifetime          time.Duration
}

func (c Config) Validate() error {
	if c.RequiredApprovals < 1 {
		return fmt.Errorf("%w: RequiredApprovals must be >= 1", ErrInvalidConfig)
	}
	if c.MinDelay < 0 {
		return fmt.Errorf("%w: MinDelay must be >= 0", ErrInvalidConfig)
	}
	if c.Lifetime <= c.MinDelay {
		return fmt.Errorf("%w: Lifetime must be > MinDelay", ErrInvalidConfig)
	}
	return nil
}

// Executor performs the action a proposal describes.
type Executor interface {
	Execute(ctx context.Context, p Proposal) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, p Proposal) error

func (f ExecutorFunc) Execute(ctx context.Context, p Proposal) error {
	return f(ctx, p)
}

type noopExecutor struct{}

func (noopExecutor) Execute(context.Context, Proposal) error { return nil }

type claim uint8

const (
	claimRunning claim = iota + 1
	claimExecuted
)

// Guard runs the proposal lifecycle. Every mutation of a proposal happens
// under that proposal's stripe lock. Executors run outside the lock; a
// claim keeps them single-shot until the store records the execution.
type Guard struct {
	cfg       Config
	store     Store
	executor  Executor
	locks     *keylock.Striped
	emergency atomic.Bool

	claimMu sync.Mutex
	claims  map[string]claim
}

// NewGuard creates a Guard. A nil store selects a MemoryStore and a nil
// executor accepts every execution without side effects.
func NewGuard(cfg Config, store Store, executor Executor) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if executor == nil {
		executor = noopExecutor{}
	}
	return &Guard{
		cfg:      cfg,
		store:    store,
		executor: executor,
		locks:    keylock.New(0),
		claims:   make(map[string]claim),
	}, nil
}

// Config returns the guard's configuration.
func (g *Guard) Config() Config {
	return g.cfg
}

// Create records a new pending proposal.
func (g *Guard) Create(ctx context.Context, proposer, target string, payload []byte, value uint64, now time.Time) (Proposal, error) {
	if target == "" {
		return Proposal{}, ErrNullTarget
	}
	p := Proposal{
		ID:        uuid.NewString(),
		Target:    target,
		Payload:   append([]byte(nil), payload...),
		Value:     value,
		Proposer:  proposer,
		CreatedAt: now,
		Approvals: []string{},
	}
	if err := g.store.Create(ctx, p); err != nil {
		return Proposal{}, err
	}
	return p, nil
}

// Get loads a proposal by ID.
func (g *Guard) Get(ctx context.Context, id string) (Proposal, error) {
	return g.store.Get(ctx, id)
}

// List returns every stored proposal.
func (g *Guard) List(ctx context.Context) ([]Proposal, error) {
	return g.store.List(ctx)
}

// Status derives the status of a proposal at now.
func (g *Guard) Status(ctx context.Context, id string, now time.Time) (Status, error) {
	p, err := g.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.StatusAt(now, g.cfg.Lifetime), nil
}

// Approve adds signer to the approval set of a pending proposal.
func (g *Guard) Approve(ctx context.Context, id, signer string, now time.Time) (Proposal, error) {
	defer g.locks.Lock(id)()

	p, err := g.store.Get(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if err := g.ensurePending(p, now); err != nil {
		return Proposal{}, err
	}
	if p.HasApproved(signer) {
		return Proposal{}, ErrAlreadyApproved
	}

	p.Approvals = append(p.Approvals, signer)
	if err := g.store.Update(ctx, p); err != nil {
		return Proposal{}, err
	}
	return p, nil
}

// Execute runs the executor for a pending proposal that has reached quorum
// and whose delay has elapsed. The proposal is marked executed only when
// the executor succeeds. A successful run is never repeated, even when
// persisting the executed flag fails; that case wraps ErrStoreUnavailable.
func (g *Guard) Execute(ctx context.Context, id string, now time.Time) (Proposal, error) {
	p, err := g.claimExecution(ctx, id, now)
	if err != nil {
		return Proposal{}, err
	}

	if err := g.executor.Execute(ctx, p.clone()); err != nil {
		g.setClaim(id, 0)
		return Proposal{}, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	g.setClaim(id, claimExecuted)

	unlock := g.locks.Lock(id)
	defer unlock()
	if latest, err := g.store.Get(ctx, id); err == nil {
		p = latest
	}
	p.Executed = true
	p.ExecutedAt = now
	if err := g.store.Update(ctx, p); err != nil {
		return Proposal{}, fmt.Errorf("%w: proposal %s executed but not persisted: %v", ErrStoreUnavailable, id, err)
	}
	g.setClaim(id, 0)
	return p, nil
}

// claimExecution validates id under its stripe lock and marks it running.
func (g *Guard) claimExecution(ctx context.Context, id string, now time.Time) (Proposal, error) {
	defer g.locks.Lock(id)()

	p, err := g.store.Get(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if err := g.ensurePending(p, now); err != nil {
		return Proposal{}, err
	}
	if len(p.Approvals) < g.cfg.RequiredApprovals {
		return Proposal{}, ErrInsufficientApprovals
	}
	if now.Sub(p.CreatedAt) < g.cfg.MinDelay {
		return Proposal{}, ErrDelayNotMet
	}
	g.setClaim(id, claimRunning)
	return p, nil
}

func (g *Guard) claimOf(id string) claim {
	g.claimMu.Lock()
	defer g.claimMu.Unlock()
	return g.claims[id]
}

// setClaim records c for id; zero clears it.
func (g *Guard) setClaim(id string, c claim) {
	g.claimMu.Lock()
	defer g.claimMu.Unlock()
	if c == 0 {
		delete(g.claims, id)
		return
	}
	g.claims[id] = c
}

// Cancel marks a pending proposal cancelled. Only the proposer may cancel
// unless force is set.
func (g *Guard) Cancel(ctx context.Context, id, actor string, force bool, now time.Time) (Proposal, error) {
	defer g.locks.Lock(id)()

	p, err := g.store.Get(ctx, id)
	if err != nil {
		return Proposal{}, err
	}
	if !force && p.Proposer != actor {
		return Proposal{}, ErrNotProposer
	}
	if err := g.ensurePending(p, now); err != nil {
		return Proposal{}, err
	}

	p.Cancelled = true
	if err := g.store.Update(ctx, p); err != nil {
		return Proposal{}, err
	}
	return p, nil
}

// SetEmergencyMode toggles the proposal-free execution path.
func (g *Guard) SetEmergencyMode(on bool) {
	g.emergency.Store(on)
}

// EmergencyMode reports whether EmergencyExecute is available.
func (g *Guard) EmergencyMode() bool {
	return g.emergency.Load()
}

// EmergencyExecute runs the executor without a proposal. The action is
// recorded as an executed emergency proposal.
func (g *Guard) EmergencyExecute(ctx context.Context, actor, target string, payload []byte, value uint64, now time.Time) (Proposal, error) {
	if !g.emergency.Load() {
		return Proposal{}, ErrEmergencyModeInactive
	}
	if target == "" {
		return Proposal{}, ErrNullTarget
	}

	p := Proposal{
		ID:        uuid.NewString(),
		Target:    target,
		Payload:   append([]byte(nil), payload...),
		Value:     value,
		Proposer:  actor,
		CreatedAt: now,
		Approvals: []string{},
		Emergency: true,
	}
	if err := g.executor.Execute(ctx, p.clone()); err != nil {
		return Proposal{}, fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}
	p.Executed = true
	p.ExecutedAt = now
	if err := g.store.Create(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

func (g *Guard) ensurePending(p Proposal, now time.Time) error {
	switch g.claimOf(p.ID) {
	case claimRunning:
		return ErrExecutionInProgress
	case claimExecuted:
		return ErrAlreadyExecuted
	}
	switch p.StatusAt(now, g.cfg.Lifetime) {
	case StatusExecuted:
		return ErrAlreadyExecuted
	case StatusCancelled:
		return ErrCancelled
	case StatusExpired:
		return ErrExpired
	}
	return nil
}
