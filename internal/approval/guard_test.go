package approval

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/internal/keylock"
)

var epoch = time.Unix(1_700_000_000, 0)

func newTestGuard(t *testing.T, store Store, exec Executor) *Guard {
	t.Helper()
	g, err := NewGuard(Config{RequiredApprovals: 2, MinDelay: time.Hour, Lifetime: 7 * 24 * time.Hour}, store, exec)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	return g
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{RequiredApprovals: 0, Lifetime: time.Hour},
		{RequiredApprovals: 1, MinDelay: -time.Second, Lifetime: time.Hour},
		{RequiredApprovals: 1, MinDelay: time.Hour, Lifetime: time.Hour},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %+v, got %v", cfg, err)
		}
	}
}

func TestMultisigScenario(t *testing.T) {
	ctx := context.Background()
	var runs atomic.Int32
	g := newTestGuard(t, nil, ExecutorFunc(func(context.Context, Proposal) error {
		runs.Add(1)
		return nil
	}))

	p, err := g.Create(ctx, "s1", "treasury", []byte("payout"), 42, epoch)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := g.Approve(ctx, p.ID, "s1", epoch); err != nil {
		t.Fatalf("Approve s1: %v", err)
	}
	if _, err := g.Execute(ctx, p.ID, epoch.Add(2*time.Hour)); !errors.Is(err, ErrInsufficientApprovals) {
		t.Fatalf("expected ErrInsufficientApprovals, got %v", err)
	}

	if _, err := g.Approve(ctx, p.ID, "s2", epoch.Add(time.Minute)); err != nil {
		t.Fatalf("Approve s2: %v", err)
	}
	if _, err := g.Execute(ctx, p.ID, epoch.Add(30*time.Minute)); !errors.Is(err, ErrDelayNotMet) {
		t.Fatalf("expected ErrDelayNotMet, got %v", err)
	}

	done, err := g.Execute(ctx, p.ID, epoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !done.Executed || !done.ExecutedAt.Equal(epoch.Add(time.Hour)) {
		t.Fatalf("unexpected executed proposal %+v", done)
	}

	if _, err := g.Execute(ctx, p.ID, epoch.Add(2*time.Hour)); !errors.Is(err, ErrAlreadyExecuted) {
		t.Fatalf("expected ErrAlreadyExecuted, got %v", err)
	}
	if runs.Load() != 1 {
		t.Fatalf("executor ran %d times", runs.Load())
	}
}

func TestApproveErrors(t *testing.T) {
	ctx := context.Background()
	g := newTestGuard(t, nil, nil)

	if _, err := g.Approve(ctx, "missing", "s1", epoch); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	p, _ := g.Create(ctx, "s1", "treasury", nil, 0, epoch)
	if _, err := g.Approve(ctx, p.ID, "s1", epoch); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := g.Approve(ctx, p.ID, "s1", epoch); !errors.Is(err, ErrAlreadyApproved) {
		t.Fatalf("expected ErrAlreadyApproved, got %v", err)
	}

	if _, err := g.Approve(ctx, p.ID, "s2", epoch.Add(8*24*time.Hour)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if st, _ := g.Status(ctx, p.ID, epoch.Add(8*24*time.Hour)); st != StatusExpired {
		t.Fatalf("expected derived expired status, got %s", st)
	}
}

func TestCreateRejectsEmptyTarget(t *testing.T) {
	g := newTestGuard(t, nil, nil)
	if _, err := g.Create(context.Background(), "s1", "", nil, 0, epoch); !errors.Is(err, ErrNullTarget) {
		t.Fatalf("expected ErrNullTarget, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	g := newTestGuard(t, nil, nil)
	p, _ := g.Create(ctx, "s1", "treasury", nil, 0, epoch)

	if _, err := g.Cancel(ctx, p.ID, "s2", false, epoch); !errors.Is(err, ErrNotProposer) {
		t.Fatalf("expected ErrNotProposer, got %v", err)
	}
	if _, err := g.Cancel(ctx, p.ID, "s1", false, epoch); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := g.Approve(ctx, p.ID, "s2", epoch); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if _, err := g.Cancel(ctx, p.ID, "admin", true, epoch); !errors.Is(err, ErrCancelled) {
		t.Fatalf("cancelled proposal must stay immutable, got %v", err)
	}
}

func TestExecutorFailureLeavesProposalPending(t *testing.T) {
	ctx := context.Background()
	fail := true
	g := newTestGuard(t, nil, ExecutorFunc(func(context.Context, Proposal) error {
		if fail {
			return errors.New("downstream refused")
		}
		return nil
	}))

	p, _ := g.Create(ctx, "s1", "treasury", nil, 0, epoch)
	_, _ = g.Approve(ctx, p.ID, "s1", epoch)
	_, _ = g.Approve(ctx, p.ID, "s2", epoch)

	if _, err := g.Execute(ctx, p.ID, epoch.Add(time.Hour)); !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("expected ErrExecutionFailed, got %v", err)
	}
	if st, _ := g.Status(ctx, p.ID, epoch.Add(time.Hour)); st != StatusPending {
		t.Fatalf("expected pending after failed execution, got %s", st)
	}

	fail = false
	if _, err := g.Execute(ctx, p.ID, epoch.Add(time.Hour)); err != nil {
		t.Fatalf("retry Execute: %v", err)
	}
}

func TestConcurrentExecuteRunsOnce(t *testing.T) {
	ctx := context.Background()
	var runs atomic.Int32
	g := newTestGuard(t, nil, ExecutorFunc(func(context.Context, Proposal) error {
		runs.Add(1)
		return nil
	}))
	p, _ := g.Create(ctx, "s1", "treasury", nil, 0, epoch)
	_, _ = g.Approve(ctx, p.ID, "s1", epoch)
	_, _ = g.Approve(ctx, p.ID, "s2", epoch)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _ = g.Execute(ctx, p.ID, epoch.Add(2*time.Hour))
		}()
	}
	close(start)
	wg.Wait()

	if runs.Load() != 1 {
		t.Fatalf("expected exactly one execution, got %d", runs.Load())
	}
}

type failingUpdateStore struct {
	*MemoryStore
	failures atomic.Int32
}

func (s *failingUpdateStore) Update(ctx context.Context, p Proposal) error {
	if p.Executed && s.failures.Load() > 0 {
		s.failures.Add(-1)
		return errors.New("connection reset")
	}
	return s.MemoryStore.Update(ctx, p)
}

func TestExecuteDoesNotRepeatAfterPersistFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingUpdateStore{MemoryStore: NewMemoryStore()}
	var runs atomic.Int32
	g := newTestGuard(t, store, ExecutorFunc(func(context.Context, Proposal) error {
		runs.Add(1)
		return nil
	}))
	p, _ := g.Create(ctx, "s1", "treasury", nil, 0, epoch)
	_, _ = g.Approve(ctx, p.ID, "s1", epoch)
	_, _ = g.Approve(ctx, p.ID, "s2", epoch)

	store.failures.Store(1)
	if _, err := g.Execute(ctx, p.ID, epoch.Add(2*time.Hour)); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := g.Execute(ctx, p.ID, epoch.Add(2*time.Hour)); !errors.Is(err, ErrAlreadyExecuted) {
		t.Fatalf("expected ErrAlreadyExecuted on retry, got %v", err)
	}
	if _, err := g.Cancel(ctx, p.ID, "s1", false, epoch.Add(2*time.Hour)); !errors.Is(err, ErrAlreadyExecuted) {
		t.Fatalf("expected ErrAlreadyExecuted on cancel, got %v", err)
	}
	if runs.Load() != 1 {
		t.Fatalf("executor ran %d times, want 1", runs.Load())
	}
}

func TestExecutorMayTouchProposalsOnSameStripe(t *testing.T) {
	ctx := context.Background()
	var (
		g          *Guard
		sibling    Proposal
		siblingErr error
		selfErr    error
	)
	g = newTestGuard(t, nil, ExecutorFunc(func(ctx context.Context, p Proposal) error {
		_, siblingErr = g.Approve(ctx, sibling.ID, "s3", epoch.Add(2*time.Hour))
		_, selfErr = g.Cancel(ctx, p.ID, p.Proposer, false, epoch.Add(2*time.Hour))
		return nil
	}))

	p, _ := g.Create(ctx, "s1", "treasury", nil, 0, epoch)
	_, _ = g.Approve(ctx, p.ID, "s1", epoch)
	_, _ = g.Approve(ctx, p.ID, "s2", epoch)
	want := keylock.Index(p.ID, keylock.DefaultStripes)
	for i := 0; i < 10_000; i++ {
		c, err := g.Create(ctx, "s1", "vault", nil, 0, epoch)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if keylock.Index(c.ID, keylock.DefaultStripes) == want {
			sibling = c
			break
		}
	}
	if sibling.ID == "" {
		t.Fatal("no proposal landed on the same stripe")
	}

	done := make(chan error, 1)
	go func() {
		_, err := g.Execute(ctx, p.ID, epoch.Add(2*time.Hour))
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Execute deadlocked on a same-stripe proposal")
	}

	if siblingErr != nil {
		t.Fatalf("approving sibling from executor: %v", siblingErr)
	}
	if !errors.Is(selfErr, ErrExecutionInProgress) {
		t.Fatalf("expected ErrExecutionInProgress for self cancel, got %v", selfErr)
	}
	stored, _ := g.Get(ctx, sibling.ID)
	if !stored.HasApproved("s3") {
		t.Fatalf("sibling approval lost: %+v", stored)
	}
	if executed, _ := g.Get(ctx, p.ID); !executed.Executed || executed.Cancelled {
		t.Fatalf("unexpected final state %+v", executed)
	}
}

func TestEmergencyExecute(t *testing.T) {
	ctx := context.Background()
	var got Proposal
	g := newTestGuard(t, nil, ExecutorFunc(func(_ context.Context, p Proposal) error {
		got = p
		return nil
	}))

	if _, err := g.EmergencyExecute(ctx, "ea", "treasury", []byte("drain-to-safe"), 7, epoch); !errors.Is(err, ErrEmergencyModeInactive) {
		t.Fatalf("expected ErrEmergencyModeInactive, got %v", err)
	}

	g.SetEmergencyMode(true)
	p, err := g.EmergencyExecute(ctx, "ea", "treasury", []byte("drain-to-safe"), 7, epoch)
	if err != nil {
		t.Fatalf("EmergencyExecute: %v", err)
	}
	if !p.Executed || !p.Emergency || got.Target != "treasury" || got.Value != 7 {
		t.Fatalf("unexpected emergency record %+v / executor saw %+v", p, got)
	}

	stored, err := g.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !stored.Emergency || !stored.Executed {
		t.Fatalf("emergency action not recorded: %+v", stored)
	}
}
