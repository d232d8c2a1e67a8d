package goGuard

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	opMint   = OperationIDFromName("mint-badge")
	opReward = OperationIDFromName("guild-reward")
)

func TestAuthorizeUnconfiguredOperationAllowed(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	d := mustAuthorize(t, e, "user-1", opMint, false)
	if !d.Allowed || d.Reason != ReasonAllowed {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestAuthorizeEvaluationOrder(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if err := e.ConfigureRateLimit(ctx, "carol", opMint, RateLimitConfig{
		Algorithm:   FixedWindow,
		MaxRequests: 1,
		Window:      time.Minute,
		Active:      true,
	}); err != nil {
		t.Fatalf("ConfigureRateLimit failed: %v", err)
	}
	if err := e.ConfigureOperation(ctx, "carol", opMint, true, true); err != nil {
		t.Fatalf("ConfigureOperation failed: %v", err)
	}

	if d := mustAuthorize(t, e, "user-1", opMint, false); d.Reason != ReasonApprovalRequired {
		t.Fatalf("expected approval_required, got %+v", d)
	}
	if d := mustAuthorize(t, e, "user-1", opMint, true); !d.Allowed {
		t.Fatalf("expected allowed, got %+v", d)
	}
	if d := mustAuthorize(t, e, "user-1", opMint, true); d.Reason != ReasonRateLimited {
		t.Fatalf("expected rate_limited, got %+v", d)
	}

	// Medium blocks ahead of approval and rate limit.
	if err := e.ActivateEmergency(ctx, "eve", LevelMedium, time.Hour, "incident", false); err != nil {
		t.Fatalf("ActivateEmergency failed: %v", err)
	}
	d := mustAuthorize(t, e, "user-1", opMint, false)
	if d.Reason != ReasonBlocked || d.Detail != "emergency_medium" {
		t.Fatalf("expected blocked by emergency, got %+v", d)
	}

	if err := e.ToggleGlobalBypass(ctx, "alice", true); err != nil {
		t.Fatalf("ToggleGlobalBypass failed: %v", err)
	}
	if d := mustAuthorize(t, e, "user-1", opMint, false); !d.Allowed || d.Reason != ReasonBypass {
		t.Fatalf("expected bypass, got %+v", d)
	}

	if err := e.EmergencyPause(ctx, "eve"); err != nil {
		t.Fatalf("EmergencyPause failed: %v", err)
	}
	if d := mustAuthorize(t, e, "user-1", opMint, false); d.Allowed || d.Reason != ReasonPaused {
		t.Fatalf("pause must win over bypass, got %+v", d)
	}

	if err := e.EmergencyUnpause(ctx, "alice"); err != nil {
		t.Fatalf("EmergencyUnpause failed: %v", err)
	}
	if err := e.ToggleGlobalBypass(ctx, "alice", false); err != nil {
		t.Fatalf("ToggleGlobalBypass failed: %v", err)
	}
	if d := mustAuthorize(t, e, "user-1", opMint, false); d.Reason != ReasonBlocked {
		t.Fatalf("expected blocked again, got %+v", d)
	}
}

func TestAuthorizeRoleChecks(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		call func() error
	}{
		{"configure by signer", func() error { return e.ConfigureOperation(ctx, "sam", opMint, true, false) }},
		{"bypass by configurator", func() error { return e.ToggleGlobalBypass(ctx, "carol", true) }},
		{"pause by guardian", func() error { return e.EmergencyPause(ctx, "g1") }},
		{"pause by unknown", func() error { return e.EmergencyPause(ctx, "nobody") }},
		{"scope by empty actor", func() error { return e.BindOperationScope(ctx, "", opMint, "x") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}

	if e.IsPaused() || e.IsBypassed() {
		t.Fatal("rejected calls must not change state")
	}
	if got := e.MetricsSnapshot().Counters[MetricUnauthorized]; got != uint64(len(cases)) {
		t.Fatalf("expected %d unauthorized, got %d", len(cases), got)
	}
}

func TestConfigureOperationsBulk(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	err := e.ConfigureOperations(ctx, "carol", []OperationID{opMint, opReward}, []bool{true}, []bool{false, true})
	if !errors.Is(err, ErrArrayLengthMismatch) {
		t.Fatalf("expected ErrArrayLengthMismatch, got %v", err)
	}
	if _, ok := e.GetOperation(opMint); ok {
		t.Fatal("mismatched bulk call must apply nothing")
	}

	if err := e.ConfigureOperations(ctx, "carol", []OperationID{opMint, opReward}, []bool{true, false}, []bool{false, true}); err != nil {
		t.Fatalf("ConfigureOperations failed: %v", err)
	}
	mint, ok := e.GetOperation(opMint)
	if !ok || !mint.RequiresRateLimit || mint.RequiresApproval {
		t.Fatalf("unexpected mint requirements %+v", mint)
	}
	if mint.Scope != opMint.String() {
		t.Fatalf("default scope should be the operation id, got %q", mint.Scope)
	}
	reward, _ := e.GetOperation(opReward)
	if reward.RequiresRateLimit || !reward.RequiresApproval {
		t.Fatalf("unexpected reward requirements %+v", reward)
	}
}

func TestAuthorizeScopedEmergency(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if err := e.BindOperationScope(ctx, "carol", opMint, "badges"); err != nil {
		t.Fatalf("BindOperationScope failed: %v", err)
	}
	if err := e.ActivateScopedEmergency(ctx, "eve", "badges", LevelMedium, 0, "badge exploit"); err != nil {
		t.Fatalf("ActivateScopedEmergency failed: %v", err)
	}

	d := mustAuthorize(t, e, "user-1", opMint, false)
	if d.Reason != ReasonBlocked || d.Detail != "scoped_emergency_medium" {
		t.Fatalf("expected scoped block, got %+v", d)
	}
	if d := mustAuthorize(t, e, "user-1", opReward, false); !d.Allowed {
		t.Fatalf("other scopes must stay open, got %+v", d)
	}

	if err := e.DeactivateScopedEmergency(ctx, "alice", "badges"); err != nil {
		t.Fatalf("DeactivateScopedEmergency failed: %v", err)
	}
	if d := mustAuthorize(t, e, "user-1", opMint, false); !d.Allowed {
		t.Fatalf("expected allowed after clear, got %+v", d)
	}
}

func TestAuthorizeOpenBreaker(t *testing.T) {
	e, clock := newTestEngine(t, nil)
	ctx := context.Background()

	if err := e.SetCircuitBreaker(ctx, "carol", opMint, CircuitBreakerConfig{
		Threshold:       2,
		Window:          time.Minute,
		Cooldown:        5 * time.Minute,
		TriggerSeverity: LevelLow,
	}); err != nil {
		t.Fatalf("SetCircuitBreaker failed: %v", err)
	}
	e.RecordFailure(ctx, opMint)
	if !e.RecordFailure(ctx, opMint) {
		t.Fatal("second failure should trip")
	}

	d := mustAuthorize(t, e, "user-1", opMint, false)
	if d.Reason != ReasonBlocked || d.Detail != "circuit_open" {
		t.Fatalf("expected circuit_open, got %+v", d)
	}
	// Low does not block other operations.
	if d := mustAuthorize(t, e, "user-1", opReward, false); !d.Allowed {
		t.Fatalf("expected allowed, got %+v", d)
	}

	clock.Advance(5*time.Minute + time.Second)
	if d := mustAuthorize(t, e, "user-1", opMint, false); !d.Allowed {
		t.Fatalf("breaker should close after cooldown, got %+v", d)
	}
}

func TestAuthorizeRateLimitUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	e, _ := newTestEngine(t, func(b *Builder) {
		cfg := testConfig()
		cfg.RateLimit.Backend = BackendRedis
		b.WithConfig(cfg).WithRedis(rdb)
	})
	ctx := context.Background()

	if err := e.ConfigureRateLimit(ctx, "carol", opMint, RateLimitConfig{
		Algorithm:   FixedWindow,
		MaxRequests: 5,
		Window:      time.Minute,
		Active:      true,
	}); err != nil {
		t.Fatalf("ConfigureRateLimit failed: %v", err)
	}
	if err := e.ConfigureOperation(ctx, "carol", opMint, true, false); err != nil {
		t.Fatalf("ConfigureOperation failed: %v", err)
	}
	if d := mustAuthorize(t, e, "user-1", opMint, false); !d.Allowed {
		t.Fatalf("expected allowed, got %+v", d)
	}

	mr.SetError("ERR backend down")
	d, err := e.Authorize(ctx, "user-1", opMint, false)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if d.Allowed || d.Reason != ReasonRateLimitUnavailable {
		t.Fatalf("expected rate_limit_unavailable deny, got %+v", d)
	}
	if got := e.MetricsSnapshot().Counters[MetricDenyRateLimitUnavailable]; got != 1 {
		t.Fatalf("expected 1 unavailable deny, got %d", got)
	}
}

func TestExecutorAuthorizesAsApprovedCall(t *testing.T) {
	var (
		eng      *Engine
		decision Decision
		execErr  error
	)
	e, clock := newTestEngine(t, func(b *Builder) {
		b.WithExecutor(ExecutorFunc(func(ctx context.Context, p Proposal) error {
			decision, execErr = eng.AuthorizeContext(ctx, p.Proposer, opReward)
			return execErr
		}))
	})
	eng = e
	ctx := context.Background()

	if err := e.ConfigureOperation(ctx, "carol", opReward, false, true); err != nil {
		t.Fatalf("ConfigureOperation failed: %v", err)
	}
	if d, _ := e.AuthorizeContext(ctx, "sam", opReward); d.Reason != ReasonApprovalRequired {
		t.Fatalf("direct call must need approval, got %+v", d)
	}

	id, err := e.CreateProposal(ctx, "sam", "guild-reward", []byte("guild-7"), 500)
	if err != nil {
		t.Fatalf("CreateProposal failed: %v", err)
	}
	for _, signer := range []string{"sam", "sue"} {
		if err := e.ApproveProposal(ctx, signer, id); err != nil {
			t.Fatalf("ApproveProposal(%s) failed: %v", signer, err)
		}
	}
	clock.Advance(time.Hour)
	if err := e.ExecuteProposal(ctx, "sue", id); err != nil {
		t.Fatalf("ExecuteProposal failed: %v", err)
	}
	if execErr != nil || !decision.Allowed {
		t.Fatalf("executor should be authorized, got %+v, %v", decision, execErr)
	}
}

func TestAuthorizeMetricsAndLatency(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if err := e.ConfigureOperation(ctx, "carol", opReward, false, true); err != nil {
		t.Fatalf("ConfigureOperation failed: %v", err)
	}
	mustAuthorize(t, e, "user-1", opMint, false)
	mustAuthorize(t, e, "user-1", opReward, false)
	mustAuthorize(t, e, "user-1", opReward, false)

	snap := e.MetricsSnapshot()
	if snap.Counters[MetricAuthorizeAllowed] != 1 {
		t.Fatalf("expected 1 allowed, got %d", snap.Counters[MetricAuthorizeAllowed])
	}
	if snap.Counters[MetricDenyApprovalRequired] != 2 {
		t.Fatalf("expected 2 approval denials, got %d", snap.Counters[MetricDenyApprovalRequired])
	}
	var total uint64
	for _, n := range snap.Histograms[MetricAuthorizeLatency] {
		total += n
	}
	if total != 3 {
		t.Fatalf("expected 3 latency samples, got %d", total)
	}
}

func TestAuthorizeDenialsAudited(t *testing.T) {
	sink := &captureSink{}
	e, _ := newTestEngine(t, func(b *Builder) {
		cfg := testConfig()
		cfg.Audit.Enabled = true
		b.WithConfig(cfg).WithAuditSink(sink)
	})
	ctx := context.Background()

	if err := e.ConfigureOperation(ctx, "carol", opReward, false, true); err != nil {
		t.Fatalf("ConfigureOperation failed: %v", err)
	}
	mustAuthorize(t, e, "user-1", opMint, false)
	mustAuthorize(t, e, "user-1", opReward, false)
	if err := e.EmergencyPause(ctx, "eve"); err != nil {
		t.Fatalf("EmergencyPause failed: %v", err)
	}
	e.Close()

	denied := sink.ByType(auditEventAuthorizeDenied)
	if len(denied) != 1 {
		t.Fatalf("expected 1 denial event, got %d", len(denied))
	}
	if denied[0].Metadata["reason"] != ReasonApprovalRequired || denied[0].Operation != opReward.String() {
		t.Fatalf("unexpected denial event %+v", denied[0])
	}
	paused := sink.ByType(auditEventPaused)
	if len(paused) != 1 || paused[0].Channel != AuditChannelEmergency {
		t.Fatalf("expected pause on emergency channel, got %+v", paused)
	}
}
