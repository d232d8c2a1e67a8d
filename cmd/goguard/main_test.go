package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

const lintPolicy = `
version: 1
operations:
  - name: mint-badge
    rate_limit:
      algorithm: fixed_window
      max_requests: 3
      window: 60s
  - name: guild-reward
    requires_approval: true
members:
  alice: [admin]
`

func TestLintAcceptsValidPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(lintPolicy), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	var out bytes.Buffer
	lintCmd.SetOut(&out)
	if err := runLint(lintCmd, []string{path}); err != nil {
		t.Fatalf("runLint failed: %v", err)
	}
	if !strings.Contains(out.String(), "operations: 2 (rate limited 1, approval gated 1, breakers 0)") {
		t.Fatalf("unexpected lint output:\n%s", out.String())
	}
}

func TestLintRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("version: 1\nbogus: true\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if err := runLint(lintCmd, []string{path}); err == nil {
		t.Fatal("expected unknown field to fail lint")
	}
}

func TestPercentileAndStats(t *testing.T) {
	samples := make([]time.Duration, 0, 100)
	for i := 100; i >= 1; i-- {
		samples = append(samples, time.Duration(i)*time.Millisecond)
	}
	s := computeStats(time.Second, samples, 2)
	if s.ops != 100 || s.failures != 2 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.p50 != 50*time.Millisecond || s.p99 != 99*time.Millisecond {
		t.Fatalf("unexpected percentiles p50=%s p99=%s", s.p50, s.p99)
	}
	if s.opsPerS != 100 {
		t.Fatalf("expected 100 ops/sec, got %f", s.opsPerS)
	}
	if got := computeStats(time.Second, nil, 0); got.ops != 0 {
		t.Fatalf("expected empty stats, got %+v", got)
	}
}

func TestAuthorizePhaseHitsRateLimit(t *testing.T) {
	ctx := context.Background()
	cfg := goGuard.DefaultConfig()
	cfg.Metrics.Enabled = true
	engine, err := goGuard.New().
		WithConfig(cfg).
		WithMembers(map[string][]string{"loadtest": {goGuard.RoleConfigurator}}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	op := goGuard.OperationIDFromName("loadtest")
	if err := engine.ConfigureOperation(ctx, "loadtest", op, true, false); err != nil {
		t.Fatalf("ConfigureOperation failed: %v", err)
	}
	err = engine.ConfigureRateLimit(ctx, "loadtest", op, goGuard.RateLimitConfig{
		Algorithm:   goGuard.FixedWindow,
		MaxRequests: 5,
		Window:      time.Hour,
		Active:      true,
	})
	if err != nil {
		t.Fatalf("ConfigureRateLimit failed: %v", err)
	}

	// One caller, 20 calls: exactly 5 fit in the window.
	stats := runAuthorizePhase(ctx, engine, op, nil, 1, 20, 4)
	if stats.ops != 20 || stats.failures != 0 || stats.denied != 15 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
