package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/internal/ratelimit"
	"github.com/MrEthical07/goGuard/internal/resilience"
)

const samplePolicy = `
version: 1
operations:
  - name: mint-badge
    scope: badges
    rate_limit:
      algorithm: fixed_window
      max_requests: 3
      window: 60s
    breaker:
      threshold: 3
      window: 1m
      cooldown: 5m
      trigger_severity: high
  - name: guild-reward
    requires_approval: true
    rate_limit:
      algorithm: token_bucket
      max_requests: 5
      refill_per_second: 1
      global: true
      active: false
members:
  alice: [admin, configurator]
  bob: [signer]
whitelist: [batch-minter]
`

func TestParseSample(t *testing.T) {
	doc, err := Parse([]byte(samplePolicy))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Operations) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(doc.Operations))
	}

	mint := doc.Operations[0]
	key, err := mint.Key()
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if key != sha256.Sum256([]byte("mint-badge")) {
		t.Fatal("name should hash to its operation id")
	}
	rl, err := mint.RateLimit.Config()
	if err != nil {
		t.Fatalf("rate limit: %v", err)
	}
	if rl.Algorithm != ratelimit.FixedWindow || rl.Window != time.Minute || !rl.Active {
		t.Fatalf("unexpected rate limit %+v", rl)
	}
	br, err := mint.Breaker.Config()
	if err != nil {
		t.Fatalf("breaker: %v", err)
	}
	if br.TriggerSeverity != resilience.LevelHigh || br.Cooldown != 5*time.Minute {
		t.Fatalf("unexpected breaker %+v", br)
	}

	reward, err := doc.Operations[1].RateLimit.Config()
	if err != nil {
		t.Fatalf("rate limit: %v", err)
	}
	if reward.Active || !reward.Global || reward.Algorithm != ratelimit.TokenBucket {
		t.Fatalf("unexpected rate limit %+v", reward)
	}
	if got := doc.Members["alice"]; len(got) != 2 {
		t.Fatalf("unexpected members %v", doc.Members)
	}
}

func TestOperationKeyByID(t *testing.T) {
	sum := sha256.Sum256([]byte("x"))
	op := Operation{ID: hex.EncodeToString(sum[:])}
	key, err := op.Key()
	if err != nil || key != sum {
		t.Fatalf("Key() = %x, %v", key, err)
	}

	if _, err := (Operation{ID: "abcd"}).Key(); err == nil {
		t.Fatal("short id should fail")
	}
	if _, err := (Operation{}).Key(); err == nil {
		t.Fatal("missing name and id should fail")
	}
	if _, err := (Operation{Name: "x", ID: op.ID}).Key(); err == nil {
		t.Fatal("name with id should fail")
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"version":       "version: 2\n",
		"unknown field": "version: 1\nbogus: true\n",
		"duplicate": `
version: 1
operations:
  - name: a
  - name: a
`,
		"algorithm": `
version: 1
operations:
  - name: a
    rate_limit: {algorithm: leaky, max_requests: 1, window: 1s}
`,
		"zero max": `
version: 1
operations:
  - name: a
    rate_limit: {algorithm: fixed_window, max_requests: 0, window: 1s}
`,
		"severity": `
version: 1
operations:
  - name: a
    breaker: {threshold: 1, window: 1s, cooldown: 1s, trigger_severity: apocalyptic}
`,
		"no roles": `
version: 1
members:
  alice: []
`,
		"empty whitelist entry": "version: 1\nwhitelist: ['']\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(body)); !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(samplePolicy), 0o600); err != nil {
		t.Fatal(err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Whitelist) != 1 || doc.Whitelist[0] != "batch-minter" {
		t.Fatalf("unexpected whitelist %v", doc.Whitelist)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should fail")
	}
}
