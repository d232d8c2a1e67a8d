package goGuard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testEpoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testMembers = map[string][]string{
	"alice": {RoleAdmin},
	"carol": {RoleConfigurator},
	"sam":   {RoleSigner},
	"sue":   {RoleSigner},
	"eve":   {RoleEmergency},
	"eva":   {RoleEmergencyAdmin},
	"g1":    {RoleGuardian},
	"g2":    {RoleGuardian},
	"g3":    {RoleGuardian},
}

type captureSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *captureSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *captureSink) Events() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *captureSink) ByType(eventType string) []AuditEvent {
	var out []AuditEvent
	for _, ev := range s.Events() {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Approval.MinDelay = time.Hour
	cfg.Approval.Lifetime = 7 * 24 * time.Hour
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

// newTestEngine builds an engine over a fake clock. mutate may adjust the
// builder before Build.
func newTestEngine(t *testing.T, mutate func(*Builder)) (*Engine, *testClock) {
	t.Helper()

	clock := newTestClock()
	b := New().
		WithConfig(testConfig()).
		WithMembers(testMembers).
		WithClock(clock.Now)
	if mutate != nil {
		mutate(b)
	}

	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(e.Close)
	return e, clock
}

func mustAuthorize(t *testing.T, e *Engine, caller string, op OperationID, approved bool) Decision {
	t.Helper()

	d, err := e.Authorize(context.Background(), caller, op, approved)
	if err != nil {
		t.Fatalf("Authorize(%s) failed: %v", caller, err)
	}
	return d
}
