package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var epoch = time.Unix(1_700_000_000, 0)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"fixed ok", Config{Algorithm: FixedWindow, MaxRequests: 1, Window: time.Second}, true},
		{"zero max", Config{Algorithm: FixedWindow, MaxRequests: 0, Window: time.Second}, false},
		{"sliding no window", Config{Algorithm: SlidingWindow, MaxRequests: 3}, false},
		{"bucket no refill", Config{Algorithm: TokenBucket, MaxRequests: 3}, false},
		{"bucket ok", Config{Algorithm: TokenBucket, MaxRequests: 3, RefillPerSecond: 0.5}, true},
		{"unknown algorithm", Config{Algorithm: Algorithm(9), MaxRequests: 3, Window: time.Second}, false},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", tc.name, err)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	for _, a := range []Algorithm{FixedWindow, SlidingWindow, TokenBucket} {
		got, err := ParseAlgorithm(a.String())
		if err != nil || got != a {
			t.Fatalf("round trip %s: got %v, %v", a, got, err)
		}
	}
	if _, err := ParseAlgorithm("leaky"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestFixedWindowResetsAfterWindow(t *testing.T) {
	cfg := Config{Algorithm: FixedWindow, MaxRequests: 3, Window: time.Minute, Active: true}

	var (
		st      State
		exists  bool
		allowed bool
	)
	for i := 0; i < 3; i++ {
		st, allowed = Apply(cfg, st, exists, epoch)
		exists = true
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if _, allowed = Apply(cfg, st, exists, epoch.Add(time.Second)); allowed {
		t.Fatal("fourth request in window should be denied")
	}

	st, allowed = Apply(cfg, st, exists, epoch.Add(61*time.Second))
	if !allowed {
		t.Fatal("request after window should be allowed")
	}
	if st.RequestCount != 1 || !st.WindowStart.Equal(epoch.Add(61*time.Second)) {
		t.Fatalf("window not restarted: %+v", st)
	}
}

func TestSlidingWindowMeasuresFromLastAllowedRequest(t *testing.T) {
	cfg := Config{Algorithm: SlidingWindow, MaxRequests: 2, Window: 10 * time.Second, Active: true}

	st, _ := Apply(cfg, State{}, false, epoch)
	st, _ = Apply(cfg, st, true, epoch.Add(8*time.Second))

	// 12s after the first request but only 4s after the last one.
	st, allowed := Apply(cfg, st, true, epoch.Add(12*time.Second))
	if allowed {
		t.Fatal("expected deny while last request is inside window")
	}
	if !st.LastRequest.Equal(epoch.Add(8 * time.Second)) {
		t.Fatalf("denied request must not move LastRequest, got %v", st.LastRequest)
	}

	if _, allowed = Apply(cfg, st, true, epoch.Add(18*time.Second)); !allowed {
		t.Fatal("expected allow once window has passed since last request")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	cfg := Config{Algorithm: TokenBucket, MaxRequests: 5, RefillPerSecond: 1, Active: true}

	var (
		st      State
		exists  bool
		allowed bool
	)
	for i := 0; i < 5; i++ {
		st, allowed = Apply(cfg, st, exists, epoch)
		exists = true
		if !allowed {
			t.Fatalf("request %d should be allowed from full bucket", i+1)
		}
	}
	if st, allowed = Apply(cfg, st, exists, epoch); allowed {
		t.Fatal("sixth request should be denied")
	}

	later := epoch.Add(3 * time.Second)
	for i := 0; i < 3; i++ {
		st, allowed = Apply(cfg, st, exists, later)
		if !allowed {
			t.Fatalf("refilled request %d should be allowed", i+1)
		}
	}
	if _, allowed = Apply(cfg, st, exists, later); allowed {
		t.Fatal("bucket should be empty after consuming refilled tokens")
	}
}

func TestTokenBucketIgnoresClockRegression(t *testing.T) {
	cfg := Config{Algorithm: TokenBucket, MaxRequests: 2, RefillPerSecond: 1, Active: true}
	st, _ := Apply(cfg, State{}, false, epoch)
	st, _ = Apply(cfg, st, true, epoch)

	st, allowed := Apply(cfg, st, true, epoch.Add(-time.Hour))
	if allowed {
		t.Fatal("clock regression must not mint tokens")
	}
	if st.Tokens < 0 {
		t.Fatalf("tokens went negative: %v", st.Tokens)
	}
}

func TestTokenBucketNeverExceedsCapacity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("tokens stay within [0, capacity]", prop.ForAll(
		func(capacity uint64, refill float64, gaps []int64) bool {
			cfg := Config{Algorithm: TokenBucket, MaxRequests: capacity, RefillPerSecond: refill, Active: true}
			now := epoch
			st, _ := Apply(cfg, State{}, false, now)
			for _, gap := range gaps {
				now = now.Add(time.Duration(gap) * time.Millisecond)
				st, _ = Apply(cfg, st, true, now)
				if st.Tokens < 0 || st.Tokens > float64(capacity) {
					return false
				}
			}
			return true
		},
		gen.UInt64Range(1, 50),
		gen.Float64Range(0.01, 100),
		gen.SliceOf(gen.Int64Range(-5_000, 120_000)),
	))

	properties.TestingRun(t)
}

func TestWindowCountNeverExceedsMax(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("allowed requests per fixed window never exceed max", prop.ForAll(
		func(max uint64, gaps []int64) bool {
			cfg := Config{Algorithm: FixedWindow, MaxRequests: max, Window: time.Second, Active: true}
			now := epoch
			var (
				st     State
				exists bool
			)
			for _, gap := range gaps {
				now = now.Add(time.Duration(gap) * time.Millisecond)
				st, _ = Apply(cfg, st, exists, now)
				exists = true
				if st.RequestCount > max {
					return false
				}
			}
			return true
		},
		gen.UInt64Range(1, 10),
		gen.SliceOf(gen.Int64Range(0, 400)),
	))

	properties.TestingRun(t)
}
