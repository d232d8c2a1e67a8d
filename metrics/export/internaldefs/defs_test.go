package internaldefs

import (
	"strings"
	"testing"

	goGuard "github.com/MrEthical07/goGuard"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	seen := make(map[goGuard.MetricID]bool, len(CounterDefs))
	names := make(map[string]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("duplicate metric id %d", def.ID)
		}
		if names[def.Name] {
			t.Fatalf("duplicate metric name %s", def.Name)
		}
		if !strings.HasPrefix(def.Name, "goguard_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %s", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}
	// Every id except the latency histogram is a counter.
	if len(CounterDefs) != int(goGuard.MetricAuthorizeLatency) {
		t.Fatalf("expected %d counters, got %d", goGuard.MetricAuthorizeLatency, len(CounterDefs))
	}
}

func TestBucketHelpers(t *testing.T) {
	if len(HistogramUpperBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatalf("bounds and suffixes disagree")
	}
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDecisionDefsCoverEveryReason(t *testing.T) {
	reasons := map[string]bool{}
	for _, d := range DecisionDefs {
		if reasons[d.Reason] {
			t.Fatalf("duplicate reason %s", d.Reason)
		}
		reasons[d.Reason] = true
		if !IsDecision(d.ID) {
			t.Fatalf("IsDecision(%d) = false", d.ID)
		}
	}
	if len(reasons) != 7 {
		t.Fatalf("expected 7 reasons, got %d", len(reasons))
	}
	if IsDecision(goGuard.MetricProposalCreated) {
		t.Fatal("proposal counter is not a decision")
	}
}
