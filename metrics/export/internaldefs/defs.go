package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef names one goGuard counter for exporters.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef names one goGuard histogram for exporters.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goGuard.MetricAuthorizeAllowed, Name: "goguard_authorize_allowed_total", Help: "Authorize calls allowed after every gate."},
	{ID: goGuard.MetricAuthorizeBypass, Name: "goguard_authorize_bypass_total", Help: "Authorize calls allowed by the global bypass."},
	{ID: goGuard.MetricDenyPaused, Name: "goguard_deny_paused_total", Help: "Authorize calls denied while paused."},
	{ID: goGuard.MetricDenyBlocked, Name: "goguard_deny_blocked_total", Help: "Authorize calls denied by an emergency level or open breaker."},
	{ID: goGuard.MetricDenyApprovalRequired, Name: "goguard_deny_approval_required_total", Help: "Authorize calls denied pending proposal approval."},
	{ID: goGuard.MetricDenyRateLimited, Name: "goguard_deny_rate_limited_total", Help: "Authorize calls denied by a rate limit."},
	{ID: goGuard.MetricDenyRateLimitUnavailable, Name: "goguard_deny_rate_limit_unavailable_total", Help: "Authorize calls denied because the rate limit store failed."},
	{ID: goGuard.MetricRateLimitCheck, Name: "goguard_rate_limit_check_total", Help: "Rate limit checks performed."},
	{ID: goGuard.MetricProposalCreated, Name: "goguard_proposal_created_total", Help: "Proposals created."},
	{ID: goGuard.MetricProposalApproved, Name: "goguard_proposal_approved_total", Help: "Proposal approvals recorded."},
	{ID: goGuard.MetricProposalExecuted, Name: "goguard_proposal_executed_total", Help: "Proposals executed."},
	{ID: goGuard.MetricProposalExecutionFailed, Name: "goguard_proposal_execution_failed_total", Help: "Proposal executions whose executor failed."},
	{ID: goGuard.MetricProposalCancelled, Name: "goguard_proposal_cancelled_total", Help: "Proposals cancelled."},
	{ID: goGuard.MetricEmergencyExecute, Name: "goguard_emergency_execute_total", Help: "Emergency bypass executions."},
	{ID: goGuard.MetricBreakerFailure, Name: "goguard_breaker_failure_total", Help: "Failures recorded against configured breakers."},
	{ID: goGuard.MetricBreakerTripped, Name: "goguard_breaker_tripped_total", Help: "Circuit breakers opened."},
	{ID: goGuard.MetricEmergencyActivated, Name: "goguard_emergency_activated_total", Help: "Emergency level activations."},
	{ID: goGuard.MetricEmergencyEscalated, Name: "goguard_emergency_escalated_total", Help: "Emergency escalations caused by breaker trips."},
	{ID: goGuard.MetricEmergencyDeactivated, Name: "goguard_emergency_deactivated_total", Help: "Emergency deactivations."},
	{ID: goGuard.MetricEmergencyAutoResolved, Name: "goguard_emergency_auto_resolved_total", Help: "Emergencies cleared by auto-resolve."},
	{ID: goGuard.MetricGuardianVote, Name: "goguard_guardian_vote_total", Help: "Guardian consensus votes recorded."},
	{ID: goGuard.MetricUnauthorized, Name: "goguard_unauthorized_total", Help: "Calls rejected for a missing role."},
}

// DecisionDef ties an Authorize reason to the counter that tracks it.
type DecisionDef struct {
	Reason string
	ID     goGuard.MetricID
}

// DecisionDefs covers every reason Authorize can return.
var DecisionDefs = []DecisionDef{
	{Reason: goGuard.ReasonAllowed, ID: goGuard.MetricAuthorizeAllowed},
	{Reason: goGuard.ReasonBypass, ID: goGuard.MetricAuthorizeBypass},
	{Reason: goGuard.ReasonPaused, ID: goGuard.MetricDenyPaused},
	{Reason: goGuard.ReasonBlocked, ID: goGuard.MetricDenyBlocked},
	{Reason: goGuard.ReasonApprovalRequired, ID: goGuard.MetricDenyApprovalRequired},
	{Reason: goGuard.ReasonRateLimited, ID: goGuard.MetricDenyRateLimited},
	{Reason: goGuard.ReasonRateLimitUnavailable, ID: goGuard.MetricDenyRateLimitUnavailable},
}

// IsDecision reports whether id counts Authorize outcomes.
func IsDecision(id goGuard.MetricID) bool {
	for _, d := range DecisionDefs {
		if d.ID == id {
			return true
		}
	}
	return false
}

var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricAuthorizeLatency, Name: "goguard_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// bucket of a snapshot is +Inf.
var HistogramUpperBounds = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1}

var HistogramBoundSuffix = []string{
	"0_0001",
	"0_0005",
	"0_001",
	"0_005",
	"0_01",
	"0_05",
	"0_1",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
