package goGuard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/goGuard/internal/approval"
	internalaudit "github.com/MrEthical07/goGuard/internal/audit"
	internalmetrics "github.com/MrEthical07/goGuard/internal/metrics"
	"github.com/MrEthical07/goGuard/internal/ratelimit"
	"github.com/MrEthical07/goGuard/internal/resilience"
	"github.com/MrEthical07/goGuard/internal/router"
	"github.com/MrEthical07/goGuard/internal/security"
	"go.uber.org/zap"
)

/*
====================================
OPERATIONS
====================================
*/

// OperationID names a guarded action. It is fixed once chosen.
type OperationID [32]byte

// OperationIDFromName derives the ID of an action as the SHA-256 of its name.
func OperationIDFromName(name string) OperationID {
	return OperationID(sha256.Sum256([]byte(name)))
}

// ParseOperationID decodes the hex form returned by [OperationID.String].
func ParseOperationID(s string) (OperationID, error) {
	var id OperationID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("%w: operation id %q", ErrInvalidConfig, s)
	}
	copy(id[:], b)
	return id, nil
}

func (o OperationID) String() string {
	return hex.EncodeToString(o[:])
}

// OperationRequirements lists the guards an operation must pass and the
// scope consulted for scoped emergencies.
type OperationRequirements = router.Requirements

// Decision is the result of [Engine.Authorize]. Capacity denials are
// decisions, not errors.
type Decision = router.Decision

// Decision reasons.
const (
	ReasonAllowed              = router.ReasonAllowed
	ReasonPaused               = router.ReasonPaused
	ReasonBypass               = router.ReasonBypass
	ReasonBlocked              = router.ReasonBlocked
	ReasonApprovalRequired     = router.ReasonApprovalRequired
	ReasonRateLimited          = router.ReasonRateLimited
	ReasonRateLimitUnavailable = router.ReasonRateLimitUnavailable
)

/*
====================================
ROLES
====================================
*/

// Roles known to the engine. A member may hold any combination.
const (
	RoleAdmin            = "admin"
	RoleConfigurator     = "configurator"
	RoleSigner           = "signer"
	RoleEmergency        = "emergency"
	RoleEmergencyAdmin   = "emergency_admin"
	RoleEmergencyContact = "emergency_contact"
	RoleGuardian         = "guardian"
)

var allRoles = []string{
	RoleAdmin,
	RoleConfigurator,
	RoleSigner,
	RoleEmergency,
	RoleEmergencyAdmin,
	RoleEmergencyContact,
	RoleGuardian,
}

/*
====================================
RATE LIMITS
====================================
*/

// Algorithm selects how a rate limit counts requests.
type Algorithm = ratelimit.Algorithm

const (
	FixedWindow   = ratelimit.FixedWindow
	SlidingWindow = ratelimit.SlidingWindow
	TokenBucket   = ratelimit.TokenBucket
)

// ParseAlgorithm accepts "fixed_window", "sliding_window" or "token_bucket".
func ParseAlgorithm(s string) (Algorithm, error) {
	a, err := ratelimit.ParseAlgorithm(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return a, nil
}

// RateLimitConfig is the limit applied to one operation.
type RateLimitConfig = ratelimit.Config

// RateLimitState is the counter state of one (operation, caller) pair, or of
// the operation when the limit is global.
type RateLimitState = ratelimit.State

/*
====================================
PROPOSALS
====================================
*/

// Proposal is a request to run an approval-gated action.
type Proposal = approval.Proposal

// ProposalState is the derived lifecycle state of a proposal.
type ProposalState = approval.Status

const (
	ProposalPending   = approval.StatusPending
	ProposalExecuted  = approval.StatusExecuted
	ProposalCancelled = approval.StatusCancelled
	ProposalExpired   = approval.StatusExpired
)

// Executor performs the action of an executed proposal. It receives a
// context marked with [WithApprovedCall].
type Executor = approval.Executor

// ExecutorFunc adapts a function to [Executor].
type ExecutorFunc = approval.ExecutorFunc

// ProposalStore persists proposals.
type ProposalStore = approval.Store

/*
====================================
RESILIENCE
====================================
*/

// EmergencyLevel grades how severely operations are restricted. Medium and
// above block every operation in its scope.
type EmergencyLevel = resilience.Level

const (
	LevelNone     = resilience.LevelNone
	LevelLow      = resilience.LevelLow
	LevelMedium   = resilience.LevelMedium
	LevelHigh     = resilience.LevelHigh
	LevelCritical = resilience.LevelCritical
)

// ParseEmergencyLevel accepts "none", "low", "medium", "high" or "critical".
func ParseEmergencyLevel(s string) (EmergencyLevel, error) {
	return resilience.ParseLevel(s)
}

// EmergencyState is the active emergency of the global scope or one named scope.
type EmergencyState = resilience.EmergencyState

// CircuitBreakerConfig configures the breaker of one operation.
type CircuitBreakerConfig = resilience.BreakerConfig

// CircuitBreakerState is the failure record of one operation.
type CircuitBreakerState = resilience.BreakerState

// VoteID binds guardian votes to the exact parameters of one activation.
type VoteID = resilience.VoteID

// ParseVoteID decodes the hex form of a VoteID.
func ParseVoteID(s string) (VoteID, error) {
	return resilience.ParseVoteID(s)
}

// GuardianVoteID computes the vote ID guardians sign for an activation of
// level with the given parameters at the unix second of at. scope is empty
// for the global level.
func GuardianVoteID(level EmergencyLevel, duration time.Duration, reason, scope string, at time.Time) VoteID {
	return resilience.ComputeVoteID(level, duration, reason, scope, at)
}

// SecurityReport is a read-only snapshot of the control plane's posture,
// returned by [Engine.SecurityReport].
type SecurityReport = security.Report

/*
====================================
AUDIT
====================================
*/

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards audit events to a buffered Go channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as newline-delimited JSON.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs audit events through a zap logger.
type ZapSink = internalaudit.ZapSink

// MultiSink fans every audit event out to several sinks.
type MultiSink = internalaudit.MultiSink

// Audit channels.
const (
	AuditChannelSecurity  = internalaudit.ChannelSecurity
	AuditChannelEmergency = internalaudit.ChannelEmergency
)

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}

/*
====================================
METRICS
====================================
*/

// MetricID identifies a counter or histogram in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricAuthorizeAllowed         = internalmetrics.MetricAuthorizeAllowed
	MetricAuthorizeBypass          = internalmetrics.MetricAuthorizeBypass
	MetricDenyPaused               = internalmetrics.MetricDenyPaused
	MetricDenyBlocked              = internalmetrics.MetricDenyBlocked
	MetricDenyApprovalRequired     = internalmetrics.MetricDenyApprovalRequired
	MetricDenyRateLimited          = internalmetrics.MetricDenyRateLimited
	MetricDenyRateLimitUnavailable = internalmetrics.MetricDenyRateLimitUnavailable
	MetricRateLimitCheck           = internalmetrics.MetricRateLimitCheck
	MetricProposalCreated          = internalmetrics.MetricProposalCreated
	MetricProposalApproved         = internalmetrics.MetricProposalApproved
	MetricProposalExecuted         = internalmetrics.MetricProposalExecuted
	MetricProposalExecutionFailed  = internalmetrics.MetricProposalExecutionFailed
	MetricProposalCancelled        = internalmetrics.MetricProposalCancelled
	MetricEmergencyExecute         = internalmetrics.MetricEmergencyExecute
	MetricBreakerFailure           = internalmetrics.MetricBreakerFailure
	MetricBreakerTripped           = internalmetrics.MetricBreakerTripped
	MetricEmergencyActivated       = internalmetrics.MetricEmergencyActivated
	MetricEmergencyEscalated       = internalmetrics.MetricEmergencyEscalated
	MetricEmergencyDeactivated     = internalmetrics.MetricEmergencyDeactivated
	MetricEmergencyAutoResolved    = internalmetrics.MetricEmergencyAutoResolved
	MetricGuardianVote             = internalmetrics.MetricGuardianVote
	MetricUnauthorized             = internalmetrics.MetricUnauthorized
	MetricAuthorizeLatency         = internalmetrics.MetricAuthorizeLatency
)

// Metrics holds atomic counters and the optional authorize latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When Enabled is false, all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
