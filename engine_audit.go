package goGuard

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventAuthorizeDenied          = "authorize_denied"
	auditEventRateLimitConfigured      = "rate_limit_configured"
	auditEventRateLimitActiveChanged   = "rate_limit_active_changed"
	auditEventWhitelistChanged         = "whitelist_changed"
	auditEventRateLimitCleared         = "rate_limit_cleared"
	auditEventOperationConfigured      = "operation_configured"
	auditEventOperationScopeBound      = "operation_scope_bound"
	auditEventBypassToggled            = "bypass_toggled"
	auditEventPaused                   = "emergency_pause"
	auditEventUnpaused                 = "emergency_unpause"
	auditEventProposalCreated          = "proposal_created"
	auditEventProposalApproved         = "proposal_approved"
	auditEventProposalExecuted         = "proposal_executed"
	auditEventProposalCancelled        = "proposal_cancelled"
	auditEventEmergencyModeChanged     = "emergency_mode_changed"
	auditEventEmergencyExecute         = "emergency_execute"
	auditEventBreakerConfigured        = "circuit_breaker_configured"
	auditEventBreakerTripped           = "circuit_breaker_tripped"
	auditEventBreakerReset             = "circuit_breaker_reset"
	auditEventEmergencyActivated       = "emergency_activated"
	auditEventEmergencyEscalated       = "emergency_escalated"
	auditEventEmergencyDeactivated     = "emergency_deactivated"
	auditEventEmergencyAutoResolved    = "emergency_auto_resolved"
	auditEventScopedEmergencyActivated = "scoped_emergency_activated"
	auditEventScopedEmergencyCleared   = "scoped_emergency_deactivated"
	auditEventGuardianVote             = "guardian_vote"
	auditEventRoleGranted              = "role_granted"
	auditEventRoleRevoked              = "role_revoked"
	auditEventPolicyApplied            = "policy_applied"
)

// AuditErrorCode is the stable error label carried in [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrUnauthorized          AuditErrorCode = "unauthorized"
	auditErrInvalidConfig         AuditErrorCode = "invalid_config"
	auditErrNotFound              AuditErrorCode = "not_found"
	auditErrInvalidState          AuditErrorCode = "invalid_state"
	auditErrInsufficientApprovals AuditErrorCode = "insufficient_approvals"
	auditErrDelayNotMet           AuditErrorCode = "delay_not_met"
	auditErrInsufficientVotes     AuditErrorCode = "insufficient_guardian_votes"
	auditErrDuplicate             AuditErrorCode = "duplicate"
	auditErrExecutionFailed       AuditErrorCode = "execution_failed"
	auditErrUnavailable           AuditErrorCode = "backend_unavailable"
	auditErrInternal              AuditErrorCode = "internal_error"
)

// auditRecord carries the optional fields of one audit event.
type auditRecord struct {
	channel    string
	actor      string
	operation  string
	scope      string
	proposalID string
	err        error
	metadata   func() map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, at time.Time, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}
	if rec.channel == "" {
		rec.channel = AuditChannelSecurity
	}

	var metadata map[string]string
	if rec.metadata != nil {
		metadata = rec.metadata()
	}

	event := AuditEvent{
		ID:         uuid.NewString(),
		Timestamp:  at.UTC(),
		Channel:    rec.channel,
		EventType:  eventType,
		Actor:      rec.actor,
		Operation:  rec.operation,
		Scope:      rec.scope,
		ProposalID: rec.proposalID,
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(rec.err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrInvalidLevel),
		errors.Is(err, ErrArrayLengthMismatch),
		errors.Is(err, ErrNullTarget),
		errors.Is(err, ErrUnknownRole):
		return auditErrInvalidConfig
	case errors.Is(err, ErrProposalNotFound),
		errors.Is(err, ErrNotConfigured):
		return auditErrNotFound
	case errors.Is(err, ErrProposalExpired),
		errors.Is(err, ErrProposalAlreadyExecuted),
		errors.Is(err, ErrExecutionInProgress),
		errors.Is(err, ErrProposalCancelled),
		errors.Is(err, ErrEmergencyModeInactive),
		errors.Is(err, ErrEmergencyDowngrade),
		errors.Is(err, ErrVoteConsumed):
		return auditErrInvalidState
	case errors.Is(err, ErrInsufficientApprovals):
		return auditErrInsufficientApprovals
	case errors.Is(err, ErrDelayNotMet):
		return auditErrDelayNotMet
	case errors.Is(err, ErrInsufficientGuardianVotes):
		return auditErrInsufficientVotes
	case errors.Is(err, ErrAlreadyApproved),
		errors.Is(err, ErrAlreadyVoted):
		return auditErrDuplicate
	case errors.Is(err, ErrExecutionFailed):
		return auditErrExecutionFailed
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
