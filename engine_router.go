package goGuard

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ConfigureOperation sets whether op requires a rate limit check and an
// approved call. Configurator only.
func (e *Engine) ConfigureOperation(ctx context.Context, actor string, op OperationID, requiresRateLimit, requiresApproval bool) error {
	if err := e.require(actor, RoleConfigurator); err != nil {
		return err
	}
	e.router.Configure(op.String(), requiresRateLimit, requiresApproval)
	e.emitAudit(ctx, auditEventOperationConfigured, true, e.now(), auditRecord{
		actor:     actor,
		operation: op.String(),
		metadata: func() map[string]string {
			return map[string]string{
				"requires_rate_limit": strconv.FormatBool(requiresRateLimit),
				"requires_approval":   strconv.FormatBool(requiresApproval),
			}
		},
	})
	return nil
}

// ConfigureOperations applies ConfigureOperation index by index. Unequal
// slice lengths fail with [ErrArrayLengthMismatch] and apply nothing.
func (e *Engine) ConfigureOperations(ctx context.Context, actor string, ops []OperationID, requiresRateLimit, requiresApproval []bool) error {
	if err := e.require(actor, RoleConfigurator); err != nil {
		return err
	}
	keys := make([]string, len(ops))
	for i, op := range ops {
		keys[i] = op.String()
	}
	err := e.router.ConfigureBulk(keys, requiresRateLimit, requiresApproval)
	e.emitAudit(ctx, auditEventOperationConfigured, err == nil, e.now(), auditRecord{
		actor: actor,
		err:   err,
		metadata: func() map[string]string {
			return map[string]string{"operations": strconv.Itoa(len(ops))}
		},
	})
	return err
}

// BindOperationScope binds op to scope for scoped emergencies. An empty
// scope restores the default, which is op's hex string. Configurator only.
func (e *Engine) BindOperationScope(ctx context.Context, actor string, op OperationID, scope string) error {
	if err := e.require(actor, RoleConfigurator); err != nil {
		return err
	}
	e.router.BindScope(op.String(), scope)
	e.emitAudit(ctx, auditEventOperationScopeBound, true, e.now(), auditRecord{
		actor:     actor,
		operation: op.String(),
		scope:     scope,
	})
	return nil
}

// GetOperation returns op's requirements with its effective scope.
func (e *Engine) GetOperation(op OperationID) (OperationRequirements, bool) {
	if e == nil {
		return OperationRequirements{}, false
	}
	return e.router.Get(op.String())
}

// engineGates answers the router's guard questions at one instant.
type engineGates struct {
	e   *Engine
	now time.Time
}

func (g engineGates) Blocked(op, scope string) (bool, string) {
	return g.e.monitor.Check(op, scope, g.now)
}

func (g engineGates) RateLimit(ctx context.Context, op, caller string) (bool, error) {
	return g.e.checkRateLimit(ctx, op, caller, g.now)
}

// Authorize decides whether caller may perform op now. Evaluation order is
// paused, bypass, emergency or breaker block, approval requirement, rate
// limit. isApprovedCall must be true only for the execution of an
// approved, delay-matured proposal.
//
// Denials are decisions, not errors. A rate limit backend failure denies
// with [ReasonRateLimitUnavailable] and also returns an error wrapping
// [ErrStoreUnavailable].
func (e *Engine) Authorize(ctx context.Context, caller string, op OperationID, isApprovedCall bool) (Decision, error) {
	if e == nil {
		return Decision{}, ErrEngineNotReady
	}
	start := time.Now()
	now := e.now()
	key := op.String()

	d, err := e.router.Decide(ctx, engineGates{e: e, now: now}, caller, key, isApprovedCall)

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthorizeLatency, time.Since(start))
	}
	e.recordDecision(ctx, caller, key, d, err, now)
	return d, err
}

// AuthorizeContext is Authorize with isApprovedCall taken from ctx, as set
// by [WithApprovedCall].
func (e *Engine) AuthorizeContext(ctx context.Context, caller string, op OperationID) (Decision, error) {
	return e.Authorize(ctx, caller, op, IsApprovedCall(ctx))
}

func (e *Engine) recordDecision(ctx context.Context, caller, op string, d Decision, err error, now time.Time) {
	switch d.Reason {
	case ReasonAllowed:
		e.metricInc(MetricAuthorizeAllowed)
		return
	case ReasonBypass:
		e.metricInc(MetricAuthorizeBypass)
		return
	case ReasonPaused:
		e.metricInc(MetricDenyPaused)
	case ReasonBlocked:
		e.metricInc(MetricDenyBlocked)
	case ReasonApprovalRequired:
		e.metricInc(MetricDenyApprovalRequired)
	case ReasonRateLimited:
		e.metricInc(MetricDenyRateLimited)
	case ReasonRateLimitUnavailable:
		e.metricInc(MetricDenyRateLimitUnavailable)
	}

	e.emitAudit(ctx, auditEventAuthorizeDenied, false, now, auditRecord{
		actor:     caller,
		operation: op,
		err:       err,
		metadata: func() map[string]string {
			m := map[string]string{"reason": d.Reason}
			if d.Detail != "" {
				m["detail"] = d.Detail
			}
			return m
		},
	})
}

// ToggleGlobalBypass turns the kill switch on or off. While on, every
// operation is allowed unless the engine is paused. Admin only.
func (e *Engine) ToggleGlobalBypass(ctx context.Context, actor string, on bool) error {
	if err := e.require(actor, RoleAdmin); err != nil {
		return err
	}
	prev := e.router.SetBypass(on)
	if prev != on {
		e.logger.Warn("global bypass toggled", zap.String("actor", actor), zap.Bool("enabled", on))
	}
	e.emitAudit(ctx, auditEventBypassToggled, true, e.now(), auditRecord{
		channel: AuditChannelEmergency,
		actor:   actor,
		metadata: func() map[string]string {
			return map[string]string{"enabled": strconv.FormatBool(on)}
		},
	})
	return nil
}

// EmergencyPause denies every operation, bypass included. Admin or
// emergency role.
func (e *Engine) EmergencyPause(ctx context.Context, actor string) error {
	return e.setPaused(ctx, actor, true)
}

// EmergencyUnpause lifts EmergencyPause. Admin or emergency role.
func (e *Engine) EmergencyUnpause(ctx context.Context, actor string) error {
	return e.setPaused(ctx, actor, false)
}

func (e *Engine) setPaused(ctx context.Context, actor string, paused bool) error {
	if err := e.require(actor, RoleAdmin, RoleEmergency); err != nil {
		return err
	}
	e.router.SetPaused(paused)
	event := auditEventPaused
	if !paused {
		event = auditEventUnpaused
	}
	e.logger.Warn(event, zap.String("actor", actor))
	e.emitAudit(ctx, event, true, e.now(), auditRecord{
		channel: AuditChannelEmergency,
		actor:   actor,
	})
	return nil
}

// IsPaused reports whether EmergencyPause is in effect.
func (e *Engine) IsPaused() bool {
	return e != nil && e.router.Paused()
}

// IsBypassed reports whether the global bypass is on.
func (e *Engine) IsBypassed() bool {
	return e != nil && e.router.Bypass()
}
