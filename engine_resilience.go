package goGuard

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

/*
====================================
CIRCUIT BREAKERS
====================================
*/

// SetCircuitBreaker installs the breaker configuration of op. Configurator
// only. Threshold, window and cooldown must be positive and the severity a
// known level.
func (e *Engine) SetCircuitBreaker(ctx context.Context, actor string, op OperationID, cfg CircuitBreakerConfig) error {
	if err := e.require(actor, RoleConfigurator); err != nil {
		return err
	}
	err := translate(e.monitor.SetBreaker(op.String(), cfg))
	e.emitAudit(ctx, auditEventBreakerConfigured, err == nil, e.now(), auditRecord{
		actor:     actor,
		operation: op.String(),
		err:       err,
		metadata: func() map[string]string {
			return map[string]string{
				"threshold": strconv.FormatUint(cfg.Threshold, 10),
				"window":    cfg.Window.String(),
				"cooldown":  cfg.Cooldown.String(),
				"severity":  cfg.TriggerSeverity.String(),
			}
		},
	})
	return err
}

// RecordFailure counts one failure of op. Anyone may call it; unconfigured
// operations are ignored. It reports whether this failure opened the
// breaker.
func (e *Engine) RecordFailure(ctx context.Context, op OperationID) bool {
	if e == nil {
		return false
	}
	now := e.now()
	res := e.monitor.RecordFailure(op.String(), now)
	if !res.Configured {
		return false
	}
	e.metricInc(MetricBreakerFailure)
	if !res.Tripped {
		return false
	}

	e.metricInc(MetricBreakerTripped)
	e.logger.Warn("circuit breaker tripped",
		zap.String("operation", op.String()),
		zap.Uint64("failures", res.State.FailureCount),
	)
	e.emitAudit(ctx, auditEventBreakerTripped, true, now, auditRecord{
		operation: op.String(),
		metadata: func() map[string]string {
			return map[string]string{"failures": strconv.FormatUint(res.State.FailureCount, 10)}
		},
	})
	if res.Escalated {
		e.metricInc(MetricEmergencyEscalated)
		e.logger.Warn("emergency level escalated by circuit breaker",
			zap.String("operation", op.String()),
			zap.Stringer("level", res.Level),
		)
		e.emitAudit(ctx, auditEventEmergencyEscalated, true, now, auditRecord{
			actor:     "circuit_breaker",
			operation: op.String(),
			metadata: func() map[string]string {
				return map[string]string{"level": res.Level.String()}
			},
		})
	}
	return true
}

// ResetCircuitBreaker clears op's failure state. Admin or configurator.
func (e *Engine) ResetCircuitBreaker(ctx context.Context, actor string, op OperationID) error {
	if err := e.require(actor, RoleAdmin, RoleConfigurator); err != nil {
		return err
	}
	err := translate(e.monitor.ResetBreaker(op.String()))
	e.emitAudit(ctx, auditEventBreakerReset, err == nil, e.now(), auditRecord{
		actor:     actor,
		operation: op.String(),
		err:       err,
	})
	return err
}

// GetCircuitBreaker returns op's breaker configuration and state, with
// IsOpen computed for the current time.
func (e *Engine) GetCircuitBreaker(ctx context.Context, op OperationID) (CircuitBreakerConfig, CircuitBreakerState, bool) {
	if e == nil {
		return CircuitBreakerConfig{}, CircuitBreakerState{}, false
	}
	return e.monitor.Breaker(op.String(), e.now())
}

/*
====================================
EMERGENCY LEVELS
====================================
*/

// ActivateEmergency sets the global emergency level. Low and Medium need
// the emergency or emergency contact role. High and Critical additionally
// need a guardian quorum on GuardianVoteID(level, duration, reason, "", now).
func (e *Engine) ActivateEmergency(ctx context.Context, actor string, level EmergencyLevel, duration time.Duration, reason string, autoResolve bool) error {
	if err := e.require(actor, RoleEmergency, RoleEmergencyContact); err != nil {
		return err
	}
	now := e.now()
	st, err := e.monitor.Activate(actor, level, duration, reason, autoResolve, now)
	e.emitAudit(ctx, auditEventEmergencyActivated, err == nil, now, auditRecord{
		channel: AuditChannelEmergency,
		actor:   actor,
		err:     err,
		metadata: func() map[string]string {
			return map[string]string{
				"level":        level.String(),
				"duration":     duration.String(),
				"reason":       reason,
				"auto_resolve": strconv.FormatBool(autoResolve),
			}
		},
	})
	if err != nil {
		return err
	}
	e.metricInc(MetricEmergencyActivated)
	e.logger.Info("emergency activated",
		zap.String("actor", actor),
		zap.Stringer("level", st.Level),
		zap.String("reason", reason),
		zap.Duration("duration", duration),
	)
	return nil
}

// VoteGuardianConsensus records actor's vote for voteID and returns the
// current vote count. Guardian only.
func (e *Engine) VoteGuardianConsensus(ctx context.Context, actor string, voteID VoteID) (int, error) {
	if err := e.require(actor, RoleGuardian); err != nil {
		return 0, err
	}
	n, err := e.monitor.Vote(voteID, actor)
	e.emitAudit(ctx, auditEventGuardianVote, err == nil, e.now(), auditRecord{
		channel: AuditChannelEmergency,
		actor:   actor,
		err:     err,
		metadata: func() map[string]string {
			return map[string]string{
				"vote_id": voteID.String(),
				"votes":   strconv.Itoa(n),
			}
		},
	})
	if err == nil {
		e.metricInc(MetricGuardianVote)
	}
	return n, err
}

// DeactivateEmergency clears the global emergency. Admin only.
func (e *Engine) DeactivateEmergency(ctx context.Context, actor string) error {
	if err := e.require(actor, RoleAdmin); err != nil {
		return err
	}
	prev := e.monitor.Deactivate()
	e.metricInc(MetricEmergencyDeactivated)
	e.logger.Info("emergency deactivated", zap.String("actor", actor), zap.Stringer("previous", prev.Level))
	e.emitAudit(ctx, auditEventEmergencyDeactivated, true, e.now(), auditRecord{
		channel: AuditChannelEmergency,
		actor:   actor,
		metadata: func() map[string]string {
			return map[string]string{"previous_level": prev.Level.String()}
		},
	})
	return nil
}

// AutoResolveEmergencies clears every expired auto-resolving emergency,
// global and scoped. Anyone may call it. It returns the number cleared.
func (e *Engine) AutoResolveEmergencies(ctx context.Context) int {
	if e == nil {
		return 0
	}
	now := e.now()
	global, scopes := e.monitor.AutoResolve(now)
	cleared := len(scopes)
	if global {
		cleared++
	}
	if cleared == 0 {
		return 0
	}

	for i := 0; i < cleared; i++ {
		e.metricInc(MetricEmergencyAutoResolved)
	}
	e.logger.Info("emergencies auto-resolved", zap.Bool("global", global), zap.Strings("scopes", scopes))
	e.emitAudit(ctx, auditEventEmergencyAutoResolved, true, now, auditRecord{
		channel: AuditChannelEmergency,
		metadata: func() map[string]string {
			return map[string]string{
				"global": strconv.FormatBool(global),
				"scopes": strconv.Itoa(len(scopes)),
			}
		},
	})
	return cleared
}

// ActivateScopedEmergency sets the emergency level of scope with the same
// role and consensus rules as ActivateEmergency. It auto-resolves when
// duration is positive.
func (e *Engine) ActivateScopedEmergency(ctx context.Context, actor, scope string, level EmergencyLevel, duration time.Duration, reason string) error {
	if err := e.require(actor, RoleEmergency, RoleEmergencyContact); err != nil {
		return err
	}
	now := e.now()
	_, err := e.monitor.ActivateScoped(actor, scope, level, duration, reason, now)
	e.emitAudit(ctx, auditEventScopedEmergencyActivated, err == nil, now, auditRecord{
		channel: AuditChannelEmergency,
		actor:   actor,
		scope:   scope,
		err:     err,
		metadata: func() map[string]string {
			return map[string]string{
				"level":    level.String(),
				"duration": duration.String(),
				"reason":   reason,
			}
		},
	})
	if err != nil {
		return err
	}
	e.metricInc(MetricEmergencyActivated)
	e.logger.Info("scoped emergency activated",
		zap.String("actor", actor),
		zap.String("scope", scope),
		zap.Stringer("level", level),
	)
	return nil
}

// DeactivateScopedEmergency clears the emergency of scope. Admin only.
func (e *Engine) DeactivateScopedEmergency(ctx context.Context, actor, scope string) error {
	if err := e.require(actor, RoleAdmin); err != nil {
		return err
	}
	prev := e.monitor.DeactivateScoped(scope)
	e.metricInc(MetricEmergencyDeactivated)
	e.emitAudit(ctx, auditEventScopedEmergencyCleared, true, e.now(), auditRecord{
		channel: AuditChannelEmergency,
		actor:   actor,
		scope:   scope,
		metadata: func() map[string]string {
			return map[string]string{"previous_level": prev.Level.String()}
		},
	})
	return nil
}

// CheckEmergencyStatus reports whether op is blocked by the global level,
// by its bound scope, or by its open breaker, and why.
func (e *Engine) CheckEmergencyStatus(ctx context.Context, op OperationID) (bool, string) {
	if e == nil {
		return true, "engine_not_ready"
	}
	key := op.String()
	req, _ := e.router.Get(key)
	return e.monitor.Check(key, req.Scope, e.now())
}

// GetCurrentEmergencyLevel returns the effective global level.
func (e *Engine) GetCurrentEmergencyLevel(ctx context.Context) EmergencyLevel {
	if e == nil {
		return LevelNone
	}
	return e.monitor.Global(e.now()).Level
}

// GetEmergencyState returns the effective global emergency record.
func (e *Engine) GetEmergencyState(ctx context.Context) EmergencyState {
	if e == nil {
		return EmergencyState{}
	}
	return e.monitor.Global(e.now())
}

// GetScopedEmergency returns the effective emergency record of scope.
func (e *Engine) GetScopedEmergency(ctx context.Context, scope string) EmergencyState {
	if e == nil {
		return EmergencyState{}
	}
	return e.monitor.Scoped(scope, e.now())
}
