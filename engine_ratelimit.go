package goGuard

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// ConfigureRateLimit installs cfg for op. Configurator only. Existing
// counter state is kept.
func (e *Engine) ConfigureRateLimit(ctx context.Context, actor string, op OperationID, cfg RateLimitConfig) error {
	if err := e.require(actor, RoleConfigurator); err != nil {
		return err
	}
	now := e.now()
	err := translate(e.limiter.Configure(op.String(), cfg))
	e.emitAudit(ctx, auditEventRateLimitConfigured, err == nil, now, auditRecord{
		actor:     actor,
		operation: op.String(),
		err:       err,
		metadata: func() map[string]string {
			return map[string]string{
				"algorithm":    cfg.Algorithm.String(),
				"max_requests": strconv.FormatUint(cfg.MaxRequests, 10),
				"window":       cfg.Window.String(),
				"global":       strconv.FormatBool(cfg.Global),
				"active":       strconv.FormatBool(cfg.Active),
			}
		},
	})
	return err
}

// CheckRateLimit consumes one request for caller on op and reports whether
// it was allowed. Anyone may call it. A backend failure returns an error
// wrapping [ErrStoreUnavailable].
func (e *Engine) CheckRateLimit(ctx context.Context, caller string, op OperationID) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	return e.checkRateLimit(ctx, op.String(), caller, e.now())
}

func (e *Engine) checkRateLimit(ctx context.Context, op, caller string, now time.Time) (bool, error) {
	e.metricInc(MetricRateLimitCheck)
	allowed, err := e.limiter.Check(ctx, op, caller, now)
	if err != nil {
		e.logger.Warn("rate limit backend failure",
			zap.String("operation", op),
			zap.String("caller", caller),
			zap.Error(err),
		)
		return false, translate(err)
	}
	return allowed, nil
}

// SetRateLimitActive toggles enforcement of op's limit. Configurator only.
func (e *Engine) SetRateLimitActive(ctx context.Context, actor string, op OperationID, active bool) error {
	if err := e.require(actor, RoleConfigurator); err != nil {
		return err
	}
	err := translate(e.limiter.SetActive(op.String(), active))
	e.emitAudit(ctx, auditEventRateLimitActiveChanged, err == nil, e.now(), auditRecord{
		actor:     actor,
		operation: op.String(),
		err:       err,
		metadata: func() map[string]string {
			return map[string]string{"active": strconv.FormatBool(active)}
		},
	})
	return err
}

// SetWhitelisted adds or removes caller from the whitelist that bypasses
// every rate limit. Configurator only.
func (e *Engine) SetWhitelisted(ctx context.Context, actor, caller string, whitelisted bool) error {
	if err := e.require(actor, RoleConfigurator); err != nil {
		return err
	}
	e.limiter.SetWhitelisted(caller, whitelisted)
	e.emitAudit(ctx, auditEventWhitelistChanged, true, e.now(), auditRecord{
		actor: actor,
		metadata: func() map[string]string {
			return map[string]string{
				"caller":      caller,
				"whitelisted": strconv.FormatBool(whitelisted),
			}
		},
	})
	return nil
}

// ClearUserRateLimit deletes caller's state on op. Configurator or admin.
// Ops with a global limit are refused with [ErrInvalidConfig]; use
// [Engine.ClearGlobalRateLimit] for them.
func (e *Engine) ClearUserRateLimit(ctx context.Context, actor, caller string, op OperationID) error {
	if err := e.require(actor, RoleConfigurator, RoleAdmin); err != nil {
		return err
	}
	err := translate(e.limiter.ClearUser(ctx, op.String(), caller))
	e.emitAudit(ctx, auditEventRateLimitCleared, err == nil, e.now(), auditRecord{
		actor:     actor,
		operation: op.String(),
		err:       err,
		metadata: func() map[string]string {
			return map[string]string{"caller": caller}
		},
	})
	return err
}

// ClearGlobalRateLimit deletes the shared state of op. Configurator or admin.
func (e *Engine) ClearGlobalRateLimit(ctx context.Context, actor string, op OperationID) error {
	if err := e.require(actor, RoleConfigurator, RoleAdmin); err != nil {
		return err
	}
	err := translate(e.limiter.ClearGlobal(ctx, op.String()))
	e.emitAudit(ctx, auditEventRateLimitCleared, err == nil, e.now(), auditRecord{
		actor:     actor,
		operation: op.String(),
		err:       err,
		metadata: func() map[string]string {
			return map[string]string{"global": "true"}
		},
	})
	return err
}

// GetRateLimit returns the configuration of op.
func (e *Engine) GetRateLimit(op OperationID) (RateLimitConfig, bool) {
	if e == nil {
		return RateLimitConfig{}, false
	}
	return e.limiter.Config(op.String())
}

// GetUserRateLimit returns the state governing caller on op: the shared
// state when op's limit is global.
func (e *Engine) GetUserRateLimit(ctx context.Context, caller string, op OperationID) (RateLimitState, error) {
	if e == nil {
		return RateLimitState{}, ErrEngineNotReady
	}
	st, err := e.limiter.State(ctx, op.String(), caller)
	return st, translate(err)
}

// IsWhitelisted reports whether caller bypasses every rate limit.
func (e *Engine) IsWhitelisted(caller string) bool {
	if e == nil {
		return false
	}
	return e.limiter.IsWhitelisted(caller)
}
