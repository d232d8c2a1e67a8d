package goGuard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/MrEthical07/goGuard/internal/ratelimit"
	"github.com/MrEthical07/goGuard/internal/resilience"
	"github.com/MrEthical07/goGuard/policy"
	"go.uber.org/zap"
)

type plannedOperation struct {
	key       string
	scope     string
	approval  bool
	rateLimit *ratelimit.Config
	breaker   *resilience.BreakerConfig
}

// ApplyPolicy validates doc and applies it as one unit: either every
// operation, limit, breaker, membership and whitelist entry is installed,
// or nothing is. Configurator only; documents with members also need the
// admin role.
//
// Entries not named by doc are left untouched.
func (e *Engine) ApplyPolicy(ctx context.Context, actor string, doc *policy.Document) error {
	if err := e.require(actor, RoleConfigurator); err != nil {
		return err
	}
	if doc != nil && len(doc.Members) > 0 {
		if err := e.require(actor, RoleAdmin); err != nil {
			return err
		}
	}

	plan, err := e.planPolicy(doc)
	if err != nil {
		e.emitAudit(ctx, auditEventPolicyApplied, false, e.now(), auditRecord{actor: actor, err: err})
		return err
	}

	e.applyPlan(doc, plan)

	e.logger.Info("policy applied",
		zap.String("actor", actor),
		zap.Int("operations", len(plan)),
		zap.Int("members", len(doc.Members)),
	)
	e.emitAudit(ctx, auditEventPolicyApplied, true, e.now(), auditRecord{
		actor: actor,
		metadata: func() map[string]string {
			return map[string]string{
				"operations": strconv.Itoa(len(plan)),
				"members":    strconv.Itoa(len(doc.Members)),
				"whitelist":  strconv.Itoa(len(doc.Whitelist)),
			}
		},
	})
	return nil
}

func (e *Engine) planPolicy(doc *policy.Document) ([]plannedOperation, error) {
	if err := doc.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	for member, roles := range doc.Members {
		if _, err := e.members.Mask(roles...); err != nil {
			return nil, fmt.Errorf("member %q: %w", member, err)
		}
	}

	plan := make([]plannedOperation, 0, len(doc.Operations))
	for _, op := range doc.Operations {
		key, err := op.Key()
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}
		p := plannedOperation{
			key:      OperationID(key).String(),
			scope:    op.Scope,
			approval: op.RequiresApproval,
		}
		if op.RateLimit != nil {
			cfg, err := op.RateLimit.Config()
			if err != nil {
				return nil, errors.Join(ErrInvalidConfig, err)
			}
			p.rateLimit = &cfg
		}
		if op.Breaker != nil {
			cfg, err := op.Breaker.Config()
			if err != nil {
				return nil, errors.Join(ErrInvalidConfig, err)
			}
			p.breaker = &cfg
		}
		plan = append(plan, p)
	}
	return plan, nil
}

// applyPlan installs a validated plan. Every step below has already been
// checked, so errors here would be programming errors and are logged.
func (e *Engine) applyPlan(doc *policy.Document, plan []plannedOperation) {
	for _, p := range plan {
		if p.rateLimit != nil {
			if err := e.limiter.Configure(p.key, *p.rateLimit); err != nil {
				e.logger.Error("policy rate limit", zap.String("operation", p.key), zap.Error(err))
			}
		}
		if p.breaker != nil {
			if err := e.monitor.SetBreaker(p.key, *p.breaker); err != nil {
				e.logger.Error("policy breaker", zap.String("operation", p.key), zap.Error(err))
			}
		}
		e.router.Configure(p.key, p.rateLimit != nil, p.approval)
		e.router.BindScope(p.key, p.scope)
	}

	ids := make([]string, 0, len(doc.Members))
	for id := range doc.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, role := range doc.Members[id] {
			if _, err := e.members.Grant(id, role); err != nil {
				e.logger.Error("policy member", zap.String("member", id), zap.Error(err))
			}
		}
	}

	for _, caller := range doc.Whitelist {
		e.limiter.SetWhitelisted(caller, true)
	}
}
