package goGuard

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goGuard/internal/approval"
	"go.uber.org/zap"
)

// CreateProposal records a pending proposal and returns its ID. Signer only.
func (e *Engine) CreateProposal(ctx context.Context, actor, target string, payload []byte, value uint64) (string, error) {
	if err := e.require(actor, RoleSigner); err != nil {
		return "", err
	}
	now := e.now()
	p, err := e.approvals.Create(ctx, actor, target, payload, value, now)
	err = translate(err)
	e.emitAudit(ctx, auditEventProposalCreated, err == nil, now, auditRecord{
		actor:      actor,
		proposalID: p.ID,
		err:        err,
		metadata: func() map[string]string {
			return map[string]string{
				"target": target,
				"value":  strconv.FormatUint(value, 10),
			}
		},
	})
	if err != nil {
		return "", err
	}
	e.metricInc(MetricProposalCreated)
	return p.ID, nil
}

// ApproveProposal adds actor's approval to a pending proposal. Signer only.
func (e *Engine) ApproveProposal(ctx context.Context, actor, id string) error {
	if err := e.require(actor, RoleSigner); err != nil {
		return err
	}
	now := e.now()
	p, err := e.approvals.Approve(ctx, id, actor, now)
	err = translate(err)
	e.emitAudit(ctx, auditEventProposalApproved, err == nil, now, auditRecord{
		actor:      actor,
		proposalID: id,
		err:        err,
		metadata: func() map[string]string {
			return map[string]string{"approvals": strconv.Itoa(len(p.Approvals))}
		},
	})
	if err == nil {
		e.metricInc(MetricProposalApproved)
	}
	return err
}

// ExecuteProposal runs the configured Executor for a proposal that has
// reached quorum and whose delay has elapsed. Signer only. The executor
// runs exactly once; on failure the proposal stays pending and the error
// wraps [ErrExecutionFailed].
func (e *Engine) ExecuteProposal(ctx context.Context, actor, id string) error {
	if err := e.require(actor, RoleSigner); err != nil {
		return err
	}
	now := e.now()
	p, err := e.approvals.Execute(ctx, id, now)
	err = translate(err)
	e.emitAudit(ctx, auditEventProposalExecuted, err == nil, now, auditRecord{
		actor:      actor,
		proposalID: id,
		err:        err,
		metadata: func() map[string]string {
			if err != nil {
				return nil
			}
			return map[string]string{"target": p.Target}
		},
	})
	switch {
	case err == nil:
		e.metricInc(MetricProposalExecuted)
	case errors.Is(err, ErrExecutionFailed):
		e.metricInc(MetricProposalExecutionFailed)
		e.logger.Warn("proposal executor failed", zap.String("proposal_id", id), zap.Error(err))
	}
	return err
}

// CancelProposal cancels a pending proposal. Allowed for its proposer or
// an admin.
func (e *Engine) CancelProposal(ctx context.Context, actor, id string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if actor == "" {
		return e.require(actor, RoleAdmin)
	}
	now := e.now()
	force := e.members.Has(actor, RoleAdmin)
	_, err := e.approvals.Cancel(ctx, id, actor, force, now)
	if errors.Is(err, approval.ErrNotProposer) {
		err = e.require(actor, RoleAdmin)
	}
	err = translate(err)
	e.emitAudit(ctx, auditEventProposalCancelled, err == nil, now, auditRecord{
		actor:      actor,
		proposalID: id,
		err:        err,
	})
	if err == nil {
		e.metricInc(MetricProposalCancelled)
	}
	return err
}

// GetProposal loads a proposal by ID.
func (e *Engine) GetProposal(ctx context.Context, id string) (Proposal, error) {
	if e == nil {
		return Proposal{}, ErrEngineNotReady
	}
	p, err := e.approvals.Get(ctx, id)
	return p, translate(err)
}

// ListProposals returns every stored proposal, oldest first.
func (e *Engine) ListProposals(ctx context.Context) ([]Proposal, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	ps, err := e.approvals.List(ctx)
	return ps, translate(err)
}

// HasApprovedProposal reports whether signer approved proposal id.
func (e *Engine) HasApprovedProposal(ctx context.Context, id, signer string) (bool, error) {
	p, err := e.GetProposal(ctx, id)
	if err != nil {
		return false, err
	}
	return p.HasApproved(signer), nil
}

// ProposalStatus derives the current state of proposal id.
func (e *Engine) ProposalStatus(ctx context.Context, id string) (ProposalState, error) {
	if e == nil {
		return ProposalPending, ErrEngineNotReady
	}
	st, err := e.approvals.Status(ctx, id, e.now())
	return st, translate(err)
}

// SetEmergencyMode enables or disables execution without proposals.
// Emergency admin only. Every change goes to the emergency audit channel.
func (e *Engine) SetEmergencyMode(ctx context.Context, actor string, on bool) error {
	if err := e.require(actor, RoleEmergencyAdmin); err != nil {
		return err
	}
	e.approvals.SetEmergencyMode(on)
	e.logger.Info("emergency mode changed", zap.String("actor", actor), zap.Bool("enabled", on))
	e.emitAudit(ctx, auditEventEmergencyModeChanged, true, e.now(), auditRecord{
		channel: AuditChannelEmergency,
		actor:   actor,
		metadata: func() map[string]string {
			return map[string]string{"enabled": strconv.FormatBool(on)}
		},
	})
	return nil
}

// EmergencyMode reports whether EmergencyExecute is available.
func (e *Engine) EmergencyMode() bool {
	if e == nil {
		return false
	}
	return e.approvals.EmergencyMode()
}

// EmergencyExecute runs the Executor without a proposal while emergency
// mode is on. Emergency admin only. The action is stored as an executed
// emergency proposal whose ID is returned.
func (e *Engine) EmergencyExecute(ctx context.Context, actor, target string, payload []byte, value uint64) (string, error) {
	if err := e.require(actor, RoleEmergencyAdmin); err != nil {
		return "", err
	}
	now := e.now()
	p, err := e.approvals.EmergencyExecute(ctx, actor, target, payload, value, now)
	err = translate(err)
	e.emitAudit(ctx, auditEventEmergencyExecute, err == nil, now, auditRecord{
		channel:    AuditChannelEmergency,
		actor:      actor,
		proposalID: p.ID,
		err:        err,
		metadata: func() map[string]string {
			return map[string]string{
				"target": target,
				"value":  strconv.FormatUint(value, 10),
			}
		},
	})
	if err != nil {
		return "", err
	}
	e.metricInc(MetricEmergencyExecute)
	e.logger.Warn("emergency execution", zap.String("actor", actor), zap.String("target", target), zap.String("proposal_id", p.ID))
	return p.ID, nil
}
