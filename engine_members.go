package goGuard

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/permission"
	"go.uber.org/zap"
)

// GrantRole gives member the named role. Admin only. Granting a role the
// member already holds is a no-op.
func (e *Engine) GrantRole(ctx context.Context, actor, member, role string) error {
	if err := e.require(actor, RoleAdmin); err != nil {
		return err
	}
	changed, err := e.members.Grant(member, role)
	err = memberError(err)
	e.emitRoleChange(ctx, auditEventRoleGranted, actor, member, role, changed, err)
	return err
}

// RevokeRole removes the named role from member. Admin only. The last admin
// cannot revoke its own admin role.
func (e *Engine) RevokeRole(ctx context.Context, actor, member, role string) error {
	if err := e.require(actor, RoleAdmin); err != nil {
		return err
	}
	revoke := e.members.Revoke
	if member == actor && role == RoleAdmin {
		revoke = e.members.RevokeUnlessLast
	}
	changed, err := revoke(member, role)
	err = memberError(err)
	e.emitRoleChange(ctx, auditEventRoleRevoked, actor, member, role, changed, err)
	return err
}

// HasRole reports whether member holds role.
func (e *Engine) HasRole(member, role string) bool {
	if e == nil {
		return false
	}
	return e.members.Has(member, role)
}

// Roles lists the roles held by member.
func (e *Engine) Roles(member string) []string {
	if e == nil {
		return nil
	}
	return e.members.Roles(member)
}

// Members lists every member holding role, sorted.
func (e *Engine) Members(role string) []string {
	if e == nil {
		return nil
	}
	return e.members.Members(role)
}

func (e *Engine) emitRoleChange(ctx context.Context, event, actor, member, role string, changed bool, err error) {
	if changed {
		e.logger.Info(event,
			zap.String("actor", actor),
			zap.String("member", member),
			zap.String("role", role),
		)
	}
	e.emitAudit(ctx, event, err == nil, e.now(), auditRecord{
		actor: actor,
		err:   err,
		metadata: func() map[string]string {
			return map[string]string{"member": member, "role": role}
		},
	})
}

func memberError(err error) error {
	switch {
	case errors.Is(err, permission.ErrEmptyMember):
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	case errors.Is(err, permission.ErrLastHolder):
		return fmt.Errorf("%w: cannot revoke the last admin", ErrInvalidConfig)
	}
	return err
}
