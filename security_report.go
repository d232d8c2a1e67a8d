package goGuard

import "github.com/MrEthical07/goGuard/internal/security"

// SecurityReport returns a read-only summary of the current posture, with
// warnings for settings that weaken a guard.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	now := e.now()

	global := e.monitor.Global(now)
	scoped := e.monitor.ScopedAll(now)
	scopedLevels := make(map[string]string, len(scoped))
	for scope, st := range scoped {
		scopedLevels[scope] = st.Level.String()
	}

	input := security.ReportInput{
		Now:               now,
		Bypass:            e.router.Bypass(),
		Paused:            e.router.Paused(),
		EmergencyLevel:    global.Level.String(),
		EmergencyBlocks:   global.Level.Blocks(),
		EmergencyReason:   global.Reason,
		ScopedEmergencies: scopedLevels,
		GuardianQuorum:    e.monitor.Quorum(),
		Guardians:         len(e.members.Members(RoleGuardian)),
		Approval: security.ApprovalReport{
			RequiredApprovals: e.config.Approval.RequiredApprovals,
			MinDelay:          e.config.Approval.MinDelay,
			Lifetime:          e.config.Approval.Lifetime,
			EmergencyMode:     e.approvals.EmergencyMode(),
		},
		RateLimitBackend: e.config.RateLimit.Backend,
	}

	ops := e.router.Operations()
	input.Operations = len(ops)
	for _, op := range ops {
		req, _ := e.router.Get(op)
		if req.RequiresApproval {
			input.ApprovalGated++
		}
		if req.RequiresRateLimit {
			input.RateLimited++
		}
	}

	for _, op := range e.limiter.Operations() {
		if cfg, ok := e.limiter.Config(op); ok && !cfg.Active {
			input.InactiveRateLimits = append(input.InactiveRateLimits, op)
		}
	}

	breakers := e.monitor.BreakerOps()
	input.Breakers = len(breakers)
	for _, op := range breakers {
		if _, st, ok := e.monitor.Breaker(op, now); ok && st.IsOpen {
			input.OpenBreakers = append(input.OpenBreakers, op)
		}
	}

	return security.BuildReport(input)
}
