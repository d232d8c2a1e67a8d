package security

import "time"

// ApprovalReport is the active approval policy.
type ApprovalReport struct {
	RequiredApprovals int
	MinDelay          time.Duration
	Lifetime          time.Duration
	EmergencyMode     bool
}

// Report is a read-only snapshot of the control plane's posture.
type Report struct {
	GeneratedAt        time.Time
	Bypass             bool
	Paused             bool
	EmergencyLevel     string
	EmergencyReason    string
	ScopedEmergencies  map[string]string
	GuardianQuorum     int
	Approval           ApprovalReport
	Operations         int
	ApprovalGated      int
	RateLimited        int
	InactiveRateLimits []string
	Breakers           int
	OpenBreakers       []string
	RateLimitBackend   string
	Warnings           []string
}

// ReportInput carries the raw posture gathered by the engine.
type ReportInput struct {
	Now                time.Time
	Bypass             bool
	Paused             bool
	EmergencyLevel     string
	EmergencyBlocks    bool
	EmergencyReason    string
	ScopedEmergencies  map[string]string
	GuardianQuorum     int
	Guardians          int
	Approval           ApprovalReport
	Operations         int
	ApprovalGated      int
	RateLimited        int
	InactiveRateLimits []string
	Breakers           int
	OpenBreakers       []string
	RateLimitBackend   string
}

func BuildReport(input ReportInput) Report {
	var warnings []string
	if input.Bypass {
		warnings = append(warnings, "global bypass is on; every guard is skipped")
	}
	if input.Paused {
		warnings = append(warnings, "engine is paused; every operation is denied")
	}
	if input.EmergencyBlocks {
		warnings = append(warnings, "global emergency level "+input.EmergencyLevel+" blocks all operations")
	}
	if input.Approval.EmergencyMode {
		warnings = append(warnings, "emergency mode allows execution without proposals")
	}
	if input.Approval.RequiredApprovals < 2 {
		warnings = append(warnings, "approval quorum is a single signer")
	}
	if input.Approval.MinDelay == 0 {
		warnings = append(warnings, "approved proposals execute without delay")
	}
	if input.Guardians < input.GuardianQuorum {
		warnings = append(warnings, "fewer guardians than the quorum; high and critical levels cannot be activated")
	}
	if len(input.InactiveRateLimits) > 0 {
		warnings = append(warnings, "some rate limits are configured but inactive")
	}

	return Report{
		GeneratedAt:        input.Now,
		Bypass:             input.Bypass,
		Paused:             input.Paused,
		EmergencyLevel:     input.EmergencyLevel,
		EmergencyReason:    input.EmergencyReason,
		ScopedEmergencies:  input.ScopedEmergencies,
		GuardianQuorum:     input.GuardianQuorum,
		Approval:           input.Approval,
		Operations:         input.Operations,
		ApprovalGated:      input.ApprovalGated,
		RateLimited:        input.RateLimited,
		InactiveRateLimits: input.InactiveRateLimits,
		Breakers:           input.Breakers,
		OpenBreakers:       input.OpenBreakers,
		RateLimitBackend:   input.RateLimitBackend,
		Warnings:           warnings,
	}
}
