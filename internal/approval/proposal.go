package approval

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a proposal. Expired is never stored; it
// is derived from CreatedAt and the configured lifetime.
type Status uint8

const (
	StatusPending Status = iota
	StatusExecuted
	StatusCancelled
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusExecuted:
		return "executed"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Proposal is a pending or settled request to run an approval-gated action.
type Proposal struct {
	ID         string
	Target     string
	Payload    []byte
	Value      uint64
	Proposer   string
	CreatedAt  time.Time
	Approvals  []string
	Executed   bool
	Cancelled  bool
	ExecutedAt time.Time
	Emergency  bool
}

// StatusAt derives the status at now for a proposal living lifetime.
func (p Proposal) StatusAt(now time.Time, lifetime time.Duration) Status {
	switch {
	case p.Executed:
		return StatusExecuted
	case p.Cancelled:
		return StatusCancelled
	case lifetime > 0 && now.Sub(p.CreatedAt) > lifetime:
		return StatusExpired
	default:
		return StatusPending
	}
}

// HasApproved reports whether signer is in the approval set.
func (p Proposal) HasApproved(signer string) bool {
	for _, a := range p.Approvals {
		if a == signer {
			return true
		}
	}
	return false
}

func (p Proposal) clone() Proposal {
	out := p
	if p.Payload != nil {
		out.Payload = append([]byte(nil), p.Payload...)
	}
	if p.Approvals != nil {
		out.Approvals = append([]string(nil), p.Approvals...)
	}
	return out
}
