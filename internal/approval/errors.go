package approval

import "errors"

var (
	ErrInvalidConfig         = errors.New("invalid approval config")
	ErrNullTarget            = errors.New("proposal target is empty")
	ErrNotFound              = errors.New("proposal not found")
	ErrAlreadyApproved       = errors.New("proposal already approved by signer")
	ErrExpired               = errors.New("proposal expired")
	ErrAlreadyExecuted       = errors.New("proposal already executed")
	ErrCancelled             = errors.New("proposal cancelled")
	ErrInsufficientApprovals = errors.New("insufficient approvals")
	ErrDelayNotMet           = errors.New("execution delay not met")
	ErrExecutionFailed       = errors.New("proposal execution failed")
	ErrExecutionInProgress   = errors.New("proposal execution in progress")
	ErrNotProposer           = errors.New("only the proposer or an admin may cancel")
	ErrEmergencyModeInactive = errors.New("emergency mode inactive")
	ErrStoreUnavailable      = errors.New("proposal store unavailable")
)
