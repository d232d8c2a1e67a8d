package goGuard

import (
	"errors"

	"github.com/MrEthical07/goGuard/internal/approval"
	"github.com/MrEthical07/goGuard/internal/resilience"
	"github.com/MrEthical07/goGuard/internal/router"
	"github.com/MrEthical07/goGuard/permission"
)

var (
	// ErrUnauthorized is returned when the actor lacks the role an operation requires.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidConfig wraps every rejected configuration.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrNotConfigured is returned when an operation has no rate limit or breaker to modify.
	ErrNotConfigured = errors.New("operation not configured")
	// ErrArrayLengthMismatch is returned by bulk configuration with unequal slices.
	ErrArrayLengthMismatch = router.ErrArrayLengthMismatch
	// ErrInvalidLevel is returned for emergency levels outside None..Critical.
	ErrInvalidLevel = resilience.ErrInvalidLevel
	// ErrUnknownRole is returned when granting a role that is not registered.
	ErrUnknownRole = permission.ErrUnknownRole
	// ErrStoreUnavailable wraps Redis and SQL backend failures.
	ErrStoreUnavailable = errors.New("backend store unavailable")

	// ErrNullTarget is returned when a proposal names no target.
	ErrNullTarget = approval.ErrNullTarget
	// ErrProposalNotFound is returned for unknown proposal IDs.
	ErrProposalNotFound = approval.ErrNotFound
	// ErrAlreadyApproved is returned when a signer approves twice.
	ErrAlreadyApproved = approval.ErrAlreadyApproved
	// ErrProposalExpired is returned once a proposal has outlived its lifetime.
	ErrProposalExpired = approval.ErrExpired
	// ErrProposalAlreadyExecuted is returned for any action on an executed proposal.
	ErrProposalAlreadyExecuted = approval.ErrAlreadyExecuted
	// ErrProposalCancelled is returned for any action on a cancelled proposal.
	ErrProposalCancelled = approval.ErrCancelled
	// ErrInsufficientApprovals is returned when execution is attempted below quorum.
	ErrInsufficientApprovals = approval.ErrInsufficientApprovals
	// ErrDelayNotMet is returned when execution is attempted before MinDelay.
	ErrDelayNotMet = approval.ErrDelayNotMet
	// ErrExecutionFailed wraps a failing Executor; the proposal stays pending.
	ErrExecutionFailed = approval.ErrExecutionFailed
	// ErrExecutionInProgress is returned while another caller runs the proposal's executor.
	ErrExecutionInProgress = approval.ErrExecutionInProgress
	// ErrEmergencyModeInactive is returned by EmergencyExecute outside emergency mode.
	ErrEmergencyModeInactive = approval.ErrEmergencyModeInactive

	// ErrInsufficientGuardianVotes is returned when a High or Critical activation lacks quorum.
	ErrInsufficientGuardianVotes = resilience.ErrInsufficientGuardianVotes
	// ErrAlreadyVoted is returned when a guardian votes twice for one vote ID.
	ErrAlreadyVoted = resilience.ErrAlreadyVoted
	// ErrVoteConsumed is returned when voting on an ID that already enabled an activation.
	ErrVoteConsumed = resilience.ErrVoteConsumed
	// ErrEmergencyDowngrade is returned when an activation would lower the active level.
	ErrEmergencyDowngrade = resilience.ErrEmergencyDowngrade
)
