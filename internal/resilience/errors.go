package resilience

import "errors"

var (
	ErrInvalidConfig             = errors.New("invalid circuit breaker config")
	ErrInvalidLevel              = errors.New("invalid emergency level")
	ErrInsufficientGuardianVotes = errors.New("insufficient guardian votes")
	ErrAlreadyVoted              = errors.New("guardian already voted")
	ErrVoteConsumed              = errors.New("guardian vote already consumed")
	ErrEmergencyDowngrade        = errors.New("emergency level cannot be lowered by activation")
	ErrNotConfigured             = errors.New("circuit breaker not configured")
)
