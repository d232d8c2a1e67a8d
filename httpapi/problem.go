package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
)

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	p := Problem{
		Type:     fmt.Sprintf("about:blank#%d", status),
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, goGuard.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, goGuard.ErrProposalNotFound),
		errors.Is(err, goGuard.ErrNotConfigured):
		return http.StatusNotFound
	case errors.Is(err, goGuard.ErrInvalidConfig),
		errors.Is(err, goGuard.ErrInvalidLevel),
		errors.Is(err, goGuard.ErrArrayLengthMismatch),
		errors.Is(err, goGuard.ErrNullTarget),
		errors.Is(err, goGuard.ErrUnknownRole):
		return http.StatusBadRequest
	case errors.Is(err, goGuard.ErrProposalExpired),
		errors.Is(err, goGuard.ErrProposalAlreadyExecuted),
		errors.Is(err, goGuard.ErrExecutionInProgress),
		errors.Is(err, goGuard.ErrProposalCancelled),
		errors.Is(err, goGuard.ErrAlreadyApproved),
		errors.Is(err, goGuard.ErrInsufficientApprovals),
		errors.Is(err, goGuard.ErrDelayNotMet),
		errors.Is(err, goGuard.ErrAlreadyVoted),
		errors.Is(err, goGuard.ErrVoteConsumed),
		errors.Is(err, goGuard.ErrEmergencyModeInactive),
		errors.Is(err, goGuard.ErrEmergencyDowngrade),
		errors.Is(err, goGuard.ErrInsufficientGuardianVotes):
		return http.StatusConflict
	case errors.Is(err, goGuard.ErrExecutionFailed):
		return http.StatusBadGateway
	case errors.Is(err, goGuard.ErrStoreUnavailable),
		errors.Is(err, goGuard.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
