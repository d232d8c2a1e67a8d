package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

// Server exposes an Engine over HTTP.
type Server struct {
	engine *goGuard.Engine
	tokens middleware.TokenParser
	logger *zap.Logger
}

// New creates a Server. A nil logger discards logs.
func New(engine *goGuard.Engine, tokens middleware.TokenParser, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, tokens: tokens, logger: logger.Named("httpapi")}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	read := middleware.RequireOperator(s.tokens)
	write := middleware.RequireWriteScope(s.tokens)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/authorize", write(http.HandlerFunc(s.handleAuthorize)))
	mux.Handle("GET /v1/operations/{op}/status", read(http.HandlerFunc(s.handleOperationStatus)))
	mux.Handle("POST /v1/operations/{op}/failures", write(http.HandlerFunc(s.handleRecordFailure)))
	mux.Handle("GET /v1/ratelimits/{op}", read(http.HandlerFunc(s.handleRateLimit)))
	mux.Handle("GET /v1/proposals/{id}", read(http.HandlerFunc(s.handleGetProposal)))
	mux.Handle("POST /v1/proposals/{id}/approve", write(http.HandlerFunc(s.handleApproveProposal)))
	mux.Handle("POST /v1/proposals/{id}/execute", write(http.HandlerFunc(s.handleExecuteProposal)))
	mux.Handle("GET /v1/emergency", read(http.HandlerFunc(s.handleEmergency)))
	mux.Handle("POST /v1/emergency/pause", write(http.HandlerFunc(s.handlePause)))
	mux.Handle("POST /v1/emergency/unpause", write(http.HandlerFunc(s.handleUnpause)))
	mux.Handle("POST /v1/guardian-votes/{vote}", write(http.HandlerFunc(s.handleGuardianVote)))
	mux.Handle("GET /v1/report", read(http.HandlerFunc(s.handleReport)))
	return mux
}

/*
====================================
REQUEST / RESPONSE BODIES
====================================
*/

type authorizeRequest struct {
	Caller    string `json:"caller"`
	Operation string `json:"operation"`
}

type decisionResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

type breakerResponse struct {
	Threshold       uint64    `json:"threshold"`
	Window          string    `json:"window"`
	Cooldown        string    `json:"cooldown"`
	TriggerSeverity string    `json:"trigger_severity"`
	FailureCount    uint64    `json:"failure_count"`
	IsOpen          bool      `json:"is_open"`
	OpenedAt        time.Time `json:"opened_at,omitempty"`
}

type operationStatusResponse struct {
	Operation         string           `json:"operation"`
	Configured        bool             `json:"configured"`
	RequiresRateLimit bool             `json:"requires_rate_limit"`
	RequiresApproval  bool             `json:"requires_approval"`
	Scope             string           `json:"scope"`
	Blocked           bool             `json:"blocked"`
	BlockReason       string           `json:"block_reason,omitempty"`
	Breaker           *breakerResponse `json:"breaker,omitempty"`
}

type rateLimitResponse struct {
	Operation       string    `json:"operation"`
	Configured      bool      `json:"configured"`
	Algorithm       string    `json:"algorithm,omitempty"`
	MaxRequests     uint64    `json:"max_requests,omitempty"`
	Window          string    `json:"window,omitempty"`
	RefillPerSecond float64   `json:"refill_per_second,omitempty"`
	Global          bool      `json:"global"`
	Active          bool      `json:"active"`
	Caller          string    `json:"caller,omitempty"`
	RequestCount    uint64    `json:"request_count"`
	WindowStart     time.Time `json:"window_start,omitempty"`
	LastRequest     time.Time `json:"last_request,omitempty"`
	Tokens          float64   `json:"tokens"`
	Whitelisted     bool      `json:"whitelisted"`
}

type proposalResponse struct {
	ID         string    `json:"id"`
	Target     string    `json:"target"`
	Payload    []byte    `json:"payload,omitempty"`
	Value      uint64    `json:"value"`
	Proposer   string    `json:"proposer"`
	CreatedAt  time.Time `json:"created_at"`
	Approvals  []string  `json:"approvals"`
	Status     string    `json:"status"`
	ExecutedAt time.Time `json:"executed_at,omitempty"`
	Emergency  bool      `json:"emergency,omitempty"`
}

type emergencyStateResponse struct {
	Level       string    `json:"level"`
	Reason      string    `json:"reason,omitempty"`
	ActivatedBy string    `json:"activated_by,omitempty"`
	ActivatedAt time.Time `json:"activated_at,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	AutoResolve bool      `json:"auto_resolve"`
}

type emergencyResponse struct {
	Paused bool                   `json:"paused"`
	Bypass bool                   `json:"bypass"`
	Global emergencyStateResponse `json:"global"`
	Scoped map[string]string      `json:"scoped,omitempty"`
}

type voteResponse struct {
	VoteID string `json:"vote_id"`
	Votes  int    `json:"votes"`
	Quorum int    `json:"quorum"`
}

/*
====================================
HANDLERS
====================================
*/

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Operation == "" {
		writeProblem(w, r, http.StatusBadRequest, "operation is required")
		return
	}

	d, err := s.engine.Authorize(r.Context(), req.Caller, operationID(req.Operation), false)
	if err != nil {
		s.logger.Warn("authorize failed", zap.String("operation", req.Operation), zap.Error(err))
	}
	// A backend failure is still a deny decision.
	writeJSON(w, http.StatusOK, decisionResponse{Allowed: d.Allowed, Reason: d.Reason, Detail: d.Detail})
}

func (s *Server) handleOperationStatus(w http.ResponseWriter, r *http.Request) {
	op := operationID(r.PathValue("op"))
	req, configured := s.engine.GetOperation(op)
	blocked, why := s.engine.CheckEmergencyStatus(r.Context(), op)

	resp := operationStatusResponse{
		Operation:         op.String(),
		Configured:        configured,
		RequiresRateLimit: req.RequiresRateLimit,
		RequiresApproval:  req.RequiresApproval,
		Scope:             req.Scope,
		Blocked:           blocked,
		BlockReason:       why,
	}
	if cfg, st, ok := s.engine.GetCircuitBreaker(r.Context(), op); ok {
		resp.Breaker = &breakerResponse{
			Threshold:       cfg.Threshold,
			Window:          cfg.Window.String(),
			Cooldown:        cfg.Cooldown.String(),
			TriggerSeverity: cfg.TriggerSeverity.String(),
			FailureCount:    st.FailureCount,
			IsOpen:          st.IsOpen,
			OpenedAt:        st.OpenedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordFailure(w http.ResponseWriter, r *http.Request) {
	op := operationID(r.PathValue("op"))
	tripped := s.engine.RecordFailure(r.Context(), op)
	writeJSON(w, http.StatusOK, map[string]bool{"tripped": tripped})
}

func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	op := operationID(r.PathValue("op"))
	caller := r.URL.Query().Get("caller")

	resp := rateLimitResponse{Operation: op.String(), Caller: caller}
	cfg, ok := s.engine.GetRateLimit(op)
	if ok {
		resp.Configured = true
		resp.Algorithm = cfg.Algorithm.String()
		resp.MaxRequests = cfg.MaxRequests
		resp.Window = cfg.Window.String()
		resp.RefillPerSecond = cfg.RefillPerSecond
		resp.Global = cfg.Global
		resp.Active = cfg.Active
	}

	if caller != "" || resp.Global {
		st, err := s.engine.GetUserRateLimit(r.Context(), caller, op)
		if err != nil {
			writeProblem(w, r, statusFor(err), err.Error())
			return
		}
		resp.RequestCount = st.RequestCount
		resp.WindowStart = st.WindowStart
		resp.LastRequest = st.LastRequest
		resp.Tokens = st.Tokens
	}
	if caller != "" {
		resp.Whitelisted = s.engine.IsWhitelisted(caller)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	s.writeProposal(w, r, r.PathValue("id"))
}

func (s *Server) handleApproveProposal(w http.ResponseWriter, r *http.Request) {
	operator, _ := middleware.OperatorFromContext(r.Context())
	id := r.PathValue("id")
	if err := s.engine.ApproveProposal(r.Context(), operator, id); err != nil {
		writeProblem(w, r, statusFor(err), err.Error())
		return
	}
	s.writeProposal(w, r, id)
}

func (s *Server) handleExecuteProposal(w http.ResponseWriter, r *http.Request) {
	operator, _ := middleware.OperatorFromContext(r.Context())
	id := r.PathValue("id")
	if err := s.engine.ExecuteProposal(r.Context(), operator, id); err != nil {
		writeProblem(w, r, statusFor(err), err.Error())
		return
	}
	s.writeProposal(w, r, id)
}

func (s *Server) writeProposal(w http.ResponseWriter, r *http.Request, id string) {
	p, err := s.engine.GetProposal(r.Context(), id)
	if err != nil {
		writeProblem(w, r, statusFor(err), err.Error())
		return
	}
	status, err := s.engine.ProposalStatus(r.Context(), id)
	if err != nil {
		writeProblem(w, r, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, proposalResponse{
		ID:         p.ID,
		Target:     p.Target,
		Payload:    p.Payload,
		Value:      p.Value,
		Proposer:   p.Proposer,
		CreatedAt:  p.CreatedAt,
		Approvals:  p.Approvals,
		Status:     status.String(),
		ExecutedAt: p.ExecutedAt,
		Emergency:  p.Emergency,
	})
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	st := s.engine.GetEmergencyState(r.Context())
	report := s.engine.SecurityReport()

	resp := emergencyResponse{
		Paused: s.engine.IsPaused(),
		Bypass: s.engine.IsBypassed(),
		Global: emergencyStateResponse{
			Level:       st.Level.String(),
			Reason:      st.Reason,
			ActivatedBy: st.ActivatedBy,
			ActivatedAt: st.ActivatedAt,
			AutoResolve: st.AutoResolve,
		},
		Scoped: report.ScopedEmergencies,
	}
	if st.Duration > 0 {
		resp.Global.Duration = st.Duration.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	operator, _ := middleware.OperatorFromContext(r.Context())
	if err := s.engine.EmergencyPause(r.Context(), operator); err != nil {
		writeProblem(w, r, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	operator, _ := middleware.OperatorFromContext(r.Context())
	if err := s.engine.EmergencyUnpause(r.Context(), operator); err != nil {
		writeProblem(w, r, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (s *Server) handleGuardianVote(w http.ResponseWriter, r *http.Request) {
	operator, _ := middleware.OperatorFromContext(r.Context())
	id, err := goGuard.ParseVoteID(r.PathValue("vote"))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	n, err := s.engine.VoteGuardianConsensus(r.Context(), operator, id)
	if err != nil {
		writeProblem(w, r, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, voteResponse{
		VoteID: id.String(),
		Votes:  n,
		Quorum: s.engine.Config().Resilience.GuardianQuorum,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report := s.engine.SecurityReport()
	writeJSON(w, http.StatusOK, report)
}

/*
====================================
HELPERS
====================================
*/

// operationID accepts the hex form of an OperationID or an action name.
func operationID(s string) goGuard.OperationID {
	if id, err := goGuard.ParseOperationID(s); err == nil {
		return id
	}
	return goGuard.OperationIDFromName(s)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}
