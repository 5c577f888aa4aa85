package admin

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/neurogov/pkg/domain"
	"github.com/polisai/neurogov/pkg/dreamnet"
	"github.com/polisai/neurogov/pkg/telemetry"
)

type proposeRequest struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type proposeResponse struct {
	ID string `json:"id"`
}

type voteRequest struct {
	Role       string `json:"role"`
	Identifier string `json:"identifier"`
	Approval   bool   `json:"approval"`
	Rationale  string `json:"rationale"`
}

type decisionResponse struct {
	domain.GovernanceDecision
	ApprovalRatio float64 `json:"approval_ratio"`
	WouldPass     bool    `json:"would_pass"`
}

type finalizeResponse struct {
	ID            string  `json:"id"`
	Approved      bool    `json:"approved"`
	ApprovalRatio float64 `json:"approval_ratio"`
}

type kernelResponse struct {
	Constraints  []domain.SafetyConstraint `json:"constraints"`
	SafetyMargin float64                   `json:"safety_margin"`
	Violations   int                       `json:"violations"`
}

type viabilityRequest struct {
	Action []float64 `json:"action"`
}

type viabilityResponse struct {
	Viable bool `json:"viable"`
}

type axisValueRequest struct {
	Value float64 `json:"value"`
}

type boundsRequest struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	DecisionID string  `json:"decision_id"`
}

type sessionResponse struct {
	CarbonIndex float64 `json:"carbon_index"`
	Compliant   bool    `json:"compliant"`
}

type dreamnetStatsResponse struct {
	dreamnet.Stats
	CarbonLimit      float64 `json:"carbon_limit"`
	TotalCarbonSaved float64 `json:"total_carbon_saved_kg"`
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if !s.decode(w, r, &req) {
		return
	}

	id, err := s.engine.Propose(req.Description, req.Tags)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	telemetry.RecordProposal(r.Context(), req.Tags)
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("decision.id", id))

	writeJSON(w, http.StatusCreated, proposeResponse{ID: id})
}

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	var decisions []domain.GovernanceDecision
	if tag := r.URL.Query().Get("tag"); tag != "" {
		decisions = s.engine.DecisionsByTag(tag)
	} else {
		decisions = s.engine.Decisions()
	}
	if decisions == nil {
		decisions = []domain.GovernanceDecision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

func (s *Server) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	decision, err := s.engine.Decision(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	ratio, err := s.engine.ApprovalRatio(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	pass, err := s.engine.WouldPass(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, decisionResponse{GovernanceDecision: decision, ApprovalRatio: ratio, WouldPass: pass})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req voteRequest
	if !s.decode(w, r, &req) {
		return
	}
	role, err := domain.ParseStakeholderRole(req.Role)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if err := s.engine.Vote(id, role, req.Identifier, req.Approval, req.Rationale); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.metrics.RecordVote(role, req.Approval)
	telemetry.RecordVote(r.Context(), role, req.Approval)
	telemetry.RecordStakeholderVote(trace.SpanFromContext(r.Context()), id, domain.StakeholderVote{
		Role:       role,
		Identifier: req.Identifier,
		Approval:   req.Approval,
		Rationale:  req.Rationale,
	})

	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	decision, ratio, err := s.engine.FinalizeDecision(id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.metrics.RecordFinalize(decision.Approved)
	telemetry.RecordFinalize(r.Context(), decision.Approved, ratio)
	telemetry.RecordDecision(trace.SpanFromContext(r.Context()), decision, ratio)

	writeJSON(w, http.StatusOK, finalizeResponse{ID: id, Approved: decision.Approved, ApprovalRatio: ratio})
}

func (s *Server) handleCompliance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ComplianceReport())
}

func (s *Server) handleKernel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, kernelResponse{
		Constraints:  s.kernel.Constraints(),
		SafetyMargin: s.kernel.SafetyMargin(),
		Violations:   len(s.kernel.Violations()),
	})
}

func (s *Server) handleKernelReport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.kernel.ViolationReport()))
}

func (s *Server) handleViability(w http.ResponseWriter, r *http.Request) {
	var req viabilityRequest
	if !s.decode(w, r, &req) {
		return
	}

	viable := s.kernel.CheckViability(req.Action)

	s.metrics.RecordViabilityCheck(viable)
	telemetry.RecordViabilityCheck(r.Context(), viable)
	telemetry.RecordSafetyEvent(trace.SpanFromContext(r.Context()), viable, nil)

	writeJSON(w, http.StatusOK, viabilityResponse{Viable: viable})
}

// pathAxis resolves the {axis} path segment; unknown axes are not found.
func (s *Server) pathAxis(w http.ResponseWriter, r *http.Request) (domain.Axis, bool) {
	axis, err := domain.ParseAxis(r.PathValue("axis"))
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, domain.CodeUnknownAxis, err.Error())
		return 0, false
	}
	return axis, true
}

func (s *Server) handleUpdateAxis(w http.ResponseWriter, r *http.Request) {
	axis, ok := s.pathAxis(w, r)
	if !ok {
		return
	}
	var req axisValueRequest
	if !s.decode(w, r, &req) {
		return
	}

	before, _ := s.kernel.Constraint(axis)
	if err := s.kernel.Update(axis, req.Value); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	after, _ := s.kernel.Constraint(axis)
	s.observeTransition(r, before, after)

	writeJSON(w, http.StatusOK, after)
}

// handleSetBounds applies new bounds only on behalf of an approved decision.
func (s *Server) handleSetBounds(w http.ResponseWriter, r *http.Request) {
	axis, ok := s.pathAxis(w, r)
	if !ok {
		return
	}
	var req boundsRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.DecisionID == "" {
		s.writeDomainError(w, r, domain.NewError(domain.ErrDecisionNotApproved, domain.CodeDecisionNotApproved, nil,
			"bounds changes require an approved decision_id"))
		return
	}
	decision, err := s.engine.Decision(req.DecisionID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !decision.Approved {
		s.writeDomainError(w, r, domain.NewError(domain.ErrDecisionNotApproved, domain.CodeDecisionNotApproved,
			map[string]any{"decision_id": decision.ID}, "%s", decision.ID))
		return
	}

	before, _ := s.kernel.Constraint(axis)
	if err := s.kernel.SetBounds(axis, req.Min, req.Max); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	after, _ := s.kernel.Constraint(axis)
	s.observeTransition(r, before, after)

	s.logger.Info("Safety bounds changed by decision",
		"axis", axis.String(), "decision_id", decision.ID, "min", req.Min, "max", req.Max)
	writeJSON(w, http.StatusOK, after)
}

func (s *Server) observeTransition(r *http.Request, before, after domain.SafetyConstraint) {
	if after.Violated && !before.Violated {
		telemetry.RecordAxisViolation(r.Context(), after.Axis)
	}
	if after.Violated != before.Violated {
		telemetry.RecordSafetyEvent(trace.SpanFromContext(r.Context()), !after.Violated, s.kernel.Violations())
	}
}

func (s *Server) handleRecordSession(w http.ResponseWriter, r *http.Request) {
	var session dreamnet.Session
	if !s.decode(w, r, &session) {
		return
	}
	if session.End.Before(session.Start) {
		s.writeError(w, r, http.StatusBadRequest, codeBadRequest, "session end precedes start")
		return
	}

	s.dreamnet.Record(session)
	writeJSON(w, http.StatusCreated, sessionResponse{
		CarbonIndex: dreamnet.CarbonIndex(session),
		Compliant:   s.dreamnet.Compliant(session),
	})
}

func (s *Server) handleDreamnetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dreamnetStatsResponse{
		Stats:            s.dreamnet.Stats(),
		CarbonLimit:      s.dreamnet.CarbonLimit(),
		TotalCarbonSaved: s.dreamnet.TotalCarbonSaved(),
	})
}

func (s *Server) handleComputeWindows(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 168 {
			s.writeError(w, r, http.StatusBadRequest, codeBadRequest, "hours must be an integer in [1,168]")
			return
		}
		hours = n
	}
	windows := dreamnet.RecommendComputeWindows(time.Now(), hours)
	if windows == nil {
		windows = []time.Time{}
	}
	writeJSON(w, http.StatusOK, windows)
}
