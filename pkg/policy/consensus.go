package policy

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polisai/neurogov/pkg/domain"
)

const defaultStakeholderWeight = 1

// EngineOption customises a ConsensusEngine at construction.
type EngineOption func(*ConsensusEngine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *ConsensusEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source used for vote and decision timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *ConsensusEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides decision id generation. Generated ids must be unique.
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *ConsensusEngine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// ConsensusEngine owns governance decisions and their votes.
type ConsensusEngine struct {
	mu        sync.RWMutex
	decisions []domain.GovernanceDecision
	index     map[string]int
	weights   map[domain.StakeholderRole]int
	threshold float64

	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewConsensusEngine creates an engine with equal weights for every role and
// the default consensus threshold.
func NewConsensusEngine(opts ...EngineOption) *ConsensusEngine {
	e := &ConsensusEngine{
		index:     make(map[string]int),
		weights:   make(map[domain.StakeholderRole]int, len(domain.StakeholderRoles())),
		threshold: domain.DefaultConsensusThreshold,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     func() string { return "DEC-" + uuid.NewString() },
	}
	for _, role := range domain.StakeholderRoles() {
		e.weights[role] = defaultStakeholderWeight
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Propose records a new decision and returns its id.
func (e *ConsensusEngine) Propose(description string, tags []string) (string, error) {
	if err := ValidateTags(tags); err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.newID()
	decision := domain.GovernanceDecision{
		ID:                 id,
		Description:        description,
		Tags:               append([]string{}, tags...),
		Votes:              []domain.StakeholderVote{},
		ConsensusThreshold: e.threshold,
		DecisionTime:       e.now(),
	}
	e.index[id] = len(e.decisions)
	e.decisions = append(e.decisions, decision)

	e.logger.Info("decision proposed", "decision_id", id, "tags", tags, "threshold", e.threshold)
	return id, nil
}

// Vote appends a ballot. Each (role, identifier) pair may vote once per decision.
func (e *ConsensusEngine) Vote(decisionID string, role domain.StakeholderRole, identifier string, approval bool, rationale string) error {
	if !role.Valid() {
		return domain.NewError(domain.ErrInvalidRole, domain.CodeInvalidRole, nil, "%s", role)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	decision, err := e.find(decisionID)
	if err != nil {
		return err
	}
	for _, v := range decision.Votes {
		if v.Role == role && v.Identifier == identifier {
			return domain.NewError(domain.ErrDuplicateVote, domain.CodeDuplicateVote,
				map[string]any{"decision_id": decisionID, "role": role.String(), "identifier": identifier},
				"%s %q already voted on %s", role, identifier, decisionID)
		}
	}

	decision.Votes = append(decision.Votes, domain.StakeholderVote{
		Role:       role,
		Identifier: identifier,
		Approval:   approval,
		Rationale:  rationale,
		Timestamp:  e.now(),
	})

	e.logger.Debug("vote recorded", "decision_id", decisionID, "role", role.String(), "approval", approval)
	return nil
}

// ApprovalRatio returns the weighted share of approving votes, 0 when no
// votes have been cast.
func (e *ConsensusEngine) ApprovalRatio(decisionID string) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	decision, err := e.find(decisionID)
	if err != nil {
		return 0, err
	}
	return e.approvalRatio(decision)
}

// WouldPass reports whether the current votes meet the decision's threshold.
// Ties pass; a decision without votes never passes.
func (e *ConsensusEngine) WouldPass(decisionID string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	decision, err := e.find(decisionID)
	if err != nil {
		return false, err
	}
	return e.wouldPass(decision)
}

// Finalize sets and returns the decision's approval from the current votes.
// It may be called again; later votes are honoured on re-finalize.
func (e *ConsensusEngine) Finalize(decisionID string) (bool, error) {
	decision, _, err := e.FinalizeDecision(decisionID)
	if err != nil {
		return false, err
	}
	return decision.Approved, nil
}

// FinalizeDecision finalizes like Finalize and returns a copy of the
// finalized decision together with the approval ratio the outcome was
// computed from. Both come from the same snapshot of votes.
func (e *ConsensusEngine) FinalizeDecision(decisionID string) (domain.GovernanceDecision, float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	decision, err := e.find(decisionID)
	if err != nil {
		return domain.GovernanceDecision{}, 0, err
	}
	ratio, err := e.approvalRatio(decision)
	if err != nil {
		return domain.GovernanceDecision{}, 0, err
	}
	passed := len(decision.Votes) > 0 && ratio >= decision.ConsensusThreshold
	decision.Approved = passed
	decision.DecisionTime = e.now()

	e.logger.Info("decision finalized", "decision_id", decisionID, "approved", passed, "ratio", ratio, "votes", len(decision.Votes))
	return decision.Clone(), ratio, nil
}

// Decision returns a copy of the decision.
func (e *ConsensusEngine) Decision(decisionID string) (domain.GovernanceDecision, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	decision, err := e.find(decisionID)
	if err != nil {
		return domain.GovernanceDecision{}, err
	}
	return decision.Clone(), nil
}

// Decisions returns copies of every decision in proposal order.
func (e *ConsensusEngine) Decisions() []domain.GovernanceDecision {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]domain.GovernanceDecision, 0, len(e.decisions))
	for _, d := range e.decisions {
		out = append(out, d.Clone())
	}
	return out
}

// DecisionsByTag returns copies of the decisions carrying tag, in proposal order.
func (e *ConsensusEngine) DecisionsByTag(tag string) []domain.GovernanceDecision {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []domain.GovernanceDecision
	for _, d := range e.decisions {
		if d.HasTag(tag) {
			out = append(out, d.Clone())
		}
	}
	return out
}

// PolicyCoverage returns the percentage (0-100) of decisions with at least
// one tag. An empty engine is fully covered.
func (e *ConsensusEngine) PolicyCoverage() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policyCoverage()
}

// ComplianceReport summarises every recorded decision.
func (e *ConsensusEngine) ComplianceReport() domain.ComplianceReport {
	e.mu.RLock()
	defer e.mu.RUnlock()

	report := domain.ComplianceReport{
		TotalDecisions:  len(e.decisions),
		TagDistribution: make(map[string]int),
	}
	for _, d := range e.decisions {
		if d.Approved {
			report.ApprovedDecisions++
		}
		for _, tag := range d.Tags {
			report.TagDistribution[tag]++
		}
	}
	if report.TotalDecisions > 0 {
		report.ApprovalRate = float64(report.ApprovedDecisions) / float64(report.TotalDecisions)
	}
	report.PolicyCoverage = e.policyCoverage()
	return report
}

// SetStakeholderWeight changes the weight of a role for every subsequent
// approval computation, including re-evaluation of existing decisions.
func (e *ConsensusEngine) SetStakeholderWeight(role domain.StakeholderRole, weight int) error {
	if !role.Valid() {
		return domain.NewError(domain.ErrInvalidRole, domain.CodeInvalidRole, nil, "%s", role)
	}
	if weight < 0 {
		return domain.NewError(domain.ErrInvalidBounds, domain.CodeInvalidBounds,
			map[string]any{"role": role.String(), "weight": weight}, "weight %d for %s is negative", weight, role)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.weights[role] = weight
	return nil
}

// StakeholderWeight returns the weight of role.
func (e *ConsensusEngine) StakeholderWeight(role domain.StakeholderRole) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weight(role)
}

// SetConsensusThreshold changes the threshold stamped onto decisions proposed
// from now on. Existing decisions keep their own threshold.
func (e *ConsensusEngine) SetConsensusThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return domain.NewError(domain.ErrInvalidThreshold, domain.CodeInvalidThreshold,
			map[string]any{"threshold": threshold}, "%v outside [0,1]", threshold)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.threshold = threshold
	return nil
}

// ConsensusThreshold returns the threshold applied to new decisions.
func (e *ConsensusEngine) ConsensusThreshold() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.threshold
}

// find must be called with e.mu held.
func (e *ConsensusEngine) find(decisionID string) (*domain.GovernanceDecision, error) {
	i, ok := e.index[decisionID]
	if !ok {
		return nil, domain.NewError(domain.ErrUnknownDecision, domain.CodeUnknownDecision,
			map[string]any{"decision_id": decisionID}, "%q", decisionID)
	}
	return &e.decisions[i], nil
}

func (e *ConsensusEngine) weight(role domain.StakeholderRole) (int, error) {
	w, ok := e.weights[role]
	if !ok {
		return 0, domain.NewError(domain.ErrInvalidRole, domain.CodeInvalidRole, nil, "no weight for %s", role)
	}
	return w, nil
}

func (e *ConsensusEngine) approvalRatio(decision *domain.GovernanceDecision) (float64, error) {
	if len(decision.Votes) == 0 {
		return 0, nil
	}

	var total, approving int
	for _, v := range decision.Votes {
		w, err := e.weight(v.Role)
		if err != nil {
			return 0, err
		}
		total += w
		if v.Approval {
			approving += w
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(approving) / float64(total), nil
}

func (e *ConsensusEngine) wouldPass(decision *domain.GovernanceDecision) (bool, error) {
	if len(decision.Votes) == 0 {
		return false, nil
	}
	ratio, err := e.approvalRatio(decision)
	if err != nil {
		return false, err
	}
	return ratio >= decision.ConsensusThreshold, nil
}

func (e *ConsensusEngine) policyCoverage() float64 {
	if len(e.decisions) == 0 {
		return 100.0
	}
	tagged := 0
	for _, d := range e.decisions {
		if len(d.Tags) > 0 {
			tagged++
		}
	}
	return float64(tagged) / float64(len(e.decisions)) * 100.0
}
