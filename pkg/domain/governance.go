package domain

import (
	"fmt"
	"time"
)

// StakeholderRole is the closed set of voter categories.
type StakeholderRole int

const (
	RoleClinician StakeholderRole = iota
	RoleEngineer
	RoleEthicist
	RoleAugmentedUser
	RoleCommunityRep
	RoleRegulator
)

var stakeholderRoleNames = [...]string{
	RoleClinician:     "clinician",
	RoleEngineer:      "engineer",
	RoleEthicist:      "ethicist",
	RoleAugmentedUser: "augmented_user",
	RoleCommunityRep:  "community_rep",
	RoleRegulator:     "regulator",
}

// StakeholderRoles returns every role in declaration order.
func StakeholderRoles() []StakeholderRole {
	return []StakeholderRole{
		RoleClinician,
		RoleEngineer,
		RoleEthicist,
		RoleAugmentedUser,
		RoleCommunityRep,
		RoleRegulator,
	}
}

// Valid reports whether r is one of the declared roles.
func (r StakeholderRole) Valid() bool {
	return r >= RoleClinician && r <= RoleRegulator
}

func (r StakeholderRole) String() string {
	if !r.Valid() {
		return fmt.Sprintf("StakeholderRole(%d)", int(r))
	}
	return stakeholderRoleNames[r]
}

// MarshalText implements encoding.TextMarshaler.
func (r StakeholderRole) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, NewError(ErrInvalidRole, CodeInvalidRole, nil, "%d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *StakeholderRole) UnmarshalText(text []byte) error {
	parsed, err := ParseStakeholderRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseStakeholderRole resolves a role name. Unknown names are an error,
// never a silent default.
func ParseStakeholderRole(name string) (StakeholderRole, error) {
	for i, n := range stakeholderRoleNames {
		if n == name {
			return StakeholderRole(i), nil
		}
	}
	return 0, NewError(ErrInvalidRole, CodeInvalidRole, map[string]any{"role": name}, "%q", name)
}

// StakeholderVote is a single ballot on a decision.
type StakeholderVote struct {
	Role       StakeholderRole `json:"role"`
	Identifier string          `json:"identifier"`
	Approval   bool            `json:"approval"`
	Rationale  string          `json:"rationale,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// DefaultConsensusThreshold is the weighted approval fraction a decision
// needs unless the engine is configured otherwise.
const DefaultConsensusThreshold = 0.70

// GovernanceDecision is a proposal and the votes cast on it.
type GovernanceDecision struct {
	ID                 string            `json:"id"`
	Description        string            `json:"description"`
	Tags               []string          `json:"tags"`
	Votes              []StakeholderVote `json:"votes"`
	ConsensusThreshold float64           `json:"consensus_threshold"`
	Approved           bool              `json:"approved"`
	DecisionTime       time.Time         `json:"decision_time"`
}

// Clone returns a deep copy so callers never alias engine state.
func (d GovernanceDecision) Clone() GovernanceDecision {
	out := d
	out.Tags = append(make([]string, 0, len(d.Tags)), d.Tags...)
	out.Votes = append(make([]StakeholderVote, 0, len(d.Votes)), d.Votes...)
	return out
}

// HasTag reports whether the decision carries exactly tag.
func (d GovernanceDecision) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ComplianceReport summarises every decision recorded by an engine.
type ComplianceReport struct {
	TotalDecisions    int            `json:"total_decisions"`
	ApprovedDecisions int            `json:"approved_decisions"`
	ApprovalRate      float64        `json:"approval_rate"`
	PolicyCoverage    float64        `json:"policy_coverage"`
	TagDistribution   map[string]int `json:"tag_distribution"`
}
