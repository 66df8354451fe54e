// Package consensus reconciles divergent provider responses into one
// authoritative result using a pluggable algorithm: quorum-phased voting,
// weighted voting, or expert arbitration.
package consensus

import (
	"time"

	"github.com/google/uuid"

	"github.com/zen-systems/quorumgate/pkg/provider"
)

// Algorithm selects the reconciliation strategy.
type Algorithm string

const (
	AlgorithmQuorumPhased      Algorithm = "quorum-phased"
	AlgorithmWeightedVoting    Algorithm = "weighted-voting"
	AlgorithmExpertArbitration Algorithm = "expert-arbitration"
)

// ConflictResolution names the policy applied when responses conflict.
type ConflictResolution string

const (
	ResolutionIterative    ConflictResolution = "iterative"
	ResolutionHierarchical ConflictResolution = "hierarchical"
	ResolutionMajority     ConflictResolution = "majority"
)

// Options is the immutable policy for one consensus invocation.
type Options struct {
	Algorithm          Algorithm
	Timeout            time.Duration
	MinimumAgreement   float64
	ConflictResolution ConflictResolution
	// QualityWeights overrides per-provider weights; missing providers fall
	// back to their configured profile weight.
	QualityWeights map[string]float64
}

// ConflictType categorizes what two responses disagree about.
type ConflictType string

const (
	ConflictFactual        ConflictType = "factual"
	ConflictApproach       ConflictType = "approach"
	ConflictRecommendation ConflictType = "recommendation"
	ConflictImplementation ConflictType = "implementation"
)

// Severity grades how serious a conflict is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Conflict is a detected disagreement between two responses.
type Conflict struct {
	ID          string
	First       *provider.Response
	Second      *provider.Response
	Type        ConflictType
	Severity    Severity
	Similarity  float64
	Description string
}

// Involves reports whether the response from the named provider is one of
// the conflict's two sides.
func (c Conflict) Involves(providerName string) bool {
	return c.First.Provider == providerName || c.Second.Provider == providerName
}

// VoteChoice is one provider's judgment of another's proposal.
type VoteChoice string

const (
	VoteApprove VoteChoice = "approve"
	VoteReject  VoteChoice = "reject"
	VoteAbstain VoteChoice = "abstain"
)

// Vote records one provider's judgment of another provider's proposal.
// Votes are cast during quorum-phased consensus only.
type Vote struct {
	Voter      string
	ProposalID string
	Choice     VoteChoice
	Confidence float64
	Reasoning  string
}

// ResultMetadata carries per-run accounting.
type ResultMetadata struct {
	ConsensusTime     time.Duration `json:"consensus_time"`
	Iterations        int           `json:"iterations"`
	ConflictsResolved int           `json:"conflicts_resolved"`
	TotalCost         float64       `json:"total_cost"`
}

// Result is the terminal artifact of a consensus run. AgreementScore and
// Confidence are always within [0,1]; ParticipatingProviders is never empty
// when Success is true.
type Result struct {
	Success                bool           `json:"success"`
	ConsensusReached       bool           `json:"consensus_reached"`
	FinalResponse          string         `json:"final_response"`
	Confidence             float64        `json:"confidence"`
	ParticipatingProviders []string       `json:"participating_providers"`
	AgreementScore         float64        `json:"agreement_score"`
	ResolutionMethod       string         `json:"resolution_method"`
	Metadata               ResultMetadata `json:"metadata"`
}

// session is the mutable working state of one in-flight consensus run. It is
// owned exclusively by the engine for the duration of one request and
// discarded once the result is produced, success or failure.
type session struct {
	id        string
	query     string
	responses []*provider.Response
	opts      Options
	profiles  map[string]provider.Profile
	rank      map[string]int
	started   time.Time
}

func newSession(query string, responses []*provider.Response, opts Options, profiles map[string]provider.Profile, rank map[string]int) *session {
	return &session{
		id:        uuid.NewString(),
		query:     query,
		responses: responses,
		opts:      opts,
		profiles:  profiles,
		rank:      rank,
		started:   time.Now(),
	}
}

func (s *session) elapsed() time.Duration {
	return time.Since(s.started)
}

func (s *session) participants() []string {
	names := make([]string, 0, len(s.responses))
	for _, resp := range s.responses {
		names = append(names, resp.Provider)
	}
	return names
}

func (s *session) totalCost() float64 {
	var cost float64
	for _, resp := range s.responses {
		cost += resp.Metadata.Cost
	}
	return cost
}

// weightFor resolves a provider's quality weight: explicit option first,
// configured profile second, 1.0 otherwise.
func (s *session) weightFor(providerName string) float64 {
	if w, ok := s.opts.QualityWeights[providerName]; ok && w > 0 {
		return w
	}
	if profile, ok := s.profiles[providerName]; ok && profile.QualityWeight > 0 {
		return profile.QualityWeight
	}
	return 1.0
}

// rankFor returns the provider's position in the configured profile order.
// Unconfigured providers sort after every configured one.
func (s *session) rankFor(providerName string) int {
	if r, ok := s.rank[providerName]; ok {
		return r
	}
	return len(s.rank)
}

func (s *session) expertiseMultiplier(providerName string) float64 {
	if profile, ok := s.profiles[providerName]; ok {
		return profile.ExpertiseMultiplier(s.query)
	}
	return 1.0
}
