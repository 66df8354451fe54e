package consensus

import (
	"github.com/zen-systems/quorumgate/pkg/provider"
)

// runExpertArbitration trusts the responding provider whose specialties best
// match the query, validated against the remaining responses.
func runExpertArbitration(s *session) *Result {
	expert := pickExpert(s)

	validation := meanSimilarityTo(expert, s.responses)

	return &Result{
		Success:                true,
		ConsensusReached:       validation >= s.opts.MinimumAgreement,
		FinalResponse:          expert.Content,
		Confidence:             clamp01(expert.Confidence * validation),
		ParticipatingProviders: s.participants(),
		AgreementScore:         clamp01(validation),
		ResolutionMethod:       "expert_arbitration",
		Metadata: ResultMetadata{
			ConsensusTime: s.elapsed(),
			Iterations:    1,
			TotalCost:     s.totalCost(),
		},
	}
}

// pickExpert selects the responder with the most specialty-keyword matches
// against the query. Ties break by configured profile order, so the result
// does not depend on call completion order.
func pickExpert(s *session) *provider.Response {
	var expert *provider.Response
	bestMatches := -1
	bestRank := 0
	for _, resp := range s.responses {
		matches := 0
		if profile, ok := s.profiles[resp.Provider]; ok {
			matches = profile.MatchCount(s.query)
		}
		rank := s.rankFor(resp.Provider)
		if matches > bestMatches || (matches == bestMatches && rank < bestRank) {
			expert = resp
			bestMatches = matches
			bestRank = rank
		}
	}
	return expert
}
