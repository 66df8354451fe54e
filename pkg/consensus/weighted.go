package consensus

import (
	"fmt"

	"github.com/zen-systems/quorumgate/pkg/provider"
)

// runWeightedVoting scores every response by configured quality weight,
// reported confidence, and query expertise, then resolves detected conflicts
// by excluding heavily-conflicted responses.
func runWeightedVoting(s *session) *Result {
	weights := make(map[string]float64, len(s.responses))
	for _, resp := range s.responses {
		weights[resp.Provider] = s.weightFor(resp.Provider) *
			resp.Confidence *
			s.expertiseMultiplier(resp.Provider)
	}

	conflicts := detectConflicts(s.responses)
	agreement := meanPairwiseSimilarity(s.responses)

	var final *provider.Response
	var confidence float64
	var resolution string

	if len(conflicts) == 0 {
		final = highestWeighted(s.responses, weights, nil)
		confidence = weightedAverageConfidence(s.responses, weights)
		resolution = "weighted_synthesis"
	} else {
		final = resolveConflicts(s, conflicts, weights)
		confidence = final.Confidence * s.weightFor(final.Provider)
		resolution = fmt.Sprintf("weighted_%s", s.opts.ConflictResolution)
	}

	return &Result{
		Success:                true,
		ConsensusReached:       agreement >= s.opts.MinimumAgreement,
		FinalResponse:          final.Content,
		Confidence:             clamp01(confidence),
		ParticipatingProviders: s.participants(),
		AgreementScore:         clamp01(agreement),
		ResolutionMethod:       resolution,
		Metadata: ResultMetadata{
			ConsensusTime:     s.elapsed(),
			Iterations:        1,
			ConflictsResolved: len(conflicts),
			TotalCost:         s.totalCost(),
		},
	}
}

// resolveConflicts picks the highest-weight response among those not party
// to any high-severity conflict, falling back to the global highest weight
// when every response is conflicted.
func resolveConflicts(s *session, conflicts []Conflict, weights map[string]float64) *provider.Response {
	excluded := conflictedProviders(conflicts, SeverityHigh)

	if final := highestWeighted(s.responses, weights, excluded); final != nil {
		return final
	}
	return highestWeighted(s.responses, weights, nil)
}

// highestWeighted returns the heaviest response not in the excluded set, or
// nil when all are excluded. Ties keep the earlier (first-completed) response.
func highestWeighted(responses []*provider.Response, weights map[string]float64, excluded map[string]bool) *provider.Response {
	var best *provider.Response
	bestWeight := -1.0
	for _, resp := range responses {
		if excluded[resp.Provider] {
			continue
		}
		if weights[resp.Provider] > bestWeight {
			best = resp
			bestWeight = weights[resp.Provider]
		}
	}
	return best
}

// weightedAverageConfidence averages response confidences weighted by each
// response's vote weight.
func weightedAverageConfidence(responses []*provider.Response, weights map[string]float64) float64 {
	var weightedSum, totalWeight float64
	for _, resp := range responses {
		w := weights[resp.Provider]
		weightedSum += w * resp.Confidence
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}
