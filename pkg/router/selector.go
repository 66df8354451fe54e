package router

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/zen-systems/quorumgate/pkg/classifier"
	"github.com/zen-systems/quorumgate/pkg/provider"
)

// Selector scores configured providers against a classified query.
type Selector struct {
	// profiles keeps the configured order; it breaks scoring ties.
	profiles []provider.Profile
}

// NewSelector creates a selector over the configured provider profiles.
func NewSelector(profiles []provider.Profile) *Selector {
	return &Selector{profiles: profiles}
}

// Profiles returns the configured provider profiles.
func (s *Selector) Profiles() []provider.Profile {
	return s.profiles
}

type scoredCandidate struct {
	profile provider.Profile
	matches int
	score   float64
}

// Select decides which provider(s) answer the query. It fails only when the
// constraints eliminate every candidate.
func (s *Selector) Select(query string, cls classifier.Classification, c Constraints) (*Selection, error) {
	candidates, filteredReason := s.filterCandidates(query, cls, c)
	if len(candidates) == 0 {
		return nil, &ConstraintViolationError{Reason: filteredReason}
	}

	// Stable sort keeps configured order on ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	sel := &Selection{
		Primary:           candidates[0].profile.Name,
		RoutingConfidence: routingConfidence(candidates),
	}
	if len(candidates) > 1 {
		sel.Secondary = candidates[1].profile.Name
	}

	sel.RequiresConsensus = requiresConsensus(cls, c)
	if sel.RequiresConsensus && len(candidates) >= 2 {
		// Consensus defaults to the full candidate set.
		for _, cand := range candidates {
			sel.ConsensusProviders = append(sel.ConsensusProviders, cand.profile.Name)
		}
	} else if sel.RequiresConsensus {
		// A single remaining candidate cannot form a consensus set.
		sel.RequiresConsensus = false
	}

	sel.EstimatedCost, sel.EstimatedTime = s.estimate(sel, cls, candidates)
	sel.Reasoning = buildReasoning(cls, sel, candidates)

	return sel, nil
}

// filterCandidates applies exclusions and cost/time constraints. It returns
// the surviving candidates and, when none survive, why.
func (s *Selector) filterCandidates(query string, cls classifier.Classification, c Constraints) ([]scoredCandidate, string) {
	excluded := make(map[string]bool, len(c.ExcludedProviders))
	for _, name := range c.ExcludedProviders {
		excluded[name] = true
	}

	matchText := query + " " + strings.Join(cls.Domains, " ")

	var candidates []scoredCandidate
	var reasons []string
	for _, profile := range s.profiles {
		if excluded[profile.Name] {
			reasons = append(reasons, fmt.Sprintf("%s excluded by caller", profile.Name))
			continue
		}
		if c.MaxCost > 0 && estimatedCallCost(profile, cls) > c.MaxCost {
			reasons = append(reasons, fmt.Sprintf("%s over cost limit", profile.Name))
			continue
		}
		if c.MaxTime > 0 && profile.AvgLatency > c.MaxTime {
			reasons = append(reasons, fmt.Sprintf("%s over time limit", profile.Name))
			continue
		}

		matches := profile.MatchCount(matchText)
		candidates = append(candidates, scoredCandidate{
			profile: profile,
			matches: matches,
			score:   float64(matches) + profile.QualityWeight,
		})
	}

	if len(candidates) == 0 {
		if len(reasons) == 0 {
			return nil, "no providers configured"
		}
		return nil, strings.Join(reasons, "; ")
	}
	return candidates, ""
}

// requiresConsensus applies the classification default, then the caller
// override.
func requiresConsensus(cls classifier.Classification, c Constraints) bool {
	required := cls.Type == classifier.TypeConsensus || cls.Urgency == classifier.UrgencyCritical
	if c.RequireConsensus != nil {
		required = *c.RequireConsensus
	}
	return required
}

// routingConfidence scores how decisive the selection was from the margin
// between the top two candidates and the strength of the top match.
func routingConfidence(candidates []scoredCandidate) float64 {
	top := candidates[0].score
	second := 0.0
	if len(candidates) > 1 {
		second = candidates[1].score
	}

	margin := (top - second) / math.Max(top, 1)
	strength := math.Min(float64(candidates[0].matches), 5) / 5.0
	confidence := 0.5 + 0.35*margin + 0.15*strength
	if confidence > 1 {
		return 1
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}

func estimatedCallCost(profile provider.Profile, cls classifier.Classification) float64 {
	return profile.CostPer1K * float64(cls.EstimatedTokens) / 1000.0
}

// estimate computes projected cost and latency: consensus queries run in
// parallel (latency is the slowest provider), the single path is one call.
func (s *Selector) estimate(sel *Selection, cls classifier.Classification, candidates []scoredCandidate) (cost float64, elapsed time.Duration) {
	byName := make(map[string]provider.Profile, len(candidates))
	for _, cand := range candidates {
		byName[cand.profile.Name] = cand.profile
	}

	if sel.RequiresConsensus {
		for _, name := range sel.ConsensusProviders {
			profile := byName[name]
			cost += estimatedCallCost(profile, cls)
			if profile.AvgLatency > elapsed {
				elapsed = profile.AvgLatency
			}
		}
		return cost, elapsed
	}

	primary := byName[sel.Primary]
	return estimatedCallCost(primary, cls), primary.AvgLatency
}

// buildReasoning produces the human-readable justification for the decision.
// It is part of the observable contract, consumed by explanation generation.
func buildReasoning(cls classifier.Classification, sel *Selection, candidates []scoredCandidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "query classified as %s (complexity %.2f, urgency %s, domains %s)",
		cls.Type, cls.Complexity, cls.Urgency, strings.Join(cls.Domains, ","))

	fmt.Fprintf(&sb, "; primary %s (specialty matches %d, weight %.2f)",
		sel.Primary, candidates[0].matches, candidates[0].profile.QualityWeight)
	if sel.Secondary != "" {
		fmt.Fprintf(&sb, ", secondary %s", sel.Secondary)
	}

	if sel.RequiresConsensus {
		fmt.Fprintf(&sb, "; consensus required across %d providers (%s)",
			len(sel.ConsensusProviders), strings.Join(sel.ConsensusProviders, ","))
	} else {
		sb.WriteString("; consensus not required")
	}

	return sb.String()
}
