package consensus

import (
	"fmt"
	"strings"

	"github.com/zen-systems/quorumgate/pkg/provider"
)

// Pairwise similarity below conflictThreshold marks a conflict; below
// highSeverityThreshold the conflict is high severity.
const (
	conflictThreshold     = 0.7
	highSeverityThreshold = 0.3
)

// detectConflicts compares every response pair and records those whose
// word-overlap similarity falls below the conflict threshold.
func detectConflicts(responses []*provider.Response) []Conflict {
	var conflicts []Conflict

	for i := 0; i < len(responses); i++ {
		for j := i + 1; j < len(responses); j++ {
			similarity := Jaccard(responses[i].Content, responses[j].Content)
			if similarity >= conflictThreshold {
				continue
			}

			severity := SeverityMedium
			if similarity < highSeverityThreshold {
				severity = SeverityHigh
			}

			first, second := responses[i], responses[j]
			conflicts = append(conflicts, Conflict{
				ID:         fmt.Sprintf("conflict_%d", len(conflicts)+1),
				First:      first,
				Second:     second,
				Type:       classifyConflict(first.Content, second.Content),
				Severity:   severity,
				Similarity: similarity,
				Description: fmt.Sprintf("%s and %s disagree (similarity %.2f)",
					first.Provider, second.Provider, similarity),
			})
		}
	}

	return conflicts
}

// classifyConflict picks a conflict type from surface features of the two
// answers. Factual is the default when nothing more specific applies.
func classifyConflict(a, b string) ConflictType {
	combined := strings.ToLower(a + " " + b)

	switch {
	case strings.Contains(combined, "```") || strings.Contains(combined, "func ") || strings.Contains(combined, "class "):
		return ConflictImplementation
	case strings.Contains(combined, "recommend") || strings.Contains(combined, "should use") || strings.Contains(combined, "suggest"):
		return ConflictRecommendation
	case strings.Contains(combined, "approach") || strings.Contains(combined, "strategy") || strings.Contains(combined, "instead"):
		return ConflictApproach
	default:
		return ConflictFactual
	}
}

// conflictedProviders returns the set of providers involved in at least one
// conflict of the given severity.
func conflictedProviders(conflicts []Conflict, severity Severity) map[string]bool {
	involved := make(map[string]bool)
	for _, conflict := range conflicts {
		if conflict.Severity != severity {
			continue
		}
		involved[conflict.First.Provider] = true
		involved[conflict.Second.Provider] = true
	}
	return involved
}
