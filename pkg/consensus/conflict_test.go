package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/quorumgate/pkg/provider"
)

func TestDetectConflicts_None(t *testing.T) {
	responses := []*provider.Response{
		{Provider: "a", Content: "restart the api server and roll back the deployment now"},
		{Provider: "b", Content: "restart the api server and roll back the deployment today"},
	}
	assert.Empty(t, detectConflicts(responses))
}

func TestDetectConflicts_SeverityGrading(t *testing.T) {
	agree := "restart the api server and roll back the deployment"
	disjoint := "completely unrelated words about gardening tulips daffodils"

	responses := []*provider.Response{
		{Provider: "a", Content: agree},
		{Provider: "b", Content: disjoint},
	}

	conflicts := detectConflicts(responses)
	require.Len(t, conflicts, 1)
	assert.Equal(t, SeverityHigh, conflicts[0].Severity)
	assert.True(t, conflicts[0].Involves("a"))
	assert.True(t, conflicts[0].Involves("b"))
	assert.Less(t, conflicts[0].Similarity, highSeverityThreshold)
	assert.NotEmpty(t, conflicts[0].Description)
}

func TestDetectConflicts_MediumSeverity(t *testing.T) {
	// Half-overlapping word sets: similarity between 0.3 and 0.7.
	a := "use postgres with a btree index for lookups"
	b := "use postgres with a hash partition for writes"

	responses := []*provider.Response{
		{Provider: "a", Content: a},
		{Provider: "b", Content: b},
	}

	sim := Jaccard(a, b)
	require.True(t, sim >= highSeverityThreshold && sim < conflictThreshold,
		"setup: similarity %v not in medium band", sim)

	conflicts := detectConflicts(responses)
	require.Len(t, conflicts, 1)
	assert.Equal(t, SeverityMedium, conflicts[0].Severity)
}

func TestDetectConflicts_SymmetricUnderOrdering(t *testing.T) {
	a := &provider.Response{Provider: "a", Content: "alpha beta gamma delta"}
	b := &provider.Response{Provider: "b", Content: "epsilon zeta eta theta"}

	forward := detectConflicts([]*provider.Response{a, b})
	reverse := detectConflicts([]*provider.Response{b, a})

	require.Len(t, forward, 1)
	require.Len(t, reverse, 1)
	assert.Equal(t, forward[0].Severity, reverse[0].Severity)
	assert.Equal(t, forward[0].Similarity, reverse[0].Similarity)
}

func TestClassifyConflict(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected ConflictType
	}{
		{"code fences", "```go\nfunc main() {}\n```", "different words", ConflictImplementation},
		{"recommendation", "I recommend the first option", "no the other one", ConflictRecommendation},
		{"approach", "a different approach would work", "try this strategy", ConflictApproach},
		{"factual default", "the sky is blue", "water boils at altitude", ConflictFactual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyConflict(tt.a, tt.b))
		})
	}
}

func TestConflictedProviders(t *testing.T) {
	conflicts := []Conflict{
		{
			First:    &provider.Response{Provider: "a"},
			Second:   &provider.Response{Provider: "b"},
			Severity: SeverityHigh,
		},
		{
			First:    &provider.Response{Provider: "b"},
			Second:   &provider.Response{Provider: "c"},
			Severity: SeverityMedium,
		},
	}

	high := conflictedProviders(conflicts, SeverityHigh)
	assert.True(t, high["a"])
	assert.True(t, high["b"])
	assert.False(t, high["c"], "medium-severity participants must not be excluded")
}
