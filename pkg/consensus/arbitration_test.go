package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/quorumgate/pkg/provider"
)

func arbitrationEngine() *Engine {
	return NewEngine([]provider.Profile{
		{Name: "anthropic", QualityWeight: 1.0, Specialties: []string{"code", "debug"}},
		{Name: "openai", QualityWeight: 1.0, Specialties: []string{"math"}},
		{Name: "google", QualityWeight: 1.0, Specialties: []string{"research", "compare"}},
	}, nil)
}

func TestExpertArbitration_ExpertWinsVerbatim(t *testing.T) {
	expertAnswer := "check the goroutine dump and look for blocked channels"
	otherAnswer := "check the goroutine dump and look for blocked mutexes"

	responses := []*provider.Response{
		makeResponse("google", otherAnswer, 0.9),
		makeResponse("anthropic", expertAnswer, 0.8),
	}

	result, err := arbitrationEngine().Build(context.Background(),
		"debug this deadlock in my code", responses, Options{
			Algorithm:        AlgorithmExpertArbitration,
			MinimumAgreement: 0.5,
		})
	require.NoError(t, err)

	// anthropic matches both "debug" and "code"; its answer is returned
	// verbatim even though google reported higher confidence.
	assert.Equal(t, expertAnswer, result.FinalResponse)
	assert.Equal(t, "expert_arbitration", result.ResolutionMethod)
	assert.Equal(t, 1, result.Metadata.Iterations)
	assert.Zero(t, result.Metadata.ConflictsResolved)

	validation := Jaccard(expertAnswer, otherAnswer)
	assert.InDelta(t, validation, result.AgreementScore, 1e-9)
	assert.InDelta(t, 0.8*validation, result.Confidence, 1e-9)
}

func TestExpertArbitration_TieKeepsFirstConfigured(t *testing.T) {
	// No specialty matches anywhere: the tie breaks by configured profile
	// order (openai before google), regardless of which call finished first.
	orders := [][]*provider.Response{
		{
			makeResponse("openai", "openai answer text", 0.6),
			makeResponse("google", "google answer text", 0.9),
		},
		{
			makeResponse("google", "google answer text", 0.9),
			makeResponse("openai", "openai answer text", 0.6),
		},
	}

	for _, responses := range orders {
		result, err := arbitrationEngine().Build(context.Background(), "untyped question", responses, Options{
			Algorithm:        AlgorithmExpertArbitration,
			MinimumAgreement: 0.5,
		})
		require.NoError(t, err)
		assert.Equal(t, "openai answer text", result.FinalResponse)
	}
}

func TestExpertArbitration_UnconfiguredProviderSortsLast(t *testing.T) {
	// A responder without a configured profile never wins a tie against a
	// configured one.
	responses := []*provider.Response{
		makeResponse("mystery", "mystery answer text", 0.95),
		makeResponse("google", "google answer text", 0.6),
	}

	result, err := arbitrationEngine().Build(context.Background(), "untyped question", responses, Options{
		Algorithm:        AlgorithmExpertArbitration,
		MinimumAgreement: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "google answer text", result.FinalResponse)
}

func TestExpertArbitration_BoundsHold(t *testing.T) {
	responses := []*provider.Response{
		makeResponse("anthropic", "alpha beta", 1.0),
		makeResponse("openai", "gamma delta", 1.0),
	}

	result, err := arbitrationEngine().Build(context.Background(), "debug code", responses, Options{
		Algorithm: AlgorithmExpertArbitration,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.AgreementScore, 0.0)
	assert.LessOrEqual(t, result.AgreementScore, 1.0)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
}
