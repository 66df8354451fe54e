package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/quorumgate/pkg/config"
	"github.com/zen-systems/quorumgate/pkg/events"
	"github.com/zen-systems/quorumgate/pkg/provider"
	"github.com/zen-systems/quorumgate/pkg/router"
)

func testPolicy() *config.PolicyConfig {
	return &config.PolicyConfig{
		Providers: map[string]config.ProviderProfile{
			"anthropic": {Specialties: []string{"code", "debug"}, QualityWeight: 1.0, Model: "claude-test", AvgLatencyMs: 2500},
			"openai":    {Specialties: []string{"math"}, QualityWeight: 0.95, Model: "gpt-test", AvgLatencyMs: 2000},
			"google":    {Specialties: []string{"research"}, QualityWeight: 0.9, Model: "gemini-test", AvgLatencyMs: 1800},
		},
		DefaultProvider: "anthropic",
		Consensus: config.ConsensusPolicy{
			Algorithm:          "weighted-voting",
			MinimumAgreement:   0.66,
			ConflictResolution: "majority",
		},
		Retry: config.RetryConfig{MaxRetries: 2, BaseBackoffMs: 1, MaxBackoffMs: 2},
		Pricing: config.PricingConfig{
			"anthropic": {"claude-test": {PromptPer1K: 0.003, CompletionPer1K: 0.015}},
		},
	}
}

type mocks struct {
	anthropic *provider.MockClient
	openai    *provider.MockClient
	google    *provider.MockClient
}

func testClients() (map[string]provider.Client, *mocks) {
	m := &mocks{
		anthropic: provider.NewMockClient("anthropic"),
		openai:    provider.NewMockClient("openai"),
		google:    provider.NewMockClient("google"),
	}
	return map[string]provider.Client{
		"anthropic": m.anthropic,
		"openai":    m.openai,
		"google":    m.google,
	}, m
}

func TestRoute_SingleAnswerPath(t *testing.T) {
	clients, m := testClients()
	m.anthropic.WithDefaultResponse("rewrite the loop bounds").WithConfidence(0.9)

	o := New(clients, testPolicy(), nil)
	result, err := o.Route(context.Background(), "debug this code crash", RouteOptions{})
	require.NoError(t, err)

	assert.Contains(t, result.FinalAnswer, "rewrite the loop bounds")
	assert.Nil(t, result.Consensus)
	assert.False(t, result.Metrics.ConsensusUsed)
	assert.Equal(t, "anthropic", result.Selection.Primary)
	assert.Equal(t, []string{"anthropic"}, result.Metrics.ProvidersUsed)
	assert.Equal(t, 3, result.Metrics.TotalProvidersConsidered)
	assert.NotEmpty(t, result.RequestID)
	assert.NotEmpty(t, result.Explanation)

	// Short-circuit: the secondary is never tried after a primary success.
	assert.Equal(t, 1, m.anthropic.Calls())
	assert.Equal(t, 0, m.openai.Calls())
	assert.Equal(t, 0, m.google.Calls())
}

func TestRoute_ConsensusPath(t *testing.T) {
	clients, m := testClients()
	answer := "restart the ingest workers and replay the queue"
	m.anthropic.WithDefaultResponse(answer).WithConfidence(0.9)
	m.openai.WithDefaultResponse(answer).WithConfidence(0.85)
	m.google.WithDefaultResponse(answer).WithConfidence(0.8)

	o := New(clients, testPolicy(), nil)
	result, err := o.Route(context.Background(), "urgent: production down, ingest is stuck", RouteOptions{})
	require.NoError(t, err)

	require.NotNil(t, result.Consensus)
	assert.True(t, result.Consensus.ConsensusReached)
	assert.True(t, result.Metrics.ConsensusUsed)
	assert.Len(t, result.Metrics.ProvidersUsed, 3)
	assert.Len(t, result.Metrics.ProviderTimes, 3)
	assert.Contains(t, result.Explanation, "Consensus reached")

	assert.Equal(t, 1, m.anthropic.Calls())
	assert.Equal(t, 1, m.openai.Calls())
	assert.Equal(t, 1, m.google.Calls())
}

func TestRoute_PartialFanoutStillReconciles(t *testing.T) {
	clients, m := testClients()
	answer := "scale the consumer group"
	m.anthropic.WithDefaultResponse(answer).WithConfidence(0.9)
	m.openai.WithDefaultResponse(answer).WithConfidence(0.85)
	m.google.WithError(errors.New("quota exhausted"))

	o := New(clients, testPolicy(), nil)
	result, err := o.Route(context.Background(), "urgent: production down, ingest is stuck", RouteOptions{})
	require.NoError(t, err)

	require.NotNil(t, result.Consensus)
	assert.Len(t, result.Consensus.ParticipatingProviders, 2)
	assert.NotContains(t, result.Metrics.ProvidersUsed, "google")
}

func TestRoute_FallbackOnTotalFailure(t *testing.T) {
	clients, m := testClients()
	m.anthropic.WithDefaultResponse("fallback answer").WithConfidence(0.9)
	m.openai.WithError(errors.New("boom"))
	m.google.WithError(errors.New("boom"))

	o := New(clients, testPolicy(), nil)
	result, err := o.Route(context.Background(), "urgent: production down, ingest is stuck", RouteOptions{
		Constraints: router.Constraints{ExcludedProviders: []string{"anthropic"}},
	})
	require.NoError(t, err)

	assert.Contains(t, result.Selection.Reasoning, "Fallback due to multi-provider failure")
	assert.Contains(t, result.FinalAnswer, "fallback answer")
	assert.InDelta(t, 0.45, result.Confidence, 1e-9) // halved
	assert.Nil(t, result.Consensus)
	assert.Equal(t, []string{"anthropic"}, result.Metrics.ProvidersUsed)
}

func TestRoute_FallbackExhausted(t *testing.T) {
	clients, m := testClients()
	m.anthropic.WithError(errors.New("anthropic down"))
	m.openai.WithError(errors.New("openai down"))
	m.google.WithError(errors.New("google down"))

	o := New(clients, testPolicy(), nil)
	_, err := o.Route(context.Background(), "debug this code crash", RouteOptions{})

	var exhausted *FallbackExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Contains(t, exhausted.Error(), "all providers failed")
	assert.Contains(t, exhausted.Error(), "fallback error")
}

func TestRoute_ConstraintViolationAbortsBeforeCalls(t *testing.T) {
	clients, m := testClients()

	o := New(clients, testPolicy(), nil)
	_, err := o.Route(context.Background(), "debug this code crash", RouteOptions{
		Constraints: router.Constraints{ExcludedProviders: []string{"anthropic", "openai", "google"}},
	})

	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))
	assert.Equal(t, 0, m.anthropic.Calls())
	assert.Equal(t, 0, m.openai.Calls())
	assert.Equal(t, 0, m.google.Calls())
}

func TestRoute_TransientErrorRetriesThenSecondary(t *testing.T) {
	clients, m := testClients()
	m.anthropic.WithError(&provider.QueryError{Provider: "anthropic", Status: 500, Err: errors.New("upstream")})
	m.openai.WithDefaultResponse("secondary answer")

	o := New(clients, testPolicy(), nil)
	result, err := o.Route(context.Background(), "debug this code crash", RouteOptions{})
	require.NoError(t, err)

	assert.Contains(t, result.FinalAnswer, "secondary answer")
	// MaxRetries=2 means the primary is attempted three times before
	// short-circuiting to the secondary.
	assert.Equal(t, 3, m.anthropic.Calls())
	assert.Equal(t, 1, m.openai.Calls())
}

func TestRoute_NonTransientErrorFailsFast(t *testing.T) {
	clients, m := testClients()
	m.anthropic.WithError(errors.New("invalid api key"))
	m.openai.WithDefaultResponse("secondary answer")

	o := New(clients, testPolicy(), nil)
	result, err := o.Route(context.Background(), "debug this code crash", RouteOptions{})
	require.NoError(t, err)

	assert.Contains(t, result.FinalAnswer, "secondary answer")
	assert.Equal(t, 1, m.anthropic.Calls())
}

func TestRoute_CancellationAbortsFanout(t *testing.T) {
	clients, m := testClients()
	m.anthropic.WithLatency(5 * time.Second)
	m.openai.WithLatency(5 * time.Second)
	m.google.WithLatency(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(20*time.Millisecond, cancel)
	defer timer.Stop()

	o := New(clients, testPolicy(), nil)
	started := time.Now()
	_, err := o.Route(ctx, "urgent: production down, ingest is stuck", RouteOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	// Every in-flight call aborts on cancellation; the pipeline must not sit
	// out the providers' full latency.
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, 1, m.anthropic.Calls())
	assert.Equal(t, 1, m.openai.Calls())
	assert.Equal(t, 1, m.google.Calls())
}

func TestRoute_LifecycleEvents(t *testing.T) {
	bus := events.NewBus()
	ch, unsubscribe := bus.Subscribe(16)
	defer unsubscribe()

	clients, m := testClients()
	m.anthropic.WithDefaultResponse("done")

	o := New(clients, testPolicy(), bus)
	_, err := o.Route(context.Background(), "debug this code crash", RouteOptions{})
	require.NoError(t, err)

	started := <-ch
	assert.Equal(t, events.RoutingStarted, started.Type)
	assert.NotEmpty(t, started.RequestID)

	completed := <-ch
	assert.Equal(t, events.RoutingCompleted, completed.Type)
	assert.Equal(t, started.RequestID, completed.RequestID)
	assert.Equal(t, false, completed.Payload["consensus_used"])
}

func TestRoute_CostAttribution(t *testing.T) {
	clients, m := testClients()
	m.anthropic.WithDefaultResponse("an answer that spans enough characters to count tokens")

	o := New(clients, testPolicy(), nil)
	result, err := o.Route(context.Background(), "debug this code crash", RouteOptions{})
	require.NoError(t, err)

	// The mock reports len(content)/4 tokens; pricing is configured for
	// anthropic only, so a nonzero cost must appear under its name.
	assert.Greater(t, result.Metrics.ProviderCosts["anthropic"], 0.0)
}

func TestAllProvidersFailedError_Format(t *testing.T) {
	err := &AllProvidersFailedError{Errors: map[string]error{
		"openai":    errors.New("timeout"),
		"anthropic": errors.New("refused"),
	}}
	assert.Equal(t, "all providers failed: anthropic: refused, openai: timeout", err.Error())
}

func TestProfilesFromPolicy_DefaultProviderFirst(t *testing.T) {
	profiles := ProfilesFromPolicy(testPolicy())
	require.Len(t, profiles, 3)
	assert.Equal(t, "anthropic", profiles[0].Name)
	assert.Equal(t, "google", profiles[1].Name)
	assert.Equal(t, "openai", profiles[2].Name)
	assert.Greater(t, profiles[0].CostPer1K, 0.0)
}
