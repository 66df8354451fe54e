// Package orchestrator runs the full query pipeline: classification, provider
// selection, execution fan-out, consensus reconciliation, and synthesis of the
// caller-facing result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zen-systems/quorumgate/pkg/classifier"
	"github.com/zen-systems/quorumgate/pkg/config"
	"github.com/zen-systems/quorumgate/pkg/consensus"
	"github.com/zen-systems/quorumgate/pkg/events"
	"github.com/zen-systems/quorumgate/pkg/provider"
	"github.com/zen-systems/quorumgate/pkg/router"
)

// Metrics is the per-request accounting attached to every result.
type Metrics struct {
	ProvidersUsed            []string                 `json:"providers_used"`
	ConsensusUsed            bool                     `json:"consensus_used"`
	RoutingConfidence        float64                  `json:"routing_confidence"`
	ProviderCosts            map[string]float64       `json:"provider_costs"`
	ProviderTimes            map[string]time.Duration `json:"provider_times"`
	TotalProvidersConsidered int                      `json:"total_providers_considered"`
	RoutingTime              time.Duration            `json:"routing_time"`
}

// Result is the caller-facing outcome of one routed query.
type Result struct {
	RequestID      string                    `json:"request_id"`
	FinalAnswer    string                    `json:"final_answer"`
	Classification classifier.Classification `json:"classification"`
	Selection      *router.Selection         `json:"selection"`
	Consensus      *consensus.Result         `json:"consensus,omitempty"`
	Confidence     float64                   `json:"confidence"`
	Metrics        Metrics                   `json:"metrics"`
	Explanation    string                    `json:"explanation"`
}

// RouteOptions carries per-request overrides.
type RouteOptions struct {
	Constraints router.Constraints
	Consensus   consensus.Options
}

// Orchestrator wires the pipeline stages together. It is stateless across
// requests and safe for concurrent use.
type Orchestrator struct {
	clients  map[string]provider.Client
	policy   *config.PolicyConfig
	selector *router.Selector
	engine   *consensus.Engine
	bus      *events.Bus
}

// New creates an orchestrator over the configured clients and policy.
func New(clients map[string]provider.Client, policy *config.PolicyConfig, bus *events.Bus) *Orchestrator {
	profiles := ProfilesFromPolicy(policy)
	return &Orchestrator{
		clients:  clients,
		policy:   policy,
		selector: router.NewSelector(profiles),
		engine:   consensus.NewEngine(profiles, bus),
		bus:      bus,
	}
}

// ProfilesFromPolicy converts the policy's provider table into router
// profiles. The default provider comes first; the rest follow in name order
// so tie-breaking stays deterministic.
func ProfilesFromPolicy(policy *config.PolicyConfig) []provider.Profile {
	names := make([]string, 0, len(policy.Providers))
	for name := range policy.Providers {
		if name != policy.DefaultProvider {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := policy.Providers[policy.DefaultProvider]; ok {
		names = append([]string{policy.DefaultProvider}, names...)
	}

	profiles := make([]provider.Profile, 0, len(names))
	for _, name := range names {
		p := policy.Providers[name]
		profiles = append(profiles, provider.Profile{
			Name:          name,
			Specialties:   p.Specialties,
			QualityWeight: p.QualityWeight,
			DefaultModel:  p.Model,
			CostPer1K:     blendedRate(policy.Pricing, name, p.Model),
			AvgLatency:    time.Duration(p.AvgLatencyMs) * time.Millisecond,
		})
	}
	return profiles
}

func blendedRate(pricing config.PricingConfig, providerName, model string) float64 {
	modelPricing, ok := pricing[providerName]
	if !ok {
		return 0
	}
	entry, ok := modelPricing[model]
	if !ok {
		entry, ok = modelPricing["default"]
		if !ok {
			return 0
		}
	}
	return (entry.PromptPer1K + entry.CompletionPer1K) / 2
}

// Route runs the full pipeline for one query. Constraint violations surface
// immediately, before any provider call; once a provider set is selected, a
// total execution failure degrades to the single-provider fallback.
func (o *Orchestrator) Route(ctx context.Context, query string, opts RouteOptions) (*Result, error) {
	requestID := uuid.NewString()
	started := time.Now()

	o.publish(events.Event{
		Type:      events.RoutingStarted,
		RequestID: requestID,
	})

	ctx, cancel := context.WithTimeout(ctx, o.policy.Timeouts.ConsensusTimeout())
	defer cancel()

	cls := classifier.Classify(query)

	sel, err := o.selector.Select(query, cls, opts.Constraints)
	if err != nil {
		o.publishFailure(requestID, err)
		return nil, err
	}

	var exec *executionResult
	if sel.RequiresConsensus {
		exec = o.executeParallel(ctx, query, sel.ConsensusProviders)
	} else {
		exec = o.executeSequential(ctx, query, []string{sel.Primary, sel.Secondary})
	}

	if len(exec.Responses) == 0 {
		// A canceled or timed-out request surfaces as such; the fallback is
		// for provider failures, not for a caller that has gone away.
		if ctxErr := ctx.Err(); ctxErr != nil {
			err := fmt.Errorf("request canceled: %w", ctxErr)
			o.publishFailure(requestID, err)
			return nil, err
		}
		failure := &AllProvidersFailedError{Errors: exec.Errors}
		log.Warn().
			Str("request_id", requestID).
			Int("providers", len(exec.Errors)).
			Msg("all providers failed, entering fallback")
		return o.fallback(ctx, requestID, started, query, cls, failure)
	}

	var consensusResult *consensus.Result
	if sel.RequiresConsensus {
		// A partial fan-out still reconciles whatever responses arrived.
		consensusResult, err = o.engine.Build(ctx, query, exec.Responses, o.consensusOptions(opts.Consensus))
		if err != nil {
			if ctx.Err() != nil {
				o.publishFailure(requestID, err)
				return nil, err
			}
			return o.fallback(ctx, requestID, started, query, cls, err)
		}
	}

	result := o.synthesize(requestID, started, cls, sel, exec, consensusResult)

	o.publish(events.Event{
		Type:      events.RoutingCompleted,
		RequestID: requestID,
		Payload: map[string]any{
			"providers_used": result.Metrics.ProvidersUsed,
			"consensus_used": result.Metrics.ConsensusUsed,
			"routing_time":   result.Metrics.RoutingTime.String(),
		},
	})
	return result, nil
}

// consensusOptions merges per-request overrides over the policy defaults.
func (o *Orchestrator) consensusOptions(overrides consensus.Options) consensus.Options {
	merged := overrides
	if merged.Algorithm == "" {
		merged.Algorithm = consensus.Algorithm(o.policy.Consensus.Algorithm)
	}
	if merged.MinimumAgreement <= 0 {
		merged.MinimumAgreement = o.policy.Consensus.MinimumAgreement
	}
	if merged.ConflictResolution == "" {
		merged.ConflictResolution = consensus.ConflictResolution(o.policy.Consensus.ConflictResolution)
	}
	if merged.Timeout <= 0 {
		merged.Timeout = o.policy.Timeouts.ConsensusTimeout()
	}
	return merged
}

// synthesize assembles the caller-facing result from the pipeline stages.
func (o *Orchestrator) synthesize(
	requestID string,
	started time.Time,
	cls classifier.Classification,
	sel *router.Selection,
	exec *executionResult,
	consensusResult *consensus.Result,
) *Result {
	finalAnswer := exec.Primary.Content
	confidence := exec.Primary.Confidence
	if consensusResult != nil {
		finalAnswer = consensusResult.FinalResponse
		confidence = consensusResult.Confidence
	}

	metrics := Metrics{
		ConsensusUsed:            consensusResult != nil,
		RoutingConfidence:        sel.RoutingConfidence,
		ProviderCosts:            make(map[string]float64, len(exec.Responses)),
		ProviderTimes:            make(map[string]time.Duration, len(exec.Responses)),
		TotalProvidersConsidered: len(o.selector.Profiles()),
		RoutingTime:              time.Since(started),
	}
	for _, resp := range exec.Responses {
		metrics.ProvidersUsed = append(metrics.ProvidersUsed, resp.Provider)
		metrics.ProviderCosts[resp.Provider] = resp.Metadata.Cost
		metrics.ProviderTimes[resp.Provider] = resp.Metadata.ResponseTime
	}

	return &Result{
		RequestID:      requestID,
		FinalAnswer:    finalAnswer,
		Classification: cls,
		Selection:      sel,
		Consensus:      consensusResult,
		Confidence:     confidence,
		Metrics:        metrics,
		Explanation:    buildExplanation(cls, sel, consensusResult),
	}
}

// fallback re-executes the query against the single default provider with no
// consensus. A second failure is fatal.
func (o *Orchestrator) fallback(
	ctx context.Context,
	requestID string,
	started time.Time,
	query string,
	cls classifier.Classification,
	original error,
) (*Result, error) {
	name := o.policy.DefaultProvider
	resp, err := o.queryProvider(ctx, name, query)
	if err != nil {
		exhausted := &FallbackExhaustedError{Original: original, Fallback: err}
		o.publishFailure(requestID, exhausted)
		return nil, exhausted
	}

	reasoning := fmt.Sprintf("Fallback due to multi-provider failure: %s", original)
	sel := &router.Selection{
		Primary:   name,
		Reasoning: reasoning,
	}
	exec := &executionResult{Responses: []*provider.Response{resp}, Primary: resp}

	result := o.synthesize(requestID, started, cls, sel, exec, nil)
	result.Confidence = resp.Confidence * 0.5

	o.publish(events.Event{
		Type:      events.RoutingCompleted,
		RequestID: requestID,
		Payload: map[string]any{
			"providers_used": result.Metrics.ProvidersUsed,
			"fallback":       true,
		},
	})
	return result, nil
}

// buildExplanation generates the natural-language routing explanation from
// the classification, the selection reasoning, and the consensus outcome.
func buildExplanation(cls classifier.Classification, sel *router.Selection, consensusResult *consensus.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Classified as a %s query (urgency %s, complexity %.2f) touching %s. ",
		cls.Type, cls.Urgency, cls.Complexity, strings.Join(cls.Domains, ", "))
	sb.WriteString("Routing: ")
	sb.WriteString(sel.Reasoning)
	sb.WriteString(".")

	if consensusResult != nil {
		if consensusResult.ConsensusReached {
			fmt.Fprintf(&sb, " Consensus reached across %d providers via %s (agreement %.2f).",
				len(consensusResult.ParticipatingProviders), consensusResult.ResolutionMethod, consensusResult.AgreementScore)
		} else {
			fmt.Fprintf(&sb, " Consensus was not reached (%s); the highest-confidence response was used.",
				consensusResult.ResolutionMethod)
		}
	}
	return sb.String()
}

func (o *Orchestrator) publish(event events.Event) {
	if o.bus != nil {
		o.bus.Publish(event)
	}
}

func (o *Orchestrator) publishFailure(requestID string, err error) {
	o.publish(events.Event{
		Type:      events.RoutingFailed,
		RequestID: requestID,
		Payload:   map[string]any{"error": err.Error()},
	})
}

// IsConstraintViolation reports whether the error was a routing constraint
// violation, which aborts before any provider call.
func IsConstraintViolation(err error) bool {
	var cve *router.ConstraintViolationError
	return errors.As(err, &cve)
}
