package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zen-systems/quorumgate/pkg/events"
	"github.com/zen-systems/quorumgate/pkg/provider"
)

// Engine reconciles provider responses. It is stateless across requests:
// all per-run state lives in a session created and discarded per Build call.
type Engine struct {
	profiles map[string]provider.Profile
	// rank preserves the configured profile order; expert tie-breaking is
	// first-configured, not first-completed.
	rank map[string]int
	bus  *events.Bus
}

// NewEngine creates a consensus engine over the configured provider profiles.
func NewEngine(profiles []provider.Profile, bus *events.Bus) *Engine {
	byName := make(map[string]provider.Profile, len(profiles))
	rank := make(map[string]int, len(profiles))
	for i, profile := range profiles {
		byName[profile.Name] = profile
		rank[profile.Name] = i
	}
	return &Engine{profiles: byName, rank: rank, bus: bus}
}

// Build runs the configured algorithm over the responses and produces a
// single reconciled result. It accepts any non-empty response set: a partial
// fan-out (fewer responses than requested) is still reconciled.
func (e *Engine) Build(ctx context.Context, query string, responses []*provider.Response, opts Options) (*Result, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("consensus requires at least one response")
	}

	applyOptionDefaults(&opts)
	s := newSession(query, responses, opts, e.profiles, e.rank)

	e.publish(events.Event{
		Type:      events.ConsensusStarted,
		SessionID: s.id,
		Payload:   map[string]any{"provider_count": len(responses), "algorithm": string(opts.Algorithm)},
	})

	if err := ctx.Err(); err != nil {
		e.publish(events.Event{
			Type:      events.ConsensusFailed,
			SessionID: s.id,
			Payload:   map[string]any{"error": err.Error()},
		})
		return nil, fmt.Errorf("consensus canceled: %w", err)
	}

	var result *Result
	switch {
	case len(responses) == 1:
		result = singleResponseResult(s)
	case opts.Algorithm == AlgorithmQuorumPhased:
		result = runQuorumPhased(s)
	case opts.Algorithm == AlgorithmWeightedVoting:
		result = runWeightedVoting(s)
	case opts.Algorithm == AlgorithmExpertArbitration:
		result = runExpertArbitration(s)
	default:
		e.publish(events.Event{
			Type:      events.ConsensusFailed,
			SessionID: s.id,
			Payload:   map[string]any{"error": fmt.Sprintf("unknown algorithm %q", opts.Algorithm)},
		})
		return nil, fmt.Errorf("unknown consensus algorithm %q", opts.Algorithm)
	}

	eventType := events.ConsensusCompleted
	if !result.Success {
		eventType = events.ConsensusFailed
	}
	e.publish(events.Event{
		Type:      eventType,
		SessionID: s.id,
		Payload: map[string]any{
			"result":            result,
			"consensus_reached": result.ConsensusReached,
			"agreement_score":   result.AgreementScore,
			"resolution_method": result.ResolutionMethod,
		},
	})

	log.Debug().
		Str("session_id", s.id).
		Str("algorithm", string(opts.Algorithm)).
		Float64("agreement", result.AgreementScore).
		Bool("reached", result.ConsensusReached).
		Msg("consensus finished")

	return result, nil
}

func (e *Engine) publish(event events.Event) {
	if e.bus != nil {
		e.bus.Publish(event)
	}
}

func applyOptionDefaults(opts *Options) {
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmWeightedVoting
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MinimumAgreement <= 0 {
		opts.MinimumAgreement = 0.66
	}
	if opts.ConflictResolution == "" {
		opts.ConflictResolution = ResolutionMajority
	}
}

// singleResponseResult handles the degenerate one-response set: nothing to
// reconcile, full agreement.
func singleResponseResult(s *session) *Result {
	resp := s.responses[0]
	return &Result{
		Success:                true,
		ConsensusReached:       true,
		FinalResponse:          resp.Content,
		Confidence:             clamp01(resp.Confidence),
		ParticipatingProviders: s.participants(),
		AgreementScore:         1.0,
		ResolutionMethod:       "single_response",
		Metadata: ResultMetadata{
			ConsensusTime: s.elapsed(),
			Iterations:    1,
			TotalCost:     s.totalCost(),
		},
	}
}

// failureResult degrades a failed quorum to the highest-confidence response
// at half its confidence.
func failureResult(s *session, reason string) *Result {
	best := s.responses[0]
	for _, resp := range s.responses[1:] {
		if resp.Confidence > best.Confidence {
			best = resp
		}
	}

	return &Result{
		Success:                false,
		ConsensusReached:       false,
		FinalResponse:          best.Content,
		Confidence:             clamp01(best.Confidence * 0.5),
		ParticipatingProviders: s.participants(),
		AgreementScore:         0,
		ResolutionMethod:       "fallback_" + reason,
		Metadata: ResultMetadata{
			ConsensusTime: s.elapsed(),
			TotalCost:     s.totalCost(),
		},
	}
}
