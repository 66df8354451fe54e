package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zen-systems/quorumgate/pkg/provider"
)

// executionResult is the outcome of one execution fan-out: every response
// obtained, the per-provider errors, and the primary response. Responses are
// ordered by call completion, not by router selection, and Primary is always
// Responses[0] — downstream metrics rely on that convention.
type executionResult struct {
	Responses []*provider.Response
	Primary   *provider.Response
	Errors    map[string]error
}

// executeParallel queries every named provider concurrently, each under its
// own timeout. Per-provider failures are captured and do not abort the
// others; the fan-out always waits for every in-flight call to settle.
func (o *Orchestrator) executeParallel(ctx context.Context, query string, providers []string) *executionResult {
	type outcome struct {
		name string
		resp *provider.Response
		err  error
	}

	results := make(chan outcome, len(providers))
	var wg sync.WaitGroup
	for _, name := range providers {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			resp, err := o.queryProvider(ctx, name, query)
			results <- outcome{name: name, resp: resp, err: err}
		}(name)
	}
	wg.Wait()
	close(results)

	exec := &executionResult{Errors: make(map[string]error)}
	for out := range results {
		if out.err != nil {
			exec.Errors[out.name] = out.err
			continue
		}
		exec.Responses = append(exec.Responses, out.resp)
	}
	if len(exec.Responses) > 0 {
		exec.Primary = exec.Responses[0]
	}
	return exec
}

// executeSequential tries the primary, then the secondary. The first success
// short-circuits; remaining candidates are not tried.
func (o *Orchestrator) executeSequential(ctx context.Context, query string, candidates []string) *executionResult {
	exec := &executionResult{Errors: make(map[string]error)}
	for _, name := range candidates {
		if name == "" {
			continue
		}
		resp, err := o.queryWithRetry(ctx, name, query)
		if err != nil {
			exec.Errors[name] = err
			continue
		}
		exec.Responses = append(exec.Responses, resp)
		exec.Primary = resp
		return exec
	}
	return exec
}

// queryWithRetry retries transient failures with exponential backoff.
// Non-transient errors fail immediately.
func (o *Orchestrator) queryWithRetry(ctx context.Context, name, query string) (*provider.Response, error) {
	retry := o.policy.Retry
	var lastErr error
	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		resp, err := o.queryProvider(ctx, name, query)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !provider.IsTransient(err) || attempt == retry.MaxRetries {
			break
		}

		log.Debug().
			Str("provider", name).
			Int("attempt", attempt).
			Err(err).
			Msg("transient provider failure, retrying")

		backoff := computeBackoff(retry.BaseBackoffMs, retry.MaxBackoffMs, attempt)
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// queryProvider issues one provider call under the configured per-provider
// timeout and attributes its estimated cost.
func (o *Orchestrator) queryProvider(ctx context.Context, name, query string) (*provider.Response, error) {
	client, ok := o.clients[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", name)
	}

	opts := provider.QueryOptions{
		Model:   o.policy.Providers[name].Model,
		Timeout: o.policy.Timeouts.ProviderTimeout(),
	}
	started := time.Now()
	resp, err := client.Query(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	if resp.Metadata.ResponseTime == 0 {
		resp.Metadata.ResponseTime = time.Since(started)
	}
	resp.Metadata.Cost = o.estimateCost(name, resp.Metadata.Model, resp.Metadata.TokensUsed)
	return resp, nil
}

// estimateCost prices a call from the policy's per-1k token table. Adapters
// report total tokens only, so the prompt and completion rates are blended.
func (o *Orchestrator) estimateCost(providerName, model string, tokens int) float64 {
	modelPricing, ok := o.policy.Pricing[providerName]
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
	rate := (entry.PromptPer1K + entry.CompletionPer1K) / 2
	return float64(tokens) / 1000.0 * rate
}

func computeBackoff(baseMs, maxMs, attempt int) time.Duration {
	backoff := time.Duration(baseMs) * time.Millisecond
	maxBackoff := time.Duration(maxMs) * time.Millisecond
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
