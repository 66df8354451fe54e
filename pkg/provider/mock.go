package provider

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient returns deterministic responses for local runs and tests.
type MockClient struct {
	name            string
	responses       map[string]string
	defaultResponse string
	confidence      float64
	latency         time.Duration
	err             error

	mu    sync.Mutex
	calls int
}

// NewMockClient creates a mock client with a default response.
func NewMockClient(name string) *MockClient {
	if name == "" {
		name = "mock"
	}
	return &MockClient{
		name:            name,
		responses:       make(map[string]string),
		defaultResponse: "mock response:",
		confidence:      defaultConfidence,
	}
}

// WithResponse scripts the reply for a specific query text.
func (c *MockClient) WithResponse(text, reply string) *MockClient {
	c.responses[text] = reply
	return c
}

// WithDefaultResponse sets the reply used when no scripted response matches.
func (c *MockClient) WithDefaultResponse(reply string) *MockClient {
	c.defaultResponse = reply
	return c
}

// WithConfidence sets the confidence reported on every response.
func (c *MockClient) WithConfidence(confidence float64) *MockClient {
	c.confidence = confidence
	return c
}

// WithLatency makes every call sleep before answering.
func (c *MockClient) WithLatency(d time.Duration) *MockClient {
	c.latency = d
	return c
}

// WithError makes every call fail with the given error.
func (c *MockClient) WithError(err error) *MockClient {
	c.err = err
	return c
}

// Name returns the provider identifier.
func (c *MockClient) Name() string {
	return c.name
}

// Models returns the list of supported mock models.
func (c *MockClient) Models() []string {
	return []string{"mock-1"}
}

// Calls returns how many times Query was invoked.
func (c *MockClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Query returns a deterministic response for the text.
func (c *MockClient) Query(ctx context.Context, text string, opts QueryOptions) (*Response, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.latency > 0 {
		timer := time.NewTimer(c.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if c.err != nil {
		return nil, c.err
	}

	model := opts.Model
	if model == "" {
		model = "mock-1"
	}

	content, ok := c.responses[text]
	if !ok {
		content = fmt.Sprintf("%s\n%s", c.defaultResponse, text)
	}

	resp := newResponse(c.name, model, content, len(content)/4)
	resp.Confidence = c.confidence
	return resp, nil
}
