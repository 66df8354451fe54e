package provider

import (
	"strings"
	"time"
)

// QueryOptions carries per-call parameters.
type QueryOptions struct {
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

// Metadata captures per-call accounting.
type Metadata struct {
	Model        string        `json:"model"`
	TokensUsed   int           `json:"tokens_used"`
	ResponseTime time.Duration `json:"response_time"`
	Cost         float64       `json:"cost"`
}

// Response is the result of one provider call.
type Response struct {
	Provider   string    `json:"provider"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	Metadata   Metadata  `json:"metadata"`
	Timestamp  time.Time `json:"timestamp"`
}

// Providers do not report calibrated confidence; this is the prior assigned
// to a non-empty answer. Downstream weighting rescales it.
const defaultConfidence = 0.85

// newResponse assembles a Response with the default confidence prior.
func newResponse(providerName, model, content string, tokensUsed int) *Response {
	confidence := defaultConfidence
	if strings.TrimSpace(content) == "" {
		confidence = 0
	}
	return &Response{
		Provider:   providerName,
		Content:    content,
		Confidence: confidence,
		Metadata: Metadata{
			Model:      model,
			TokensUsed: tokensUsed,
		},
		Timestamp: time.Now().UTC(),
	}
}

const defaultMaxTokens = 4096

func maxTokensOrDefault(opts QueryOptions) int64 {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return defaultMaxTokens
}

func toLower(s string) string {
	return strings.ToLower(s)
}

func containsFold(lowerText, keyword string) bool {
	return strings.Contains(lowerText, strings.ToLower(keyword))
}
