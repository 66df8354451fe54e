package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GoogleClient implements the Client interface for Gemini models.
type GoogleClient struct {
	client *genai.Client
}

// NewGoogleClient creates a new Google Gemini client.
func NewGoogleClient(apiKey string) (*GoogleClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &GoogleClient{client: client}, nil
}

// Name returns the provider identifier.
func (c *GoogleClient) Name() string {
	return "google"
}

// Models returns the list of supported Gemini models.
func (c *GoogleClient) Models() []string {
	return []string{
		"gemini-2.0-pro",
	}
}

// Query sends the text to Gemini and returns the response.
func (c *GoogleClient) Query(ctx context.Context, text string, opts QueryOptions) (*Response, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	resp, err := c.client.Models.GenerateContent(ctx, opts.Model, genai.Text(text), nil)
	if err != nil {
		return nil, &QueryError{Provider: c.Name(), Err: fmt.Errorf("google API error: %w", err)}
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &QueryError{Provider: c.Name(), Err: fmt.Errorf("google returned no candidates")}
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return newResponse(c.Name(), opts.Model, content, tokens), nil
}
