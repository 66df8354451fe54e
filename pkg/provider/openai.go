package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// OpenAIClient implements the Client interface for OpenAI models.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	client := openai.NewClient()
	return &OpenAIClient{client: client}, nil
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Models returns the list of supported OpenAI models.
func (c *OpenAIClient) Models() []string {
	return []string{
		"gpt-5.2-instant",
		"gpt-5.2-thinking",
		"gpt-5.2-pro",
	}
}

// Query sends the text to OpenAI and returns the response.
func (c *OpenAIClient) Query(ctx context.Context, text string, opts QueryOptions) (*Response, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(text),
		},
		MaxCompletionTokens: openai.Int(maxTokensOrDefault(opts)),
	})
	if err != nil {
		return nil, &QueryError{Provider: c.Name(), Err: fmt.Errorf("openai API error: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return nil, &QueryError{Provider: c.Name(), Err: fmt.Errorf("openai returned no choices")}
	}

	content := resp.Choices[0].Message.Content
	return newResponse(c.Name(), opts.Model, content, int(resp.Usage.TotalTokens)), nil
}
