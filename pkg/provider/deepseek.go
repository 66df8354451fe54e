package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekClient implements the Client interface for DeepSeek models.
// DeepSeek uses an OpenAI-compatible API format.
type DeepSeekClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// deepseekRequest represents the OpenAI-compatible request format.
type deepseekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepseekMessage `json:"messages"`
	MaxTokens   int64             `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// deepseekResponse represents the OpenAI-compatible response format.
type deepseekResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// NewDeepSeekClient creates a new DeepSeek client.
func NewDeepSeekClient(apiKey string) (*DeepSeekClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}

	return &DeepSeekClient{
		apiKey:     apiKey,
		baseURL:    deepseekBaseURL,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the provider identifier.
func (c *DeepSeekClient) Name() string {
	return "deepseek"
}

// Models returns the list of supported DeepSeek models.
func (c *DeepSeekClient) Models() []string {
	return []string{
		"deepseek-chat",
		"deepseek-reasoner",
	}
}

// Query sends the text to DeepSeek and returns the response.
func (c *DeepSeekClient) Query(ctx context.Context, text string, opts QueryOptions) (*Response, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	reqBody := deepseekRequest{
		Model: opts.Model,
		Messages: []deepseekMessage{
			{Role: "user", Content: text},
		},
		MaxTokens: maxTokensOrDefault(opts),
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &QueryError{Provider: c.Name(), Temporary: true, Err: fmt.Errorf("deepseek API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &QueryError{Provider: c.Name(), Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	var deepseekResp deepseekResponse
	if err := json.Unmarshal(body, &deepseekResp); err != nil {
		return nil, &QueryError{Provider: c.Name(), Status: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	if deepseekResp.Error != nil {
		return nil, &QueryError{Provider: c.Name(), Status: resp.StatusCode, Err: fmt.Errorf("deepseek API error: %s (type: %s, code: %s)",
			deepseekResp.Error.Message, deepseekResp.Error.Type, deepseekResp.Error.Code)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &QueryError{Provider: c.Name(), Status: resp.StatusCode, Err: fmt.Errorf("deepseek API returned status %d", resp.StatusCode)}
	}

	if len(deepseekResp.Choices) == 0 {
		return nil, &QueryError{Provider: c.Name(), Err: fmt.Errorf("deepseek returned no choices")}
	}

	content := deepseekResp.Choices[0].Message.Content
	return newResponse(c.Name(), opts.Model, content, deepseekResp.Usage.TotalTokens), nil
}
