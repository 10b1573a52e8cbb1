package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

const chatEndpoint = "/chat/completions"

// ChatClient talks to an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	config     Config
	httpClient *HTTPClient
}

var _ Client = (*ChatClient)(nil)

// New creates a ChatClient. An API key is optional so the client also works
// against local servers that do not authenticate.
func New(opts ...Option) *ChatClient {
	cfg := NewConfig(opts...)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	return &ChatClient{
		config:     cfg,
		httpClient: NewHTTPClient(cfg),
	}
}

// Chat sends the messages and returns the complete response.
func (c *ChatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body, err := c.buildRequestBody(req)
	if err != nil {
		return nil, err
	}

	respBody, err := c.httpClient.Do(ctx, c.config.BaseURL+chatEndpoint, body, c.authHeaders())
	if err != nil {
		return nil, err
	}
	defer func() { _ = respBody.Close() }()

	var resp chatCompletionResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return nil, fmt.Errorf("llm: failed to decode response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: no choices in response")
	}

	return &ChatResponse{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: resp.Choices[0].FinishReason,
		Usage:        resp.Usage,
	}, nil
}

func (c *ChatClient) buildRequestBody(req *ChatRequest) ([]byte, error) {
	chatReq := chatCompletionRequest{
		Model:    req.Model,
		Messages: req.Messages,
	}

	if req.Temperature != nil {
		chatReq.Temperature = req.Temperature
	}
	if req.MaxTokens != nil {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.TopP != nil {
		chatReq.TopP = req.TopP
	}
	if len(req.Stop) > 0 {
		chatReq.Stop = req.Stop
	}

	return json.Marshal(chatReq)
}

func (c *ChatClient) authHeaders() map[string]string {
	// Only set Authorization if an API key is configured.
	if c.config.APIKey != "" {
		return map[string]string{
			"Authorization": "Bearer " + c.config.APIKey,
		}
	}
	return nil
}

// API request/response types (OpenAI-compatible).

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}
