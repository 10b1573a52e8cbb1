package llm

import "time"

// Option is a functional option for configuring a client.
type Option func(*Config)

// WithAPIKey sets the API key sent as a bearer token.
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL sets the base URL of the chat completions API.
func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.BaseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

// WithBackoff sets the backoff configuration for retries.
func WithBackoff(initial, max time.Duration, multiplier float64) Option {
	return func(c *Config) {
		c.InitialInterval = initial
		c.MaxInterval = max
		c.Multiplier = multiplier
	}
}

// NewConfig creates a Config from defaults with the given options applied.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// RequestOption is a functional option for configuring a ChatRequest.
type RequestOption func(*ChatRequest)

// WithTemperature sets the sampling temperature for the request.
func WithTemperature(temp float64) RequestOption {
	return func(r *ChatRequest) {
		r.Temperature = &temp
	}
}

// WithMaxTokens caps the number of tokens in the completion.
func WithMaxTokens(tokens int) RequestOption {
	return func(r *ChatRequest) {
		r.MaxTokens = &tokens
	}
}

// WithTopP sets the top_p (nucleus sampling) parameter.
func WithTopP(topP float64) RequestOption {
	return func(r *ChatRequest) {
		r.TopP = &topP
	}
}

// WithStop sets the stop sequences for the request.
func WithStop(stop ...string) RequestOption {
	return func(r *ChatRequest) {
		r.Stop = stop
	}
}

// NewChatRequest creates a ChatRequest with the given model, messages, and options.
func NewChatRequest(model string, messages []Message, opts ...RequestOption) *ChatRequest {
	req := &ChatRequest{
		Model:    model,
		Messages: messages,
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}
