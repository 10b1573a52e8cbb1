// Package llm provides a client for OpenAI-compatible chat completion APIs.
// It works against api.openai.com as well as self-hosted servers that speak
// the same protocol (Ollama, vLLM, llama.cpp server, LocalAI).
package llm

import (
	"context"
	"fmt"
	"time"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one chat completion call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	Stop        []string
}

// ChatResponse is the assistant's reply to a ChatRequest.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Usage reports token consumption for a single call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client sends chat requests to an LLM service.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Config holds transport-level settings for a client. Model and sampling
// parameters travel with each ChatRequest instead.
type Config struct {
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultConfig returns a Config with sane retry and timeout defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Timeout:         5 * time.Minute,
		MaxRetries:      3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

// APIError is a non-2xx response from the LLM service.
type APIError struct {
	StatusCode int
	Message    string
}

// NewAPIError creates an APIError from a response status and body.
func NewAPIError(statusCode int, message string) *APIError {
	return &APIError{StatusCode: statusCode, Message: message}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("llm: API error (status %d): %s", e.StatusCode, e.Message)
}
