// Package config loads the application settings from a YAML file, the
// process environment, and an optional .env file in the working
// directory. Every key can be overridden through a PAPERDAG_-prefixed
// environment variable (PAPERDAG_LLM_API_KEY overrides llm.api_key).
package config

import "fmt"

// Config is the resolved application configuration.
type Config struct {
	LLM     LLM     `mapstructure:"llm"`
	Storage Storage `mapstructure:"storage"`

	// ArxivTopicList holds the catalog query topics. A single
	// comma-separated string is accepted in place of a list.
	ArxivTopicList    []string `mapstructure:"arxiv_topic_list"`
	ArxivSearchOffset int      `mapstructure:"arxiv_search_offset"`
	ArxivSearchLimit  int      `mapstructure:"arxiv_search_limit"`

	// EnableLLMFilter switches the summarize source from the catalog to
	// the filtered_papers store written by the filter workflow.
	EnableLLMFilter bool   `mapstructure:"enable_llm_filter"`
	LLMFilterTopic  string `mapstructure:"llm_filter_topic"`

	// ProcessBatchSize caps how many papers one summarize iteration
	// downloads and summarizes.
	ProcessBatchSize int `mapstructure:"process_batch_size"`
	// FetchBatchSize is the chunk size for fetch workflow writes.
	FetchBatchSize int `mapstructure:"fetch_batch_size"`

	FeishuWebhookURL string `mapstructure:"feishu_webhook_url"`

	// ConfigPath is the file the settings were read from, empty when the
	// defaults and environment were the only sources.
	ConfigPath string `mapstructure:"-"`
}

// LLM configures the chat completion client shared by the LLM stages.
type LLM struct {
	ModelName             string  `mapstructure:"model_name"`
	APIKey                string  `mapstructure:"api_key"`
	BaseURL               string  `mapstructure:"base_url"`
	Temperature           float64 `mapstructure:"temperature"`
	MaxTokens             int     `mapstructure:"max_tokens"`
	MaxConcurrentRequests int     `mapstructure:"max_concurrent_requests"`
	Language              string  `mapstructure:"language"`
}

// Storage configures where the stores and caches live.
type Storage struct {
	BasePath string `mapstructure:"base_path"`
}

// Validate checks the invariants every workflow relies on. Requirements
// specific to one workflow (webhook URL, filter topic) are checked where
// that workflow is built.
func (c *Config) Validate() error {
	if c.Storage.BasePath == "" {
		return fmt.Errorf("storage.base_path must not be empty")
	}
	if c.ArxivSearchOffset < 0 {
		return fmt.Errorf("arxiv_search_offset must not be negative: %d", c.ArxivSearchOffset)
	}
	if c.ArxivSearchLimit < 1 {
		return fmt.Errorf("arxiv_search_limit must be positive: %d", c.ArxivSearchLimit)
	}
	if c.ProcessBatchSize < 1 {
		return fmt.Errorf("process_batch_size must be positive: %d", c.ProcessBatchSize)
	}
	if c.FetchBatchSize < 1 {
		return fmt.Errorf("fetch_batch_size must be positive: %d", c.FetchBatchSize)
	}
	if c.LLM.MaxConcurrentRequests < 1 {
		return fmt.Errorf("llm.max_concurrent_requests must be positive: %d", c.LLM.MaxConcurrentRequests)
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("llm.max_tokens must be positive: %d", c.LLM.MaxTokens)
	}
	return nil
}

// Example returns a fully populated configuration for documentation and
// tests.
func Example() *Config {
	return &Config{
		LLM: LLM{
			ModelName:             "gpt-4o-mini",
			APIKey:                "sk-example",
			BaseURL:               "https://api.openai.com/v1",
			Temperature:           0.7,
			MaxTokens:             2000,
			MaxConcurrentRequests: 4,
			Language:              "中文",
		},
		Storage:           Storage{BasePath: "./data"},
		ArxivTopicList:    []string{"RAG", "KV Cache"},
		ArxivSearchOffset: 0,
		ArxivSearchLimit:  100,
		EnableLLMFilter:   true,
		LLMFilterTopic:    "efficient LLM inference",
		ProcessBatchSize:  10,
		FetchBatchSize:    100,
		FeishuWebhookURL:  "https://open.feishu.cn/open-apis/bot/v2/hook/example",
	}
}
