package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/paperdag/paperdag/internal/build"
	"github.com/paperdag/paperdag/internal/fileutil"
)

// Load reads the configuration with a fresh Loader.
func Load(opts ...LoaderOption) (*Config, error) {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Loader reads and merges the configuration sources.
type Loader struct {
	lock       sync.Mutex
	configFile string
}

// LoaderOption is a functional option for configuring a Loader.
type LoaderOption func(*Loader)

// WithConfigFile sets an explicit configuration file path. Without it the
// loader searches the working directory and the user config directory.
func WithConfigFile(configFile string) LoaderOption {
	return func(l *Loader) {
		l.configFile = configFile
	}
}

// NewLoader creates a Loader with the given options applied.
func NewLoader(opts ...LoaderOption) *Loader {
	loader := &Loader{}
	for _, opt := range opts {
		opt(loader)
	}
	return loader
}

// Load reads the optional .env file, the YAML configuration, and the
// environment, and returns the validated configuration. A missing config
// file is not an error; the defaults and the environment apply. An
// explicitly requested file that does not exist is an error.
func (l *Loader) Load() (*Config, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if fileutil.FileExists(".env") {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	l.configureViper(v)
	l.bindEnvironmentVariables(v)
	l.setDefaultValues(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	basePath, err := fileutil.ResolvePath(cfg.Storage.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage.base_path: %w", err)
	}
	cfg.Storage.BasePath = basePath

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) configureViper(v *viper.Viper) {
	if l.configFile == "" {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, build.Slug))
		v.SetConfigName("config")
	} else {
		v.SetConfigFile(l.configFile)
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix(strings.ToUpper(build.Slug))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// bindEnvironmentVariables registers the keys that carry no default, so
// environment overrides reach Unmarshal for them too.
func (l *Loader) bindEnvironmentVariables(v *viper.Viper) {
	l.bindEnv(v, "arxiv_topic_list", "ARXIV_TOPIC_LIST")
	l.bindEnv(v, "llm_filter_topic", "LLM_FILTER_TOPIC")
	l.bindEnv(v, "feishu_webhook_url", "FEISHU_WEBHOOK_URL")

	// The credential honors the conventional unprefixed name as well.
	prefix := strings.ToUpper(build.Slug) + "_"
	_ = v.BindEnv("llm.api_key", prefix+"LLM_API_KEY", "OPENAI_API_KEY")
}

func (l *Loader) bindEnv(v *viper.Viper, key, env string) {
	prefix := strings.ToUpper(build.Slug) + "_"
	_ = v.BindEnv(key, prefix+env)
}

func (l *Loader) setDefaultValues(v *viper.Viper) {
	// LLM settings
	v.SetDefault("llm.model_name", "gpt-3.5-turbo")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.max_concurrent_requests", 4)
	v.SetDefault("llm.language", "中文")

	// Storage settings
	v.SetDefault("storage.base_path", "./data")

	// Workflow settings
	v.SetDefault("arxiv_search_offset", 0)
	v.SetDefault("arxiv_search_limit", 100)
	v.SetDefault("enable_llm_filter", false)
	v.SetDefault("process_batch_size", 10)
	v.SetDefault("fetch_batch_size", 100)
}
