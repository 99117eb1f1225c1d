package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/llmshim/llm"
	"github.com/aschepis/backscratcher/llmshim/llm/retry"
	"github.com/aschepis/backscratcher/llmshim/metrics"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ProviderConfig holds the credentials and endpoint for one provider.
type ProviderConfig struct {
	APIKeys      []string `yaml:"api_keys,omitempty"`     // Rotated in order; exhausted keys are dropped
	APIBase      string   `yaml:"api_base,omitempty"`     // Alternate endpoint (default: official API)
	Organization string   `yaml:"organization,omitempty"` // OpenAI only
}

// Config is the llmshim configuration file.
type Config struct {
	// DefaultModel is the registry name used when none is given.
	DefaultModel string `yaml:"default_model,omitempty"`

	// Provider credentials
	OpenAI    ProviderConfig `yaml:"openai,omitempty"`
	Anthropic ProviderConfig `yaml:"anthropic,omitempty"`

	// Transport and retry settings shared by every provider
	HTTPProxy   string        `yaml:"http_proxy,omitempty"`
	MaxRetry    int           `yaml:"max_retry,omitempty"`
	BackoffUnit time.Duration `yaml:"backoff_unit,omitempty"` // e.g. "1s"
	MaxBackoff  time.Duration `yaml:"max_backoff,omitempty"`  // e.g. "1m"

	// Models holds per-model option overrides keyed by registry name.
	Models map[string]llm.Overrides `yaml:"models,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DefaultModel: llm.DefaultChatModel,
		MaxRetry:     retry.DefaultMaxRetry,
		BackoffUnit:  retry.DefaultBackoffUnit,
		MaxBackoff:   retry.DefaultMaxBackoff,
		Models:       make(map[string]llm.Overrides),
	}
}

// GetConfigPath returns the default config file path.
// Can be overridden via LLMSHIM_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("LLMSHIM_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.llmshim/config.yaml"
	}
	return filepath.Join(homeDir, ".llmshim", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Load builds the configuration from defaults, the config file at path (if
// it exists) and environment overrides, in that order of increasing precedence.
func Load(path string) (*Config, error) {
	// Step 1: Set defaults
	cfg := Default()

	// Step 2: Merge the config file onto the defaults
	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", expandedPath, err)
		}

		if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config file: %w", err)
		}
	}

	// Step 3: Apply environment variable overrides
	applyOpenAIEnv(&cfg.OpenAI)
	applyAnthropicEnv(&cfg.Anthropic)
	if proxy := getProxyFromEnv(); proxy != "" {
		cfg.HTTPProxy = proxy
	}

	if cfg.Models == nil {
		cfg.Models = make(map[string]llm.Overrides)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that are not validated by the models themselves.
func (c *Config) Validate() error {
	if c.MaxRetry < 0 {
		return llm.NewInvalidConfigurationError("max_retry must not be negative, got %d", c.MaxRetry)
	}
	if c.BackoffUnit < 0 || c.MaxBackoff < 0 {
		return llm.NewInvalidConfigurationError("backoff durations must not be negative")
	}
	return nil
}

// Provider returns the section for a provider name.
func (c *Config) Provider(name string) (ProviderConfig, error) {
	switch name {
	case llm.ProviderOpenAI:
		return c.OpenAI, nil
	case llm.ProviderAnthropic:
		return c.Anthropic, nil
	default:
		return ProviderConfig{}, fmt.Errorf("unknown provider %q", name)
	}
}

// ModelSpec assembles the spec for building model name served by provider.
func (c *Config) ModelSpec(name, provider string, logger zerolog.Logger, collector *metrics.Collector) (llm.ModelSpec, error) {
	p, err := c.Provider(provider)
	if err != nil {
		return llm.ModelSpec{}, err
	}
	return llm.ModelSpec{
		Name:         name,
		APIKeys:      append([]string(nil), p.APIKeys...),
		MaxRetry:     c.MaxRetry,
		BackoffUnit:  c.BackoffUnit,
		MaxBackoff:   c.MaxBackoff,
		BaseURL:      p.APIBase,
		ProxyURL:     c.HTTPProxy,
		Organization: p.Organization,
		Options:      c.Models[name].Clone(),
		Logger:       logger,
		Metrics:      collector,
	}, nil
}

// Save saves the configuration to the specified path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	// Ensure directory exists
	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write file
	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
