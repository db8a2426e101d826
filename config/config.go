// Package config loads the planmesh CLI configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/planmesh/a2a"
	"github.com/hupe1980/planmesh/engine"
	"github.com/hupe1980/planmesh/logging"
)

// Config represents the complete planmesh configuration.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Logging    LoggingConfig    `yaml:"logging"`
	Model      ModelConfig      `yaml:"model"`
	Agents     []AgentConfig    `yaml:"agents"`
	Retry      RetryConfig      `yaml:"retry"`
	NATS       NATSConfig       `yaml:"nats"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
}

// EngineConfig mirrors engine.Config.
type EngineConfig struct {
	Workers           int    `yaml:"workers"`
	Aggregation       string `yaml:"aggregation"` // "concatenate" or "last"
	Separator         string `yaml:"separator"`
	MaxConcurrentRuns int    `yaml:"max_concurrent_runs"`
	EventBufferSize   int    `yaml:"event_buffer_size"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// ModelConfig configures the language model used by local agents and the
// evaluation judge.
type ModelConfig struct {
	// Provider is "anthropic", "openai", "mock" or empty for no model.
	Provider    string        `yaml:"provider"`
	Name        string        `yaml:"name"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int64         `yaml:"max_tokens"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`

	// MaxCalls caps model calls per process across local agents. Zero
	// means unlimited.
	MaxCalls int `yaml:"max_calls"`
}

// AgentConfig declares one delegation target. Agents with a URL are remote
// A2A agents; agents without one are answered by the configured model.
type AgentConfig struct {
	ID      string   `yaml:"id"`
	URL     string   `yaml:"url,omitempty"`
	Default bool     `yaml:"default,omitempty"`
	Skills  []string `yaml:"skills,omitempty"`
}

// RetryConfig configures retries of remote agent calls.
type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
}

// NATSConfig configures event publishing over NATS. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// EvaluationConfig enables the LLM judge for completed runs.
type EvaluationConfig struct {
	Enabled         bool   `yaml:"enabled"`
	SuccessCriteria string `yaml:"success_criteria"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	retry := a2a.DefaultRetryConfig()

	return &Config{
		Engine: EngineConfig{
			Workers:           engine.DefaultConfig.Workers,
			Aggregation:       engine.DefaultConfig.Aggregation.String(),
			Separator:         engine.DefaultConfig.Separator,
			MaxConcurrentRuns: engine.DefaultConfig.MaxConcurrentRuns,
			EventBufferSize:   engine.DefaultConfig.EventBufferSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Model: ModelConfig{
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     2 * time.Minute,
		},
		Retry: RetryConfig{
			MaxRetries:        retry.MaxRetries,
			BackoffBase:       retry.BackoffBase,
			BackoffMultiplier: retry.BackoffMultiplier,
			MaxBackoff:        retry.MaxBackoff,
		},
		NATS: NATSConfig{
			SubjectPrefix: "planmesh",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.Workers < 1 {
		errs = append(errs, errors.New("engine.workers must be at least 1"))
	}
	if _, err := engine.ParseAggregationPolicy(c.Engine.Aggregation); err != nil {
		errs = append(errs, fmt.Errorf("engine.aggregation: %w", err))
	}
	if c.Engine.MaxConcurrentRuns < 0 {
		errs = append(errs, errors.New("engine.max_concurrent_runs must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	switch c.Model.Provider {
	case "", "mock", "anthropic", "openai":
	default:
		errs = append(errs, fmt.Errorf("model.provider %q is not supported", c.Model.Provider))
	}
	if c.Model.MaxCalls < 0 {
		errs = append(errs, errors.New("model.max_calls must not be negative"))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, errors.New("model.temperature must be between 0 and 2"))
	}

	seen := make(map[string]bool, len(c.Agents))
	defaults := 0
	for i, a := range c.Agents {
		if a.ID == "" {
			errs = append(errs, fmt.Errorf("agents[%d].id is required", i))
			continue
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Errorf("agents[%d]: duplicate id %q", i, a.ID))
		}
		seen[a.ID] = true
		if a.URL == "" && c.Model.Provider == "" {
			errs = append(errs, fmt.Errorf("agents[%d]: local agent %q needs model.provider", i, a.ID))
		}
		if a.Default {
			defaults++
		}
	}
	if defaults > 1 {
		errs = append(errs, errors.New("at most one agent may be the default"))
	}
	if c.Evaluation.Enabled && c.Model.Provider == "" {
		errs = append(errs, errors.New("evaluation.enabled needs model.provider"))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("retry.max_retries must not be negative"))
	}
	if c.Retry.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("retry.backoff_multiplier must be at least 1"))
	}

	return errors.Join(errs...)
}

// EngineOptions converts the engine section.
func (c *Config) EngineOptions() (engine.Config, error) {
	policy, err := engine.ParseAggregationPolicy(c.Engine.Aggregation)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Workers:           c.Engine.Workers,
		Aggregation:       policy,
		Separator:         c.Engine.Separator,
		MaxConcurrentRuns: c.Engine.MaxConcurrentRuns,
		EventBufferSize:   c.Engine.EventBufferSize,
	}, nil
}

// RetryOptions converts the retry section.
func (c *Config) RetryOptions() a2a.RetryConfig {
	return a2a.RetryConfig{
		MaxRetries:        c.Retry.MaxRetries,
		BackoffBase:       c.Retry.BackoffBase,
		BackoffMultiplier: c.Retry.BackoffMultiplier,
		MaxBackoff:        c.Retry.MaxBackoff,
	}
}

// Environment variables applied by ApplyEnv.
const (
	EnvLogLevel     = "PLANMESH_LOG_LEVEL"
	EnvWorkers      = "PLANMESH_WORKERS"
	EnvNATSURL      = "PLANMESH_NATS_URL"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
)

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Engine.Workers = n
	}
	if v, ok := lookup(EnvNATSURL); ok && v != "" {
		c.NATS.URL = v
	}
	if c.Model.APIKey == "" {
		switch c.Model.Provider {
		case "anthropic":
			c.Model.APIKey, _ = lookup(EnvAnthropicKey)
		case "openai":
			c.Model.APIKey, _ = lookup(EnvOpenAIKey)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads path (when non-empty), applies the environment and validates.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
