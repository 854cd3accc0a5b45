// Package config handles configuration loading and management for agentmesh.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for agentmesh.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Estimate   EstimateConfig   `mapstructure:"estimate"`
	History    HistoryConfig    `mapstructure:"history"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
}

// LLMConfig selects the text-generation backend.
type LLMConfig struct {
	// Backend is "openai" or "anthropic".
	Backend string `mapstructure:"backend"`
}

// OpenAIConfig holds OpenAI-compatible API settings. BaseURL supports
// OpenRouter and other compatible gateways.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// SchedulingConfig holds run loop timing settings.
type SchedulingConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	SubtaskTimeout time.Duration `mapstructure:"subtask_timeout"`
	TaskTimeout    time.Duration `mapstructure:"task_timeout"`
}

// MatchingConfig holds capability matching settings.
type MatchingConfig struct {
	// Mode is "substring" or "tags".
	Mode string `mapstructure:"mode"`
}

// EstimateConfig holds resource estimation settings.
type EstimateConfig struct {
	// UnitDuration is the wall time one complexity point is assumed to take.
	UnitDuration time.Duration `mapstructure:"unit_duration"`
}

// HistoryConfig holds task history persistence settings.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables history.
	Path string `mapstructure:"path"`
}

// DispatchConfig holds tool dispatch settings.
type DispatchConfig struct {
	// SimulatedDelay is the artificial latency for non-LLM tool execution.
	SimulatedDelay time.Duration `mapstructure:"simulated_delay"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, AGENTMESH_*)
// 2. Project config (.agentmesh.yaml in current directory or parent)
// 3. User config (~/.config/agentmesh/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("AGENTMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// DefaultHistoryPath returns the default task history database path.
func DefaultHistoryPath() string {
	return filepath.Join(getUserConfigDir(), "history.db")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.backend", "openai")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("scheduling.poll_interval", "50ms")
	v.SetDefault("scheduling.subtask_timeout", "5m")
	v.SetDefault("scheduling.task_timeout", "30m")

	v.SetDefault("matching.mode", "substring")
	v.SetDefault("estimate.unit_duration", "5m")
	v.SetDefault("history.path", "")
	v.SetDefault("dispatch.simulated_delay", "500ms")
}

// getUserConfigDir returns the XDG config directory for agentmesh.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "agentmesh")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "agentmesh")
	}
	return filepath.Join(home, ".config", "agentmesh")
}

// findProjectConfig searches for .agentmesh.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".agentmesh.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM:    LLMConfig{Backend: "openai"},
		OpenAI: OpenAIConfig{Model: "gpt-4o-mini"},
		Scheduling: SchedulingConfig{
			PollInterval:   50 * time.Millisecond,
			SubtaskTimeout: 5 * time.Minute,
			TaskTimeout:    30 * time.Minute,
		},
		Matching: MatchingConfig{Mode: "substring"},
		Estimate: EstimateConfig{UnitDuration: 5 * time.Minute},
		Dispatch: DispatchConfig{SimulatedDelay: 500 * time.Millisecond},
	}
}
