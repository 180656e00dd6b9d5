// Package config handles configuration loading for tandem. It supports XDG
// config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the engine.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Steering  SteeringConfig  `mapstructure:"steering"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Providers []ProviderEntry `mapstructure:"providers"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
}

// PlannerConfig bounds plan generation.
type PlannerConfig struct {
	MaxSteps         int `mapstructure:"max_steps"`
	MaxSubAgentSteps int `mapstructure:"max_subagent_steps"`
}

// SteeringConfig toggles the advisory steering pass.
type SteeringConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	DelegationThreshold float64 `mapstructure:"delegation_threshold"`
}

// ToolsConfig bounds tool execution.
type ToolsConfig struct {
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// AgentsConfig locates the sub-agent definitions file.
type AgentsConfig struct {
	DefinitionsFile string `mapstructure:"definitions_file"`
}

// JournalConfig controls the run journal.
type JournalConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"`
}

// ProviderEntry configures one external session provider.
type ProviderEntry struct {
	Name      string        `mapstructure:"name"`
	Transport string        `mapstructure:"transport"`
	Command   string        `mapstructure:"command"`
	Args      []string      `mapstructure:"args"`
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.tandem.yaml in current directory or parent)
// 3. User config (~/.config/tandem/config.yaml)
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

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
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
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("planner.max_steps", cfg.Planner.MaxSteps)
	v.Set("planner.max_subagent_steps", cfg.Planner.MaxSubAgentSteps)
	v.Set("steering.enabled", cfg.Steering.Enabled)
	v.Set("steering.delegation_threshold", cfg.Steering.DelegationThreshold)
	v.Set("tools.max_concurrent", cfg.Tools.MaxConcurrent)
	v.Set("tools.default_timeout", cfg.Tools.DefaultTimeout.String())
	v.Set("agents.definitions_file", cfg.Agents.DefinitionsFile)
	v.Set("journal.enabled", cfg.Journal.Enabled)
	v.Set("journal.path", cfg.Journal.Path)
	v.Set("journal.retention", cfg.Journal.Retention.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config file path if one exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("planner.max_steps", 10)
	v.SetDefault("planner.max_subagent_steps", 5)

	v.SetDefault("steering.enabled", true)
	v.SetDefault("steering.delegation_threshold", 0.7)

	v.SetDefault("tools.max_concurrent", 4)
	v.SetDefault("tools.default_timeout", "30s")

	v.SetDefault("agents.definitions_file", "")

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "")
	v.SetDefault("journal.retention", "720h")
}

// getUserConfigDir returns the XDG config directory for tandem.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tandem")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "tandem")
	}
	return filepath.Join(home, ".config", "tandem")
}

// findProjectConfig searches for .tandem.yaml in the current directory and
// its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".tandem.yaml")
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

// Default returns a Config with built-in defaults.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Planner: PlannerConfig{
			MaxSteps:         10,
			MaxSubAgentSteps: 5,
		},
		Steering: SteeringConfig{
			Enabled:             true,
			DelegationThreshold: 0.7,
		},
		Tools: ToolsConfig{
			MaxConcurrent:  4,
			DefaultTimeout: 30 * time.Second,
		},
		Journal: JournalConfig{
			Enabled:   true,
			Retention: 30 * 24 * time.Hour,
		},
	}
}
