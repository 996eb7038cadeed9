package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentloop/logging"
)

// Supported provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Supported action languages.
const (
	LanguageFunctionCalling = "function_calling"
	LanguageJSONAction      = "json_action"
)

// Config is the root configuration.
type Config struct {
	Provider     ProviderConfig     `yaml:"provider"`
	Agent        AgentConfig        `yaml:"agent"`
	Tools        ToolsConfig        `yaml:"tools"`
	Capabilities CapabilitiesConfig `yaml:"capabilities"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ProviderConfig selects and configures the model provider.
type ProviderConfig struct {
	Name        string  `yaml:"name" env:"AGENTLOOP_PROVIDER"`
	Model       string  `yaml:"model" env:"AGENTLOOP_MODEL"`
	APIKey      string  `yaml:"api_key" env:"AGENTLOOP_API_KEY"`
	BaseURL     string  `yaml:"base_url" env:"AGENTLOOP_BASE_URL"`
	Temperature float64 `yaml:"temperature" env:"AGENTLOOP_TEMPERATURE"`
	MaxTokens   int     `yaml:"max_tokens" env:"AGENTLOOP_MAX_TOKENS"`
}

// GoalConfig mirrors core.Goal.
type GoalConfig struct {
	Priority    int    `yaml:"priority"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// AgentConfig configures the loop.
type AgentConfig struct {
	Name          string        `yaml:"name" env:"AGENTLOOP_AGENT_NAME"`
	Instructions  string        `yaml:"instructions" env:"AGENTLOOP_INSTRUCTIONS"`
	Goals         []GoalConfig  `yaml:"goals"`
	Language      string        `yaml:"language" env:"AGENTLOOP_LANGUAGE"`
	MaxIterations int           `yaml:"max_iterations" env:"AGENTLOOP_MAX_ITERATIONS"`
	MaxDuration   time.Duration `yaml:"max_duration" env:"AGENTLOOP_MAX_DURATION"`
	TimeZone      string        `yaml:"time_zone" env:"AGENTLOOP_TIME_ZONE"`
	Stream        bool          `yaml:"stream" env:"AGENTLOOP_STREAM"`
}

// ToolsConfig enables the built-in tool sets.
type ToolsConfig struct {
	Workspace  string `yaml:"workspace" env:"AGENTLOOP_WORKSPACE"`
	Files      bool   `yaml:"files" env:"AGENTLOOP_TOOLS_FILES"`
	Terminate  bool   `yaml:"terminate" env:"AGENTLOOP_TOOLS_TERMINATE"`
	Delegation bool   `yaml:"delegation" env:"AGENTLOOP_TOOLS_DELEGATION"`
	// Prompts enables prompt_llm, prompt_expert, create_plan and track_progress.
	Prompts bool `yaml:"prompts" env:"AGENTLOOP_TOOLS_PROMPTS"`
}

// CapabilitiesConfig enables the built-in capabilities.
type CapabilitiesConfig struct {
	TimeAware         bool `yaml:"time_aware" env:"AGENTLOOP_CAP_TIME_AWARE"`
	PlanFirst         bool `yaml:"plan_first" env:"AGENTLOOP_CAP_PLAN_FIRST"`
	ProgressTracking  bool `yaml:"progress_tracking" env:"AGENTLOOP_CAP_PROGRESS_TRACKING"`
	ProgressFrequency int  `yaml:"progress_frequency" env:"AGENTLOOP_CAP_PROGRESS_FREQUENCY"`
	Metrics           bool `yaml:"metrics" env:"AGENTLOOP_CAP_METRICS"`
	Tracing           bool `yaml:"tracing" env:"AGENTLOOP_CAP_TRACING"`
}

// LoggingConfig configures the RunLogger.
type LoggingConfig struct {
	Level     string `yaml:"level" env:"AGENTLOOP_LOG_LEVEL"`
	Format    string `yaml:"format" env:"AGENTLOOP_LOG_FORMAT"`
	AddSource bool   `yaml:"add_source" env:"AGENTLOOP_LOG_ADD_SOURCE"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{Name: ProviderOpenAI, Model: "gpt-4o"},
		Agent: AgentConfig{
			Name:          "agent",
			Language:      LanguageFunctionCalling,
			MaxIterations: 10,
			MaxDuration:   180 * time.Second,
		},
		Tools: ToolsConfig{Workspace: ".", Files: true, Terminate: true},
		Capabilities: CapabilitiesConfig{
			ProgressFrequency: 1,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the configuration. An empty path skips the YAML file; a path
// that does not exist is an error.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(path); err != nil {
		return nil, err
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	cfg.resolveAPIKey()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv loads a .env file from the directory of configPath, or from the
// working directory when configPath is empty. Missing files are ignored and
// existing environment variables are never overwritten.
func LoadDotEnv(configPath string) error {
	dir := "."
	if configPath != "" {
		dir = filepath.Dir(configPath)
	}

	p := filepath.Join(dir, ".env")
	if _, err := os.Stat(p); err != nil {
		return nil
	}

	if err := godotenv.Load(p); err != nil {
		return fmt.Errorf("config: load %s: %w", p, err)
	}

	return nil
}

// resolveAPIKey falls back to the provider's conventional variable.
func (c *Config) resolveAPIKey() {
	if c.Provider.APIKey != "" {
		return
	}

	switch c.Provider.Name {
	case ProviderOpenAI:
		c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		c.Provider.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider.Name {
	case ProviderOpenAI, ProviderAnthropic:
		if c.Provider.APIKey == "" {
			errs = append(errs, fmt.Errorf("provider %s: api key is required", c.Provider.Name))
		}
	case ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("provider: unknown name %q", c.Provider.Name))
	}

	if c.Agent.Name == "" {
		errs = append(errs, errors.New("agent: name is required"))
	}

	if c.Agent.MaxIterations < 0 {
		errs = append(errs, errors.New("agent: max_iterations must not be negative"))
	}

	if c.Agent.MaxDuration < 0 {
		errs = append(errs, errors.New("agent: max_duration must not be negative"))
	}

	switch c.Agent.Language {
	case LanguageFunctionCalling, LanguageJSONAction:
	default:
		errs = append(errs, fmt.Errorf("agent: unknown language %q", c.Agent.Language))
	}

	if c.Agent.TimeZone != "" {
		if _, err := time.LoadLocation(c.Agent.TimeZone); err != nil {
			errs = append(errs, fmt.Errorf("agent: time_zone: %w", err))
		}
	}

	if c.Capabilities.ProgressTracking && c.Capabilities.ProgressFrequency < 1 {
		errs = append(errs, errors.New("capabilities: progress_frequency must be at least 1"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, fmt.Errorf("logging: unknown format %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}

	return nil
}

// LoggerConfig converts the logging section. The level must be valid.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	level, _ := logging.ParseLevel(c.Logging.Level)

	cfg := logging.DefaultLoggerConfig()
	cfg.Level = level
	cfg.Format = c.Logging.Format
	cfg.AddSource = c.Logging.AddSource

	return cfg
}
