package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ModelsConfig selects the agent model per phase group.
type ModelsConfig struct {
	// Default is the model used for any phase without a specific override
	Default string `yaml:"default"`

	// Plan is the model for planning-heavy phases (DISCOVER, PLAN, ROADMAP)
	Plan string `yaml:"plan"`

	// Review is the model for review phases (REVIEW, FINAL_REVIEW)
	Review string `yaml:"review"`
}

// PlanModel returns the planning model, falling back to Default.
func (m ModelsConfig) PlanModel() string {
	if m.Plan != "" {
		return m.Plan
	}
	return m.Default
}

// ReviewModel returns the review model, falling back to Default.
func (m ModelsConfig) ReviewModel() string {
	if m.Review != "" {
		return m.Review
	}
	return m.Default
}

// Config represents maestro configuration options
type Config struct {
	// Mode selects the phase sequence (standard or comprehensive)
	Mode string `yaml:"mode"`

	// MaxCycles is the maximum number of full phase cycles before the run stops
	MaxCycles int `yaml:"max_cycles"`

	// CostLimitUSD is the cumulative spend ceiling for a run, in dollars
	CostLimitUSD float64 `yaml:"cost_limit_usd"`

	// StallTimeout is how long the working tree may go unmodified while the
	// agent is running before the iteration is considered stalled
	StallTimeout time.Duration `yaml:"stall_timeout"`

	// PollInterval is how often the liveness monitor samples the working tree
	PollInterval time.Duration `yaml:"poll_interval"`

	// HeartbeatInterval is how often a waiting-on-agent heartbeat is logged
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// BreakerWindow is the number of recent iterations the circuit breaker
	// inspects before it may trip
	BreakerWindow int `yaml:"breaker_window"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where logs will be written
	LogDir string `yaml:"log_dir"`

	// StateDir is the directory holding run state, history, and artifacts
	StateDir string `yaml:"state_dir"`

	// WorkDir is the working tree the agent operates on and the liveness
	// monitor watches
	WorkDir string `yaml:"work_dir"`

	// ClaudePath is the agent CLI binary to invoke
	ClaudePath string `yaml:"claude_path"`

	// Models contains per-phase model selection
	Models ModelsConfig `yaml:"models"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Mode:              "standard",
		MaxCycles:         10,
		CostLimitUSD:      10.00,
		StallTimeout:      15 * time.Minute,
		PollInterval:      2 * time.Second,
		HeartbeatInterval: 60 * time.Second,
		BreakerWindow:     3,
		LogLevel:          "info",
		LogDir:            ".maestro/logs",
		StateDir:          ".maestro",
		WorkDir:           ".",
		ClaudePath:        "claude",
		Models: ModelsConfig{
			Default: "sonnet",
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations arrive as strings ("15m", "2s"), so unmarshal into a
	// temporary struct and parse them explicitly.
	type yamlConfig struct {
		Mode              string       `yaml:"mode"`
		MaxCycles         int          `yaml:"max_cycles"`
		CostLimitUSD      float64      `yaml:"cost_limit_usd"`
		StallTimeout      string       `yaml:"stall_timeout"`
		PollInterval      string       `yaml:"poll_interval"`
		HeartbeatInterval string       `yaml:"heartbeat_interval"`
		BreakerWindow     int          `yaml:"breaker_window"`
		LogLevel          string       `yaml:"log_level"`
		LogDir            string       `yaml:"log_dir"`
		StateDir          string       `yaml:"state_dir"`
		WorkDir           string       `yaml:"work_dir"`
		ClaudePath        string       `yaml:"claude_path"`
		Models            ModelsConfig `yaml:"models"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if yamlCfg.Mode != "" {
		cfg.Mode = yamlCfg.Mode
	}
	if yamlCfg.MaxCycles != 0 {
		cfg.MaxCycles = yamlCfg.MaxCycles
	}
	if yamlCfg.CostLimitUSD != 0 {
		cfg.CostLimitUSD = yamlCfg.CostLimitUSD
	}
	if yamlCfg.StallTimeout != "" {
		d, err := time.ParseDuration(yamlCfg.StallTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid stall_timeout format %q: %w", yamlCfg.StallTimeout, err)
		}
		cfg.StallTimeout = d
	}
	if yamlCfg.PollInterval != "" {
		d, err := time.ParseDuration(yamlCfg.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid poll_interval format %q: %w", yamlCfg.PollInterval, err)
		}
		cfg.PollInterval = d
	}
	if yamlCfg.HeartbeatInterval != "" {
		d, err := time.ParseDuration(yamlCfg.HeartbeatInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid heartbeat_interval format %q: %w", yamlCfg.HeartbeatInterval, err)
		}
		cfg.HeartbeatInterval = d
	}
	if yamlCfg.BreakerWindow != 0 {
		cfg.BreakerWindow = yamlCfg.BreakerWindow
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.StateDir != "" {
		cfg.StateDir = yamlCfg.StateDir
	}
	if yamlCfg.WorkDir != "" {
		cfg.WorkDir = yamlCfg.WorkDir
	}
	if yamlCfg.ClaudePath != "" {
		cfg.ClaudePath = yamlCfg.ClaudePath
	}

	// The models section merges per key so an explicit empty override is
	// distinguishable from an absent one.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if modelsSection, exists := rawMap["models"]; exists && modelsSection != nil {
			models := yamlCfg.Models
			modelsMap, _ := modelsSection.(map[string]interface{})

			if _, exists := modelsMap["default"]; exists {
				cfg.Models.Default = models.Default
			}
			if _, exists := modelsMap["plan"]; exists {
				cfg.Models.Plan = models.Plan
			}
			if _, exists := modelsMap["review"]; exists {
				cfg.Models.Review = models.Review
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .maestro/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".maestro", "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(mode *string, maxCycles *int, costLimitUSD *float64, stallTimeout *time.Duration, workDir *string, logLevel *string, model *string) {
	if mode != nil {
		c.Mode = *mode
	}
	if maxCycles != nil {
		c.MaxCycles = *maxCycles
	}
	if costLimitUSD != nil {
		c.CostLimitUSD = *costLimitUSD
	}
	if stallTimeout != nil {
		c.StallTimeout = *stallTimeout
	}
	if workDir != nil {
		c.WorkDir = *workDir
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if model != nil {
		c.Models.Default = *model
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validModes := map[string]bool{
		"standard":      true,
		"comprehensive": true,
	}
	if !validModes[c.Mode] {
		return fmt.Errorf("invalid mode %q, must be one of: standard, comprehensive", c.Mode)
	}

	if c.MaxCycles < 1 {
		return fmt.Errorf("max_cycles must be >= 1, got %d", c.MaxCycles)
	}

	if c.CostLimitUSD <= 0 {
		return fmt.Errorf("cost_limit_usd must be > 0, got %.2f", c.CostLimitUSD)
	}

	if c.StallTimeout <= 0 {
		return fmt.Errorf("stall_timeout must be > 0, got %v", c.StallTimeout)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0, got %v", c.PollInterval)
	}

	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be > 0, got %v", c.HeartbeatInterval)
	}

	if c.BreakerWindow < 1 {
		return fmt.Errorf("breaker_window must be >= 1, got %d", c.BreakerWindow)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.ClaudePath == "" {
		return fmt.Errorf("claude_path cannot be empty")
	}

	if c.Models.Default == "" {
		return fmt.Errorf("models.default cannot be empty")
	}

	return nil
}
