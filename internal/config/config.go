// Package config loads the maestro runtime configuration from TOML.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full runtime configuration.
type Config struct {
	Backend  BackendConfig  `toml:"backend"`
	Agents   []AgentConfig  `toml:"agents"`
	Run      RunConfig      `toml:"run"`
	Trace    TraceConfig    `toml:"trace"`
	Observer ObserverConfig `toml:"observer"`
}

// BackendConfig configures the OpenAI-compatible backend.
type BackendConfig struct {
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	MaxAttempts int     `toml:"max_attempts"`
	Temperature float64 `toml:"temperature"`
}

// AgentConfig declares one agent of the ensemble.
type AgentConfig struct {
	ID           string `toml:"id"`
	Role         string `toml:"role"`
	Description  string `toml:"description"`
	SystemPrompt string `toml:"system_prompt"`
	Model        string `toml:"model"`
}

// RunConfig selects the orchestration strategy and its parameters.
type RunConfig struct {
	Strategy  string `toml:"strategy"` // sequential | parallel | hierarchical | debate | voting
	Manager   string `toml:"manager"`  // hierarchical only
	MaxRounds int    `toml:"max_rounds"`
	ErrorMode string `toml:"error_mode"`
}

// TraceConfig configures the optional trace sink.
type TraceConfig struct {
	SQLitePath string `toml:"sqlite_path"`
}

// ObserverConfig toggles OTEL instrumentation.
type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Load reads the TOML config at path.
func Load(path string) (Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadDefault looks for config.toml next to the binary, then in the
// working directory.
func LoadDefault() (Config, error) {
	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), "config.toml")
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return Load("config.toml")
}

func (c *Config) applyDefaults() {
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "https://api.openai.com/v1"
	}
	if c.Backend.MaxAttempts <= 0 {
		c.Backend.MaxAttempts = 3
	}
	if c.Run.Strategy == "" {
		c.Run.Strategy = "sequential"
	}
	if c.Run.ErrorMode == "" {
		c.Run.ErrorMode = "fail-fast"
	}
	if c.Run.MaxRounds <= 0 {
		c.Run.MaxRounds = 3
	}
}
