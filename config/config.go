// Package config loads the host configuration from YAML with environment overrides
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	wasmctx "github.com/govm-net/wasmlib/context"
	"github.com/govm-net/wasmlib/core"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the host configuration
type Config struct {
	State      StateConfig      `yaml:"state"`
	Runner     RunnerConfig     `yaml:"runner"`
	Repository RepositoryConfig `yaml:"repository"`
	Log        LogConfig        `yaml:"log"`
	// ChainID is the base58 chain id reported to contracts, empty means all zero
	ChainID string `yaml:"chainID"`
}

type StateConfig struct {
	Backend string `yaml:"backend"`
	DBPath  string `yaml:"dbPath"`
}

type RunnerConfig struct {
	MemoryLimitPages uint32  `yaml:"memoryLimitPages"`
	Rate             float64 `yaml:"rate"`
	Burst            int     `yaml:"burst"`
	Gas              int64   `yaml:"gas"`
	Metrics          *bool   `yaml:"metrics"`
}

type RepositoryConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration
func Default() Config {
	metrics := false
	return Config{
		State: StateConfig{
			Backend: string(wasmctx.MemoryBackendType),
			DBPath:  "./wasmlib.db",
		},
		Runner: RunnerConfig{
			Metrics: &metrics,
		},
		Repository: RepositoryConfig{
			Dir: "./contracts",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromPath loads configPath, or the first default candidate that exists when
// configPath is empty, on top of Default. Environment overrides are applied last.
func LoadFromPath(configPath string) (Config, error) {
	cfg := Default()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"wasmlib.yaml",
			"configs/wasmlib.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if configPath != "" {
				return cfg, fmt.Errorf("failed to read config: %w", err)
			}
			continue
		}

		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Merge copies every field set in src over dst
func Merge(dst *Config, src Config) {
	if src.State.Backend != "" {
		dst.State.Backend = src.State.Backend
	}
	if src.State.DBPath != "" {
		dst.State.DBPath = src.State.DBPath
	}
	if src.Runner.MemoryLimitPages != 0 {
		dst.Runner.MemoryLimitPages = src.Runner.MemoryLimitPages
	}
	if src.Runner.Rate != 0 {
		dst.Runner.Rate = src.Runner.Rate
	}
	if src.Runner.Burst != 0 {
		dst.Runner.Burst = src.Runner.Burst
	}
	if src.Runner.Gas != 0 {
		dst.Runner.Gas = src.Runner.Gas
	}
	if src.Runner.Metrics != nil {
		dst.Runner.Metrics = src.Runner.Metrics
	}
	if src.Repository.Dir != "" {
		dst.Repository.Dir = src.Repository.Dir
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.ChainID != "" {
		dst.ChainID = src.ChainID
	}
}

// ApplyEnvOverrides applies the WASMLIB_* environment variables
func ApplyEnvOverrides(cfg *Config) {
	if v := env("WASMLIB_STATE_BACKEND"); v != "" {
		cfg.State.Backend = v
	}
	if v := env("WASMLIB_DB_PATH"); v != "" {
		cfg.State.DBPath = v
	}
	if v := env("WASMLIB_REPOSITORY_DIR"); v != "" {
		cfg.Repository.Dir = v
	}
	if v := env("WASMLIB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v, err := strconv.ParseFloat(env("WASMLIB_RATE"), 64); err == nil {
		cfg.Runner.Rate = v
	}
	if v, err := strconv.ParseInt(env("WASMLIB_GAS"), 10, 64); err == nil {
		cfg.Runner.Gas = v
	}
	if v, err := strconv.ParseBool(env("WASMLIB_METRICS")); err == nil {
		cfg.Runner.Metrics = &v
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Validate checks the configuration
func (c *Config) Validate() error {
	switch wasmctx.BackendType(c.State.Backend) {
	case wasmctx.MemoryBackendType:
	case wasmctx.DBBackendType:
		if c.State.DBPath == "" {
			return fmt.Errorf("db backend requires a database path")
		}
	default:
		return fmt.Errorf("unknown state backend: %q", c.State.Backend)
	}

	if c.Runner.Rate < 0 {
		return fmt.Errorf("invalid rate: %v", c.Runner.Rate)
	}
	if c.Runner.Burst < 0 {
		return fmt.Errorf("invalid burst: %d", c.Runner.Burst)
	}
	if c.Runner.Gas < 0 {
		return fmt.Errorf("invalid gas limit: %d", c.Runner.Gas)
	}
	if c.Repository.Dir == "" {
		return fmt.Errorf("repository directory is empty")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if _, err := c.Chain(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses the configured log level
func (c *Config) LogLevel() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return level, fmt.Errorf("invalid log level: %w", err)
	}
	return level, nil
}

// Chain parses the configured chain id
func (c *Config) Chain() (core.ScChainID, error) {
	if c.ChainID == "" {
		return core.ScChainID{}, nil
	}
	return core.ChainIDFromString(c.ChainID)
}

// MetricsEnabled reports whether runner metrics are collected
func (c *Config) MetricsEnabled() bool {
	return c.Runner.Metrics != nil && *c.Runner.Metrics
}

// BackendParams returns the constructor params of the state backend of contract
func (c *Config) BackendParams(contract string) map[string]any {
	return map[string]any{
		"db_path":   c.State.DBPath,
		"partition": contract,
	}
}
