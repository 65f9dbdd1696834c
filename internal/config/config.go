// Package config loads CIP-Agent's YAML configuration, following the
// teacher's viper-backed Load/DefaultConfig/applyDefaults structure
// but retargeted to spec.md §6's model/search/limits/tnr/gates/logging
// sections.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the full set of recognized configuration keys, all
// optional with defaults applied by applyDefaults.
type Config struct {
	Model   ModelConfig   `mapstructure:"model"`
	Search  SearchConfig  `mapstructure:"search"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	TNR     TNRConfig     `mapstructure:"tnr"`
	Gates   GatesConfig   `mapstructure:"gates"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ModelConfig routes to the external language model.
type ModelConfig struct {
	Provider string `mapstructure:"provider"`
	Name     string `mapstructure:"name"`
}

// SearchConfig bounds the Controller's investigation and planning loop.
type SearchConfig struct {
	MaxSteps              int  `mapstructure:"max_steps"`
	DiffsPerStep           int  `mapstructure:"diffs_per_step"`
	Finalists              int  `mapstructure:"finalists"`
	RetriesPerStep         int  `mapstructure:"retries_per_step"`
	InvestigationsEnabled  bool `mapstructure:"investigations_enabled"`
	UseLandmarks           bool `mapstructure:"use_landmarks"`
	MaxLandmarks           int  `mapstructure:"max_landmarks"`
}

// LimitsConfig bounds what a single diff may touch.
type LimitsConfig struct {
	MaxLOCChanges     int `mapstructure:"max_loc_changes"`
	MaxFilesPerDiff   int `mapstructure:"max_files_per_diff"`
	SlicePaddingLines int `mapstructure:"slice_padding_lines"`
}

// TNRConfig governs the Transactional No-Regression executor.
type TNRConfig struct {
	ActionsPerTxn         int  `mapstructure:"actions_per_txn"`
	RequireMuNonworsening bool `mapstructure:"require_mu_nonworsening"`
}

// GatesConfig toggles which gates run per transaction attempt.
type GatesConfig struct {
	Static        bool `mapstructure:"static"`
	TargetedTests bool `mapstructure:"targeted_tests"`
	Smoke         bool `mapstructure:"smoke"` // reserved, unused
}

// LoggingConfig controls artifact output location and stdout echo.
type LoggingConfig struct {
	Dir    string `mapstructure:"dir"`
	Stream bool   `mapstructure:"stream"`
}

// Load reads configPath if given and present, else returns
// DefaultConfig. Keys the source YAML omits fall back to spec.md §6's
// documented defaults, including the three booleans (gates.static,
// gates.targeted_tests, tnr.require_mu_nonworsening) that default to
// true — distinguished from an explicit "false" via viper's IsSet.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}

	applyDefaults(&cfg)
	applyBoolDefaults(v, &cfg)
	return &cfg, nil
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			MaxSteps:       4,
			DiffsPerStep:   3,
			Finalists:      2,
			RetriesPerStep: 1,
			MaxLandmarks:   4,
		},
		Limits: LimitsConfig{
			MaxLOCChanges:     12,
			MaxFilesPerDiff:   2,
			SlicePaddingLines: 80,
		},
		TNR: TNRConfig{
			ActionsPerTxn:         3,
			RequireMuNonworsening: true,
		},
		Gates: GatesConfig{
			Static:        true,
			TargetedTests: true,
		},
		Logging: LoggingConfig{
			Dir: ".agent_runs",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Search.MaxSteps == 0 {
		cfg.Search.MaxSteps = defaults.Search.MaxSteps
	}
	if cfg.Search.DiffsPerStep == 0 {
		cfg.Search.DiffsPerStep = defaults.Search.DiffsPerStep
	}
	if cfg.Search.Finalists == 0 {
		cfg.Search.Finalists = defaults.Search.Finalists
	}
	if cfg.Search.RetriesPerStep == 0 {
		cfg.Search.RetriesPerStep = defaults.Search.RetriesPerStep
	}
	if cfg.Search.MaxLandmarks == 0 {
		cfg.Search.MaxLandmarks = defaults.Search.MaxLandmarks
	}
	if cfg.Limits.MaxLOCChanges == 0 {
		cfg.Limits.MaxLOCChanges = defaults.Limits.MaxLOCChanges
	}
	if cfg.Limits.MaxFilesPerDiff == 0 {
		cfg.Limits.MaxFilesPerDiff = defaults.Limits.MaxFilesPerDiff
	}
	if cfg.Limits.SlicePaddingLines == 0 {
		cfg.Limits.SlicePaddingLines = defaults.Limits.SlicePaddingLines
	}
	if cfg.TNR.ActionsPerTxn == 0 {
		cfg.TNR.ActionsPerTxn = defaults.TNR.ActionsPerTxn
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = defaults.Logging.Dir
	}
}

// applyBoolDefaults restores the three true-by-default booleans when
// the source YAML omitted them entirely; mapstructure unmarshals an
// absent key to Go's zero value (false), which would otherwise
// silently turn these gates off.
func applyBoolDefaults(v *viper.Viper, cfg *Config) {
	if !v.IsSet("gates.static") {
		cfg.Gates.Static = true
	}
	if !v.IsSet("gates.targeted_tests") {
		cfg.Gates.TargetedTests = true
	}
	if !v.IsSet("tnr.require_mu_nonworsening") {
		cfg.TNR.RequireMuNonworsening = true
	}
}
