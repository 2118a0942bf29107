// Package config holds the tunables spec §5 names for the analysis
// passes and the CLI: the dataflow step budget and the wall-clock
// timeout. Loaded from an optional YAML file via gopkg.in/yaml.v3 rather
// than hand-rolled flag parsing for structured config.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"decomp/internal/derrors"
)

// Config is the set of knobs a run of the decompiler reads once at
// startup and threads down into the passes that need them.
type Config struct {
	// StepBudget bounds how many instructions a single dataflow
	// exploration may visit before a pass gives up on it (spec §5,
	// default 35).
	StepBudget int `yaml:"step_budget"`

	// TimeoutSeconds bounds the wall-clock time a single contract may
	// spend decompiling before TimeBudgetExceeded aborts it (spec §5,
	// default 180).
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Default returns the configuration spec §5 specifies when no file is
// given.
func Default() Config {
	return Config{
		StepBudget:     35,
		TimeoutSeconds: 180,
	}
}

// Load reads path as YAML over Default(), so a partial file only
// overrides the fields it sets.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, derrors.NewInputError(path, "reading config: %v", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, derrors.NewInputError(path, "malformed config: %v", err)
	}
	return cfg, nil
}
