// Package config loads the store's tunable limits and adapter settings
// (spec §6's config surface table) from a YAML file, following the same
// gopkg.in/yaml.v3-based approach the rest of this module's corpus uses
// for structured config.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in spec §6.
type Config struct {
	MaxListElements  uint64 `yaml:"max_list_elements"`
	MaxMemoryBytes   uint64 `yaml:"max_memory_bytes"`
	MaxFlagCount     int    `yaml:"max_flag_count"`
	ListLimitDefault int    `yaml:"list_limit_default"`
	ListLimitHardCap int    `yaml:"list_limit_hardcap"`

	IDLGlob  string `yaml:"idl_glob"`
	HTTPAddr string `yaml:"http_addr"`
}

// Default returns the spec §6 defaults.
func Default() Config {
	return Config{
		MaxListElements:  1 << 24,
		MaxMemoryBytes:   64 << 20,
		MaxFlagCount:     32,
		ListLimitDefault: 1000,
		ListLimitHardCap: 100000,
		IDLGlob:          "*.wit",
		HTTPAddr:         ":8443",
	}
}

// Load reads a YAML config file, starting from Default() so any field the
// file omits keeps its default value.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// EffectiveListLimit clamps a requested list_keys limit to at most the
// configured hard cap, substituting ListLimitDefault when requested is 0 or
// negative, so a single list_keys call can never force an unbounded engine
// scan.
func (c Config) EffectiveListLimit(requested int) int {
	if requested <= 0 {
		requested = c.ListLimitDefault
	}
	if requested > c.ListLimitHardCap {
		requested = c.ListLimitHardCap
	}
	return requested
}
