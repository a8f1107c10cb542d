package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/daysim/daysim/sim/economy"
	"github.com/daysim/daysim/sim/trace"
)

// Config represents the full daysim.yaml structure.
// Every section must be listed to satisfy KnownFields(true) strict parsing:
// a typo in a key is an error, not a silently ignored setting.
type Config struct {
	Days          int            `yaml:"days"`
	Workers       int            `yaml:"workers"` // <= 0 uses GOMAXPROCS
	Seed          int64          `yaml:"seed"`
	HaltOnFault   bool           `yaml:"halt_on_fault"`
	Decentralized bool           `yaml:"decentralized"`
	Trace         string         `yaml:"trace"` // none, faults or phases
	Economy       economy.Config `yaml:"economy"`
}

// DefaultConfig is used for every key the file (or a missing file) leaves out.
func DefaultConfig() Config {
	return Config{
		Days:    30,
		Workers: 0,
		Seed:    42,
		Trace:   string(trace.TraceLevelNone),
		Economy: economy.DefaultConfig(),
	}
}

// LoadConfig parses a daysim.yaml on top of DefaultConfig.
// Uses strict field checking.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the run cannot start with.
func (c Config) Validate() error {
	if c.Days < 0 {
		return fmt.Errorf("days must be >= 0, got %d", c.Days)
	}
	if !trace.IsValidTraceLevel(c.Trace) {
		return fmt.Errorf("unknown trace level %q (want none, faults or phases)", c.Trace)
	}
	return c.Economy.Validate()
}
