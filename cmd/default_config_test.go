package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daysim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	// GIVEN the daysim.yaml shipped at the repo root
	cfg, err := LoadConfig(filepath.Join("..", "daysim.yaml"))
	require.NoError(t, err)

	// THEN it validates and matches the documented values
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30, cfg.Days)
	assert.Equal(t, "phases", cfg.Trace)
	assert.Equal(t, 4, cfg.Economy.Farms)
	assert.Equal(t, 8, cfg.Economy.Fields)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "days: 3\neconomy:\n  farms: 2\n")

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	want := DefaultConfig()
	want.Days = 3
	want.Economy.Farms = 2
	assert.Equal(t, want, cfg)
}

func TestLoadConfig_UnknownKeyIsAnError(t *testing.T) {
	// GIVEN a typo in a key
	path := writeConfig(t, "dayz: 3\n")

	// THEN strict parsing rejects it
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"negative days", func(c *Config) { c.Days = -1 }, true},
		{"bad trace level", func(c *Config) { c.Trace = "verbose" }, true},
		{"empty trace level", func(c *Config) { c.Trace = "" }, false},
		{"no farms", func(c *Config) { c.Economy.Farms = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
