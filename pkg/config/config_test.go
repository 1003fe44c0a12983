package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tissuemap/pkg/colormap"
	"tissuemap/pkg/dispersion"
	"tissuemap/pkg/visualization"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "tissue", cfg.Display.Mode)
	assert.Equal(t, 1e6, cfg.Display.Frequency)
	assert.True(t, cfg.Display.Weighted)
	assert.Positive(t, cfg.Processing.NumCores)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
inputs:
  mesh: head.ply
display:
  mode: conductivity
  frequency: 1.0e8
  modes:
    conductivity:
      palette: hot
      log: false
    density:
      palette: Purple-Green
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "head.ply", cfg.Inputs.Mesh)
	assert.Equal(t, "conductivity", cfg.Display.Mode)
	assert.Equal(t, 1e8, cfg.Display.Frequency)
	// untouched sections keep their defaults
	assert.Equal(t, "3.0", cfg.Display.FieldStrength)
	assert.Equal(t, "z", cfg.Output.SliceAxis)

	overrides, err := cfg.Overrides()
	require.NoError(t, err)
	require.Contains(t, overrides, visualization.ModeConductivity)
	cond := overrides[visualization.ModeConductivity]
	require.NotNil(t, cond.Palette)
	assert.Equal(t, colormap.Hot, *cond.Palette)
	require.NotNil(t, cond.UseLog)
	assert.False(t, *cond.UseLog)

	density := overrides[visualization.ModeDensity]
	require.NotNil(t, density.Palette)
	assert.Equal(t, colormap.PurpleGreen, *density.Palette)
	assert.Nil(t, density.UseLog)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("display: [unclosed"), 0644))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	palette := filepath.Join(dir, "palette.yaml")
	require.NoError(t, os.WriteFile(palette, []byte("display:\n  modes:\n    density:\n      palette: rainbow\n"), 0644))
	_, err = LoadConfig(palette)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		target error
	}{
		{"mode", func(c *Config) { c.Display.Mode = "opacity" }, visualization.ErrUnknownMode},
		{"frequency", func(c *Config) { c.Display.Frequency = 1 }, dispersion.ErrFrequencyOutOfRange},
		{"field strength", func(c *Config) { c.Display.FieldStrength = "7.0" }, nil},
		{"mode override", func(c *Config) {
			c.Display.Modes = map[string]ModeSettings{"opacity": {}}
		}, visualization.ErrUnknownMode},
		{"downsample", func(c *Config) { c.Inputs.Downsample = 0 }, nil},
		{"cores", func(c *Config) { c.Processing.NumCores = -1 }, nil},
		{"axis", func(c *Config) { c.Output.SliceAxis = "w" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tissuemap.yaml")

	cfg := DefaultConfig()
	seismic := colormap.Seismic
	yes := true
	cfg.Display.Modes = map[string]ModeSettings{"permittivity": {Palette: &seismic, Log: &yes}}
	cfg.Inputs.Volume = "head.vti"
	cfg.Output.SaveVolume = true

	require.NoError(t, SaveConfig(cfg, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "palette: seismic")
	assert.Contains(t, string(data), "saveVolume: true")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), loaded)
}
