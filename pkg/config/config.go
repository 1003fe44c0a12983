// Package config provides configuration loading and management for tissuemap.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"gopkg.in/yaml.v3"

	"tissuemap/pkg/colormap"
	"tissuemap/pkg/dispersion"
	"tissuemap/pkg/visualization"
)

// ModeSettings overrides the palette or scale of one visualization mode
type ModeSettings struct {
	Palette *colormap.Palette `yaml:"palette,omitempty"`
	Log     *bool             `yaml:"log,omitempty"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input files of the head model
	Inputs struct {
		// Properties is the tissue property database (JSON)
		Properties string `yaml:"properties"`

		// Labels is the tissue label table (JSON)
		Labels string `yaml:"labels"`

		// Mesh is the merged PLY mesh with per-vertex tissue ids
		Mesh string `yaml:"mesh"`

		// Volume is the VTI label volume, used for voxel counts and slices
		Volume string `yaml:"volume"`

		// RemapBackground turns the segmentation's background label into 0
		RemapBackground bool `yaml:"remapBackground"`

		// Downsample reduces the volume by this factor before use
		Downsample int `yaml:"downsample"`
	} `yaml:"inputs"`

	// Display parameters
	Display struct {
		Mode          string  `yaml:"mode"`
		Frequency     float64 `yaml:"frequency"`
		FieldStrength string  `yaml:"fieldStrength"`
		Element       string  `yaml:"element"`

		// Weighted weights the statistics by voxel count
		Weighted bool `yaml:"weighted"`

		// Robust uses IQR bounds instead of the raw range
		Robust bool `yaml:"robust"`

		// Compress centres the palette on the median tissue
		Compress bool `yaml:"compress"`

		// HideMissing makes tissues without data transparent instead of gray
		HideMissing bool `yaml:"hideMissing"`

		// Modes holds per-mode palette and log scale overrides
		Modes map[string]ModeSettings `yaml:"modes,omitempty"`
	} `yaml:"display"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many goroutines decompose the mesh
		NumCores int `yaml:"numCores"`

		// CheckStraddling reports faces whose vertices disagree on the tissue
		CheckStraddling bool `yaml:"checkStraddling"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Dir receives the color table, colorbar and slice images
		Dir string `yaml:"dir"`

		// SliceAxis is the axis of the exported slice
		SliceAxis string `yaml:"sliceAxis"`

		// SaveSequence saves every slice along SliceAxis
		SaveSequence bool `yaml:"saveSequence"`

		// SaveVolume writes the remapped and downsampled volume as VTI
		SaveVolume bool `yaml:"saveVolume"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Inputs.RemapBackground = true
	cfg.Inputs.Downsample = 1

	cfg.Display.Mode = visualization.ModeTissue.String()
	cfg.Display.Frequency = visualization.DefaultFrequency
	cfg.Display.FieldStrength = visualization.DefaultFieldStrength
	cfg.Display.Element = visualization.DefaultElement
	cfg.Display.Weighted = true
	cfg.Display.Compress = true

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.CheckStraddling = true

	cfg.Output.Dir = "output"
	cfg.Output.SliceAxis = "z"
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks the values that cannot be checked by the YAML decoder
func (c *Config) Validate() error {
	if _, err := visualization.ParseMode(c.Display.Mode); err != nil {
		return fmt.Errorf("display.mode: %w", err)
	}
	if err := dispersion.ValidateElectromagnetic(c.Display.Frequency); err != nil {
		return fmt.Errorf("display.frequency: %w", err)
	}
	if !slices.Contains(visualization.FieldStrengths, c.Display.FieldStrength) {
		return fmt.Errorf("display.fieldStrength: %q not in %v", c.Display.FieldStrength, visualization.FieldStrengths)
	}
	if _, err := c.Overrides(); err != nil {
		return err
	}
	if c.Inputs.Downsample < 1 {
		return fmt.Errorf("inputs.downsample must be at least 1, got %d", c.Inputs.Downsample)
	}
	if c.Processing.NumCores < 0 {
		return fmt.Errorf("processing.numCores must not be negative, got %d", c.Processing.NumCores)
	}
	switch c.Output.SliceAxis {
	case "x", "y", "z":
	default:
		return fmt.Errorf("output.sliceAxis: invalid axis %q (must be x, y, or z)", c.Output.SliceAxis)
	}
	return nil
}

// Overrides converts the per-mode settings, keyed by mode name
func (c *Config) Overrides() (map[visualization.Mode]visualization.Override, error) {
	out := make(map[visualization.Mode]visualization.Override, len(c.Display.Modes))
	for name, s := range c.Display.Modes {
		m, err := visualization.ParseMode(name)
		if err != nil {
			return nil, fmt.Errorf("display.modes: %w", err)
		}
		out[m] = visualization.Override{Palette: s.Palette, UseLog: s.Log}
	}
	return out, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
