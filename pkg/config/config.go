// Package config provides configuration loading and management for
// diffvolto2d. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Simulation parameters
	Simulation struct {
		// MeshSize is the number of volume samples along each axis
		MeshSize int `yaml:"meshSize"`

		// Oversampling widens the reciprocal mesh beyond the detector's
		// maximum momentum transfer by this factor
		Oversampling float64 `yaml:"oversampling"`

		// NumOrientations is the number of uniformly distributed
		// orientations to sample patterns at
		NumOrientations int `yaml:"numOrientations"`

		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`
	} `yaml:"simulation"`

	// Verification parameters
	Verification struct {
		// Tolerance is the relative tolerance for the round-trip and
		// resample-determinism comparisons
		Tolerance float64 `yaml:"tolerance"`
	} `yaml:"verification"`

	// Output parameters
	Output struct {
		// File is the path of the HDF5 container to write
		File string `yaml:"file"`

		// RenderPatterns determines whether sampled patterns are also
		// rendered as PNG images for visual inspection
		RenderPatterns bool `yaml:"renderPatterns"`

		// RenderDir is the directory PNG renders are written to
		RenderDir string `yaml:"renderDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default simulation parameters
	cfg.Simulation.MeshSize = 128
	cfg.Simulation.Oversampling = 1.0
	cfg.Simulation.NumOrientations = 2
	cfg.Simulation.NumCores = runtime.NumCPU() // Use all available cores by default

	// Set default verification parameters
	cfg.Verification.Tolerance = 1e-12

	// Set default output parameters
	cfg.Output.File = "diffraction.h5"
	cfg.Output.RenderPatterns = false
	cfg.Output.RenderDir = "rendered_patterns"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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

// validate checks the loaded values for obvious mistakes
func (c *Config) validate() error {
	if c.Simulation.MeshSize < 2 {
		return fmt.Errorf("meshSize must be at least 2, got %d", c.Simulation.MeshSize)
	}
	if c.Simulation.Oversampling <= 0 {
		return fmt.Errorf("oversampling must be positive, got %g", c.Simulation.Oversampling)
	}
	if c.Simulation.NumOrientations < 1 {
		return fmt.Errorf("numOrientations must be at least 1, got %d", c.Simulation.NumOrientations)
	}
	if c.Verification.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", c.Verification.Tolerance)
	}
	return nil
}
