// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"topofetch/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// OpenTopography contains elevation-service settings
	OpenTopography OpenTopographyConfig `json:"opentopography"`

	// Output contains output configuration
	Output OutputConfig `json:"output"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`

	// Metrics contains metrics configuration
	Metrics MetricsConfig `json:"metrics"`
}

// OpenTopographyConfig contains elevation-service settings
type OpenTopographyConfig struct {
	// BaseURL is the API root, e.g. https://portal.opentopography.org/API
	BaseURL string `json:"base_url"`

	// APIKeyFile is a file holding the API key. Keys are never read from config directly.
	APIKeyFile string `json:"api_key_file,omitempty"`

	// HTTPTimeoutSeconds bounds a single download; 0 leaves the client default (none)
	HTTPTimeoutSeconds int `json:"http_timeout_seconds"`

	// DefaultSource is the dataset used when none is given
	DefaultSource string `json:"default_source"`
}

// HTTPTimeout returns the configured timeout as a duration
func (c OpenTopographyConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// OutputConfig contains output-related settings
type OutputConfig struct {
	// Directory is where rasters are written
	Directory string `json:"directory"`

	// MinElevation masks cells below this value as no-data
	MinElevation float64 `json:"min_elevation"`

	// Hillshade writes a shaded-relief companion grid
	Hillshade bool `json:"hillshade"`

	// Preview writes a PNG quicklook
	Preview bool `json:"preview"`

	// Footprint writes a footprint shapefile
	Footprint bool `json:"footprint"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	// Textfile is written at the end of a run when non-empty
	Textfile string `json:"textfile,omitempty"`
}

// Default returns a default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Version: "1.0",
		OpenTopography: OpenTopographyConfig{
			BaseURL:            "https://portal.opentopography.org/API",
			APIKeyFile:         filepath.Join(homeDir, ".topofetch", "opentopography.key"),
			HTTPTimeoutSeconds: 0,
			DefaultSource:      "SRTMGL1",
		},
		Output: OutputConfig{
			Directory:    ".",
			MinElevation: 0.01,
			Hillshade:    true,
			Preview:      false,
			Footprint:    false,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
