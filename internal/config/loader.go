package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing the run configuration
type Loader struct {
	configPath string
}

// NewLoader creates a configuration loader. configPath may be empty, in which
// case only defaults and environment variables apply.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load builds the configuration: defaults, then the optional YAML file, then
// environment variable overrides, then validation.
func (l *Loader) Load() (*Config, error) {
	config := &Config{}
	config.SetDefaults()

	if l.configPath != "" {
		if err := l.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	config.LoadFromEnvironment()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadFromFile overlays configuration from a YAML file
func (l *Loader) loadFromFile(config *Config) error {
	if _, err := os.Stat(l.configPath); os.IsNotExist(err) {
		// File doesn't exist, use defaults
		return nil
	}

	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", l.configPath, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// LoadFromBytes builds a configuration from YAML bytes plus environment
// overrides. Used by tests and embedded callers.
func LoadFromBytes(data []byte) (*Config, error) {
	config := &Config{}
	config.SetDefaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.LoadFromEnvironment()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
