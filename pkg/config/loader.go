package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file into cfg. Occurrences of
// ${VAR_NAME} in the file are replaced with the value of the
// corresponding environment variable before parsing; unset variables
// expand to the empty string.
func Load(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	content := os.Expand(string(data), os.Getenv)

	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// Save writes cfg to a YAML file.
func Save(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
