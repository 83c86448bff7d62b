package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "finiate.yml"

// Config models the optional workspace config file (.finiate/finiate.yml).
type Config struct {
	Defaults struct {
		// PutOffExtension is the deadline extension applied by put-off
		// when no explicit terminate time is given. Go duration syntax.
		PutOffExtension string `yaml:"put_off_extension"`
		// AgendaAmount is the default status display size (1..5).
		AgendaAmount int `yaml:"agenda_amount"`
	} `yaml:"defaults"`
}

// Default returns the built-in config.
func Default() *Config {
	c := &Config{}
	c.Defaults.PutOffExtension = "24h"
	c.Defaults.AgendaAmount = 1
	return c
}

// Path returns the config path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".finiate", fileName)
}

// Load reads the workspace config, falling back to defaults when the file
// does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.Defaults.PutOffExtension); err != nil {
		return fmt.Errorf("defaults.put_off_extension: %w", err)
	}
	if c.Defaults.AgendaAmount < 1 || c.Defaults.AgendaAmount > 5 {
		return fmt.Errorf("defaults.agenda_amount must be between 1 and 5")
	}
	return nil
}

// PutOffExtension returns the parsed default extension. Validate guarantees
// the duration parses.
func (c *Config) PutOffExtension() time.Duration {
	d, err := time.ParseDuration(c.Defaults.PutOffExtension)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}
