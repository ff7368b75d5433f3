package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a YAML configuration on top of the defaults. Unknown keys
// are rejected.
func LoadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	c := Default()
	if err := c.MergeYAML(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return c, nil
}

// MergeYAML applies a YAML document to c.
func (c *Config) MergeYAML(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(c); err != nil {
		return err
	}

	return nil
}
