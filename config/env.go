package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to INI names to form environment variable names.
const EnvPrefix = "HMCSIM_"

// ApplyEnv loads the given dotenv files, when they exist, into the process
// environment and then applies every HMCSIM_<KEY> variable to c.
func (c *Config) ApplyEnv(dotenvFiles ...string) error {
	existing := []string{}

	for _, f := range dotenvFiles {
		_, err := os.Stat(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		existing = append(existing, f)
	}

	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return fmt.Errorf("loading dotenv: %w", err)
		}
	}

	for _, key := range Keys() {
		value, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}

		if err := c.Set(key, value); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
	}

	return nil
}
