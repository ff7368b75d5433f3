package config

import (
	"encoding"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"

	"gopkg.in/ini.v1"
)

// LoadINI reads a configuration file made of KEY = value lines on top of the
// defaults. Text after ';' or '#' is a comment. Keys may sit in any section.
func LoadINI(path string) (*Config, error) {
	c := Default()

	if err := c.MergeINIFile(path); err != nil {
		return nil, err
	}

	return c, nil
}

// MergeINIFile applies the settings in the file at path to c.
func (c *Config) MergeINIFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := c.MergeINI(f); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	return nil
}

// MergeINI applies the settings read from r to c.
func (c *Config) MergeINI(r io.Reader) error {
	file, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters: "=",
	}, r)
	if err != nil {
		return err
	}

	for _, sec := range file.Sections() {
		for _, key := range sec.Keys() {
			if err := c.Set(key.Name(), key.String()); err != nil {
				return fmt.Errorf("[%s]: %w", sec.Name(), err)
			}
		}
	}

	return nil
}

// Keys returns the INI names of every parameter.
func Keys() []string {
	t := reflect.TypeOf(Config{})
	keys := make([]string, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		keys = append(keys, t.Field(i).Tag.Get("ini"))
	}

	return keys
}

// Set assigns a parameter by its INI name.
func (c *Config) Set(key, value string) error {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("ini") != key {
			continue
		}

		if err := setField(v.Field(i), value); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}

		return nil
	}

	return fmt.Errorf("unknown field %s", key)
}

func setField(f reflect.Value, value string) error {
	if u, ok := f.Addr().Interface().(encoding.TextUnmarshaler); ok {
		return u.UnmarshalText([]byte(value))
	}

	switch f.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}

		f.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}

		f.SetInt(n)
	case reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}

		f.SetUint(n)
	case reflect.Float64:
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}

		f.SetFloat(x)
	default:
		return fmt.Errorf("unsupported kind %s", f.Kind())
	}

	return nil
}
