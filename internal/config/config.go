// Package config loads reader limits and transport settings from YAML.
package config

import (
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	capread "github.com/rawbytedev/capread"
)

const (
	DefaultMaxBytes = 64 << 20
	DefaultMaxDepth = 64
)

type Limits struct {
	MaxBytes  int  `yaml:"max_bytes"`
	MaxDepth  int  `yaml:"max_depth"`
	Unlimited bool `yaml:"unlimited"`
}

type Transport struct {
	Packed    bool `yaml:"packed"`
	Framed    bool `yaml:"framed"`
	MaxStream int  `yaml:"max_stream"`
}

type Config struct {
	Limits    Limits    `yaml:"limits"`
	Transport Transport `yaml:"transport"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Limits: Limits{MaxBytes: DefaultMaxBytes, MaxDepth: DefaultMaxDepth},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return c, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var merr *multierror.Error
	if !c.Limits.Unlimited {
		if c.Limits.MaxBytes <= 0 {
			merr = multierror.Append(merr, errors.Errorf("limits.max_bytes must be positive, got %d", c.Limits.MaxBytes))
		}
		if c.Limits.MaxDepth <= 0 {
			merr = multierror.Append(merr, errors.Errorf("limits.max_depth must be positive, got %d", c.Limits.MaxDepth))
		}
	}
	if c.Transport.MaxStream < 0 {
		merr = multierror.Append(merr, errors.Errorf("transport.max_stream must not be negative, got %d", c.Transport.MaxStream))
	}
	return merr.ErrorOrNil()
}

// Options converts the configuration into deserialization options.
func (c *Config) Options() capread.Options {
	opts := capread.Options{
		MaxStream: c.Transport.MaxStream,
		Packed:    c.Transport.Packed,
		Framed:    c.Transport.Framed,
	}
	if !c.Limits.Unlimited {
		opts.MaxBytes = c.Limits.MaxBytes
		opts.MaxDepth = c.Limits.MaxDepth
	}
	return opts
}
