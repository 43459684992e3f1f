// Package config is used to load the configuration file
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

type disass struct {
	Syntax  string `mapstructure:"syntax"`
	Workers int    `mapstructure:"workers"`
}

type patch struct {
	Backup bool   `mapstructure:"backup"`
	Output string `mapstructure:"output"`
}

// Config is the configuration struct
type Config struct {
	Disass disass `mapstructure:"disass"`
	Patch  patch  `mapstructure:"patch"`
	Color  bool   `mapstructure:"color"`
}

func (c *Config) verify() error {
	switch strings.ToLower(c.Disass.Syntax) {
	case "":
		c.Disass.Syntax = "gnu"
	case "gnu", "intel", "go":
		c.Disass.Syntax = strings.ToLower(c.Disass.Syntax)
	default:
		return fmt.Errorf("config: disass.syntax must be one of gnu, intel or go (got %q)", c.Disass.Syntax)
	}

	if c.Disass.Workers < 0 {
		return fmt.Errorf("config: disass.workers cannot be negative")
	} else if c.Disass.Workers == 0 {
		c.Disass.Workers = runtime.NumCPU()
	}

	if c.Patch.Output != "" && !strings.HasPrefix(c.Patch.Output, ".") {
		return fmt.Errorf("config: patch.output must be a file suffix starting with '.' (got %q)", c.Patch.Output)
	} else if c.Patch.Output == "" {
		c.Patch.Output = ".patched"
	}

	return nil
}

// LoadConfig loads the configuration file
func LoadConfig() (*Config, error) {
	var c *Config

	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}
	if c == nil {
		c = &Config{}
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return c, nil
}
