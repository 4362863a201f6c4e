// Package config provides configuration management for the parental-controls
// client tooling. It handles loading and parsing YAML configuration files and
// provides structured access to the timezone, language, proxy and logging
// settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Timezone is the IANA timezone reported to the Moon API.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Language is the language tag reported to the Moon API.
	Language string `yaml:"language" json:"language"`

	// ProxyURL is the URL of an optional proxy server to use for outbound
	// requests. SOCKS5, HTTP and HTTPS schemes are supported.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile mirrors log output into a rotated file under LogDir.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir is the directory for rotated log files. Defaults to "logs".
	LogDir string `yaml:"log-dir" json:"log-dir"`
}

// DefaultConfig returns a configuration with the defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Timezone: "Europe/London",
		Language: "en-GB",
		LogDir:   "logs",
	}
}

// LoadConfig reads the YAML file at configFile on top of the defaults.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadConfigOptional behaves like LoadConfig but returns the defaults when
// the file does not exist and optional is true.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	if _, err := os.Stat(configFile); os.IsNotExist(err) && optional {
		return DefaultConfig(), nil
	}
	return LoadConfig(configFile)
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Europe/London"
	}
	if c.Language == "" {
		c.Language = "en-GB"
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
}
