// Package config provides the public SDK configuration API.
//
// It re-exports the configuration types and helpers so external projects can
// embed the client without importing internal packages.
package config

import internalconfig "github.com/moonctl/nintendoparental/internal/config"

type Config = internalconfig.Config

func DefaultConfig() *Config { return internalconfig.DefaultConfig() }

func LoadConfig(configFile string) (*Config, error) { return internalconfig.LoadConfig(configFile) }

func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	return internalconfig.LoadConfigOptional(configFile, optional)
}
