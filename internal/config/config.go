// Package config loads the CLI's TOML configuration file and layers
// environment variable and flag overrides on top of it.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the settings shared by the send, receive and serve
// subcommands. Precedence, lowest to highest: built-in defaults, the
// TOML file, environment variables, CLI flags.
type Config struct {
	AppEnvironment string `toml:"app_environment"`
	AppHost        string `toml:"app_host"`
	AppPort        string `toml:"app_port"`
	AppOrigin      string `toml:"app_origin"`
	AppRelay       string `toml:"app_relay"`
	LogLevel       string `toml:"log_level"`
}

// Default returns the production defaults used when no config file is
// present and no overrides are supplied.
func Default() *Config {
	return &Config{
		AppEnvironment: "production",
		AppHost:        "0.0.0.0",
		AppPort:        "8000",
		AppOrigin:      "wss://relay.example.org",
		AppRelay:       "0.0.0.0:8000",
		LogLevel:       "info",
	}
}

// Load reads a TOML file at path into a fresh Config seeded with
// defaults. A missing file is not an error: defaults are returned
// unchanged so that environment and flag overrides still apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields with non-empty environment variables.
func (c *Config) ApplyEnv() {
	override(&c.AppEnvironment, os.Getenv("APP_ENVIRONMENT"))
	override(&c.AppHost, os.Getenv("APP_HOST"))
	override(&c.AppPort, os.Getenv("APP_PORT"))
	override(&c.AppOrigin, os.Getenv("APP_ORIGIN"))
	override(&c.AppRelay, os.Getenv("APP_RELAY"))
	override(&c.LogLevel, os.Getenv("LOG_LEVEL"))
}

func override(field *string, value string) {
	if value != "" {
		*field = value
	}
}
