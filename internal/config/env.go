// Package config loads the runtime configuration of the rest-resource CLI.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings read from the environment. Command-line flags
// override them.
type Config struct {
	// Manifests lists the RESTResource manifest files to load.
	Manifests   []string `env:"RESTRESOURCE_MANIFESTS"       envSeparator:","`
	MetricsAddr string   `env:"RESTRESOURCE_METRICS_ADDR"    envDefault:":8080"`
	// Actions is a semicolon-separated action selector, e.g. "user/fetch;*/get".
	Actions        string        `env:"RESTRESOURCE_ACTIONS"`
	Once           bool          `env:"RESTRESOURCE_ONCE"`
	RequestTimeout time.Duration `env:"RESTRESOURCE_REQUEST_TIMEOUT" envDefault:"30s"`
	// DefaultPollInterval applies to manifests without a pollInterval.
	DefaultPollInterval time.Duration `env:"RESTRESOURCE_POLL_INTERVAL" envDefault:"5m"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns the configuration read from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFrom returns the configuration read from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
