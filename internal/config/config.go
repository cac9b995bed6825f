// Package config loads resgate settings from an optional YAML file and
// RESGATE_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Authorization policies.
const (
	PolicyPermission = "permission"
	PolicyAllowAll   = "allow_all"
)

type (
	// Config is the top-level configuration.
	Config struct {
		Store Store `yaml:"store"`
		Specs Specs `yaml:"specs"`
		Log   Log   `yaml:"log"`
		Authz Authz `yaml:"authz"`
	}

	// Store configures the SQLite backend.
	Store struct {
		Path      string `yaml:"path" env:"RESGATE_DB" env-default:"resgate.db" env-description:"SQLite database path"`
		NoJournal bool   `yaml:"no_journal" env:"RESGATE_NO_JOURNAL" env-description:"Stop recording requests and outcomes"`
	}

	// Specs locates the CUE resource definitions.
	Specs struct {
		Dir string `yaml:"dir" env:"RESGATE_SPECS" env-default:"specs" env-description:"Directory of CUE resource definitions"`
	}

	// Log configures the slog handler.
	Log struct {
		Level  string `yaml:"level" env:"RESGATE_LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
		Format string `yaml:"format" env:"RESGATE_LOG_FORMAT" env-default:"text" env-description:"text or json"`
	}

	// Authz selects the authorization policy.
	Authz struct {
		Policy string `yaml:"policy" env:"RESGATE_AUTHZ_POLICY" env-default:"permission" env-description:"permission or allow_all"`
	}
)

// Load reads the configuration. With a path, the YAML file is read and the
// environment overrides it; without one, only the environment and defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q (text or json)", c.Log.Format)
	}
	switch c.Authz.Policy {
	case PolicyPermission, PolicyAllowAll:
	default:
		return fmt.Errorf("invalid authz policy %q (%s or %s)", c.Authz.Policy, PolicyPermission, PolicyAllowAll)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path is required")
	}
	return nil
}

// SlogLevel parses the configured level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", l.Level)
	}
	return level, nil
}

// Usage describes every environment variable.
func Usage() string {
	var cfg Config
	usage, _ := cleanenv.GetDescription(&cfg, nil)
	return usage
}
