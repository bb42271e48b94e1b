package models

import (
	"fmt"
	"os"
	"time"
)

// ServiceConfig holds connection parameters for one model provider service.
type ServiceConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Timeout string `toml:"timeout"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *ServiceConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Merge overwrites non-zero fields from overlay.
func (c *ServiceConfig) Merge(overlay *ServiceConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *ServiceConfig) finalize() error {
	if c.Timeout == "" {
		c.Timeout = "90s"
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}

// Config maps service names (the circuit breaker keys steps reference) to
// provider connection settings. Default applies to any service without an
// explicit entry.
type Config struct {
	Default  ServiceConfig            `toml:"default"`
	Services map[string]ServiceConfig `toml:"services"`
}

// Env maps config fields to environment variable names for override injection.
// Per-service settings are file-only; env overrides apply to the default.
type Env struct {
	DefaultBaseURL string
	DefaultAPIKey  string
	DefaultTimeout string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if env != nil {
		c.loadEnv(env)
	}

	if err := c.Default.finalize(); err != nil {
		return fmt.Errorf("default: %w", err)
	}

	for name, svc := range c.Services {
		if svc.BaseURL == "" {
			svc.BaseURL = c.Default.BaseURL
		}
		if svc.APIKey == "" {
			svc.APIKey = c.Default.APIKey
		}
		if svc.Timeout == "" {
			svc.Timeout = c.Default.Timeout
		}
		if err := svc.finalize(); err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
		c.Services[name] = svc
	}

	return nil
}

// Merge overwrites non-zero fields from overlay, including per-service entries.
func (c *Config) Merge(overlay *Config) {
	c.Default.Merge(&overlay.Default)

	if len(overlay.Services) > 0 && c.Services == nil {
		c.Services = make(map[string]ServiceConfig)
	}
	for name, svc := range overlay.Services {
		base := c.Services[name]
		base.Merge(&svc)
		c.Services[name] = base
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.DefaultBaseURL != "" {
		if v := os.Getenv(env.DefaultBaseURL); v != "" {
			c.Default.BaseURL = v
		}
	}
	if env.DefaultAPIKey != "" {
		if v := os.Getenv(env.DefaultAPIKey); v != "" {
			c.Default.APIKey = v
		}
	}
	if env.DefaultTimeout != "" {
		if v := os.Getenv(env.DefaultTimeout); v != "" {
			c.Default.Timeout = v
		}
	}
}
