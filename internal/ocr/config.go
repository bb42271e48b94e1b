package ocr

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Routing policies.
const (
	PolicyHybrid = "hybrid"
	PolicyFixed  = "fixed"
)

// EngineConfig holds connection parameters for one OCR engine.
type EngineConfig struct {
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Timeout string `toml:"timeout"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *EngineConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Merge overwrites non-zero fields from overlay.
func (c *EngineConfig) Merge(overlay *EngineConfig) {
	if overlay.Name != "" {
		c.Name = overlay.Name
	}
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

func (c *EngineConfig) finalize(defaultName string) error {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.Timeout == "" {
		c.Timeout = "2m"
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}

// Config holds OCR routing parameters and engine connections.
type Config struct {
	Policy              string       `toml:"policy"`
	ConfidenceThreshold float64      `toml:"confidence_threshold"`
	Fast                EngineConfig `toml:"fast"`
	Accurate            EngineConfig `toml:"accurate"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Policy              string
	ConfidenceThreshold string
	FastBaseURL         string
	FastAPIKey          string
	AccurateBaseURL     string
	AccurateAPIKey      string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Policy != "" {
		c.Policy = overlay.Policy
	}
	if overlay.ConfidenceThreshold != 0 {
		c.ConfidenceThreshold = overlay.ConfidenceThreshold
	}
	c.Fast.Merge(&overlay.Fast)
	c.Accurate.Merge(&overlay.Accurate)
}

func (c *Config) loadDefaults() {
	if c.Policy == "" {
		c.Policy = PolicyHybrid
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 0.6
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Policy != "" {
		if v := os.Getenv(env.Policy); v != "" {
			c.Policy = v
		}
	}
	if env.ConfidenceThreshold != "" {
		if v := os.Getenv(env.ConfidenceThreshold); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.ConfidenceThreshold = f
			}
		}
	}
	if env.FastBaseURL != "" {
		if v := os.Getenv(env.FastBaseURL); v != "" {
			c.Fast.BaseURL = v
		}
	}
	if env.FastAPIKey != "" {
		if v := os.Getenv(env.FastAPIKey); v != "" {
			c.Fast.APIKey = v
		}
	}
	if env.AccurateBaseURL != "" {
		if v := os.Getenv(env.AccurateBaseURL); v != "" {
			c.Accurate.BaseURL = v
		}
	}
	if env.AccurateAPIKey != "" {
		if v := os.Getenv(env.AccurateAPIKey); v != "" {
			c.Accurate.APIKey = v
		}
	}
}

func (c *Config) validate() error {
	if c.Policy != PolicyHybrid && c.Policy != PolicyFixed {
		return fmt.Errorf("invalid policy: %s", c.Policy)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1]")
	}
	if err := c.Fast.finalize("ocr-fast"); err != nil {
		return fmt.Errorf("fast: %w", err)
	}
	if c.Policy == PolicyFixed {
		return nil
	}
	if err := c.Accurate.finalize("ocr-accurate"); err != nil {
		return fmt.Errorf("accurate: %w", err)
	}
	return nil
}
