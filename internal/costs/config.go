package costs

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Rate prices one model in currency units per 1000 tokens.
type Rate struct {
	InputPer1K  float64 `toml:"input_per_1k"`
	OutputPer1K float64 `toml:"output_per_1k"`
}

// Config holds the pricing table and record retention window.
type Config struct {
	RetentionDays int             `toml:"retention_days"`
	Rates         map[string]Rate `toml:"rates"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	RetentionDays string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Overlay rates replace
// base rates per model, leaving unmentioned models intact.
func (c *Config) Merge(overlay *Config) {
	if overlay.RetentionDays != 0 {
		c.RetentionDays = overlay.RetentionDays
	}
	if len(overlay.Rates) > 0 {
		if c.Rates == nil {
			c.Rates = make(map[string]Rate, len(overlay.Rates))
		}
		for model, rate := range overlay.Rates {
			c.Rates[model] = rate
		}
	}
}

// Retention returns the retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Price computes the cost of one attempt. Models absent from the rate
// table price at zero; the second return reports whether the model was
// priced.
func (c *Config) Price(model string, inputTokens, outputTokens int) (float64, bool) {
	rate, ok := c.Rates[model]
	if !ok {
		return 0, false
	}
	cost := float64(inputTokens)/1000*rate.InputPer1K +
		float64(outputTokens)/1000*rate.OutputPer1K
	return cost, true
}

func (c *Config) loadDefaults() {
	if c.RetentionDays == 0 {
		c.RetentionDays = 90
	}
	if c.Rates == nil {
		c.Rates = map[string]Rate{}
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.RetentionDays != "" {
		if v := os.Getenv(env.RetentionDays); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.RetentionDays = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be positive")
	}
	for model, rate := range c.Rates {
		if rate.InputPer1K < 0 || rate.OutputPer1K < 0 {
			return fmt.Errorf("negative rate for model %q", model)
		}
	}
	return nil
}
