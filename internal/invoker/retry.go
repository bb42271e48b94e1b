package invoker

import (
	"context"
	"fmt"
	"os"
	"time"
)

// RetryConfig holds backoff parameters for the retry policy.
type RetryConfig struct {
	BaseDelay string `toml:"base_delay"`
	MaxDelay  string `toml:"max_delay"`
}

// BaseDelayDuration returns BaseDelay as a time.Duration.
func (c *RetryConfig) BaseDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.BaseDelay)
	return d
}

// MaxDelayDuration returns MaxDelay as a time.Duration.
func (c *RetryConfig) MaxDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxDelay)
	return d
}

// RetryEnv maps config fields to environment variable names for override injection.
type RetryEnv struct {
	BaseDelay string
	MaxDelay  string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *RetryConfig) Finalize(env *RetryEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *RetryConfig) Merge(overlay *RetryConfig) {
	if overlay.BaseDelay != "" {
		c.BaseDelay = overlay.BaseDelay
	}
	if overlay.MaxDelay != "" {
		c.MaxDelay = overlay.MaxDelay
	}
}

func (c *RetryConfig) loadDefaults() {
	if c.BaseDelay == "" {
		c.BaseDelay = "500ms"
	}
	if c.MaxDelay == "" {
		c.MaxDelay = "30s"
	}
}

func (c *RetryConfig) loadEnv(env *RetryEnv) {
	if env.BaseDelay != "" {
		if v := os.Getenv(env.BaseDelay); v != "" {
			c.BaseDelay = v
		}
	}
	if env.MaxDelay != "" {
		if v := os.Getenv(env.MaxDelay); v != "" {
			c.MaxDelay = v
		}
	}
}

func (c *RetryConfig) validate() error {
	base, err := time.ParseDuration(c.BaseDelay)
	if err != nil {
		return fmt.Errorf("invalid base_delay: %w", err)
	}
	max, err := time.ParseDuration(c.MaxDelay)
	if err != nil {
		return fmt.Errorf("invalid max_delay: %w", err)
	}
	if base <= 0 {
		return fmt.Errorf("base_delay must be positive")
	}
	if max < base {
		return fmt.Errorf("max_delay cannot be less than base_delay")
	}
	return nil
}

// RetryPolicy computes exponential backoff delays: the base delay doubles on
// each subsequent attempt, capped at the maximum. Delays are strictly
// increasing until the cap is reached.
type RetryPolicy struct {
	base time.Duration
	max  time.Duration
}

// NewRetryPolicy creates a policy from config.
func NewRetryPolicy(cfg RetryConfig) RetryPolicy {
	return RetryPolicy{
		base: cfg.BaseDelayDuration(),
		max:  cfg.MaxDelayDuration(),
	}
}

// Delay returns the backoff delay before retry attempt n (1-based: the delay
// after the nth failed attempt).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.max {
			return p.max
		}
	}
	return d
}

// Wait blocks for the backoff delay before retry attempt n, returning early
// with the context error if ctx is cancelled.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
