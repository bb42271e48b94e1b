package worker

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Queue names. Submission priorities map one-to-one onto the first three;
// maintenance holds scheduled housekeeping tasks and only runs when the
// priority queues are idle.
const (
	QueueHigh        = "high"
	QueueDefault     = "default"
	QueueLow         = "low"
	QueueMaintenance = "maintenance"
)

// RedisConfig holds Redis connection parameters for the task queues.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Merge overwrites non-zero fields from overlay.
func (c *RedisConfig) Merge(overlay *RedisConfig) {
	if overlay.Addr != "" {
		c.Addr = overlay.Addr
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.DB != 0 {
		c.DB = overlay.DB
	}
}

// Config holds worker pool and queue parameters.
type Config struct {
	Concurrency int         `toml:"concurrency"`
	JobTimeout  string      `toml:"job_timeout"`
	Retention   string      `toml:"retention"`
	PruneCron   string      `toml:"prune_cron"`
	Redis       RedisConfig `toml:"redis"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Concurrency   string
	JobTimeout    string
	RedisAddr     string
	RedisPassword string
	RedisDB       string
}

// JobTimeoutDuration returns JobTimeout as a time.Duration.
func (c *Config) JobTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.JobTimeout)
	return d
}

// RetentionDuration returns Retention as a time.Duration.
func (c *Config) RetentionDuration() time.Duration {
	d, _ := time.ParseDuration(c.Retention)
	return d
}

// Queues returns the asynq queue weights. High-priority work is drained
// roughly six times as often as low; maintenance runs at the lowest weight.
func (c *Config) Queues() map[string]int {
	return map[string]int{
		QueueHigh:        6,
		QueueDefault:     3,
		QueueLow:         2,
		QueueMaintenance: 1,
	}
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
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.JobTimeout != "" {
		c.JobTimeout = overlay.JobTimeout
	}
	if overlay.Retention != "" {
		c.Retention = overlay.Retention
	}
	if overlay.PruneCron != "" {
		c.PruneCron = overlay.PruneCron
	}
	c.Redis.Merge(&overlay.Redis)
}

func (c *Config) loadDefaults() {
	if c.Concurrency == 0 {
		c.Concurrency = 10
	}
	if c.JobTimeout == "" {
		c.JobTimeout = "30m"
	}
	if c.Retention == "" {
		c.Retention = "24h"
	}
	if c.PruneCron == "" {
		c.PruneCron = "0 3 * * *"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Concurrency != "" {
		if v := os.Getenv(env.Concurrency); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.Concurrency = n
			}
		}
	}
	if env.JobTimeout != "" {
		if v := os.Getenv(env.JobTimeout); v != "" {
			c.JobTimeout = v
		}
	}
	if env.RedisAddr != "" {
		if v := os.Getenv(env.RedisAddr); v != "" {
			c.Redis.Addr = v
		}
	}
	if env.RedisPassword != "" {
		if v := os.Getenv(env.RedisPassword); v != "" {
			c.Redis.Password = v
		}
	}
	if env.RedisDB != "" {
		if v := os.Getenv(env.RedisDB); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Redis.DB = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}
	if _, err := time.ParseDuration(c.JobTimeout); err != nil {
		return fmt.Errorf("invalid job_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Retention); err != nil {
		return fmt.Errorf("invalid retention: %w", err)
	}
	return nil
}
