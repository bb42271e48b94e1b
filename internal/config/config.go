// Package config loads the service configuration: base config.toml,
// environment overlay (config.<env>.toml), then environment variable
// overrides, with validation at the end. Every subsystem owns its config
// type; this package wires their env names and composes the root.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/docweave/docweave/internal/costs"
	"github.com/docweave/docweave/internal/invoker"
	"github.com/docweave/docweave/internal/models"
	"github.com/docweave/docweave/internal/ocr"
	"github.com/docweave/docweave/internal/worker"
	"github.com/docweave/docweave/pkg/database"
	"github.com/docweave/docweave/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvDocweaveEnv             = "DOCWEAVE_ENV"
	EnvDocweaveShutdownTimeout = "DOCWEAVE_SHUTDOWN_TIMEOUT"
	EnvDocweaveVersion         = "DOCWEAVE_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "DOCWEAVE_DB_HOST",
	Port:            "DOCWEAVE_DB_PORT",
	Name:            "DOCWEAVE_DB_NAME",
	User:            "DOCWEAVE_DB_USER",
	Password:        "DOCWEAVE_DB_PASSWORD",
	SSLMode:         "DOCWEAVE_DB_SSL_MODE",
	MaxOpenConns:    "DOCWEAVE_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "DOCWEAVE_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "DOCWEAVE_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "DOCWEAVE_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "DOCWEAVE_STORAGE_CONTAINER_NAME",
	ConnectionString: "DOCWEAVE_STORAGE_CONNECTION_STRING",
}

var modelsEnv = &models.Env{
	DefaultBaseURL: "DOCWEAVE_MODELS_BASE_URL",
	DefaultAPIKey:  "DOCWEAVE_MODELS_API_KEY",
	DefaultTimeout: "DOCWEAVE_MODELS_TIMEOUT",
}

var ocrEnv = &ocr.Env{
	Policy:              "DOCWEAVE_OCR_POLICY",
	ConfidenceThreshold: "DOCWEAVE_OCR_CONFIDENCE_THRESHOLD",
	FastBaseURL:         "DOCWEAVE_OCR_FAST_BASE_URL",
	FastAPIKey:          "DOCWEAVE_OCR_FAST_API_KEY",
	AccurateBaseURL:     "DOCWEAVE_OCR_ACCURATE_BASE_URL",
	AccurateAPIKey:      "DOCWEAVE_OCR_ACCURATE_API_KEY",
}

var breakerEnv = &invoker.BreakerEnv{
	FailureThreshold: "DOCWEAVE_BREAKER_FAILURE_THRESHOLD",
	SuccessThreshold: "DOCWEAVE_BREAKER_SUCCESS_THRESHOLD",
	RecoveryTimeout:  "DOCWEAVE_BREAKER_RECOVERY_TIMEOUT",
}

var retryEnv = &invoker.RetryEnv{
	BaseDelay: "DOCWEAVE_RETRY_BASE_DELAY",
	MaxDelay:  "DOCWEAVE_RETRY_MAX_DELAY",
}

var costsEnv = &costs.Env{
	RetentionDays: "DOCWEAVE_USAGE_RETENTION_DAYS",
}

var workerEnv = &worker.Env{
	Concurrency:   "DOCWEAVE_WORKER_CONCURRENCY",
	JobTimeout:    "DOCWEAVE_WORKER_JOB_TIMEOUT",
	RedisAddr:     "DOCWEAVE_REDIS_ADDR",
	RedisPassword: "DOCWEAVE_REDIS_PASSWORD",
	RedisDB:       "DOCWEAVE_REDIS_DB",
}

// Config is the root configuration for the service.
type Config struct {
	Server          ServerConfig          `toml:"server"`
	Database        database.Config       `toml:"database"`
	Storage         storage.Config        `toml:"storage"`
	Models          models.Config         `toml:"models"`
	OCR             ocr.Config            `toml:"ocr"`
	Breaker         invoker.BreakerConfig `toml:"breaker"`
	Retry           invoker.RetryConfig   `toml:"retry"`
	Usage           costs.Config          `toml:"usage"`
	Worker          worker.Config         `toml:"worker"`
	API             APIConfig             `toml:"api"`
	ShutdownTimeout string                `toml:"shutdown_timeout"`
	Version         string                `toml:"version"`
}

// Env returns the DOCWEAVE_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvDocweaveEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Models.Merge(&overlay.Models)
	c.OCR.Merge(&overlay.OCR)
	c.Breaker.Merge(&overlay.Breaker)
	c.Retry.Merge(&overlay.Retry)
	c.Usage.Merge(&overlay.Usage)
	c.Worker.Merge(&overlay.Worker)
	c.API.Merge(&overlay.API)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Models.Finalize(modelsEnv); err != nil {
		return fmt.Errorf("models: %w", err)
	}
	if err := c.OCR.Finalize(ocrEnv); err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	if err := c.Breaker.Finalize(breakerEnv); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	if err := c.Retry.Finalize(retryEnv); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Usage.Finalize(costsEnv); err != nil {
		return fmt.Errorf("usage: %w", err)
	}
	if err := c.Worker.Finalize(workerEnv); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvDocweaveShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvDocweaveVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvDocweaveEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
