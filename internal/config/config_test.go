package config_test

import (
	"testing"
	"time"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/worker"
)

func TestServerConfigFinalizeDefaults(t *testing.T) {
	cfg := config.ServerConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q, want 0.0.0.0:8080", cfg.Addr())
	}
	if cfg.ShutdownTimeoutDuration() != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeoutDuration())
	}
}

func TestServerConfigEnvOverride(t *testing.T) {
	t.Setenv("DOCWEAVE_SERVER_PORT", "9090")

	cfg := config.ServerConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want env override 9090", cfg.Port)
	}
}

func TestServerConfigInvalidPort(t *testing.T) {
	cfg := config.ServerConfig{Port: 70000}
	if err := cfg.Finalize(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestConfigMerge(t *testing.T) {
	base := config.Config{
		ShutdownTimeout: "30s",
		Version:         "0.1.0",
		Server:          config.ServerConfig{Port: 8080},
		Worker:          worker.Config{Concurrency: 10},
	}
	overlay := config.Config{
		Server: config.ServerConfig{Port: 9000},
		Worker: worker.Config{Concurrency: 2},
	}

	base.Merge(&overlay)

	if base.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want overlay 9000", base.Server.Port)
	}
	if base.Worker.Concurrency != 2 {
		t.Errorf("Worker.Concurrency = %d, want overlay 2", base.Worker.Concurrency)
	}
	if base.ShutdownTimeout != "30s" {
		t.Errorf("ShutdownTimeout = %q, want base 30s", base.ShutdownTimeout)
	}
	if base.Version != "0.1.0" {
		t.Errorf("Version = %q, want base 0.1.0", base.Version)
	}
}
