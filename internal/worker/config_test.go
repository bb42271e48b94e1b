package worker_test

import (
	"testing"
	"time"

	"github.com/docweave/docweave/internal/worker"
)

func TestConfigFinalizeDefaults(t *testing.T) {
	cfg := worker.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Concurrency != 10 {
		t.Errorf("Concurrency = %d, want 10", cfg.Concurrency)
	}
	if cfg.JobTimeoutDuration() != 30*time.Minute {
		t.Errorf("JobTimeout = %v, want 30m", cfg.JobTimeoutDuration())
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q, want localhost:6379", cfg.Redis.Addr)
	}
}

func TestConfigFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_CONCURRENCY", "4")
	t.Setenv("TEST_REDIS_ADDR", "redis:6380")

	cfg := worker.Config{}
	err := cfg.Finalize(&worker.Env{
		Concurrency: "TEST_CONCURRENCY",
		RedisAddr:   "TEST_REDIS_ADDR",
	})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Errorf("Redis.Addr = %q, want redis:6380", cfg.Redis.Addr)
	}
}

func TestConfigFinalizeInvalidTimeout(t *testing.T) {
	cfg := worker.Config{JobTimeout: "soon"}
	if err := cfg.Finalize(nil); err == nil {
		t.Fatal("expected error for invalid job_timeout")
	}
}

func TestConfigQueueWeights(t *testing.T) {
	cfg := worker.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	queues := cfg.Queues()
	for _, name := range []string{worker.QueueHigh, worker.QueueDefault, worker.QueueLow, worker.QueueMaintenance} {
		if queues[name] == 0 {
			t.Errorf("queue %q missing from weights", name)
		}
	}
	if queues[worker.QueueHigh] <= queues[worker.QueueLow] {
		t.Errorf("high weight %d not above low weight %d", queues[worker.QueueHigh], queues[worker.QueueLow])
	}
	if queues[worker.QueueMaintenance] >= queues[worker.QueueLow] {
		t.Errorf("maintenance weight %d not below low weight %d", queues[worker.QueueMaintenance], queues[worker.QueueLow])
	}
}
