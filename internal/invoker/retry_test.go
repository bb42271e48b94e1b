package invoker_test

import (
	"context"
	"testing"
	"time"

	"github.com/docweave/docweave/internal/invoker"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := invoker.NewRetryPolicy(invoker.RetryConfig{
		BaseDelay: "500ms",
		MaxDelay:  "30s",
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{7, 30 * time.Second},
		{20, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := policy.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	policy := invoker.NewRetryPolicy(invoker.RetryConfig{
		BaseDelay: "1s",
		MaxDelay:  "3s",
	})

	if got := policy.Delay(3); got != 3*time.Second {
		t.Errorf("Delay(3) = %v, want cap 3s", got)
	}
}

func TestRetryPolicyWaitCancelled(t *testing.T) {
	policy := invoker.NewRetryPolicy(invoker.RetryConfig{
		BaseDelay: "1h",
		MaxDelay:  "1h",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := policy.Wait(ctx, 1); err != context.Canceled {
		t.Errorf("Wait error = %v, want context.Canceled", err)
	}
}

func TestRetryConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     invoker.RetryConfig
		wantErr bool
	}{
		{"defaults", invoker.RetryConfig{}, false},
		{"valid", invoker.RetryConfig{BaseDelay: "100ms", MaxDelay: "5s"}, false},
		{"bad base", invoker.RetryConfig{BaseDelay: "nope"}, true},
		{"max below base", invoker.RetryConfig{BaseDelay: "10s", MaxDelay: "1s"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("Finalize() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
