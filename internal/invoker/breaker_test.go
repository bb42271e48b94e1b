package invoker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testBreaker(t *testing.T) (*Breaker, *time.Time) {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBreaker("openai", BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RecoveryTimeout:  "60s",
	})
	b.now = func() time.Time { return now }

	return b, &now
}

func tripBreaker(b *Breaker) {
	for i := 0; i < 3; i++ {
		b.Failure()
	}
}

func TestBreakerOpensAtFailureThreshold(t *testing.T) {
	b, _ := testBreaker(t)

	b.Failure()
	b.Failure()
	if err := b.Allow(); err != nil {
		t.Fatalf("breaker open before threshold: %v", err)
	}

	b.Failure()
	err := b.Allow()
	if err == nil {
		t.Fatal("breaker still closed at failure threshold")
	}

	var cbErr *CircuitBreakerError
	if !errors.As(err, &cbErr) {
		t.Fatalf("Allow error = %T, want *CircuitBreakerError", err)
	}
	if cbErr.Service != "openai" {
		t.Errorf("Service = %q, want openai", cbErr.Service)
	}
	if cbErr.RetryAfter != 60*time.Second {
		t.Errorf("RetryAfter = %v, want 60s", cbErr.RetryAfter)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := testBreaker(t)

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()

	if err := b.Allow(); err != nil {
		t.Fatalf("breaker opened despite interleaved success: %v", err)
	}
}

func TestBreakerHalfOpenAfterRecoveryTimeout(t *testing.T) {
	b, now := testBreaker(t)

	tripBreaker(b)
	if err := b.Allow(); err == nil {
		t.Fatal("breaker not open after trip")
	}

	*now = now.Add(61 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("trial call rejected after recovery timeout: %v", err)
	}
	if got := b.Status().State; got != StateHalfOpen {
		t.Errorf("state = %s, want %s", got, StateHalfOpen)
	}

	// Only one trial call is admitted while the probe is in flight.
	if err := b.Allow(); err == nil {
		t.Fatal("second concurrent trial call admitted in HALF_OPEN")
	}
}

func TestBreakerClosesAtSuccessThreshold(t *testing.T) {
	b, now := testBreaker(t)

	tripBreaker(b)
	*now = now.Add(61 * time.Second)

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("trial call %d rejected: %v", i+1, err)
		}
		b.Success()
	}

	if got := b.Status().State; got != StateClosed {
		t.Errorf("state = %s, want %s after success threshold", got, StateClosed)
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b, now := testBreaker(t)

	tripBreaker(b)
	*now = now.Add(61 * time.Second)

	if err := b.Allow(); err != nil {
		t.Fatalf("trial call rejected: %v", err)
	}
	b.Failure()

	if got := b.Status().State; got != StateOpen {
		t.Errorf("state = %s, want %s after half-open failure", got, StateOpen)
	}

	// A fresh recovery window starts from the reopen.
	if err := b.Allow(); err == nil {
		t.Fatal("call admitted immediately after half-open failure")
	}
}

func TestBreakerReset(t *testing.T) {
	b, _ := testBreaker(t)

	tripBreaker(b)
	b.Reset()

	if err := b.Allow(); err != nil {
		t.Fatalf("call rejected after reset: %v", err)
	}

	status := b.Status()
	if status.State != StateClosed {
		t.Errorf("state = %s, want %s", status.State, StateClosed)
	}
	if status.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", status.ConsecutiveFailures)
	}
}

type callerFunc func(ctx context.Context, service string, req CallRequest) (*CallResponse, error)

func (f callerFunc) Call(ctx context.Context, service string, req CallRequest) (*CallResponse, error) {
	return f(ctx, service, req)
}

func TestInvokeHalfOpenNonTransientFailureReopens(t *testing.T) {
	registry := NewRegistry(BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RecoveryTimeout:  "60s",
	})
	b := registry.Breaker("openai")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	tripBreaker(b)
	now = now.Add(61 * time.Second)

	inv := New(
		registry,
		NewRetryPolicy(RetryConfig{BaseDelay: "1ms", MaxDelay: "5ms"}),
		callerFunc(func(context.Context, string, CallRequest) (*CallResponse, error) {
			return nil, ErrAuthentication
		}),
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	_, err := inv.Invoke(context.Background(), Request{Service: "openai", StepName: "classify"})
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("invoke error = %v, want ErrAuthentication", err)
	}

	// A failed trial call reopens the breaker even when the failure does
	// not count toward the CLOSED threshold.
	if got := b.Status().State; got != StateOpen {
		t.Fatalf("state = %s, want %s after failed trial call", got, StateOpen)
	}

	// The reopened breaker admits a new trial once the recovery window
	// elapses again; it is not stuck rejecting forever.
	now = now.Add(61 * time.Second)
	if err := b.Allow(); err != nil {
		t.Errorf("trial call rejected after recovery timeout: %v", err)
	}
}

func TestBreakerStatusOmitsOpenedAtWhenClosed(t *testing.T) {
	b, _ := testBreaker(t)

	if s := b.Status(); s.OpenedAt != nil {
		t.Error("OpenedAt set on closed breaker")
	}

	tripBreaker(b)
	if s := b.Status(); s.OpenedAt == nil {
		t.Error("OpenedAt missing on open breaker")
	}
}
