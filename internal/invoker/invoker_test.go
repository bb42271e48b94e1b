package invoker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/docweave/docweave/internal/invoker"
)

type scriptedCaller struct {
	errs  []error
	calls int
}

func (c *scriptedCaller) Call(ctx context.Context, service string, req invoker.CallRequest) (*invoker.CallResponse, error) {
	idx := c.calls
	c.calls++

	if idx < len(c.errs) && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	return &invoker.CallResponse{Text: "ok", InputTokens: 100, OutputTokens: 20}, nil
}

type attemptLog struct {
	attempts []invoker.Attempt
}

func (l *attemptLog) RecordAttempt(ctx context.Context, a invoker.Attempt) {
	l.attempts = append(l.attempts, a)
}

func (l *attemptLog) outcomes() []string {
	out := make([]string, len(l.attempts))
	for i, a := range l.attempts {
		out[i] = a.Outcome
	}
	return out
}

func testInvoker(t *testing.T, caller invoker.Caller, usage invoker.UsageRecorder) *invoker.Invoker {
	t.Helper()

	registry := invoker.NewRegistry(invoker.BreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RecoveryTimeout:  "60s",
	})
	policy := invoker.NewRetryPolicy(invoker.RetryConfig{
		BaseDelay: "1ms",
		MaxDelay:  "5ms",
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return invoker.New(registry, policy, caller, usage, logger)
}

func testRequest() invoker.Request {
	return invoker.Request{
		JobID:        uuid.New(),
		StepName:     "classify",
		Service:      "openai",
		Model:        "gpt-4o",
		Prompt:       "classify this",
		RetryEnabled: true,
		MaxRetries:   2,
	}
}

func TestInvokeSuccess(t *testing.T) {
	caller := &scriptedCaller{}
	usage := &attemptLog{}
	inv := testInvoker(t, caller, usage)

	resp, err := inv.Invoke(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q, want ok", resp.Text)
	}
	if caller.calls != 1 {
		t.Errorf("calls = %d, want 1", caller.calls)
	}

	if len(usage.attempts) != 1 || usage.attempts[0].Outcome != invoker.OutcomeSuccess {
		t.Fatalf("outcomes = %v, want [success]", usage.outcomes())
	}
	if usage.attempts[0].InputTokens != 100 || usage.attempts[0].OutputTokens != 20 {
		t.Errorf("tokens = %d/%d, want 100/20", usage.attempts[0].InputTokens, usage.attempts[0].OutputTokens)
	}
}

func TestInvokeRetriesTransientFailure(t *testing.T) {
	caller := &scriptedCaller{errs: []error{invoker.ErrServiceUnavailable, invoker.ErrTimeout}}
	usage := &attemptLog{}
	inv := testInvoker(t, caller, usage)

	resp, err := inv.Invoke(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("invoke failed after retries: %v", err)
	}
	if resp == nil {
		t.Fatal("nil response from successful retry")
	}
	if caller.calls != 3 {
		t.Errorf("calls = %d, want 3", caller.calls)
	}

	want := []string{invoker.OutcomeRetried, invoker.OutcomeRetried, invoker.OutcomeSuccess}
	got := usage.outcomes()
	if len(got) != len(want) {
		t.Fatalf("outcomes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("outcome[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInvokeExhaustsRetries(t *testing.T) {
	caller := &scriptedCaller{errs: []error{
		invoker.ErrServiceUnavailable,
		invoker.ErrServiceUnavailable,
		invoker.ErrServiceUnavailable,
	}}
	usage := &attemptLog{}
	inv := testInvoker(t, caller, usage)

	_, err := inv.Invoke(context.Background(), testRequest())
	if !errors.Is(err, invoker.ErrServiceUnavailable) {
		t.Fatalf("error = %v, want ErrServiceUnavailable", err)
	}
	if caller.calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", caller.calls)
	}
	if got := usage.outcomes(); got[len(got)-1] != invoker.OutcomeFailed {
		t.Errorf("final outcome = %q, want failed", got[len(got)-1])
	}
}

func TestInvokeNonTransientNotRetried(t *testing.T) {
	caller := &scriptedCaller{errs: []error{invoker.ErrAuthentication}}
	usage := &attemptLog{}
	inv := testInvoker(t, caller, usage)

	_, err := inv.Invoke(context.Background(), testRequest())
	if !errors.Is(err, invoker.ErrAuthentication) {
		t.Fatalf("error = %v, want ErrAuthentication", err)
	}
	if caller.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on auth failure)", caller.calls)
	}
	if got := usage.outcomes(); len(got) != 1 || got[0] != invoker.OutcomeFailed {
		t.Errorf("outcomes = %v, want [failed]", got)
	}
}

func TestInvokeRetryDisabled(t *testing.T) {
	caller := &scriptedCaller{errs: []error{invoker.ErrTimeout}}
	inv := testInvoker(t, caller, &attemptLog{})

	req := testRequest()
	req.RetryEnabled = false

	if _, err := inv.Invoke(context.Background(), req); err == nil {
		t.Fatal("expected error with retry disabled")
	}
	if caller.calls != 1 {
		t.Errorf("calls = %d, want 1", caller.calls)
	}
}

func TestInvokeBreakerOpensAndRejects(t *testing.T) {
	// 3 transient failures per invoke with threshold 3: the first invoke
	// trips the breaker, the second is rejected without calling out.
	caller := &scriptedCaller{errs: []error{
		invoker.ErrServiceUnavailable,
		invoker.ErrServiceUnavailable,
		invoker.ErrServiceUnavailable,
	}}
	inv := testInvoker(t, caller, &attemptLog{})

	if _, err := inv.Invoke(context.Background(), testRequest()); err == nil {
		t.Fatal("expected failure from exhausted retries")
	}

	callsBefore := caller.calls
	_, err := inv.Invoke(context.Background(), testRequest())

	var cbErr *invoker.CircuitBreakerError
	if !errors.As(err, &cbErr) {
		t.Fatalf("error = %T, want *CircuitBreakerError", err)
	}
	if caller.calls != callsBefore {
		t.Errorf("open breaker still made %d calls", caller.calls-callsBefore)
	}
}

func TestTransientClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"service unavailable", invoker.ErrServiceUnavailable, true},
		{"timeout sentinel", invoker.ErrTimeout, true},
		{"rate limited", invoker.ErrRateLimited, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped sentinel", fmt.Errorf("call openai: %w", invoker.ErrTimeout), true},
		{"message match", errors.New("dial tcp: connection refused"), true},
		{"authentication", invoker.ErrAuthentication, false},
		{"breaker error", &invoker.CircuitBreakerError{Service: "openai"}, false},
		{"generic", errors.New("invalid request body"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := invoker.Transient(tt.err); got != tt.want {
				t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
