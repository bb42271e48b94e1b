package invoker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Attempt outcomes recorded against the usage tracker.
const (
	OutcomeSuccess = "success"
	OutcomeRetried = "retried"
	OutcomeFailed  = "failed"
)

// CallRequest is the logical request shape for a single external model call.
type CallRequest struct {
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// CallResponse is the logical response shape from an external model call.
type CallResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Caller executes a single call against the named external service.
// Implemented by the model provider client resolver.
type Caller interface {
	Call(ctx context.Context, service string, req CallRequest) (*CallResponse, error)
}

// Attempt describes one call attempt for usage accounting, attributed to
// (job, step, model).
type Attempt struct {
	JobID        uuid.UUID
	StepName     string
	Service      string
	Model        string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
	Outcome      string
}

// UsageRecorder receives one record per call attempt. Recording failures
// must not fail the call; implementations log and continue.
type UsageRecorder interface {
	RecordAttempt(ctx context.Context, a Attempt)
}

// Request carries everything needed to invoke one pipeline step's external call.
type Request struct {
	JobID        uuid.UUID
	StepName     string
	Service      string
	Model        string
	Prompt       string
	Temperature  float64
	MaxTokens    int
	RetryEnabled bool
	MaxRetries   int
}

// Invoker wraps external calls in a circuit breaker and retry policy.
// The breaker is the outermost guard: an open breaker fails the request
// immediately without attempting the call or consuming a retry attempt.
type Invoker struct {
	registry *Registry
	policy   RetryPolicy
	caller   Caller
	usage    UsageRecorder
	logger   *slog.Logger
}

// New creates an Invoker. usage may be nil to disable attempt recording.
func New(registry *Registry, policy RetryPolicy, caller Caller, usage UsageRecorder, logger *slog.Logger) *Invoker {
	return &Invoker{
		registry: registry,
		policy:   policy,
		caller:   caller,
		usage:    usage,
		logger:   logger.With("system", "invoker"),
	}
}

// Invoke executes the request's external call. Transient failures are
// retried up to MaxRetries with exponential backoff; every attempt failure
// feeds the service's breaker. CircuitBreakerError is returned as-is and is
// never retried.
func (v *Invoker) Invoke(ctx context.Context, req Request) (*CallResponse, error) {
	breaker := v.registry.Breaker(req.Service)

	attempts := 1
	if req.RetryEnabled && req.MaxRetries > 0 {
		attempts = req.MaxRetries + 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		// Consulted every attempt: another worker may have tripped the
		// breaker between retries.
		if err := breaker.Allow(); err != nil {
			v.logger.WarnContext(
				ctx, "call rejected by circuit breaker",
				"service", req.Service,
				"step", req.StepName,
			)
			return nil, err
		}

		start := time.Now()
		resp, err := v.caller.Call(ctx, req.Service, CallRequest{
			Prompt:      req.Prompt,
			Model:       req.Model,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		latency := time.Since(start)

		if err == nil {
			breaker.Success()
			v.record(ctx, req, resp, latency, OutcomeSuccess)
			return resp, nil
		}

		lastErr = err
		// Only transient failures count toward the CLOSED threshold, but
		// any failure during a HALF_OPEN trial reopens the breaker;
		// otherwise the probe slot is never released.
		if Transient(err) || breaker.Status().State == StateHalfOpen {
			breaker.Failure()
		}

		last := attempt == attempts || !Transient(err)
		outcome := OutcomeRetried
		if last {
			outcome = OutcomeFailed
		}
		v.record(ctx, req, nil, latency, outcome)

		if last {
			break
		}

		v.logger.WarnContext(
			ctx, "call failed, retrying",
			"service", req.Service,
			"step", req.StepName,
			"attempt", attempt,
			"error", err,
		)

		if err := v.policy.Wait(ctx, attempt); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func (v *Invoker) record(ctx context.Context, req Request, resp *CallResponse, latency time.Duration, outcome string) {
	if v.usage == nil {
		return
	}

	a := Attempt{
		JobID:    req.JobID,
		StepName: req.StepName,
		Service:  req.Service,
		Model:    req.Model,
		Latency:  latency,
		Outcome:  outcome,
	}
	if resp != nil {
		a.InputTokens = resp.InputTokens
		a.OutputTokens = resp.OutputTokens
	}

	v.usage.RecordAttempt(ctx, a)
}
