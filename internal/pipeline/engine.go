package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/docweave/docweave/internal/catalog"
	"github.com/docweave/docweave/internal/invoker"
	"github.com/docweave/docweave/internal/ocr"
	"github.com/docweave/docweave/pkg/formatting"
)

// Outcome is the terminal disposition of one engine run.
type Outcome string

// Run outcomes. Terminated and Cancelled are successful early exits, not
// failures.
const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeError      Outcome = "error"
	OutcomeTerminated Outcome = "terminated"
	OutcomeCancelled  Outcome = "cancelled"
)

// Invoker executes a model step's external call with retry and breaker
// protection.
type Invoker interface {
	Invoke(ctx context.Context, req invoker.Request) (*invoker.CallResponse, error)
}

// Extractor executes an OCR step via the engine router.
type Extractor interface {
	Extract(ctx context.Context, document []byte) (*ocr.Result, error)
}

// StatusSink receives job state transitions as the engine advances. All
// transitions are monotonic: implementations reject updates against jobs
// already in a terminal status.
type StatusSink interface {
	Started(ctx context.Context, jobID uuid.UUID) error
	Progress(ctx context.Context, jobID uuid.UUID, stepName string, percent int) error
	Completed(ctx context.Context, jobID uuid.UUID) error
	Failed(ctx context.Context, jobID uuid.UUID, stepName, message string) error
	Terminated(ctx context.Context, jobID uuid.UUID, reason, message string) error
	Cancelled(ctx context.Context, jobID uuid.UUID) error
	CancelRequested(ctx context.Context, jobID uuid.UUID) (bool, error)
}

// Input is everything one job brings to an engine run.
type Input struct {
	JobID    uuid.UUID
	Document []byte
	Seed     map[string]string
}

// Result reports how a run ended.
type Result struct {
	Outcome            Outcome
	StepsRun           int
	ClassKey           string
	Context            map[string]string
	TerminationReason  string
	TerminationMessage string
	FailedStep         string
	Err                error
}

// Engine walks a compiled plan against a job context. It is stateless and
// safe for concurrent use by multiple workers; all per-run state lives in
// the Input, the plan, and the job context.
type Engine struct {
	invoke  Invoker
	extract Extractor
	sink    StatusSink
	usage   invoker.UsageRecorder
	logger  *slog.Logger
}

// NewEngine creates an Engine. usage may be nil to disable OCR attempt
// recording (model attempts are recorded inside the invoker).
func NewEngine(invoke Invoker, extract Extractor, sink StatusSink, usage invoker.UsageRecorder, logger *slog.Logger) *Engine {
	return &Engine{
		invoke:  invoke,
		extract: extract,
		sink:    sink,
		usage:   usage,
		logger:  logger.With("system", "pipeline"),
	}
}

// Run compiles and executes the plan for one job. The document class is
// unresolved at entry; when the branching step resolves it, the plan is
// recompiled for the class and execution resumes at the following step.
// The unresolved and resolved plans share an identical prefix through the
// branching step, so no completed step re-runs.
func (e *Engine) Run(ctx context.Context, in Input, snap *catalog.Snapshot) (*Result, error) {
	logger := e.logger.With("job", in.JobID)

	plan, err := Compile(snap, "")
	if err != nil {
		return e.fail(ctx, in.JobID, "", err)
	}

	if err := e.sink.Started(ctx, in.JobID); err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}

	jc := NewContext(in.Seed)
	done := 0
	i := 0

	for i < plan.Len() {
		if outcome := e.checkCancellation(ctx, in.JobID); outcome != nil {
			return outcome, nil
		}

		step := plan.steps[i]

		if !step.Enabled {
			logger.Debug("step disabled, skipping", "step", step.Name)
			i, done = i+1, done+1
			continue
		}

		if missing := step.MissingContext(jc.Has); len(missing) > 0 {
			if step.IsBranching {
				return e.fail(ctx, in.JobID, step.Name,
					fmt.Errorf("%w: %q missing %v", ErrBranchingSkipped, step.Name, missing))
			}

			logger.Info(
				"required context absent, skipping step",
				"step", step.Name,
				"missing", missing,
			)
			i, done = i+1, done+1
			continue
		}

		output, err := e.invokeStep(ctx, in, jc, step, i)
		if err != nil {
			return e.fail(ctx, in.JobID, step.Name, err)
		}

		if step.Stop.Matches(output) {
			logger.Info(
				"stop condition met, terminating",
				"step", step.Name,
				"reason", step.Stop.TerminationReason,
			)

			if err := e.sink.Terminated(ctx, in.JobID, step.Stop.TerminationReason, step.Stop.TerminationMessage); err != nil {
				return nil, fmt.Errorf("mark job terminated: %w", err)
			}

			return &Result{
				Outcome:            OutcomeTerminated,
				StepsRun:           done + 1,
				ClassKey:           plan.ClassKey(),
				Context:            jc.Values(),
				TerminationReason:  step.Stop.TerminationReason,
				TerminationMessage: step.Stop.TerminationMessage,
			}, nil
		}

		if step.OutputVariable != "" {
			jc.Set(step.OutputVariable, output)
		}

		if step.IsBranching {
			jc.Set(step.BranchingField, output)

			resolved, err := Compile(snap, output)
			if err != nil {
				return e.fail(ctx, in.JobID, step.Name, err)
			}

			logger.Info(
				"document class resolved",
				"step", step.Name,
				"class", output,
				"plan_steps", resolved.Len(),
			)
			plan = resolved
		}

		done++
		i++

		percent := done * 100 / plan.Len()
		if err := e.sink.Progress(ctx, in.JobID, step.Name, percent); err != nil {
			return nil, fmt.Errorf("update job progress: %w", err)
		}
	}

	if err := e.sink.Completed(ctx, in.JobID); err != nil {
		return nil, fmt.Errorf("mark job completed: %w", err)
	}

	return &Result{
		Outcome:  OutcomeCompleted,
		StepsRun: done,
		ClassKey: plan.ClassKey(),
		Context:  jc.Values(),
	}, nil
}

// invokeStep executes one step's external call, routing OCR steps through
// the extraction router and everything else through the model invoker.
func (e *Engine) invokeStep(ctx context.Context, in Input, jc *Context, step catalog.Step, position int) (string, error) {
	var (
		output string
		err    error
	)

	switch step.Kind {
	case catalog.KindOCR:
		output, err = e.extractStep(ctx, in, jc, step)
	default:
		output, err = e.modelStep(ctx, in, jc, step)
	}

	if err != nil {
		return "", &StepError{Step: step.Name, Order: position, Err: err}
	}

	return output, nil
}

func (e *Engine) modelStep(ctx context.Context, in Input, jc *Context, step catalog.Step) (string, error) {
	resp, err := e.invoke.Invoke(ctx, invoker.Request{
		JobID:        in.JobID,
		StepName:     step.Name,
		Service:      step.Service,
		Model:        step.Model,
		Prompt:       jc.Render(step.PromptTemplate),
		Temperature:  step.Temperature,
		MaxTokens:    step.MaxTokens,
		RetryEnabled: step.RetryOnFailure,
		MaxRetries:   step.MaxRetries,
	})
	if err != nil {
		return "", err
	}

	if step.OutputFormat == "json" {
		raw, err := formatting.Parse[json.RawMessage](resp.Text)
		if err != nil {
			return "", fmt.Errorf("step output is not valid json: %w", err)
		}
		return string(raw), nil
	}

	return resp.Text, nil
}

func (e *Engine) extractStep(ctx context.Context, in Input, jc *Context, step catalog.Step) (string, error) {
	start := time.Now()
	result, err := e.extract.Extract(ctx, in.Document)
	latency := time.Since(start)

	if e.usage != nil {
		outcome := invoker.OutcomeSuccess
		model := ""
		if err != nil {
			outcome = invoker.OutcomeFailed
		} else {
			model = result.Engine
		}
		e.usage.RecordAttempt(ctx, invoker.Attempt{
			JobID:    in.JobID,
			StepName: step.Name,
			Service:  step.Service,
			Model:    model,
			Latency:  latency,
			Outcome:  outcome,
		})
	}

	if err != nil {
		return "", err
	}

	jc.Set(KeyOCRConfidence, strconv.FormatFloat(result.Confidence, 'f', -1, 64))
	jc.Set(KeyOCREngine, result.Engine)
	return result.Text, nil
}

// checkCancellation inspects the context and the job's cancel flag at a step
// boundary. Returns a terminal Result when the run should stop, nil otherwise.
func (e *Engine) checkCancellation(ctx context.Context, jobID uuid.UUID) *Result {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// Job exceeded its total-time budget.
			res, _ := e.fail(context.WithoutCancel(ctx), jobID, "", fmt.Errorf("job timeout exceeded: %w", err))
			return res
		}
		return e.cancel(context.WithoutCancel(ctx), jobID)
	}

	cancelled, err := e.sink.CancelRequested(ctx, jobID)
	if err != nil {
		e.logger.Warn("cancel check failed", "job", jobID, "error", err)
		return nil
	}
	if cancelled {
		return e.cancel(ctx, jobID)
	}

	return nil
}

func (e *Engine) cancel(ctx context.Context, jobID uuid.UUID) *Result {
	if err := e.sink.Cancelled(ctx, jobID); err != nil {
		e.logger.Error("mark job cancelled failed", "job", jobID, "error", err)
	}
	return &Result{Outcome: OutcomeCancelled}
}

func (e *Engine) fail(ctx context.Context, jobID uuid.UUID, stepName string, cause error) (*Result, error) {
	if err := e.sink.Failed(ctx, jobID, stepName, cause.Error()); err != nil {
		return nil, fmt.Errorf("mark job failed: %w", err)
	}

	return &Result{
		Outcome:    OutcomeError,
		FailedStep: stepName,
		Err:        cause,
	}, nil
}
