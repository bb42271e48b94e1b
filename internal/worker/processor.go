package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/docweave/docweave/internal/catalog"
	"github.com/docweave/docweave/internal/costs"
	"github.com/docweave/docweave/internal/documents"
	"github.com/docweave/docweave/internal/jobs"
	"github.com/docweave/docweave/internal/pipeline"
)

// Processor executes queued tasks against the pipeline engine.
type Processor struct {
	documents documents.System
	catalog   catalog.System
	jobs      jobs.System
	usage     costs.System
	engine    *pipeline.Engine
	logger    *slog.Logger
}

// NewProcessor creates a Processor wired to the domain systems.
func NewProcessor(
	docs documents.System,
	cat catalog.System,
	jobSys jobs.System,
	usage costs.System,
	engine *pipeline.Engine,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		documents: docs,
		catalog:   cat,
		jobs:      jobSys,
		usage:     usage,
		engine:    engine,
		logger:    logger.With("system", "worker"),
	}
}

// ProcessTask runs one pipeline:process task. Domain outcomes (error,
// terminated, cancelled) are recorded on the job and reported as handled;
// only infrastructure failures propagate to asynq.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal process payload: %w", err)
	}

	logger := p.logger.With("job", payload.JobID)
	logger.Info("processing job", "document", payload.DocumentID)

	doc, data, err := p.documents.Fetch(ctx, payload.DocumentID)
	if err != nil {
		msg := fmt.Sprintf("fetch document: %v", err)
		if ferr := p.jobs.Failed(ctx, payload.JobID, "", msg); ferr != nil {
			logger.Error("mark job failed", "error", ferr)
		}
		return fmt.Errorf("fetch document %s: %w", payload.DocumentID, err)
	}

	snap, err := p.catalog.Snapshot(ctx)
	if err != nil {
		msg := fmt.Sprintf("snapshot catalog: %v", err)
		if ferr := p.jobs.Failed(ctx, payload.JobID, "", msg); ferr != nil {
			logger.Error("mark job failed", "error", ferr)
		}
		return fmt.Errorf("snapshot catalog: %w", err)
	}

	result, err := p.engine.Run(ctx, pipeline.Input{
		JobID:    payload.JobID,
		Document: data,
		Seed: map[string]string{
			pipeline.KeyDocumentID: doc.ID.String(),
			pipeline.KeyFilename:   doc.Filename,
		},
	}, snap)
	if err != nil {
		return fmt.Errorf("run job %s: %w", payload.JobID, err)
	}

	switch result.Outcome {
	case pipeline.OutcomeCompleted:
		logger.Info("job completed", "steps", result.StepsRun, "class", result.ClassKey)
	case pipeline.OutcomeTerminated:
		logger.Info("job terminated", "reason", result.TerminationReason)
	case pipeline.OutcomeCancelled:
		logger.Info("job cancelled")
	case pipeline.OutcomeError:
		logger.Warn("job failed", "step", result.FailedStep, "error", result.Err)
	}

	return nil
}

// ProcessPrune runs the scheduled usage:prune task.
func (p *Processor) ProcessPrune(ctx context.Context, _ *asynq.Task) error {
	removed, err := p.usage.Prune(ctx)
	if err != nil {
		return fmt.Errorf("prune usage records: %w", err)
	}

	p.logger.Info("usage prune finished", "removed", removed)
	return nil
}
