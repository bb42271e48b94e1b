// Package worker runs document processing jobs off prioritized Redis
// queues. The API enqueues one task per submitted job; the worker pool
// fetches the document, snapshots the catalog, and hands both to the
// pipeline engine. Retries happen inside the invoker, not at the queue:
// tasks run at most once.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/docweave/docweave/internal/jobs"
)

// Task types routed through the queues.
const (
	TaskTypeProcess = "pipeline:process"
	TaskTypePrune   = "usage:prune"
)

// ProcessPayload is the wire shape of a pipeline:process task.
type ProcessPayload struct {
	JobID      uuid.UUID `json:"job_id"`
	DocumentID uuid.UUID `json:"document_id"`
}

// Client enqueues jobs onto their priority queues. It implements the job
// domain's Enqueuer contract.
type Client struct {
	client *asynq.Client
	config Config
	logger *slog.Logger
}

// NewClient creates a queue client from the worker configuration.
func NewClient(config Config, logger *slog.Logger) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		}),
		config: config,
		logger: logger.With("system", "worker"),
	}
}

// Enqueue dispatches one submitted job to the queue matching its priority.
// MaxRetry is zero: a crashed run surfaces as a failed job, never as a
// silent re-execution of completed steps.
func (c *Client) Enqueue(ctx context.Context, job *jobs.Job) error {
	payload, err := json.Marshal(ProcessPayload{
		JobID:      job.ID,
		DocumentID: job.DocumentID,
	})
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeProcess, payload)

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(job.Priority),
		asynq.MaxRetry(0),
		asynq.Timeout(c.config.JobTimeoutDuration()),
		asynq.Retention(c.config.RetentionDuration()),
	)
	if err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	c.logger.Debug("task enqueued", "job", job.ID, "queue", info.Queue, "task", info.ID)
	return nil
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
