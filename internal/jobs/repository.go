package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/docweave/docweave/pkg/pagination"
	"github.com/docweave/docweave/pkg/query"
	"github.com/docweave/docweave/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
	enqueuer   Enqueuer
}

// New creates a job repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config, enqueuer Enqueuer) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "jobs"),
		pagination: pagination,
		enqueuer:   enqueuer,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

const jobReturning = `
	RETURNING id, document_id, status, priority, progress, current_step,
	          error_message, termination_reason, termination_message,
	          cancel_requested, created_at, started_at, finished_at,
	          updated_at`

func (r *repo) Submit(ctx context.Context, cmd SubmitCommand) (*Job, error) {
	priority := cmd.Priority
	if priority == "" {
		priority = PriorityDefault
	}
	if !ValidPriority(priority) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	q := `
		INSERT INTO jobs(document_id, status, priority)
		VALUES ($1, $2, $3)` +
		jobReturning

	job, err := repository.QueryOne(ctx, r.db, q, []any{cmd.DocumentID, StatusPending, priority}, scanJob)
	if err != nil {
		return nil, repository.MapError(err, ErrJobNotFound, ErrJobDuplicate)
	}

	if err := r.enqueuer.Enqueue(ctx, &job); err != nil {
		// The job row exists but no worker will ever pick it up; fail it
		// so the status surface tells the truth.
		if ferr := r.Failed(ctx, job.ID, "", fmt.Sprintf("enqueue failed: %v", err)); ferr != nil {
			r.logger.ErrorContext(ctx, "mark unqueued job failed", "job", job.ID, "error", ferr)
		}
		return nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	r.logger.Info("job submitted", "job", job.ID, "document", job.DocumentID, "priority", priority)
	return &job, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Job, error) {
	q, args := query.NewBuilder(jobProjection).BuildSingle("ID", id)

	job, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err != nil {
		return nil, repository.MapError(err, ErrJobNotFound, ErrJobDuplicate)
	}
	return &job, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Job], error) {
	page.Normalize(r.pagination)

	qb := query.NewBuilder(jobProjection, jobDefaultSort...)
	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanJob)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

// Cancel flags a pending or running job for cancellation. The flag is
// honored by the worker at the next step boundary; the in-flight step is
// allowed to finish.
func (r *repo) Cancel(ctx context.Context, id uuid.UUID) (*Job, error) {
	q := `
		UPDATE jobs SET cancel_requested = true, updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'RUNNING')` +
		jobReturning

	job, err := repository.QueryOne(ctx, r.db, q, []any{id}, scanJob)
	if err == nil {
		r.logger.Info("job cancellation requested", "job", id)
		return &job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cancel job: %w", err)
	}

	// Distinguish a finished job from a missing one.
	if _, ferr := r.Find(ctx, id); ferr != nil {
		return nil, ferr
	}
	return nil, ErrJobTerminal
}

// Status transitions below are guarded: the WHERE clause names the only
// statuses the transition may leave from, and zero affected rows means
// the job has already moved on.

func (r *repo) Started(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, `
		UPDATE jobs SET status = 'RUNNING', started_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`, id)
}

func (r *repo) Progress(ctx context.Context, id uuid.UUID, stepName string, percent int) error {
	return r.transition(ctx, `
		UPDATE jobs SET progress = $2, current_step = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'RUNNING'`, id, percent, stepName)
}

func (r *repo) Completed(ctx context.Context, id uuid.UUID) error {
	err := r.transition(ctx, `
		UPDATE jobs SET status = 'COMPLETED', progress = 100,
			finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'RUNNING'`, id)
	if err == nil {
		r.logger.Info("job completed", "job", id)
	}
	return err
}

func (r *repo) Failed(ctx context.Context, id uuid.UUID, stepName, message string) error {
	err := r.transition(ctx, `
		UPDATE jobs SET status = 'ERROR', current_step = $2, error_message = $3,
			finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'RUNNING')`, id, stepName, message)
	if err == nil {
		r.logger.Warn("job failed", "job", id, "step", stepName, "error", message)
	}
	return err
}

func (r *repo) Terminated(ctx context.Context, id uuid.UUID, reason, message string) error {
	err := r.transition(ctx, `
		UPDATE jobs SET status = 'TERMINATED', termination_reason = $2,
			termination_message = $3, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'RUNNING'`, id, reason, message)
	if err == nil {
		r.logger.Info("job terminated", "job", id, "reason", reason)
	}
	return err
}

func (r *repo) Cancelled(ctx context.Context, id uuid.UUID) error {
	err := r.transition(ctx, `
		UPDATE jobs SET status = 'CANCELLED', finished_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('PENDING', 'RUNNING')`, id)
	if err == nil {
		r.logger.Info("job cancelled", "job", id)
	}
	return err
}

func (r *repo) CancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var requested bool
	err := r.db.QueryRowContext(ctx, "SELECT cancel_requested FROM jobs WHERE id = $1", id).Scan(&requested)
	if err != nil {
		return false, repository.MapError(err, ErrJobNotFound, ErrJobDuplicate)
	}
	return requested, nil
}

func (r *repo) transition(ctx context.Context, q string, args ...any) error {
	err := repository.ExecExpectOne(ctx, r.db, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidTransition
	}
	return err
}
