package costs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docweave/docweave/internal/invoker"
	"github.com/docweave/docweave/pkg/pagination"
	"github.com/docweave/docweave/pkg/query"
	"github.com/docweave/docweave/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
	config     Config
}

// New creates a usage tracking repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config, config Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "costs"),
		pagination: pagination,
		config:     config,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

// RecordAttempt prices and persists one call attempt. Persistence failures
// are logged and swallowed: usage accounting never fails the call it
// describes.
func (r *repo) RecordAttempt(ctx context.Context, a invoker.Attempt) {
	cost, priced := r.config.Price(a.Model, a.InputTokens, a.OutputTokens)
	if !priced {
		r.logger.WarnContext(
			ctx, "model missing from pricing table, recording zero cost",
			"model", a.Model,
			"job", a.JobID,
			"step", a.StepName,
		)
	}

	q := `
		INSERT INTO invocation_records(
			job_id, step_name, service, model, input_tokens,
			output_tokens, latency_ms, outcome, cost
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, q,
		a.JobID,
		a.StepName,
		a.Service,
		a.Model,
		a.InputTokens,
		a.OutputTokens,
		a.Latency.Milliseconds(),
		a.Outcome,
		cost,
	)
	if err != nil {
		r.logger.ErrorContext(
			ctx, "record attempt failed",
			"job", a.JobID,
			"step", a.StepName,
			"error", err,
		)
	}
}

func (r *repo) ListByJob(
	ctx context.Context,
	jobID uuid.UUID,
	page pagination.PageRequest,
) (*pagination.PageResult[Record], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(recordProjection, recordDefaultSort...).
		WhereEquals("JobID", jobID)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) JobUsage(ctx context.Context, jobID uuid.UUID) (*JobUsage, error) {
	q := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'retried'),
			COUNT(*) FILTER (WHERE outcome = 'failed'),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost), 0)
		FROM invocation_records
		WHERE job_id = $1`

	usage := JobUsage{JobID: jobID}
	err := r.db.QueryRowContext(ctx, q, jobID).Scan(
		&usage.Attempts,
		&usage.Retries,
		&usage.Failures,
		&usage.InputTokens,
		&usage.OutputTokens,
		&usage.TotalCost,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate job usage: %w", err)
	}

	return &usage, nil
}

func (r *repo) ModelUsage(ctx context.Context, since time.Time) ([]ModelUsage, error) {
	q := `
		SELECT
			model,
			COUNT(*),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost), 0)
		FROM invocation_records
		WHERE created_at >= $1
		GROUP BY model
		ORDER BY SUM(cost) DESC`

	usage, err := repository.QueryMany(ctx, r.db, q, []any{since}, func(s repository.Scanner) (ModelUsage, error) {
		var m ModelUsage
		err := s.Scan(&m.Model, &m.Attempts, &m.InputTokens, &m.OutputTokens, &m.TotalCost)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate model usage: %w", err)
	}

	return usage, nil
}

// Prune deletes records older than the configured retention window and
// returns the number removed.
func (r *repo) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-r.config.Retention())

	res, err := r.db.ExecContext(ctx, "DELETE FROM invocation_records WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}

	if removed > 0 {
		r.logger.Info("pruned invocation records", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
