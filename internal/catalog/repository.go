package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docweave/docweave/pkg/pagination"
	"github.com/docweave/docweave/pkg/query"
	"github.com/docweave/docweave/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a catalog repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "catalog"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Snapshot(ctx context.Context) (*Snapshot, error) {
	var (
		steps   []Step
		classes []DocumentClass
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stepSQL, stepArgs := query.NewBuilder(stepProjection, stepDefaultSort...).Build()
		loaded, err := repository.QueryMany(gctx, r.db, stepSQL, stepArgs, scanStep)
		if err != nil {
			return fmt.Errorf("snapshot steps: %w", err)
		}
		steps = loaded
		return nil
	})

	g.Go(func() error {
		classSQL, classArgs := query.NewBuilder(classProjection, query.SortField{Field: "Key"}).Build()
		loaded, err := repository.QueryMany(gctx, r.db, classSQL, classArgs, scanClass)
		if err != nil {
			return fmt.Errorf("snapshot classes: %w", err)
		}
		classes = loaded
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Snapshot{
		Steps:   steps,
		Classes: classes,
		TakenAt: time.Now(),
	}, nil
}

func (r *repo) ListSteps(
	ctx context.Context,
	page pagination.PageRequest,
	filters StepFilters,
) (*pagination.PageResult[Step], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(stepProjection, stepDefaultSort...).
		WhereSearch(page.Search, "Name", "Service", "Model")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count steps: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanStep)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) FindStep(ctx context.Context, id uuid.UUID) (*Step, error) {
	q, args := query.NewBuilder(stepProjection).BuildSingle("ID", id)

	s, err := repository.QueryOne(ctx, r.db, q, args, scanStep)
	if err != nil {
		return nil, repository.MapError(err, ErrStepNotFound, ErrStepDuplicate)
	}
	return &s, nil
}

const stepReturning = `
	RETURNING id, name, step_order, enabled, kind, service, model,
	          temperature, max_tokens, prompt_template, output_format,
	          output_variable, retry_on_failure, max_retries,
	          document_class_id, is_branching, branching_field,
	          post_branching, required_context, stop_conditions,
	          created_at, updated_at`

func (r *repo) CreateStep(ctx context.Context, cmd CreateStepCommand) (*Step, error) {
	requiredJSON, stopJSON, err := marshalStepJSON(cmd)
	if err != nil {
		return nil, err
	}

	q := `
		INSERT INTO pipeline_steps(
			name, step_order, enabled, kind, service, model, temperature,
			max_tokens, prompt_template, output_format, output_variable,
			retry_on_failure, max_retries, document_class_id, is_branching,
			branching_field, post_branching, required_context, stop_conditions
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)` +
		stepReturning

	s, err := repository.QueryOne(ctx, r.db, q, stepArgs(cmd, requiredJSON, stopJSON), scanStep)
	if err != nil {
		return nil, repository.MapError(err, ErrStepNotFound, ErrStepDuplicate)
	}

	r.logger.Info("pipeline step created", "step", s.Name, "id", s.ID)
	return &s, nil
}

func (r *repo) UpdateStep(ctx context.Context, id uuid.UUID, cmd UpdateStepCommand) (*Step, error) {
	requiredJSON, stopJSON, err := marshalStepJSON(cmd)
	if err != nil {
		return nil, err
	}

	q := `
		UPDATE pipeline_steps SET
			name = $2, step_order = $3, enabled = $4, kind = $5,
			service = $6, model = $7, temperature = $8, max_tokens = $9,
			prompt_template = $10, output_format = $11, output_variable = $12,
			retry_on_failure = $13, max_retries = $14, document_class_id = $15,
			is_branching = $16, branching_field = $17, post_branching = $18,
			required_context = $19, stop_conditions = $20, updated_at = NOW()
		WHERE id = $1` +
		stepReturning

	args := append([]any{id}, stepArgs(cmd, requiredJSON, stopJSON)...)
	s, err := repository.QueryOne(ctx, r.db, q, args, scanStep)
	if err != nil {
		return nil, repository.MapError(err, ErrStepNotFound, ErrStepDuplicate)
	}

	r.logger.Info("pipeline step updated", "step", s.Name, "id", s.ID)
	return &s, nil
}

func (r *repo) DeleteStep(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM pipeline_steps WHERE id = $1", id)
	if err != nil {
		return repository.MapError(err, ErrStepNotFound, ErrStepDuplicate)
	}

	r.logger.Info("pipeline step deleted", "id", id)
	return nil
}

func (r *repo) ListClasses(ctx context.Context) ([]DocumentClass, error) {
	q, args := query.NewBuilder(classProjection, query.SortField{Field: "Key"}).Build()

	classes, err := repository.QueryMany(ctx, r.db, q, args, scanClass)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	return classes, nil
}

func (r *repo) FindClass(ctx context.Context, id uuid.UUID) (*DocumentClass, error) {
	q, args := query.NewBuilder(classProjection).BuildSingle("ID", id)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanClass)
	if err != nil {
		return nil, repository.MapError(err, ErrClassNotFound, ErrClassDuplicate)
	}
	return &c, nil
}

func (r *repo) CreateClass(ctx context.Context, cmd CreateClassCommand) (*DocumentClass, error) {
	q := `
		INSERT INTO document_classes(key, display_name, enabled)
		VALUES ($1, $2, $3)
		RETURNING id, key, display_name, enabled, created_at, updated_at`

	c, err := repository.QueryOne(ctx, r.db, q, []any{cmd.Key, cmd.DisplayName, cmd.Enabled}, scanClass)
	if err != nil {
		return nil, repository.MapError(err, ErrClassNotFound, ErrClassDuplicate)
	}

	r.logger.Info("document class created", "key", c.Key, "id", c.ID)
	return &c, nil
}

func (r *repo) UpdateClass(ctx context.Context, id uuid.UUID, cmd CreateClassCommand) (*DocumentClass, error) {
	q := `
		UPDATE document_classes SET
			key = $2, display_name = $3, enabled = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING id, key, display_name, enabled, created_at, updated_at`

	c, err := repository.QueryOne(ctx, r.db, q, []any{id, cmd.Key, cmd.DisplayName, cmd.Enabled}, scanClass)
	if err != nil {
		return nil, repository.MapError(err, ErrClassNotFound, ErrClassDuplicate)
	}

	r.logger.Info("document class updated", "key", c.Key, "id", c.ID)
	return &c, nil
}

func (r *repo) DeleteClass(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM document_classes WHERE id = $1", id)
	if err != nil {
		return repository.MapError(err, ErrClassNotFound, ErrClassDuplicate)
	}

	r.logger.Info("document class deleted", "id", id)
	return nil
}

func marshalStepJSON(cmd CreateStepCommand) ([]byte, []byte, error) {
	required := cmd.RequiredContext
	if required == nil {
		required = []string{}
	}

	requiredJSON, err := json.Marshal(required)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal required_context: %w", err)
	}

	stopJSON, err := json.Marshal(cmd.Stop)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal stop_conditions: %w", err)
	}

	return requiredJSON, stopJSON, nil
}

func stepArgs(cmd CreateStepCommand, requiredJSON, stopJSON []byte) []any {
	return []any{
		cmd.Name,
		cmd.Order,
		cmd.Enabled,
		string(cmd.Kind),
		cmd.Service,
		cmd.Model,
		cmd.Temperature,
		cmd.MaxTokens,
		cmd.PromptTemplate,
		cmd.OutputFormat,
		cmd.OutputVariable,
		cmd.RetryOnFailure,
		cmd.MaxRetries,
		cmd.DocumentClassID,
		cmd.IsBranching,
		cmd.BranchingField,
		cmd.PostBranching,
		requiredJSON,
		stopJSON,
	}
}
