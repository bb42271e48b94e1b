package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/docweave/docweave/pkg/pagination"
)

// CreateStepCommand carries the data needed to register a pipeline step.
type CreateStepCommand struct {
	Name            string        `json:"name" validate:"required"`
	Order           int           `json:"order" validate:"gte=0"`
	Enabled         bool          `json:"enabled"`
	Kind            Kind          `json:"kind" validate:"required,oneof=model ocr"`
	Service         string        `json:"service" validate:"required"`
	Model           string        `json:"model"`
	Temperature     float64       `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens       int           `json:"max_tokens" validate:"gte=0"`
	PromptTemplate  string        `json:"prompt_template"`
	OutputFormat    string        `json:"output_format"`
	OutputVariable  string        `json:"output_variable"`
	RetryOnFailure  bool          `json:"retry_on_failure"`
	MaxRetries      int           `json:"max_retries" validate:"gte=0,lte=10"`
	DocumentClassID *uuid.UUID    `json:"document_class_id"`
	IsBranching     bool          `json:"is_branching_step"`
	BranchingField  string        `json:"branching_field" validate:"required_if=IsBranching true"`
	PostBranching   bool          `json:"post_branching"`
	RequiredContext []string      `json:"required_context_variables"`
	Stop            StopCondition `json:"stop_conditions"`
}

// UpdateStepCommand carries the full replacement state for a pipeline step.
type UpdateStepCommand = CreateStepCommand

// CreateClassCommand carries the data needed to register a document class.
type CreateClassCommand struct {
	Key         string `json:"key" validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
	Enabled     bool   `json:"enabled"`
}

// System defines the public contract for catalog domain operations.
type System interface {
	Handler() *Handler

	// Snapshot returns a read-only view of enabled-and-disabled steps and
	// classes as they exist now. Jobs compile against this view; later
	// catalog mutations do not affect it.
	Snapshot(ctx context.Context) (*Snapshot, error)

	ListSteps(ctx context.Context, page pagination.PageRequest, filters StepFilters) (*pagination.PageResult[Step], error)
	FindStep(ctx context.Context, id uuid.UUID) (*Step, error)
	CreateStep(ctx context.Context, cmd CreateStepCommand) (*Step, error)
	UpdateStep(ctx context.Context, id uuid.UUID, cmd UpdateStepCommand) (*Step, error)
	DeleteStep(ctx context.Context, id uuid.UUID) error

	ListClasses(ctx context.Context) ([]DocumentClass, error)
	FindClass(ctx context.Context, id uuid.UUID) (*DocumentClass, error)
	CreateClass(ctx context.Context, cmd CreateClassCommand) (*DocumentClass, error)
	UpdateClass(ctx context.Context, id uuid.UUID, cmd CreateClassCommand) (*DocumentClass, error)
	DeleteClass(ctx context.Context, id uuid.UUID) error
}
