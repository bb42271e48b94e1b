package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/docweave/docweave/internal/pipeline"
	"github.com/docweave/docweave/pkg/pagination"
)

// SubmitCommand requests processing of a stored document.
type SubmitCommand struct {
	DocumentID uuid.UUID `json:"document_id" validate:"required"`
	Priority   string    `json:"priority" validate:"omitempty,oneof=high default low"`
}

// Enqueuer dispatches a submitted job to its priority queue. Implemented
// by the worker's task client.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// System is the job domain surface. It doubles as the pipeline engine's
// status sink: workers report transitions through the same guarded
// repository the API reads.
type System interface {
	pipeline.StatusSink

	Handler() *Handler
	Submit(ctx context.Context, cmd SubmitCommand) (*Job, error)
	Find(ctx context.Context, id uuid.UUID) (*Job, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Job], error)
	Cancel(ctx context.Context, id uuid.UUID) (*Job, error)
}
