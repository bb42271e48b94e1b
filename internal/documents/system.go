package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/docweave/docweave/pkg/pagination"
)

// System defines the public contract for document domain operations.
// Fetch is the worker's entry point: it returns both the metadata row and
// the raw bytes from blob storage.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	Fetch(ctx context.Context, id uuid.UUID) (*Document, []byte, error)
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
