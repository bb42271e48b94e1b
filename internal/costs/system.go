package costs

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docweave/docweave/internal/invoker"
	"github.com/docweave/docweave/pkg/pagination"
)

// ErrRecordNotFound indicates the invocation record does not exist.
var ErrRecordNotFound = errors.New("invocation record not found")

// errRecordDuplicate never surfaces: records carry generated identifiers.
var errRecordDuplicate = errors.New("duplicate invocation record")

// MapHTTPStatus maps usage errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrRecordNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// System is the usage tracking surface. RecordAttempt satisfies the
// invoker's recorder contract.
type System interface {
	invoker.UsageRecorder

	Handler() *Handler
	ListByJob(ctx context.Context, jobID uuid.UUID, page pagination.PageRequest) (*pagination.PageResult[Record], error)
	JobUsage(ctx context.Context, jobID uuid.UUID) (*JobUsage, error)
	ModelUsage(ctx context.Context, since time.Time) ([]ModelUsage, error)
	Prune(ctx context.Context) (int64, error)
}
