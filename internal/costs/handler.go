package costs

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docweave/docweave/pkg/handlers"
	"github.com/docweave/docweave/pkg/pagination"
	"github.com/docweave/docweave/pkg/routes"
)

// Handler provides HTTP endpoints for usage and cost reporting.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "costs"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for usage endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/usage",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/jobs/{id}", Handler: h.ListByJob},
			{Method: "GET", Pattern: "/jobs/{id}/summary", Handler: h.JobUsage},
			{Method: "GET", Pattern: "/models", Handler: h.ModelUsage},
			{Method: "POST", Pattern: "/prune", Handler: h.Prune},
		},
	}
}

// ListByJob returns the paginated invocation records for one job.
func (h *Handler) ListByJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	result, err := h.sys.ListByJob(r.Context(), jobID, page)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// JobUsage returns one job's aggregated token and cost totals.
func (h *Handler) JobUsage(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	usage, err := h.sys.JobUsage(r.Context(), jobID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, usage)
}

// ModelUsage returns per-model aggregates for the reporting window. The
// window defaults to 30 days and accepts a ?since=RFC3339 override.
func (h *Handler) ModelUsage(w http.ResponseWriter, r *http.Request) {
	since := time.Now().AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
			return
		}
		since = parsed
	}

	usage, err := h.sys.ModelUsage(r.Context(), since)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, usage)
}

// Prune removes invocation records past the retention window.
func (h *Handler) Prune(w http.ResponseWriter, r *http.Request) {
	removed, err := h.sys.Prune(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
