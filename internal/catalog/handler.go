package catalog

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/docweave/docweave/pkg/handlers"
	"github.com/docweave/docweave/pkg/pagination"
	"github.com/docweave/docweave/pkg/routes"
)

// Handler provides HTTP endpoints for catalog configuration management.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
	validate   *validator.Validate
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "catalog"),
		pagination: pagination,
		validate:   validator.New(),
	}
}

// Routes returns the route group definition for catalog endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/catalog",
		Children: []routes.Group{
			{
				Prefix: "/steps",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.ListSteps},
					{Method: "GET", Pattern: "/{id}", Handler: h.FindStep},
					{Method: "POST", Pattern: "", Handler: h.CreateStep},
					{Method: "PUT", Pattern: "/{id}", Handler: h.UpdateStep},
					{Method: "DELETE", Pattern: "/{id}", Handler: h.DeleteStep},
				},
			},
			{
				Prefix: "/classes",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.ListClasses},
					{Method: "GET", Pattern: "/{id}", Handler: h.FindClass},
					{Method: "POST", Pattern: "", Handler: h.CreateClass},
					{Method: "PUT", Pattern: "/{id}", Handler: h.UpdateClass},
					{Method: "DELETE", Pattern: "/{id}", Handler: h.DeleteClass},
				},
			},
		},
	}
}

// ListSteps returns a paginated list of pipeline steps with optional filters.
func (h *Handler) ListSteps(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := StepFiltersFromQuery(r.URL.Query())

	result, err := h.sys.ListSteps(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// FindStep returns a single pipeline step by its UUID path parameter.
func (h *Handler) FindStep(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrStepNotFound)
		return
	}

	step, err := h.sys.FindStep(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, step)
}

// CreateStep registers a new pipeline step from a validated JSON command.
func (h *Handler) CreateStep(w http.ResponseWriter, r *http.Request) {
	cmd, ok := h.decodeStepCommand(w, r)
	if !ok {
		return
	}

	step, err := h.sys.CreateStep(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, step)
}

// UpdateStep replaces a pipeline step's configuration.
func (h *Handler) UpdateStep(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrStepNotFound)
		return
	}

	cmd, ok := h.decodeStepCommand(w, r)
	if !ok {
		return
	}

	step, err := h.sys.UpdateStep(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, step)
}

// DeleteStep removes a pipeline step.
func (h *Handler) DeleteStep(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrStepNotFound)
		return
	}

	if err := h.sys.DeleteStep(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListClasses returns all document classes.
func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.sys.ListClasses(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, classes)
}

// FindClass returns a single document class by its UUID path parameter.
func (h *Handler) FindClass(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrClassNotFound)
		return
	}

	class, err := h.sys.FindClass(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, class)
}

// CreateClass registers a new document class.
func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var cmd CreateClassCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	class, err := h.sys.CreateClass(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, class)
}

// UpdateClass replaces a document class.
func (h *Handler) UpdateClass(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrClassNotFound)
		return
	}

	var cmd CreateClassCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	class, err := h.sys.UpdateClass(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, class)
}

// DeleteClass removes a document class.
func (h *Handler) DeleteClass(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrClassNotFound)
		return
	}

	if err := h.sys.DeleteClass(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeStepCommand(w http.ResponseWriter, r *http.Request) (CreateStepCommand, bool) {
	var cmd CreateStepCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return cmd, false
	}
	if err := h.validate.Struct(cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return cmd, false
	}
	return cmd, true
}
