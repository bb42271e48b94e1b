package invoker

import (
	"log/slog"
	"net/http"

	"github.com/docweave/docweave/pkg/handlers"
	"github.com/docweave/docweave/pkg/routes"
)

// Handler provides administrative HTTP endpoints for circuit breaker inspection and reset.
type Handler struct {
	registry *Registry
	logger   *slog.Logger
}

// NewHandler creates a Handler over the process-wide breaker registry.
func NewHandler(registry *Registry, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger.With("handler", "breakers"),
	}
}

// Routes returns the route group definition for breaker endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/breakers",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "/{service}/reset", Handler: h.Reset},
		},
	}
}

// List returns the current state of every known breaker.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.registry.Statuses())
}

// Reset closes the breaker for the service path parameter.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")
	if !h.registry.Reset(service) {
		handlers.RespondErrorMessage(w, http.StatusNotFound, "no breaker for service "+service)
		return
	}

	h.logger.Info("breaker reset", "service", service)
	handlers.RespondJSON(w, http.StatusOK, map[string]string{"service": service, "state": string(StateClosed)})
}
