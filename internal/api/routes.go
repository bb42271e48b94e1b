package api

import (
	"net/http"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/invoker"
	"github.com/docweave/docweave/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) {
	routes.Register(
		mux,
		domain.Documents.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
		domain.Catalog.Handler().Routes(),
		domain.Jobs.Handler().Routes(),
		domain.Costs.Handler().Routes(),
		invoker.NewHandler(runtime.Breakers, runtime.Logger).Routes(),
	)
}
