// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/infrastructure"
	"github.com/docweave/docweave/pkg/middleware"
	"github.com/docweave/docweave/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// The returned Domain carries the systems the worker pool shares with the API.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, *Domain, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(cfg, runtime)

	mux := http.NewServeMux()
	registerRoutes(mux, domain, cfg, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Infrastructure.Logger))

	return m, domain, nil
}
