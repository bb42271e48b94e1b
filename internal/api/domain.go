package api

import (
	"github.com/docweave/docweave/internal/catalog"
	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/costs"
	"github.com/docweave/docweave/internal/documents"
	"github.com/docweave/docweave/internal/invoker"
	"github.com/docweave/docweave/internal/jobs"
	"github.com/docweave/docweave/internal/models"
	"github.com/docweave/docweave/internal/ocr"
	"github.com/docweave/docweave/internal/pipeline"
	"github.com/docweave/docweave/internal/worker"
)

// Domain holds all domain systems that comprise the API, plus the pipeline
// engine and queue client shared with the worker pool.
type Domain struct {
	Catalog   catalog.System
	Costs     costs.System
	Documents documents.System
	Jobs      jobs.System
	Invoker   *invoker.Invoker
	Engine    *pipeline.Engine
	Queue     *worker.Client
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	db := runtime.Database.Connection()

	usage := costs.New(db, runtime.Logger, runtime.Pagination, cfg.Usage)
	queue := worker.NewClient(cfg.Worker, runtime.Logger)
	jobSystem := jobs.New(db, runtime.Logger, runtime.Pagination, queue)
	docSystem := documents.New(db, runtime.Storage, runtime.Logger, runtime.Pagination)
	catalogSystem := catalog.New(db, runtime.Logger, runtime.Pagination)

	invoke := invoker.New(
		runtime.Breakers,
		invoker.NewRetryPolicy(cfg.Retry),
		models.NewResolver(&cfg.Models),
		usage,
		runtime.Logger,
	)

	engine := pipeline.NewEngine(
		invoke,
		ocr.NewRouter(&cfg.OCR, runtime.Logger),
		jobSystem,
		usage,
		runtime.Logger,
	)

	return &Domain{
		Catalog:   catalogSystem,
		Costs:     usage,
		Documents: docSystem,
		Jobs:      jobSystem,
		Invoker:   invoke,
		Engine:    engine,
		Queue:     queue,
	}
}
