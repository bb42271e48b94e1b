package catalog

import (
	"encoding/json"
	"net/url"

	"github.com/docweave/docweave/pkg/query"
	"github.com/docweave/docweave/pkg/repository"
)

var stepProjection = query.
	NewProjectionMap("public", "pipeline_steps", "s").
	Project("id", "ID").
	Project("name", "Name").
	Project("step_order", "Order").
	Project("enabled", "Enabled").
	Project("kind", "Kind").
	Project("service", "Service").
	Project("model", "Model").
	Project("temperature", "Temperature").
	Project("max_tokens", "MaxTokens").
	Project("prompt_template", "PromptTemplate").
	Project("output_format", "OutputFormat").
	Project("output_variable", "OutputVariable").
	Project("retry_on_failure", "RetryOnFailure").
	Project("max_retries", "MaxRetries").
	Project("document_class_id", "DocumentClassID").
	Project("is_branching", "IsBranching").
	Project("branching_field", "BranchingField").
	Project("post_branching", "PostBranching").
	Project("required_context", "RequiredContext").
	Project("stop_conditions", "Stop").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var classProjection = query.
	NewProjectionMap("public", "document_classes", "c").
	Project("id", "ID").
	Project("key", "Key").
	Project("display_name", "DisplayName").
	Project("enabled", "Enabled").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var stepDefaultSort = []query.SortField{
	{Field: "PostBranching"},
	{Field: "Order"},
	{Field: "Name"},
}

// StepFilters contains optional filtering criteria for step queries.
type StepFilters struct {
	Enabled         *bool   `json:"enabled,omitempty"`
	Kind            *string `json:"kind,omitempty"`
	Service         *string `json:"service,omitempty"`
	DocumentClassID *string `json:"document_class_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f StepFilters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Enabled", f.Enabled).
		WhereEquals("Kind", f.Kind).
		WhereEquals("Service", f.Service).
		WhereEquals("DocumentClassID", f.DocumentClassID)
}

// StepFiltersFromQuery extracts filter values from URL query parameters.
func StepFiltersFromQuery(values url.Values) StepFilters {
	var f StepFilters

	if e := values.Get("enabled"); e != "" {
		v := e == "true"
		f.Enabled = &v
	}

	if k := values.Get("kind"); k != "" {
		f.Kind = &k
	}

	if s := values.Get("service"); s != "" {
		f.Service = &s
	}

	if c := values.Get("document_class_id"); c != "" {
		f.DocumentClassID = &c
	}

	return f
}

// scanStep decodes a pipeline step row. required_context and stop_conditions
// are stored as jsonb and unmarshaled from raw bytes.
func scanStep(s repository.Scanner) (Step, error) {
	var (
		step         Step
		requiredJSON []byte
		stopJSON     []byte
	)

	err := s.Scan(
		&step.ID,
		&step.Name,
		&step.Order,
		&step.Enabled,
		&step.Kind,
		&step.Service,
		&step.Model,
		&step.Temperature,
		&step.MaxTokens,
		&step.PromptTemplate,
		&step.OutputFormat,
		&step.OutputVariable,
		&step.RetryOnFailure,
		&step.MaxRetries,
		&step.DocumentClassID,
		&step.IsBranching,
		&step.BranchingField,
		&step.PostBranching,
		&requiredJSON,
		&stopJSON,
		&step.CreatedAt,
		&step.UpdatedAt,
	)
	if err != nil {
		return step, err
	}

	if len(requiredJSON) > 0 {
		if err := json.Unmarshal(requiredJSON, &step.RequiredContext); err != nil {
			return step, err
		}
	}
	if len(stopJSON) > 0 {
		if err := json.Unmarshal(stopJSON, &step.Stop); err != nil {
			return step, err
		}
	}

	return step, nil
}

func scanClass(s repository.Scanner) (DocumentClass, error) {
	var c DocumentClass
	err := s.Scan(
		&c.ID,
		&c.Key,
		&c.DisplayName,
		&c.Enabled,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
