package jobs

import (
	"net/url"

	"github.com/docweave/docweave/pkg/query"
	"github.com/docweave/docweave/pkg/repository"
)

var jobProjection = query.
	NewProjectionMap("public", "jobs", "j").
	Project("id", "ID").
	Project("document_id", "DocumentID").
	Project("status", "Status").
	Project("priority", "Priority").
	Project("progress", "Progress").
	Project("current_step", "CurrentStep").
	Project("error_message", "ErrorMessage").
	Project("termination_reason", "TerminationReason").
	Project("termination_message", "TerminationMessage").
	Project("cancel_requested", "CancelRequested").
	Project("created_at", "CreatedAt").
	Project("started_at", "StartedAt").
	Project("finished_at", "FinishedAt").
	Project("updated_at", "UpdatedAt")

var jobDefaultSort = []query.SortField{
	{Field: "CreatedAt", Descending: true},
}

// Filters contains optional filtering criteria for job queries.
type Filters struct {
	Status     *string `json:"status,omitempty"`
	Priority   *string `json:"priority,omitempty"`
	DocumentID *string `json:"document_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("Priority", f.Priority).
		WhereEquals("DocumentID", f.DocumentID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}
	if p := values.Get("priority"); p != "" {
		f.Priority = &p
	}
	if d := values.Get("document_id"); d != "" {
		f.DocumentID = &d
	}

	return f
}

func scanJob(s repository.Scanner) (Job, error) {
	var j Job
	err := s.Scan(
		&j.ID,
		&j.DocumentID,
		&j.Status,
		&j.Priority,
		&j.Progress,
		&j.CurrentStep,
		&j.ErrorMessage,
		&j.TerminationReason,
		&j.TerminationMessage,
		&j.CancelRequested,
		&j.CreatedAt,
		&j.StartedAt,
		&j.FinishedAt,
		&j.UpdatedAt,
	)
	return j, err
}
