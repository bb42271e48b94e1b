package costs

import (
	"github.com/docweave/docweave/pkg/query"
	"github.com/docweave/docweave/pkg/repository"
)

var recordProjection = query.
	NewProjectionMap("public", "invocation_records", "ir").
	Project("id", "ID").
	Project("job_id", "JobID").
	Project("step_name", "StepName").
	Project("service", "Service").
	Project("model", "Model").
	Project("input_tokens", "InputTokens").
	Project("output_tokens", "OutputTokens").
	Project("latency_ms", "LatencyMS").
	Project("outcome", "Outcome").
	Project("cost", "Cost").
	Project("created_at", "CreatedAt")

var recordDefaultSort = []query.SortField{
	{Field: "CreatedAt"},
}

func scanRecord(s repository.Scanner) (Record, error) {
	var rec Record
	err := s.Scan(
		&rec.ID,
		&rec.JobID,
		&rec.StepName,
		&rec.Service,
		&rec.Model,
		&rec.InputTokens,
		&rec.OutputTokens,
		&rec.LatencyMS,
		&rec.Outcome,
		&rec.Cost,
		&rec.CreatedAt,
	)
	return rec, err
}
