// Package costs implements usage tracking: one append-only record per
// external call attempt, priced against a configured per-model rate table.
// Records are written best-effort from the invocation path and never fail
// the call that produced them.
package costs

import (
	"time"

	"github.com/google/uuid"
)

// Record is one priced call attempt. Retried attempts produce their own
// records, so a step's true cost includes the attempts that failed.
type Record struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	StepName     string    `json:"step_name"`
	Service      string    `json:"service"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	LatencyMS    int64     `json:"latency_ms"`
	Outcome      string    `json:"outcome"`
	Cost         float64   `json:"cost"`
	CreatedAt    time.Time `json:"created_at"`
}

// JobUsage aggregates every record attributed to one job.
type JobUsage struct {
	JobID        uuid.UUID `json:"job_id"`
	Attempts     int       `json:"attempts"`
	Retries      int       `json:"retries"`
	Failures     int       `json:"failures"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	TotalCost    float64   `json:"total_cost"`
}

// ModelUsage aggregates records per model over a reporting window.
type ModelUsage struct {
	Model        string  `json:"model"`
	Attempts     int     `json:"attempts"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`
}
