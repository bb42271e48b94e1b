// Package jobs implements the processing job domain: submission, queue
// dispatch, status tracking, and cancellation. Job status transitions are
// monotonic and enforced at the database with guarded updates, so
// concurrent workers can never move a job backwards or out of a terminal
// state.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Status is a job's position in its lifecycle.
type Status string

// Job statuses. Completed, Error, Terminated, and Cancelled are terminal.
const (
	StatusPending    Status = "PENDING"
	StatusRunning    Status = "RUNNING"
	StatusCompleted  Status = "COMPLETED"
	StatusError      Status = "ERROR"
	StatusTerminated Status = "TERMINATED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether a status permits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusTerminated, StatusCancelled:
		return true
	}
	return false
}

// Priorities accepted at submission, mapped to worker queues.
const (
	PriorityHigh    = "high"
	PriorityDefault = "default"
	PriorityLow     = "low"
)

// ValidPriority reports whether p names a submission priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityHigh, PriorityDefault, PriorityLow:
		return true
	}
	return false
}

// Job is one document processing run.
type Job struct {
	ID                 uuid.UUID  `json:"id"`
	DocumentID         uuid.UUID  `json:"document_id"`
	Status             Status     `json:"status"`
	Priority           string     `json:"priority"`
	Progress           int        `json:"progress"`
	CurrentStep        string     `json:"current_step"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	TerminationReason  string     `json:"termination_reason,omitempty"`
	TerminationMessage string     `json:"termination_message,omitempty"`
	CancelRequested    bool       `json:"cancel_requested"`
	CreatedAt          time.Time  `json:"created_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
