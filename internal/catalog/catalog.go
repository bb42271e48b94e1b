// Package catalog implements the step catalog domain: the declarative,
// database-stored step descriptors and document classes that the pipeline
// compiler resolves into execution plans. Catalog edits never affect
// in-flight jobs; the engine works from a read-only snapshot taken at
// compile time.
package catalog

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies how a step's external call is executed.
type Kind string

// Step kinds. Model steps go through the model invoker; OCR steps go
// through the extraction engine router.
const (
	KindModel Kind = "model"
	KindOCR   Kind = "ocr"
)

// StopCondition configures early termination: when a step's output matches
// any trigger value, the job terminates successfully with the configured
// reason and message.
type StopCondition struct {
	Values             []string `json:"values"`
	TerminationReason  string   `json:"termination_reason"`
	TerminationMessage string   `json:"termination_message"`
}

// Matches reports whether output triggers this stop condition. Matching is
// case-insensitive over the trimmed output.
func (c *StopCondition) Matches(output string) bool {
	if len(c.Values) == 0 {
		return false
	}
	trimmed := strings.ToLower(strings.TrimSpace(output))
	return slices.ContainsFunc(c.Values, func(v string) bool {
		return strings.ToLower(strings.TrimSpace(v)) == trimmed
	})
}

// Step is one descriptor in the catalog. A nil DocumentClassID marks a
// universal step; PostBranching universal steps run after the class-specific
// sequence. The branching step writes its output to the context variable
// named by BranchingField, which resolves the document class.
type Step struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"name"`
	Order           int           `json:"order"`
	Enabled         bool          `json:"enabled"`
	Kind            Kind          `json:"kind"`
	Service         string        `json:"service"`
	Model           string        `json:"model"`
	Temperature     float64       `json:"temperature"`
	MaxTokens       int           `json:"max_tokens"`
	PromptTemplate  string        `json:"prompt_template"`
	OutputFormat    string        `json:"output_format"`
	OutputVariable  string        `json:"output_variable"`
	RetryOnFailure  bool          `json:"retry_on_failure"`
	MaxRetries      int           `json:"max_retries"`
	DocumentClassID *uuid.UUID    `json:"document_class_id"`
	IsBranching     bool          `json:"is_branching_step"`
	BranchingField  string        `json:"branching_field"`
	PostBranching   bool          `json:"post_branching"`
	RequiredContext []string      `json:"required_context_variables"`
	Stop            StopCondition `json:"stop_conditions"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Universal reports whether the step runs for every document class.
func (s *Step) Universal() bool {
	return s.DocumentClassID == nil
}

// MissingContext returns the required context variables absent per has.
func (s *Step) MissingContext(has func(name string) bool) []string {
	var missing []string
	for _, name := range s.RequiredContext {
		if !has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// DocumentClass is a resolvable branch target, keyed by the value the
// branching step writes.
type DocumentClass struct {
	ID          uuid.UUID `json:"id"`
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot is a read-only view of the catalog taken once per job.
type Snapshot struct {
	Steps   []Step
	Classes []DocumentClass
	TakenAt time.Time
}

// ClassByKey looks up a document class by its branch key (case-insensitive).
func (s *Snapshot) ClassByKey(key string) (*DocumentClass, bool) {
	for i := range s.Classes {
		if strings.EqualFold(s.Classes[i].Key, key) {
			return &s.Classes[i], true
		}
	}
	return nil, false
}

// ClassByID looks up a document class by id.
func (s *Snapshot) ClassByID(id uuid.UUID) (*DocumentClass, bool) {
	for i := range s.Classes {
		if s.Classes[i].ID == id {
			return &s.Classes[i], true
		}
	}
	return nil, false
}
