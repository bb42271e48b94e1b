package catalog_test

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/docweave/docweave/internal/catalog"
)

func TestStopConditionMatches(t *testing.T) {
	cond := catalog.StopCondition{
		Values:             []string{"SONSTIGES", "UNKNOWN"},
		TerminationReason:  "unsupported_class",
		TerminationMessage: "document class not supported",
	}

	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"exact", "SONSTIGES", true},
		{"lowercase", "sonstiges", true},
		{"padded", "  Sonstiges \n", true},
		{"second value", "unknown", true},
		{"no match", "LABORWERTE", false},
		{"substring is not a match", "SONSTIGES_2", false},
		{"empty output", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cond.Matches(tt.output); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.output, got, tt.want)
			}
		})
	}
}

func TestStopConditionEmptyNeverMatches(t *testing.T) {
	cond := catalog.StopCondition{}
	if cond.Matches("") || cond.Matches("anything") {
		t.Error("stop condition with no values matched")
	}
}

func TestStepMissingContext(t *testing.T) {
	step := catalog.Step{
		Name:            "classify",
		RequiredContext: []string{"extracted_text", "document_id"},
	}

	available := map[string]bool{"document_id": true}
	missing := step.MissingContext(func(name string) bool { return available[name] })

	if len(missing) != 1 || missing[0] != "extracted_text" {
		t.Errorf("MissingContext = %v, want [extracted_text]", missing)
	}

	available["extracted_text"] = true
	if missing := step.MissingContext(func(name string) bool { return available[name] }); missing != nil {
		t.Errorf("MissingContext = %v, want nil with all present", missing)
	}
}

func TestStepUniversal(t *testing.T) {
	classID := uuid.New()

	universal := catalog.Step{Name: "extract_text"}
	scoped := catalog.Step{Name: "extract_values", DocumentClassID: &classID}

	if !universal.Universal() {
		t.Error("step without class not universal")
	}
	if scoped.Universal() {
		t.Error("class-scoped step reported universal")
	}
}

func TestSnapshotClassLookup(t *testing.T) {
	labor := catalog.DocumentClass{ID: uuid.New(), Key: "LABORWERTE", Enabled: true}
	befunde := catalog.DocumentClass{ID: uuid.New(), Key: "BEFUNDE", Enabled: true}

	snap := &catalog.Snapshot{
		Classes: []catalog.DocumentClass{labor, befunde},
		TakenAt: time.Now(),
	}

	if c, ok := snap.ClassByKey("laborwerte"); !ok || c.ID != labor.ID {
		t.Errorf("ClassByKey(laborwerte) = %v, %v; want LABORWERTE match", c, ok)
	}
	if _, ok := snap.ClassByKey("RECHNUNG"); ok {
		t.Error("ClassByKey matched unknown key")
	}

	if c, ok := snap.ClassByID(befunde.ID); !ok || c.Key != "BEFUNDE" {
		t.Errorf("ClassByID = %v, %v; want BEFUNDE", c, ok)
	}
	if _, ok := snap.ClassByID(uuid.New()); ok {
		t.Error("ClassByID matched unknown id")
	}
}

func TestCreateStepCommandValidation(t *testing.T) {
	validate := validator.New()

	valid := catalog.CreateStepCommand{
		Name:    "classify",
		Order:   2,
		Kind:    catalog.KindModel,
		Service: "openai",
	}

	tests := []struct {
		name    string
		mutate  func(*catalog.CreateStepCommand)
		wantErr bool
	}{
		{"valid", func(c *catalog.CreateStepCommand) {}, false},
		{"missing name", func(c *catalog.CreateStepCommand) { c.Name = "" }, true},
		{"missing service", func(c *catalog.CreateStepCommand) { c.Service = "" }, true},
		{"unknown kind", func(c *catalog.CreateStepCommand) { c.Kind = "shell" }, true},
		{"negative order", func(c *catalog.CreateStepCommand) { c.Order = -1 }, true},
		{"temperature too high", func(c *catalog.CreateStepCommand) { c.Temperature = 2.5 }, true},
		{"too many retries", func(c *catalog.CreateStepCommand) { c.MaxRetries = 11 }, true},
		{
			"branching requires field",
			func(c *catalog.CreateStepCommand) { c.IsBranching = true },
			true,
		},
		{
			"branching with field",
			func(c *catalog.CreateStepCommand) {
				c.IsBranching = true
				c.BranchingField = "document_class"
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := valid
			tt.mutate(&cmd)

			err := validate.Struct(cmd)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
