package pipeline_test

import (
	"testing"

	"github.com/docweave/docweave/internal/pipeline"
)

func TestContextSeedAndSet(t *testing.T) {
	jc := pipeline.NewContext(map[string]string{
		pipeline.KeyFilename: "report.pdf",
	})

	if v, ok := jc.Get(pipeline.KeyFilename); !ok || v != "report.pdf" {
		t.Errorf("Get(filename) = %q, %v; want %q, true", v, ok, "report.pdf")
	}

	jc.Set(pipeline.KeyDocumentClass, "LABORWERTE")
	if !jc.Has(pipeline.KeyDocumentClass) {
		t.Error("Has(document_class) = false after Set")
	}

	jc.Set(pipeline.KeyDocumentClass, "BEFUNDE")
	if v, _ := jc.Get(pipeline.KeyDocumentClass); v != "BEFUNDE" {
		t.Errorf("Get(document_class) = %q, want overwrite to %q", v, "BEFUNDE")
	}
}

func TestContextRender(t *testing.T) {
	jc := pipeline.NewContext(map[string]string{
		"extracted_text": "Hemoglobin 14.2",
		"filename":       "labs.pdf",
	})

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "single placeholder",
			template: "Classify: {{extracted_text}}",
			want:     "Classify: Hemoglobin 14.2",
		},
		{
			name:     "multiple placeholders",
			template: "{{filename}}: {{extracted_text}}",
			want:     "labs.pdf: Hemoglobin 14.2",
		},
		{
			name:     "whitespace inside braces",
			template: "{{ extracted_text }}",
			want:     "Hemoglobin 14.2",
		},
		{
			name:     "absent variable left intact",
			template: "{{summary}} of {{filename}}",
			want:     "{{summary}} of labs.pdf",
		},
		{
			name:     "no placeholders",
			template: "plain prompt",
			want:     "plain prompt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jc.Render(tt.template); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestContextValuesIsCopy(t *testing.T) {
	jc := pipeline.NewContext(map[string]string{"a": "1"})

	values := jc.Values()
	values["a"] = "mutated"

	if v, _ := jc.Get("a"); v != "1" {
		t.Errorf("Get(a) = %q after mutating Values() copy, want %q", v, "1")
	}
}
