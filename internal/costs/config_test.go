package costs_test

import (
	"testing"

	"github.com/docweave/docweave/internal/costs"
)

func TestConfigFinalizeDefaults(t *testing.T) {
	cfg := costs.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", cfg.RetentionDays)
	}
	if cfg.Rates == nil {
		t.Error("Rates not initialized")
	}
}

func TestConfigFinalizeEnvOverride(t *testing.T) {
	t.Setenv("TEST_RETENTION", "30")

	cfg := costs.Config{}
	if err := cfg.Finalize(&costs.Env{RetentionDays: "TEST_RETENTION"}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.RetentionDays)
	}
}

func TestConfigMergeRates(t *testing.T) {
	base := costs.Config{
		RetentionDays: 90,
		Rates: map[string]costs.Rate{
			"gpt-4o":      {InputPer1K: 0.005, OutputPer1K: 0.015},
			"gpt-4o-mini": {InputPer1K: 0.00015, OutputPer1K: 0.0006},
		},
	}
	overlay := costs.Config{
		Rates: map[string]costs.Rate{
			"gpt-4o": {InputPer1K: 0.0025, OutputPer1K: 0.01},
		},
	}

	base.Merge(&overlay)

	if got := base.Rates["gpt-4o"].InputPer1K; got != 0.0025 {
		t.Errorf("gpt-4o input rate = %v, want overlay 0.0025", got)
	}
	if _, ok := base.Rates["gpt-4o-mini"]; !ok {
		t.Error("merge dropped unmentioned model rate")
	}
	if base.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want base 90", base.RetentionDays)
	}
}

func TestConfigPrice(t *testing.T) {
	cfg := costs.Config{
		Rates: map[string]costs.Rate{
			"gpt-4o": {InputPer1K: 0.005, OutputPer1K: 0.015},
		},
	}

	tests := []struct {
		name       string
		model      string
		input      int
		output     int
		want       float64
		wantPriced bool
	}{
		{name: "priced model", model: "gpt-4o", input: 2000, output: 1000, want: 0.025, wantPriced: true},
		{name: "zero tokens", model: "gpt-4o", want: 0, wantPriced: true},
		{name: "unknown model prices at zero", model: "tesseract", input: 5000, output: 5000, want: 0, wantPriced: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, priced := cfg.Price(tt.model, tt.input, tt.output)
			if got != tt.want {
				t.Errorf("Price(%s, %d, %d) = %v, want %v", tt.model, tt.input, tt.output, got, tt.want)
			}
			if priced != tt.wantPriced {
				t.Errorf("Price(%s, ...) priced = %v, want %v", tt.model, priced, tt.wantPriced)
			}
		})
	}
}
