package assistant

import (
	"testing"
)

func TestExtractArtifacts(t *testing.T) {
	results := []ToolResultData{
		{ID: "c1", Name: ToolWebSearch, Success: true, Result: `{"query":"flu","results":[]}`},
		{ID: "c2", Name: ToolLabExplanation, Success: true, Result: `{"type":"lab_explanation","test_type":"Lipid Panel"}`},
		{ID: "c3", Name: ToolMedicalSummary, Success: true, Result: `{"type":"medical_summary","topic":"Hypertension"}`},
		{ID: "c4", Name: ToolImagingExplanation, Success: false, Result: `{"type":"imaging_analysis"}`},
		{ID: "c5", Name: ToolMedicalSummary, Success: true, Result: `not json`},
	}

	artifacts := ExtractArtifacts(results)
	if len(artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(artifacts))
	}
	if artifacts[0].Type != ArtifactLabExplanation {
		t.Errorf("artifact[0].Type = %q", artifacts[0].Type)
	}
	if artifacts[1].Type != ArtifactMedicalSummary {
		t.Errorf("artifact[1].Type = %q", artifacts[1].Type)
	}
	if got := artifacts[0].Payload["test_type"]; got != "Lipid Panel" {
		t.Errorf("payload test_type = %v", got)
	}
}

func TestExtractArtifactsEmpty(t *testing.T) {
	if got := ExtractArtifacts(nil); len(got) != 0 {
		t.Errorf("expected no artifacts, got %d", len(got))
	}
	results := []ToolResultData{
		{ID: "c1", Name: ToolWebSearch, Success: true, Result: `{"query":"x"}`},
	}
	if got := ExtractArtifacts(results); len(got) != 0 {
		t.Errorf("untagged payload must not produce artifacts, got %d", len(got))
	}
}
