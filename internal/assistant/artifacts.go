package assistant

import (
	"encoding/json"
	"strings"
)

// Artifact kinds produced by the document-builder tools.
const (
	ArtifactLabExplanation  = "lab_explanation"
	ArtifactImagingAnalysis = "imaging_analysis"
	ArtifactMedicalSummary  = "medical_summary"
)

var artifactTypes = map[string]bool{
	ArtifactLabExplanation:  true,
	ArtifactImagingAnalysis: true,
	ArtifactMedicalSummary:  true,
}

// Artifact is a structured document payload captured from a tool result and
// deferred for later rendering. The orchestrator never renders it.
type Artifact struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// ExtractArtifacts scans successful tool-result payloads for document-shaped
// JSON and collects the matches. Non-JSON or untagged payloads are skipped.
func ExtractArtifacts(results []ToolResultData) []Artifact {
	var out []Artifact
	for _, res := range results {
		if !res.Success {
			continue
		}
		payload := strings.TrimSpace(res.Result)
		if payload == "" || !strings.HasPrefix(payload, "{") {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(payload), &obj); err != nil {
			continue
		}
		kind, _ := obj["type"].(string)
		if !artifactTypes[kind] {
			continue
		}
		out = append(out, Artifact{Type: kind, Payload: obj})
	}
	return out
}
